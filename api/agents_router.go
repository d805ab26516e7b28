package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Sanidhya49/Invested/auth"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/types"
)

var errAgentNotConfigured = errors.New("agent is not configured")

// agentRoutes exposes the four agents to backend (phone login) clients.
// The uid is the phone number from the access token.
func (b *Backend) agentRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", b.agentStatus)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(b.Issuer))

		r.Post("/oracle/chat", b.oracleChat)
		r.Get("/guardian/alerts", b.guardianAlerts)
		r.Get("/catalyst/tips", b.catalystTips)
		r.Get("/strategist/portfolio", b.strategistPortfolio)
	})
	return r
}

// runAgent calls fn and writes the success envelope via set, or the error
// envelope if fn fails or panics.
func runAgent(w http.ResponseWriter, agent string, fn func() (any, error), set func(*types.AgentResponse, any)) {
	var (
		out any
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%v", p)
			}
		}()
		out, err = fn()
	}()
	if err != nil {
		logger.Errorf("%s agent error: %v", agent, err)
		writeJSON(w, http.StatusOK, types.NewAgentError(agent, err))
		return
	}
	resp := types.NewAgentSuccess(agent)
	set(resp, out)
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) oracleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
	}
	if err := decodeBody(r, &body); err != nil || body.Question == "" {
		writeDetail(w, http.StatusBadRequest, "Question is required")
		return
	}
	uid := auth.Subject(r.Context())
	runAgent(w, "oracle", func() (any, error) {
		if b.Oracle == nil {
			return nil, errAgentNotConfigured
		}
		return b.Oracle.Ask(r.Context(), uid, body.Question), nil
	}, func(resp *types.AgentResponse, v any) { resp.Response = v })
}

func (b *Backend) guardianAlerts(w http.ResponseWriter, r *http.Request) {
	uid := auth.Subject(r.Context())
	area := r.URL.Query().Get("area")
	runAgent(w, "guardian", func() (any, error) {
		if b.Guardian == nil {
			return nil, errAgentNotConfigured
		}
		res := b.Guardian.Run(r.Context(), uid, area)
		return map[string]string{"alerts": res.JSON()}, nil
	}, func(resp *types.AgentResponse, v any) { resp.Alerts = v })
}

func (b *Backend) catalystTips(w http.ResponseWriter, r *http.Request) {
	uid := auth.Subject(r.Context())
	runAgent(w, "catalyst", func() (any, error) {
		if b.Catalyst == nil {
			return nil, errAgentNotConfigured
		}
		res := b.Catalyst.Run(r.Context(), uid)
		return map[string]string{"opportunities": res.JSON()}, nil
	}, func(resp *types.AgentResponse, v any) { resp.Tips = v })
}

func (b *Backend) strategistPortfolio(w http.ResponseWriter, r *http.Request) {
	uid := auth.Subject(r.Context())
	runAgent(w, "strategist", func() (any, error) {
		if b.Strategist == nil {
			return nil, errAgentNotConfigured
		}
		res := b.Strategist.Run(r.Context(), uid)
		return map[string]string{"strategy": res.JSON()}, nil
	}, func(resp *types.AgentResponse, v any) { resp.PortfolioAnalysis = v })
}

func (b *Backend) agentStatus(w http.ResponseWriter, _ *http.Request) {
	agents := map[string]any{}
	if b.Catalog != nil {
		for _, a := range b.Catalog.Agents {
			agents[a.Name] = a
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "agents": agents})
}
