package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Sanidhya49/Invested/agents/catalyst"
	"github.com/Sanidhya49/Invested/agents/guardian"
	"github.com/Sanidhya49/Invested/agents/insight"
	"github.com/Sanidhya49/Invested/agents/oracle"
	"github.com/Sanidhya49/Invested/agents/strategist"
	"github.com/Sanidhya49/Invested/auth"
	"github.com/Sanidhya49/Invested/config"
	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/finance"
	"github.com/Sanidhya49/Invested/goals"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/observability"
	"github.com/Sanidhya49/Invested/report"
)

// DataProvider reads user data from the provider by phone number.
type DataProvider interface {
	CallTool(ctx context.Context, name, phone string, args map[string]any) (any, error)
	FetchFile(ctx context.Context, phone, file string) (any, error)
}

// BackendSession is the backend's own provider session.
type BackendSession interface {
	ID() string
	Retry(ctx context.Context) error
}

// Backend is the phone-login API: goals, analysis, raw data, PDF export and
// the /agents router.
type Backend struct {
	Issuer   *auth.Issuer
	Provider DataProvider
	Goals    *goals.Service
	Session  BackendSession
	Insight  *insight.Service
	Catalog  *config.Catalog
	Metrics  *observability.Metrics

	Oracle     *oracle.Agent
	Guardian   *guardian.Agent
	Catalyst   *catalyst.Agent
	Strategist *strategist.Agent

	CORSOrigins []string
	Now         func() time.Time
}

func (b *Backend) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Routes returns the backend handler.
func (b *Backend) Routes() http.Handler {
	r := newRouter(b.CORSOrigins, b.Metrics)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", observability.MetricsHandler())
	r.Post("/login", b.login)
	r.Post("/retry-mcp-connection", b.retryMCPConnection)
	r.Post("/process_agent_request", b.processAgentRequest)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(b.Issuer))

		r.Route("/api/me", func(r chi.Router) {
			r.Get("/goals", b.listGoals)
			r.Post("/goals", b.addGoal)
			r.Put("/goals/{goal_id}", b.updateGoal)
			r.Delete("/goals/{goal_id}", b.deleteGoal)

			r.Get("/export/summary.pdf", b.exportSummary)

			r.Get("/analysis/financial-health", b.financialHealth)
			r.Get("/analysis/detailed", b.detailedAnalysis)
			r.Get("/analysis/health-basic", b.basicHealth)
			r.Get("/analysis/subscriptions", b.subscriptions)

			r.Get("/net-worth", b.toolData(fimcp.ToolGetNetWorth, "User not found"))
			r.Get("/mf-transactions", b.toolData(fimcp.ToolGetMFTransactions, "User mutual fund transactions not found or tool failed"))
			r.Get("/stock-transactions", b.toolData(fimcp.ToolGetStockTransactions, "User stock transactions not found or tool failed"))
			r.Get("/epf-details", b.toolData(fimcp.ToolGetEPFDetails, "User EPF details not found or tool failed"))
			r.Get("/credit-report", b.toolData(fimcp.ToolGetCreditReport, "User credit report not found or tool failed"))
			r.Get("/bank-transactions", b.toolData(fimcp.ToolGetBankTransactions, "User bank transactions not found or tool failed"))
		})

		r.Post("/bridge/firebase-token", b.bridgeToken)
	})

	r.Mount("/agents", b.agentRoutes())
	return r
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid form body")
		return
	}
	phone := strings.TrimSpace(r.PostFormValue("username"))
	if phone == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username is required")
		return
	}
	// Any OTP is accepted.
	token, err := b.Issuer.AccessToken(phone)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (b *Backend) bridgeToken(w http.ResponseWriter, r *http.Request) {
	token, err := b.Issuer.BridgeToken(auth.Subject(r.Context()))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to generate Firebase token: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"firebase_token": token})
}

func (b *Backend) retryMCPConnection(w http.ResponseWriter, r *http.Request) {
	if b.Session == nil {
		writeDetail(w, http.StatusInternalServerError, "MCP server URL or phone number not configured")
		return
	}
	if err := b.Session.Retry(r.Context()); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to connect to MCP server: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Successfully connected to MCP server. Session ID: " + b.Session.ID(),
	})
}

func (b *Backend) processAgentRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Intent    string         `json:"intent"`
		Entities  map[string]any `json:"entities"`
		SessionID string         `json:"session_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	res, err := b.Insight.Process(r.Context(), req.Intent)
	var intentErr *insight.IntentError
	switch {
	case errors.As(err, &intentErr):
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, insight.ErrNoSession):
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		logger.Error("agent request failed", err)
		writeDetail(w, http.StatusInternalServerError, "An internal error occurred: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": res.Message,
		"data":    res.Data,
	})
}

func (b *Backend) listGoals(w http.ResponseWriter, r *http.Request) {
	list, err := b.Goals.List(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		logger.Warnf("list goals: %v", err)
		writeDetail(w, http.StatusNotFound, "Goals not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) addGoal(w http.ResponseWriter, r *http.Request) {
	var g goals.Goal
	if err := decodeBody(r, &g); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := g.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	list, err := b.Goals.Add(r.Context(), auth.Subject(r.Context()), g)
	if err != nil {
		logger.Error("add goal failed", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to add goal")
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func goalID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "goal_id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "goal_id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (b *Backend) updateGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := goalID(w, r)
	if !ok {
		return
	}
	var u goals.Update
	if err := decodeBody(r, &u); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	g, err := b.Goals.Update(r.Context(), auth.Subject(r.Context()), id, u)
	if err != nil {
		logger.Warnf("update goal %s: %v", id, err)
		writeDetail(w, http.StatusNotFound, "Goal not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (b *Backend) deleteGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := goalID(w, r)
	if !ok {
		return
	}
	list, err := b.Goals.Delete(r.Context(), auth.Subject(r.Context()), id)
	if err != nil {
		logger.Warnf("delete goal %s: %v", id, err)
		writeDetail(w, http.StatusNotFound, "Goal not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// tool calls name for the current phone; a nil result counts as missing.
func (b *Backend) tool(ctx context.Context, name string) (map[string]any, error) {
	v, err := b.Provider.CallTool(ctx, name, auth.Subject(ctx), nil)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fimcp.ErrNotJSON)
	}
	return m, nil
}

func (b *Backend) toolData(name, missing string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := b.tool(r.Context(), name)
		if err != nil {
			logger.Warnf("%s for %s: %v", name, auth.Subject(r.Context()), err)
			writeDetail(w, http.StatusNotFound, missing)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (b *Backend) exportSummary(w http.ResponseWriter, r *http.Request) {
	phone := auth.Subject(r.Context())
	netWorth, err := b.tool(r.Context(), fimcp.ToolGetNetWorth)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Net worth data not found")
		return
	}
	userGoals, err := b.Goals.List(r.Context(), phone)
	if err != nil {
		userGoals = nil
	}

	pdf, err := report.SummaryPDF(netWorth, userGoals, b.now())
	if err != nil {
		logger.Error("PDF generation failed", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to generate PDF: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invested_summary_%s.pdf", phone))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// healthInputs fetches the six score inputs concurrently; failures leave
// the field nil.
func (b *Backend) healthInputs(ctx context.Context) finance.HealthInputs {
	var in finance.HealthInputs
	var mu sync.Mutex
	fields := map[string]*any{
		fimcp.ToolGetNetWorth:          &in.NetWorth,
		fimcp.ToolGetBankTransactions:  &in.Bank,
		fimcp.ToolGetCreditReport:      &in.Credit,
		fimcp.ToolGetMFTransactions:    &in.MF,
		fimcp.ToolGetStockTransactions: &in.Stock,
		fimcp.ToolGetEPFDetails:        &in.EPF,
	}
	g, gctx := errgroup.WithContext(ctx)
	for name, dst := range fields {
		g.Go(func() error {
			v, err := b.tool(gctx, name)
			if err != nil {
				logger.Debugf("health input %s unavailable: %v", name, err)
				return nil
			}
			mu.Lock()
			*dst = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return in
}

func (b *Backend) financialHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, finance.HealthScore(b.healthInputs(r.Context())))
}

func (b *Backend) detailedAnalysis(w http.ResponseWriter, r *http.Request) {
	in := b.healthInputs(r.Context())
	writeJSON(w, http.StatusOK, finance.DetailedAnalysis(in, finance.HealthScore(in)))
}

func (b *Backend) basicHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	phone := auth.Subject(ctx)

	bank, err := b.tool(ctx, fimcp.ToolGetBankTransactions)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Bank transactions not found for financial health analysis")
		return
	}
	netWorth, err := b.Provider.FetchFile(ctx, phone, fimcp.NetWorth.FileName())
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Net worth data not found for financial health analysis")
		return
	}
	mf, _ := b.Provider.FetchFile(ctx, phone, fimcp.MFTransactions.FileName())
	epf, _ := b.Provider.FetchFile(ctx, phone, fimcp.EPFDetails.FileName())

	txns, err := finance.FlattenBankTransactions(bank)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to calculate financial health score: "+err.Error())
		return
	}
	userGoals, _ := b.Goals.List(ctx, phone)
	score := finance.BasicHealthScore(txns, finance.InvestmentTotal(mf, epf, netWorth), goals.EmergencyFundProgress(userGoals))
	writeJSON(w, http.StatusOK, score)
}

func (b *Backend) subscriptions(w http.ResponseWriter, r *http.Request) {
	bank, err := b.tool(r.Context(), fimcp.ToolGetBankTransactions)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "User transactions not found for subscription analysis")
		return
	}
	writeJSON(w, http.StatusOK, finance.DetectSubscriptions(bank, finance.DefaultToday))
}
