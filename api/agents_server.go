package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Sanidhya49/Invested/agents/catalyst"
	"github.com/Sanidhya49/Invested/agents/guardian"
	"github.com/Sanidhya49/Invested/agents/oracle"
	"github.com/Sanidhya49/Invested/agents/strategist"
	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/auth"
	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/finance"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/notify"
	"github.com/Sanidhya49/Invested/observability"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/websocket"
)

// setupPhone is the test number bound by /setup-mcp-session.
const setupPhone = "9999999999"

// SessionLogin binds provider sessions to phone numbers.
type SessionLogin interface {
	Login(ctx context.Context, sessionID, phone string) error
	AuthURL(sessionID string) string
}

// AgentsServer is the consolidated agents API used by the web app.
type AgentsServer struct {
	Store      store.UserStore
	Provider   SessionLogin
	Loader     *toolkit.Loader
	Oracle     *oracle.Agent
	Guardian   *guardian.Agent
	Catalyst   *catalyst.Agent
	Strategist *strategist.Agent
	Notifier   *notify.Service
	Hub        *websocket.Hub
	Verifier   *auth.Verifier
	Metrics    *observability.Metrics

	// AuthPhone is the number /start-fi-auth logs new sessions in with.
	AuthPhone   string
	FCMReady    bool
	CORSOrigins []string
	Now         func() time.Time
}

func (s *AgentsServer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Routes returns the server's handler.
func (s *AgentsServer) Routes() http.Handler {
	r := newRouter(s.CORSOrigins, s.Metrics)

	r.Get("/health", healthHandler)
	r.Get("/test-firestore", s.testFirestore)
	r.Get("/test-fcm", s.testFCM)
	r.Handle("/metrics", observability.MetricsHandler())
	if s.Hub != nil {
		r.Get("/ws", websocket.Handler(s.Hub, s.Verifier, nil))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireFirebase(s.Verifier))

		r.Get("/start-fi-auth", s.startFiAuth)
		r.Post("/test-data-fetch", s.testDataFetch)
		r.Post("/clear-cache", s.clearCache)
		r.Post("/setup-mcp-session", s.setupMCPSession)
		r.Post("/prefetch-data", s.prefetchData)

		r.Post("/ask-oracle", s.askOracle)
		r.Post("/run-guardian", s.runGuardian)
		r.Post("/run-catalyst", s.runCatalyst)
		r.Post("/run-strategist", s.runStrategist)

		r.Post("/send-notification", s.sendNotification)
		r.Post("/trigger-guardian-alert", s.triggerGuardianAlert)

		r.Get("/get-user-data", s.getUserData)
		r.Get("/get-subscriptions", s.getSubscriptions)
		r.Get("/test-subscriptions", s.testSubscriptions)
	})
	return r
}

func (s *AgentsServer) timestamp() string {
	return store.CacheTimestamp(s.now())
}

func (s *AgentsServer) testFirestore(w http.ResponseWriter, r *http.Request) {
	err := s.Store.Set(r.Context(), "test", "connection", map[string]any{
		"timestamp": s.timestamp(),
		"status":    "connected",
	})
	if err != nil {
		logger.Error("firestore connection check failed", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "error",
			"message":   "Firestore connection failed: " + err.Error(),
			"timestamp": s.timestamp(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "Firestore connection working",
		"timestamp": s.timestamp(),
	})
}

func (s *AgentsServer) testFCM(w http.ResponseWriter, _ *http.Request) {
	if !s.FCMReady {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "FCM configuration error",
			"error":  "messaging client is not initialized",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "FCM is properly configured"})
}

// newSession logs a fresh provider session in with phone and stores it on
// the user document.
func (s *AgentsServer) newSession(ctx context.Context, uid, phone string) (string, error) {
	sessionID := uuid.NewString()
	if err := s.Provider.Login(ctx, sessionID, phone); err != nil {
		return "", err
	}
	if err := s.Store.Merge(ctx, uid, map[string]any{store.FieldFiSessionID: sessionID}); err != nil {
		return "", err
	}
	logger.Infof("MCP session %s created for %s", sessionID, uid)
	return sessionID, nil
}

func (s *AgentsServer) startFiAuth(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.newSession(r.Context(), auth.Subject(r.Context()), s.AuthPhone)
	if err != nil {
		logger.Error("failed to create MCP session", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to create MCP session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url":   s.Provider.AuthURL(sessionID),
		"session_id": sessionID,
	})
}

func (s *AgentsServer) setupMCPSession(w http.ResponseWriter, r *http.Request) {
	uid := auth.Subject(r.Context())
	u, err := s.Store.GetUser(r.Context(), uid)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusInternalServerError, "Failed to setup MCP session: "+err.Error())
		return
	}
	if u != nil && u.FiSessionID != "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "success",
			"message":    "Session already exists",
			"session_id": u.FiSessionID,
		})
		return
	}

	sessionID, err := s.newSession(r.Context(), uid, setupPhone)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to setup MCP session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"message":    "MCP session created successfully",
		"session_id": sessionID,
	})
}

func (s *AgentsServer) testDataFetch(w http.ResponseWriter, r *http.Request) {
	uid := auth.Subject(r.Context())
	u, err := s.Store.GetUser(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "User document not found"})
		return
	}
	if u.FiSessionID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": toolkit.ErrNoSession.Error()})
		return
	}

	b := s.Loader.Raw(r.Context(), uid, []fimcp.DataKey{fimcp.BankTransactions})
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":        u.FiSessionID,
		"bank_transactions": b.Get(fimcp.BankTransactions),
		"user_exists":       true,
		"has_session":       true,
	})
}

func (s *AgentsServer) clearCache(w http.ResponseWriter, r *http.Request) {
	uid := auth.Subject(r.Context())
	if err := s.Store.Merge(r.Context(), uid, map[string]any{store.FieldMCPDataCache: nil}); err != nil {
		logger.Error("failed to clear cache", err)
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": "Failed to clear cache: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Cache cleared successfully"})
}

func (s *AgentsServer) prefetchData(w http.ResponseWriter, r *http.Request) {
	b := s.Loader.Prefetch(r.Context(), auth.Subject(r.Context()))
	data := b.Prompt(fimcp.AllFinancialKeys, nil)
	data[store.FieldMCPCacheTimestamp] = s.timestamp()
	writeJSON(w, http.StatusOK, map[string]any{"status": "prefetched", "mcp_data": data})
}

func (s *AgentsServer) askOracle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.Oracle.Ask(r.Context(), auth.Subject(r.Context()), body.Question))
}

func (s *AgentsServer) runGuardian(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Area string `json:"area"`
	}
	_ = decodeBody(r, &body)
	res := s.Guardian.Run(r.Context(), auth.Subject(r.Context()), body.Area)
	writeJSON(w, http.StatusOK, map[string]string{"alerts": res.JSON()})
}

func (s *AgentsServer) runCatalyst(w http.ResponseWriter, r *http.Request) {
	res := s.Catalyst.Run(r.Context(), auth.Subject(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"opportunities": res.JSON()})
}

func (s *AgentsServer) runStrategist(w http.ResponseWriter, r *http.Request) {
	res := s.Strategist.Run(r.Context(), auth.Subject(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"strategy": res.JSON()})
}

func (s *AgentsServer) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req notify.Request
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	s.notify(w, r, req)
}

func (s *AgentsServer) triggerGuardianAlert(w http.ResponseWriter, r *http.Request) {
	s.notify(w, r, notify.GuardianAlert())
}

func (s *AgentsServer) notify(w http.ResponseWriter, r *http.Request, req notify.Request) {
	res, err := s.Notifier.Notify(r.Context(), auth.Subject(r.Context()), req)
	if errors.Is(err, notify.ErrNoToken) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logger.Error("notification failed", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *AgentsServer) getUserData(w http.ResponseWriter, r *http.Request) {
	b := s.Loader.Raw(r.Context(), auth.Subject(r.Context()), []fimcp.DataKey{fimcp.NetWorth})
	data, _ := b.Data[fimcp.NetWorth].(map[string]any)
	totals, err := finance.NetWorthTotals(data)
	if err != nil {
		logger.Debugf("get-user-data: using fallback totals: %v", err)
		totals = finance.DefaultNetWorthTotals()
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *AgentsServer) getSubscriptions(w http.ResponseWriter, r *http.Request) {
	b := s.Loader.Raw(r.Context(), auth.Subject(r.Context()), []fimcp.DataKey{fimcp.BankTransactions})
	data, ok := b.Data[fimcp.BankTransactions].(map[string]any)
	if !ok || data["error"] != nil {
		writeJSON(w, http.StatusOK, finance.FallbackSubscriptions(s.now()))
		return
	}
	writeJSON(w, http.StatusOK, finance.AutoDebitSubscriptions(data, s.now()))
}

func (s *AgentsServer) testSubscriptions(w http.ResponseWriter, r *http.Request) {
	b := s.Loader.Raw(r.Context(), auth.Subject(r.Context()), []fimcp.DataKey{fimcp.BankTransactions})
	data, ok := b.Data[fimcp.BankTransactions].(map[string]any)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"raw_data": nil, "has_error": true, "data_keys": []string{}})
		return
	}
	keys := lo.Keys(data)
	sort.Strings(keys)
	writeJSON(w, http.StatusOK, map[string]any{
		"raw_data":  data,
		"has_error": data["error"],
		"data_keys": keys,
	})
}
