// Package bootstrap wires configuration, logging, observability, storage and
// the agents into the servers each binary runs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/Sanidhya49/Invested/agents/catalyst"
	"github.com/Sanidhya49/Invested/agents/guardian"
	"github.com/Sanidhya49/Invested/agents/insight"
	"github.com/Sanidhya49/Invested/agents/oracle"
	"github.com/Sanidhya49/Invested/agents/strategist"
	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/api"
	"github.com/Sanidhya49/Invested/auth"
	"github.com/Sanidhya49/Invested/config"
	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/goals"
	"github.com/Sanidhya49/Invested/llm"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/notify"
	"github.com/Sanidhya49/Invested/observability"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/websocket"
)

// Runtime holds the shared dependencies of one process.
type Runtime struct {
	Config  *config.EnvConfig
	Metrics *observability.Metrics
	Catalog *config.Catalog

	Store     store.UserStore
	Tools     store.ToolCache
	Firebase  *fbauth.Client
	Messaging *messaging.Client
	MCP       *fimcp.Client
	LLM       llm.Client

	closers []func() error
}

// Init loads the environment and builds everything that does not depend on
// which server is being run. Optional services that fail to start are logged
// and left nil.
func Init(ctx context.Context, service string) (*Runtime, error) {
	cfg, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	logger.Configure(service, cfg.LogLevel, cfg.LogFormat)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warnf("config: %s", w)
	}
	if err != nil {
		return nil, err
	}
	logger.GetLogger().WithFields(cfg.Summary()).Info("configuration loaded")

	rt := &Runtime{Config: cfg}

	if cfg.MetricsEnabled {
		if _, err := observability.InitMetrics(service); err != nil {
			logger.Warnf("metrics disabled: %v", err)
		} else if rt.Metrics, err = observability.NewMetrics(); err != nil {
			logger.Warnf("metrics instruments unavailable: %v", err)
		}
	}
	if _, err := observability.InitTracing(service, cfg.TracesToStdout); err != nil {
		logger.Warnf("tracing disabled: %v", err)
	}

	rt.Catalog, err = config.LoadCatalog(cfg.AgentCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("agent catalog: %w", err)
	}

	rt.initFirebase(ctx)
	rt.initRedis(ctx)

	rt.MCP = fimcp.NewClient(cfg.FiMCPServerURL)

	client, err := llm.NewFromEnv()
	switch {
	case errors.Is(err, llm.ErrLLMDisabled):
		logger.Warn("LLM disabled: no API key configured")
	case err != nil:
		logger.Error("LLM client unavailable", err)
	default:
		rt.LLM = llm.Instrument(client, cfg.LLMProvider, rt.Metrics)
	}
	return rt, nil
}

func (rt *Runtime) initFirebase(ctx context.Context) {
	cfg := rt.Config
	rt.Store = store.NewMemoryStore()
	if cfg.FirebaseCredentialsFile == "" {
		return
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID},
		option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	if err != nil {
		logger.Error("firebase initialization failed, using in-memory store", err)
		return
	}
	if rt.Firebase, err = app.Auth(ctx); err != nil {
		logger.Error("firebase auth unavailable", err)
	}
	if rt.Messaging, err = app.Messaging(ctx); err != nil {
		logger.Error("firebase messaging unavailable", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		logger.Error("firestore unavailable, using in-memory store", err)
		return
	}
	s := store.NewFirestoreStore(fs)
	rt.Store = s
	rt.closers = append(rt.closers, s.Close)
	logger.Info("Firebase initialized")
}

func (rt *Runtime) initRedis(ctx context.Context) {
	if rt.Config.RedisURL == "" {
		return
	}
	c, err := store.NewRedisToolCache(rt.Config.RedisURL, rt.Config.MCPCacheTTL)
	if err != nil {
		logger.Error("redis tool cache disabled", err)
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		logger.Warnf("redis not reachable, tool cache disabled: %v", err)
		_ = c.Close()
		return
	}
	rt.Tools = c
	rt.closers = append(rt.closers, c.Close)
}

// Loader returns a data loader over the runtime's store, provider and caches.
func (rt *Runtime) Loader() *toolkit.Loader {
	return &toolkit.Loader{
		Store:   rt.Store,
		Fetcher: rt.MCP,
		Local:   &fimcp.LocalData{Dir: rt.Config.TestDataDir},
		Tools:   rt.Tools,
		TTL:     rt.Config.MCPCacheTTL,
	}
}

// Agents holds one instance of each agent.
type Agents struct {
	Oracle     *oracle.Agent
	Guardian   *guardian.Agent
	Catalyst   *catalyst.Agent
	Strategist *strategist.Agent
}

// NewAgents builds the four agents over loader.
func (rt *Runtime) NewAgents(loader *toolkit.Loader) Agents {
	return Agents{
		Oracle:     &oracle.Agent{Loader: loader, LLM: rt.LLM, Metrics: rt.Metrics},
		Guardian:   &guardian.Agent{Store: rt.Store, Loader: loader, LLM: rt.LLM, Metrics: rt.Metrics},
		Catalyst:   &catalyst.Agent{Store: rt.Store, Loader: loader, LLM: rt.LLM, Metrics: rt.Metrics},
		Strategist: &strategist.Agent{Loader: loader, LLM: rt.LLM, Metrics: rt.Metrics},
	}
}

// AgentsServer builds the agents API. The returned hub must be run by the
// caller.
func (rt *Runtime) AgentsServer() (*api.AgentsServer, *websocket.Hub) {
	loader := rt.Loader()
	agents := rt.NewAgents(loader)
	hub := websocket.NewHub()

	verifier := &auth.Verifier{Secret: rt.Config.SecretKey}
	if rt.Firebase != nil {
		verifier.Firebase = rt.Firebase
	}
	svc := &notify.Service{Store: rt.Store, Hub: hub}
	if rt.Messaging != nil {
		svc.Sender = notify.NewFCMSender(rt.Messaging)
	}

	return &api.AgentsServer{
		Store:       rt.Store,
		Provider:    rt.MCP,
		Loader:      loader,
		Oracle:      agents.Oracle,
		Guardian:    agents.Guardian,
		Catalyst:    agents.Catalyst,
		Strategist:  agents.Strategist,
		Notifier:    svc,
		Hub:         hub,
		Verifier:    verifier,
		Metrics:     rt.Metrics,
		AuthPhone:   rt.Config.MCPAuthPhoneNumber,
		FCMReady:    rt.Messaging != nil,
		CORSOrigins: rt.Config.CORSOrigins,
	}, hub
}

// Backend builds the backend API and starts establishing its provider
// session in the background.
func (rt *Runtime) Backend(ctx context.Context) *api.Backend {
	session := fimcp.NewSession(rt.MCP, rt.Config.MCPAuthPhoneNumber)
	go func() {
		if err := session.Establish(ctx); err != nil {
			logger.Error("backend MCP session not established; use /retry-mcp-connection", err)
		}
	}()

	agents := rt.NewAgents(rt.Loader())
	return &api.Backend{
		Issuer:   &auth.Issuer{Secret: rt.Config.SecretKey, TTL: rt.Config.AccessTokenTTL()},
		Provider: rt.MCP,
		Goals:    goals.NewService(rt.MCP),
		Session:  session,
		Insight: &insight.Service{
			Provider: rt.MCP,
			Session:  session,
			LLM:      rt.LLM,
			Metrics:  rt.Metrics,
		},
		Catalog:     rt.Catalog,
		Metrics:     rt.Metrics,
		Oracle:      agents.Oracle,
		Guardian:    agents.Guardian,
		Catalyst:    agents.Catalyst,
		Strategist:  agents.Strategist,
		CORSOrigins: rt.Config.CORSOrigins,
	}
}

// Serve runs h on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, name, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("%s listening on %s", name, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("%s shutting down", name)
		return srv.Shutdown(shutdownCtx)
	}
}

// Close flushes telemetry and releases store and cache connections.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range rt.closers {
		if err := c(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}
	_ = observability.ShutdownMetrics(ctx)
	_ = observability.ShutdownTracing(ctx)
	_ = logger.GetLogger().Sync()
}
