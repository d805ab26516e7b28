package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sanidhya49/Invested/config"
	"github.com/Sanidhya49/Invested/gateway"
	"github.com/Sanidhya49/Invested/internal/bootstrap"
	"github.com/Sanidhya49/Invested/logger"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	cfg, err := config.LoadEnv()
	if err != nil {
		logger.Fatal("config", err)
	}
	logger.Configure("gateway", cfg.LogLevel, cfg.LogFormat)

	listen := flag.String("listen", fmt.Sprintf(":%d", cfg.GatewayPort), "listen address")
	backendUp := flag.String("backend", envOr("BACKEND_UPSTREAM", fmt.Sprintf("http://localhost:%d", cfg.BackendPort)), "backend base URL")
	agentsUp := flag.String("agents", envOr("AGENTS_UPSTREAM", fmt.Sprintf("http://localhost:%d", cfg.AgentsPort)), "agents server base URL")
	flag.Parse()

	g, err := gateway.New(*backendUp, *agentsUp)
	if err != nil {
		logger.Fatal("gateway", err)
	}
	logger.Infof("[GW] BACKEND_UPSTREAM=%s AGENTS_UPSTREAM=%s", *backendUp, *agentsUp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := bootstrap.Serve(ctx, "gateway", *listen, g); err != nil {
		logger.Fatal("gateway failed", err)
	}
}
