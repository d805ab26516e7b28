package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sanidhya49/Invested/config"
	"github.com/Sanidhya49/Invested/internal/bootstrap"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/mockserver"
)

func main() {
	port := flag.Int("port", 0, "listen port (default PORT)")
	dataDir := flag.String("data", "", "test data directory (default TEST_DATA_DIR)")
	flag.Parse()

	cfg, err := config.LoadEnv()
	if err != nil {
		logger.Fatal("config", err)
	}
	logger.Configure("fi-mcp", cfg.LogLevel, cfg.LogFormat)

	if *port == 0 {
		*port = cfg.MockPort
	}
	if *dataDir == "" {
		*dataDir = cfg.TestDataDir
	}

	srv, err := mockserver.New(*dataDir)
	if err != nil {
		logger.Fatal("mock server", err)
	}
	logger.Infof("serving test data from %s", *dataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := bootstrap.Serve(ctx, "fi-mcp", fmt.Sprintf(":%d", *port), srv.Handler()); err != nil {
		logger.Fatal("fi-mcp server failed", err)
	}
}
