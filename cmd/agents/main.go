package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sanidhya49/Invested/internal/bootstrap"
	"github.com/Sanidhya49/Invested/logger"
)

func main() {
	port := flag.Int("port", 0, "listen port (default AGENTS_PORT)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Init(ctx, "agents")
	if err != nil {
		logger.Fatal("startup failed", err)
	}
	defer rt.Close()

	srv, hub := rt.AgentsServer()
	go hub.Run()
	defer hub.Stop()

	if *port == 0 {
		*port = rt.Config.AgentsPort
	}
	if err := bootstrap.Serve(ctx, "agents", fmt.Sprintf(":%d", *port), srv.Routes()); err != nil {
		logger.Fatal("agents server failed", err)
	}
}
