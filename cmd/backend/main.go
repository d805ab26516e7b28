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
	port := flag.Int("port", 0, "listen port (default BACKEND_PORT)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Init(ctx, "backend")
	if err != nil {
		logger.Fatal("startup failed", err)
	}
	defer rt.Close()

	if *port == 0 {
		*port = rt.Config.BackendPort
	}
	b := rt.Backend(ctx)
	if err := bootstrap.Serve(ctx, "backend", fmt.Sprintf(":%d", *port), b.Routes()); err != nil {
		logger.Fatal("backend server failed", err)
	}
}
