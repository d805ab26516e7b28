package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sanidhya49/Invested/gateway"
	"github.com/Sanidhya49/Invested/internal/bootstrap"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/mockserver"
)

func main() {
	withMock := flag.Bool("mock", true, "run the mock data provider")
	withGateway := flag.Bool("gateway", true, "run the gateway")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Init(ctx, "launcher")
	if err != nil {
		logger.Fatal("startup failed", err)
	}
	defer rt.Close()
	cfg := rt.Config

	g, ctx := errgroup.WithContext(ctx)

	if *withMock {
		mock, err := mockserver.New(cfg.TestDataDir)
		if err != nil {
			logger.Fatal("mock server", err)
		}
		g.Go(func() error {
			return bootstrap.Serve(ctx, "fi-mcp", fmt.Sprintf(":%d", cfg.MockPort), mock.Handler())
		})
		// The backend logs in to the provider at startup.
		time.Sleep(500 * time.Millisecond)
	}

	agents, hub := rt.AgentsServer()
	go hub.Run()
	defer hub.Stop()
	g.Go(func() error {
		return bootstrap.Serve(ctx, "agents", fmt.Sprintf(":%d", cfg.AgentsPort), agents.Routes())
	})

	backend := rt.Backend(ctx)
	g.Go(func() error {
		return bootstrap.Serve(ctx, "backend", fmt.Sprintf(":%d", cfg.BackendPort), backend.Routes())
	})

	if *withGateway {
		gw, err := gateway.New(
			fmt.Sprintf("http://localhost:%d", cfg.BackendPort),
			fmt.Sprintf("http://localhost:%d", cfg.AgentsPort),
		)
		if err != nil {
			logger.Fatal("gateway", err)
		}
		g.Go(func() error {
			return bootstrap.Serve(ctx, "gateway", fmt.Sprintf(":%d", cfg.GatewayPort), gw)
		})
	}

	fmt.Println("Invested started")
	fmt.Println("================")
	if *withMock {
		fmt.Printf("Mock provider: http://localhost:%d\n", cfg.MockPort)
	}
	fmt.Printf("Agents:        http://localhost:%d\n", cfg.AgentsPort)
	fmt.Printf("Backend:       http://localhost:%d\n", cfg.BackendPort)
	if *withGateway {
		fmt.Printf("Gateway:       http://localhost:%d\n", cfg.GatewayPort)
	}
	fmt.Println("Press Ctrl+C to shutdown...")

	if err := g.Wait(); err != nil {
		logger.Error("launcher stopped", err)
		os.Exit(1)
	}
	fmt.Println("Invested shutdown complete.")
}
