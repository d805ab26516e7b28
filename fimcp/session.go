package fimcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/resilience"
)

// Session is the backend's single long-lived provider session.
type Session struct {
	client *Client
	phone  string
	id     string
	retry  *resilience.RetryConfig

	mu          sync.RWMutex
	established bool
}

// NewSession prepares a session with a fresh backend_session_<hex> id.
func NewSession(client *Client, phone string) *Session {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return &Session{
		client: client,
		phone:  phone,
		id:     "backend_session_" + hex.EncodeToString(b),
		retry:  resilience.SessionSetupConfig(),
	}
}

// SetRetryConfig overrides the startup retry schedule.
func (s *Session) SetRetryConfig(cfg *resilience.RetryConfig) { s.retry = cfg }

// ID returns the session id once established, or "".
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.established {
		return ""
	}
	return s.id
}

// Establish logs in with retries.
func (s *Session) Establish(ctx context.Context) error {
	if s.client == nil || s.phone == "" {
		return fmt.Errorf("MCP server URL or phone number not configured")
	}

	cfg := *s.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warnf("MCP session attempt %d failed: %v (retrying in %s)", attempt, err, wait)
	}
	err := resilience.RetryWithConfig(ctx, &cfg, func(ctx context.Context) error {
		return s.client.Login(ctx, s.id, s.phone)
	})
	if err != nil {
		return fmt.Errorf("establish MCP session: %w", err)
	}
	s.markEstablished()
	return nil
}

// Retry makes one immediate login attempt.
func (s *Session) Retry(ctx context.Context) error {
	if s.client == nil || s.phone == "" {
		return fmt.Errorf("MCP server URL or phone number not configured")
	}
	if err := s.client.Login(ctx, s.id, s.phone); err != nil {
		return err
	}
	s.markEstablished()
	return nil
}

func (s *Session) markEstablished() {
	s.mu.Lock()
	s.established = true
	s.mu.Unlock()
	logger.Infof("MCP session established: %s", s.id)
}
