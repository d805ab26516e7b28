// Package fimcp talks to the fi-mcp mock financial data provider.
package fimcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/resilience"
)

var (
	ErrNotFound   = errors.New("fimcp: not found")
	ErrNoSession  = errors.New("fimcp: no session")
	ErrBadRequest = errors.New("fimcp: bad request")
	ErrNotJSON    = errors.New("fimcp: tool result is not JSON")
)

const (
	streamTimeout = 30 * time.Second
	toolTimeout   = 10 * time.Second
)

// StatusError is returned when the provider answers with an unexpected status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("MCP server returned %d: %s", e.Code, e.Body)
}

// ToolError is a JSON-RPC error or an isError tool result.
type ToolError struct {
	Tool    string
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// Client calls the provider's stream, JSON-RPC, file and login endpoints.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	breaker *resilience.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTP = h }
}

// WithBreaker routes every call through cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient creates a client for the provider at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultBreaker trips after five consecutive provider failures. Client-side
// errors (bad request, not found, tool errors) do not count.
func DefaultBreaker() *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker("fi-mcp", 5, 30*time.Second)
	cb.SetFailureClassifier(func(err error) bool {
		var se *StatusError
		var te *ToolError
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrBadRequest), errors.Is(err, ErrNotJSON):
			return false
		case errors.As(err, &te):
			return false
		case errors.As(err, &se):
			return se.Code >= 500
		}
		return true
	})
	cb.SetOnStateChange(func(name string, from, to resilience.State) {
		logger.WithField("breaker", name).Warnf("circuit %s -> %s", from, to)
	})
	return cb
}

func (c *Client) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// Stream fetches one data category through POST /mcp/stream. An empty phone
// lets the provider pick its default user.
func (c *Client) Stream(ctx context.Context, sessionID, tool, phone string) (map[string]any, error) {
	body := map[string]string{"tool_name": tool}
	if phone != "" {
		body["phone_number"] = phone
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	err = c.guard(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, streamTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/mcp/stream", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Session-ID", sessionID)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return transportError(tool, err)
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode %s: %w", tool, ErrNotJSON)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func transportError(tool string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("timeout fetching %s from MCP server: %w", tool, err)
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Op == "dial" {
		return fmt.Errorf("could not connect to MCP server for %s: %w", tool, err)
	}
	return fmt.Errorf("error fetching %s from MCP server: %w", tool, err)
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      string    `json:"id"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result *json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CallTool invokes an MCP tool with a JSON-RPC tools/call request and decodes
// the first text content item as JSON. The phone is sent as phoneNumber; on a
// 400 the call is retried once with phone_number.
func (c *Client) CallTool(ctx context.Context, name, phone string, args map[string]any) (any, error) {
	var out any
	err := c.guard(ctx, func(ctx context.Context) error {
		var lastErr error
		for _, key := range []string{"phoneNumber", "phone_number"} {
			arguments := map[string]any{key: phone}
			for k, v := range args {
				arguments[k] = v
			}
			res, err := c.callOnce(ctx, name, arguments)
			if errors.Is(err, ErrBadRequest) {
				lastErr = err
				continue
			}
			if err != nil {
				return err
			}
			out = res
			return nil
		}
		return lastErr
	})
	return out, err
}

func (c *Client) callOnce(ctx context.Context, name string, arguments map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		Method:  string(mcp.MethodToolsCall),
		Params:  rpcParams{Name: name, Arguments: arguments},
		ID:      uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/mcp/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, transportError(name, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%s: %w", name, ErrBadRequest)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		raw = lastSSEData(raw)
	}

	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", name, err)
	}
	if rpc.Error != nil {
		return nil, &ToolError{Tool: name, Code: rpc.Error.Code, Message: rpc.Error.Message}
	}
	if rpc.Result == nil {
		return nil, fmt.Errorf("%s: empty result: %w", name, ErrNotFound)
	}

	result, err := mcp.ParseCallToolResult(rpc.Result)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", name, err)
	}
	text, ok := firstText(result)
	if result.IsError {
		return nil, &ToolError{Tool: name, Message: text}
	}
	if !ok {
		return nil, fmt.Errorf("%s: no text content: %w", name, ErrNotFound)
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%s: %q: %w", name, truncate(text, 80), ErrNotJSON)
	}
	return v, nil
}

func firstText(result *mcp.CallToolResult) (string, bool) {
	for _, content := range result.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			return tc.Text, true
		}
	}
	return "", false
}

func lastSSEData(raw []byte) []byte {
	var last []byte
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if bytes.HasPrefix(line, []byte("data:")) {
			last = append([]byte(nil), bytes.TrimSpace(line[len("data:"):])...)
		}
	}
	if last == nil {
		return raw
	}
	return last
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FetchFile reads a raw user data file from /user/{phone}/{file}. A missing
// goals.json decodes as an empty list.
func (c *Client) FetchFile(ctx context.Context, phone, file string) (any, error) {
	var out any
	err := c.guard(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		u := fmt.Sprintf("%s/user/%s/%s", c.BaseURL, url.PathEscape(phone), url.PathEscape(file))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return transportError(file, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			if file == Goals.FileName() {
				out = []any{}
				return nil
			}
			return fmt.Errorf("%s/%s: %w", phone, file, ErrNotFound)
		}
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("%s: %w", file, ErrNotJSON)
		}
		return nil
	})
	return out, err
}

// AuthURL is the page a user visits to bind a session to a phone number.
func (c *Client) AuthURL(sessionID string) string {
	return c.BaseURL + "/mockWebPage?sessionId=" + url.QueryEscape(sessionID)
}

// Login binds sessionID to phone by loading the login page and submitting the
// login form.
func (c *Client) Login(ctx context.Context, sessionID, phone string) error {
	return c.guard(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AuthURL(sessionID), nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return transportError("mockWebPage", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: "login page unavailable"}
		}

		form := url.Values{"sessionId": {sessionID}, "phoneNumber": {phone}}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/login", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = c.HTTP.Do(req)
		if err != nil {
			return transportError("login", err)
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		return nil
	})
}
