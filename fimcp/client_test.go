package fimcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanidhya49/Invested/resilience"
)

func TestStreamSendsSessionAndPhone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp/stream", r.URL.Path)
		assert.Equal(t, "sess-1", r.Header.Get("X-Session-ID"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fetch_net_worth", body["tool_name"])
		assert.Equal(t, "2222222222", body["phone_number"])
		_, _ = w.Write([]byte(`{"netWorthResponse":{"totalNetWorthValue":{"units":"100"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	out, err := c.Stream(context.Background(), "sess-1", NetWorth.StreamTool(), "2222222222")
	require.NoError(t, err)
	assert.Contains(t, out, "netWorthResponse")
}

func TestStreamOmitsEmptyPhone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, has := body["phone_number"]
		assert.False(t, has)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Stream(context.Background(), "s", "fetch_credit_report", "")
	require.NoError(t, err)
}

func TestStreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Phone number is not allowed", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Stream(context.Background(), "s", "fetch_net_worth", "123")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.Code)
	assert.Equal(t, "MCP server returned 403: Phone number is not allowed", se.Error())
}

func rpcHandler(t *testing.T, fn func(params rpcParams) (int, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp/", r.URL.Path)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "tools/call", req.Method)
		assert.NotEmpty(t, req.ID)
		status, body := fn(req.Params)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func textResult(text string) string {
	b, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      "1",
		"result": map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		},
	})
	return string(b)
}

func TestCallToolDecodesTextContent(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, func(p rpcParams) (int, string) {
		assert.Equal(t, ToolUpdateGoal, p.Name)
		assert.Equal(t, "2222222222", p.Arguments["phoneNumber"])
		assert.Equal(t, "g1", p.Arguments["goal_id"])
		return 200, textResult(`[{"goal_id":"g1","title":"Car"}]`)
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).CallTool(context.Background(), ToolUpdateGoal, "2222222222",
		map[string]any{"goal_id": "g1", "goal_update": map[string]any{"title": "Car"}})
	require.NoError(t, err)
	list, ok := out.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestCallToolRetriesWithSnakeCaseOn400(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(rpcHandler(t, func(p rpcParams) (int, string) {
		atomic.AddInt32(&calls, 1)
		if _, ok := p.Arguments["phoneNumber"]; ok {
			return 400, `{}`
		}
		assert.Equal(t, "5555555555", p.Arguments["phone_number"])
		return 200, textResult(`{"ok":true}`)
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).CallTool(context.Background(), ToolGetNetWorth, "5555555555", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCallToolErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rpc error",
			status: 200,
			body:   `{"jsonrpc":"2.0","id":"1","error":{"code":-32603,"message":"Goal not found"}}`,
			check: func(t *testing.T, err error) {
				var te *ToolError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "Goal not found", te.Message)
			},
		},
		{
			name:   "plain text result",
			status: 200,
			body:   textResult("No net worth data found for this user."),
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotJSON) },
		},
		{
			name:   "not found",
			status: 404,
			body:   `404 page not found`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(rpcHandler(t, func(rpcParams) (int, string) { return tt.status, tt.body }))
			defer srv.Close()
			_, err := NewClient(srv.URL).CallTool(context.Background(), ToolGetGoals, "1111111111", nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCallToolReadsEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: message\ndata: " + textResult(`{"x":1}`) + "\n\n"))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).CallTool(context.Background(), ToolGetNetWorth, "1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, out)
}

func TestFetchFileMissingGoalsIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL)
	out, err := c.FetchFile(context.Background(), "2222222222", "goals.json")
	require.NoError(t, err)
	assert.Equal(t, []any{}, out)

	_, err = c.FetchFile(context.Background(), "2222222222", "fetch_net_worth.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoginFlow(t *testing.T) {
	var sawPage, sawLogin bool
	mux := http.NewServeMux()
	mux.HandleFunc("/mockWebPage", func(w http.ResponseWriter, r *http.Request) {
		sawPage = r.URL.Query().Get("sessionId") == "abc"
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		sawLogin = r.FormValue("sessionId") == "abc" && r.FormValue("phoneNumber") == "8888888888"
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).Login(context.Background(), "abc", "8888888888"))
	assert.True(t, sawPage)
	assert.True(t, sawLogin)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cb := DefaultBreaker()
	c := NewClient(srv.URL, WithBreaker(cb))
	for i := 0; i < 10; i++ {
		_, _ = c.FetchFile(context.Background(), "1", "fetch_net_worth.json")
	}
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := DefaultBreaker()
	c := NewClient(srv.URL, WithBreaker(cb))
	for i := 0; i < 5; i++ {
		_, _ = c.Stream(context.Background(), "s", "fetch_net_worth", "1")
	}
	_, err := c.Stream(context.Background(), "s", "fetch_net_worth", "1")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestLocalDataLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2222222222"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2222222222", "fetch_epf_details.json"), []byte(`{"epfDetails":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2222222222", "goals.json"), []byte(`[]`), 0o644))

	l := &LocalData{Dir: dir}
	v, err := l.Load("2222222222", EPFDetails)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"epfDetails": []any{}}, v)

	v, err = l.Load("2222222222", Goals)
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	_, err = l.Load("2222222222", NetWorth)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load("../etc", NetWorth)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestSessionEstablishRetries(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/mockWebPage", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
		}
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewSession(NewClient(srv.URL), "8888888888")
	s.SetRetryConfig(&resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, Multiplier: 2})
	assert.Empty(t, s.ID())

	require.NoError(t, s.Establish(context.Background()))
	assert.Regexp(t, `^backend_session_[0-9a-f]{16}$`, s.ID())
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestSessionNotConfigured(t *testing.T) {
	s := NewSession(nil, "")
	err := s.Retry(context.Background())
	require.Error(t, err)
	assert.Equal(t, "MCP server URL or phone number not configured", err.Error())
}
