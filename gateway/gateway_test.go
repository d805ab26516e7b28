package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, r.URL.RequestURI())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutesByPrefixAndKeepsPath(t *testing.T) {
	backend := upstream(t, "backend")
	agents := upstream(t, "agents")
	g, err := New(backend.URL, agents.URL)
	require.NoError(t, err)
	gw := httptest.NewServer(g)
	defer gw.Close()

	cases := map[string]string{
		"/api/me/goals":             "backend",
		"/login":                    "backend",
		"/bridge/firebase-token":    "backend",
		"/agents/status":            "backend",
		"/process_agent_request":    "backend",
		"/retry-mcp-connection":     "backend",
		"/run-guardian":             "agents",
		"/health":                   "agents",
		"/get-subscriptions?x=1":    "agents",
		"/api/me/analysis/detailed": "backend",
	}
	for path, want := range cases {
		resp, err := http.Get(gw.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, want, resp.Header.Get("X-Upstream"), path)
		assert.Equal(t, http.StatusTeapot, resp.StatusCode, path)
		assert.Equal(t, path, string(body), path)
	}
}

func TestUnreachableUpstream(t *testing.T) {
	g, err := New("http://127.0.0.1:1", "http://127.0.0.1:1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url", "http://localhost:8000")
	assert.Error(t, err)
}
