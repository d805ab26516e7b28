// Package gateway fronts the agents server and the backend on one origin.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/Sanidhya49/Invested/logger"
)

// backendPrefixes are routed to the backend; everything else goes to the
// agents server.
var backendPrefixes = []string{
	"/api/",
	"/login",
	"/bridge/",
	"/agents/",
	"/process_agent_request",
	"/retry-mcp-connection",
}

// Gateway is a path-preserving reverse proxy with two upstreams.
type Gateway struct {
	backend *httputil.ReverseProxy
	agents  *httputil.ReverseProxy
}

// New builds a gateway for the given upstream base URLs.
func New(backendURL, agentsURL string) (*Gateway, error) {
	backend, err := proxyKeepPath(backendURL)
	if err != nil {
		return nil, err
	}
	agents, err := proxyKeepPath(agentsURL)
	if err != nil {
		return nil, err
	}
	return &Gateway{backend: backend, agents: agents}, nil
}

func proxyKeepPath(target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", target)
	}
	rp := httputil.NewSingleHostReverseProxy(u)

	// Only scheme and host are rewritten; path and query pass through.
	rp.Director = func(req *http.Request) {
		req.URL.Scheme = u.Scheme
		req.URL.Host = u.Host
		req.Host = u.Host
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, e error) {
		logger.Warnf("[GW][ERR] %s %s: %v", r.Method, r.URL.String(), e)
		http.Error(w, "gateway error: "+e.Error(), http.StatusBadGateway)
	}
	return rp, nil
}

// IsBackendPath reports whether path is served by the backend.
func IsBackendPath(path string) bool {
	for _, p := range backendPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &recorder{ResponseWriter: w, status: http.StatusOK}

	if IsBackendPath(r.URL.Path) {
		g.backend.ServeHTTP(rw, r)
	} else {
		g.agents.ServeHTTP(rw, r)
	}

	logger.Infof("[TRACE][GW] %s %s status=%d dur=%s", r.Method, r.URL.String(), rw.status, time.Since(start))
}

type recorder struct {
	http.ResponseWriter
	status int
}

func (rw *recorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed responses through the proxy.
func (rw *recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
