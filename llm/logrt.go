package llm

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"
	"regexp"

	"github.com/Sanidhya49/Invested/logger"
)

// loggingRT dumps LLM traffic at debug level with credentials redacted.
type loggingRT struct{ base http.RoundTripper }

var (
	authRe   = regexp.MustCompile(`(?i)(Authorization:\s*Bearer\s+)[A-Za-z0-9\-\._~+/=]+`)
	apiKeyRe = regexp.MustCompile(`(?i)(X-Goog-Api-Key:\s*)\S+`)
	keyParam = regexp.MustCompile(`([?&]key=)[^&\s]+`)
)

const maxDump = 4096

func redact(b []byte) []byte {
	b = authRe.ReplaceAll(b, []byte("${1}***REDACTED***"))
	b = apiKeyRe.ReplaceAll(b, []byte("${1}***REDACTED***"))
	return keyParam.ReplaceAll(b, []byte("${1}***REDACTED***"))
}

func (l *loggingRT) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(b))
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
	}
	if d, err := httputil.DumpRequestOut(req, true); err == nil {
		logger.Debugf("LLM OUTBOUND >>> %s %s\n%s", req.Method, redact([]byte(req.URL.String())), redact(d))
	}

	resp, err := l.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	if resp.Body != nil {
		b, _ := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(b))
		d, _ := httputil.DumpResponse(resp, true)
		if len(d) > maxDump {
			d = append(d[:maxDump], []byte("\n... (truncated) ...")...)
		}
		logger.Debugf("LLM INBOUND <<< %s %s\n%s", req.Method, redact([]byte(req.URL.String())), d)
	}
	return resp, nil
}

// apiKeyRT authenticates Gemini requests when a custom transport replaces
// the SDK's own.
type apiKeyRT struct {
	key  string
	base http.RoundTripper
}

func (a *apiKeyRT) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Goog-Api-Key", a.key)
	return a.base.RoundTrip(req)
}
