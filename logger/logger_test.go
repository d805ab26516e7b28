package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestJSONEntryCarriesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetService("agents")

	l.WithField("uid", "8888888888").Error("fetch failed", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(lines))
	}
	e := lines[0]
	if e["level"] != "ERROR" {
		t.Errorf("level = %v", e["level"])
	}
	if e["message"] != "fetch failed" {
		t.Errorf("message = %v", e["message"])
	}
	if e["service"] != "agents" {
		t.Errorf("service = %v", e["service"])
	}
	if e["uid"] != "8888888888" {
		t.Errorf("uid = %v", e["uid"])
	}
	if e["error"] != "boom" {
		t.Errorf("error = %v", e["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(WARN)

	l.Debug("d")
	l.Info("i")
	l.Warnf("w %d", 1)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "w 1" {
		t.Fatalf("unexpected entries: %v", lines)
	}
}

func TestChildSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	child := l.WithField("k", "v")

	l.SetLevel(ERROR)
	child.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("child ignored parent level: %s", buf.String())
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetJSONFormat(false)
	l.Info("hello world")
	if !strings.Contains(buf.String(), "hello world") || !strings.Contains(buf.String(), "INFO") {
		t.Fatalf("unexpected text output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
		"fatal":   FATAL,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
