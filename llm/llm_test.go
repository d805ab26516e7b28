package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_TIMEOUT_SECONDS", "LLM_DEBUG",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestOptionsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("LLM_TIMEOUT_SECONDS", "7")
	t.Setenv("LLM_DEBUG", "true")

	o := OptionsFromEnv()
	assert.Equal(t, ProviderGemini, o.Provider)
	assert.Equal(t, "g-key", o.APIKey)
	assert.Equal(t, 7*time.Second, o.Timeout)
	assert.True(t, o.Debug)

	t.Setenv("GEMINI_API_KEY", "gem-key")
	assert.Equal(t, "gem-key", OptionsFromEnv().APIKey)
}

func TestOptionsFromEnvOpenAIFallsBackToGoogleEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	o := OptionsFromEnv()
	assert.Equal(t, ProviderOpenAI, o.Provider)
	assert.Equal(t, googleOpenAIBase, o.BaseURL)

	c, err := New(context.Background(), o)
	require.NoError(t, err)
	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, defaultModel, oc.Model)
	assert.Equal(t, googleOpenAIBase, oc.BaseURL)
}

func TestNewFromEnvOpenAI(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test123")

	c, err := NewFromEnv()
	require.NoError(t, err)
	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "sk-test123", oc.APIKey)
	assert.Equal(t, defaultOpenAIModel, oc.Model)
}

func TestNewFromEnvDisabled(t *testing.T) {
	clearEnv(t)
	_, err := NewFromEnv()
	assert.ErrorIs(t, err, ErrLLMDisabled)
}

type recordedRequest struct {
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func completion(msg map[string]any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []any{map[string]any{"index": 0, "message": msg, "finish_reason": "stop"}},
	}
}

func TestOpenAIToolLoop(t *testing.T) {
	var calls int32
	var second recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-x", r.Header.Get("Authorization"))
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		if atomic.AddInt32(&calls, 1) == 1 {
			require.Len(t, req.Tools, 1)
			assert.Equal(t, MarketToolName, req.Tools[0].Function.Name)
			_ = json.NewEncoder(w).Encode(completion(map[string]any{
				"role": "assistant",
				"tool_calls": []any{map[string]any{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      MarketToolName,
						"arguments": `{"stock_symbols":["TCS"]}`,
					},
				}},
			}))
			return
		}
		second = req
		_ = json.NewEncoder(w).Encode(completion(map[string]any{"role": "assistant", "content": "  {\"ok\":true}  "}))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-x", srv.URL+"/v1", "test-model", time.Second, nil)
	out, err := c.ChatWithTools(context.Background(), "sys", "question", []Tool{MarketTool()})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	require.Len(t, second.Messages, 4)
	tool := second.Messages[3]
	assert.Equal(t, "tool", tool.Role)
	assert.Equal(t, "call_1", tool.ToolCallID)
	assert.JSONEq(t, `{"content":{"NIFTY 50":{"1y_return":12},"TCS":{"1y_return":11}}}`, tool.Content)
}

func TestOpenAIChatJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(map[string]any{"role": "assistant", "content": `{"a":1}`}))
	}))
	defer srv.Close()

	out, err := ChatJSON(context.Background(), NewOpenAIClient("k", srv.URL, "m", 0, nil), "", "q")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

type fakeClient struct {
	out string
	err error
}

func (f *fakeClient) Chat(context.Context, string, string) (string, error) { return f.out, f.err }

func TestHelpersFallBackToChat(t *testing.T) {
	c := &fakeClient{out: "plain"}
	out, err := ChatWithTools(context.Background(), c, "s", "u", []Tool{MarketTool()})
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = ChatJSON(context.Background(), c, "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestInstrumentedWithoutMetrics(t *testing.T) {
	boom := errors.New("boom")
	i := Instrument(&fakeClient{err: boom}, ProviderGemini, nil)
	_, err := i.ChatWithTools(context.Background(), "s", "u", nil)
	assert.ErrorIs(t, err, boom)

	i = Instrument(&fakeClient{out: "hi"}, ProviderGemini, nil)
	out, err := i.ChatJSON(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

type fakeModel struct{ prompt string }

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				f.prompt = tp.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "answer\n\n\n\nmore"}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func TestLangChainClient(t *testing.T) {
	m := &fakeModel{}
	c := &LangChainClient{Model: "m", llm: m}
	out, err := c.Chat(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "answer\n\nmore", out)
	assert.Equal(t, "system\n\nuser", m.prompt)
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, "a\n\nb c", CleanResponse("  a\n\n\n\n\nb   c \n"))
	assert.Equal(t, "dinner plan", CleanResponse("dinner plan"))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `plain`, StripCodeFences(" plain "))
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":{"b":"}"}}`, ExtractJSONObject(`Sure! {"a":{"b":"}"}} trailing`))
	assert.Equal(t, `{"x":1}`, ExtractJSONObject(`{broken {"x":1}`))
	assert.Empty(t, ExtractJSONObject("no json here"))
}

func TestMarketTool(t *testing.T) {
	tool := MarketTool()
	assert.Equal(t, []string{"stock_symbols"}, tool.Parameters.Required)
	assert.Equal(t, "array", tool.Parameters.Properties["stock_symbols"].Type)

	res := runTool(context.Background(), []Tool{tool}, MarketToolName, map[string]any{"stock_symbols": []any{"RELIANCE"}})
	perf := res["content"].(map[string]map[string]float64)
	assert.Equal(t, 15.5, perf["RELIANCE"]["1y_return"])

	res = runTool(context.Background(), []Tool{tool}, "nope", nil)
	assert.Contains(t, res["error"], "unknown tool")
}

func TestRedact(t *testing.T) {
	in := "POST /v1beta/models/x:generateContent?key=AIzaSecret HTTP/1.1\r\nAuthorization: Bearer sk-abc\r\nX-Goog-Api-Key: AIzaSecret\r\n"
	out := string(redact([]byte(in)))
	assert.NotContains(t, out, "AIzaSecret")
	assert.NotContains(t, out, "sk-abc")
	assert.Contains(t, out, "Authorization: Bearer ***REDACTED***")
}
