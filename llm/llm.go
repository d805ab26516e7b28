// Package llm wraps the hosted language-model providers behind a small chat
// interface, with optional tool calling and JSON output.
package llm

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrLLMDisabled = errors.New("llm client disabled (missing API key)")

// Client is the minimal interface the agents use.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// ToolClient can run a function-calling loop with the given tools.
type ToolClient interface {
	Client
	ChatWithTools(ctx context.Context, system, user string, tools []Tool) (string, error)
}

// JSONClient can ask the model for a JSON-only response.
type JSONClient interface {
	Client
	ChatJSON(ctx context.Context, system, user string) (string, error)
}

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderLangChain = "langchain"

	defaultModel       = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultTimeout     = 45 * time.Second

	// Google's OpenAI-compatible endpoint, used when the openai provider
	// only has a Gemini key.
	googleOpenAIBase = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Debug    bool
}

// OptionsFromEnv reads LLM_PROVIDER, LLM_MODEL, LLM_TIMEOUT_SECONDS,
// LLM_DEBUG and the provider keys.
// Gemini key precedence: GEMINI_API_KEY > GOOGLE_API_KEY.
// OpenAI key precedence: OPENAI_API_KEY > GEMINI_API_KEY > GOOGLE_API_KEY.
func OptionsFromEnv() Options {
	o := Options{
		Provider: strings.ToLower(firstNonEmpty(os.Getenv("LLM_PROVIDER"), ProviderGemini)),
		Model:    firstNonEmpty(os.Getenv("LLM_MODEL")),
		Timeout:  defaultTimeout,
		Debug:    truthy(os.Getenv("LLM_DEBUG")),
	}
	if v := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			o.Timeout = time.Duration(n) * time.Second
		}
	}

	geminiKey := firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	switch o.Provider {
	case ProviderOpenAI:
		o.APIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), geminiKey)
		o.BaseURL = firstNonEmpty(os.Getenv("OPENAI_BASE_URL"))
		if o.BaseURL == "" && os.Getenv("OPENAI_API_KEY") == "" && geminiKey != "" {
			o.BaseURL = googleOpenAIBase
		}
	default:
		o.APIKey = geminiKey
	}
	return o
}

// NewFromEnv builds a client from the environment.
func NewFromEnv() (Client, error) {
	return New(context.Background(), OptionsFromEnv())
}

// New builds the client for o.Provider. It returns ErrLLMDisabled when no key
// is configured.
func New(ctx context.Context, o Options) (Client, error) {
	if strings.TrimSpace(o.APIKey) == "" {
		return nil, ErrLLMDisabled
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}

	var base http.RoundTripper = http.DefaultTransport
	if o.Debug {
		base = &loggingRT{base: base}
	}

	switch o.Provider {
	case ProviderOpenAI:
		if o.Model == "" {
			o.Model = defaultOpenAIModel
			if o.BaseURL == googleOpenAIBase {
				o.Model = defaultModel
			}
		}
		return NewOpenAIClient(o.APIKey, o.BaseURL, o.Model, o.Timeout, &http.Client{Transport: base}), nil
	case ProviderLangChain:
		return NewLangChainClient(ctx, o.APIKey, firstNonEmpty(o.Model, defaultModel), o.Timeout)
	default:
		var hc *http.Client
		if o.Debug {
			hc = &http.Client{Transport: &apiKeyRT{key: o.APIKey, base: base}}
		}
		return NewGeminiClient(ctx, o.APIKey, firstNonEmpty(o.Model, defaultModel), o.Timeout, hc)
	}
}

// ChatWithTools uses c's tool loop when it has one and tools were given,
// otherwise a plain Chat.
func ChatWithTools(ctx context.Context, c Client, system, user string, tools []Tool) (string, error) {
	if tc, ok := c.(ToolClient); ok && len(tools) > 0 {
		return tc.ChatWithTools(ctx, system, user, tools)
	}
	return c.Chat(ctx, system, user)
}

// ChatJSON asks for JSON output when c supports it, otherwise a plain Chat.
func ChatJSON(ctx context.Context, c Client, system, user string) (string, error) {
	if jc, ok := c.(JSONClient); ok {
		return jc.ChatJSON(ctx, system, user)
	}
	return c.Chat(ctx, system, user)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
