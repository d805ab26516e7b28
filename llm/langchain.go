package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// LangChainClient sends single prompts through langchaingo's Google AI
// backend. It has no tool loop.
type LangChainClient struct {
	Model   string
	Timeout time.Duration
	llm     llms.Model
}

func NewLangChainClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*LangChainClient, error) {
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("langchain googleai: %w", err)
	}
	return &LangChainClient{Model: model, Timeout: timeout, llm: m}, nil
}

func (c *LangChainClient) Chat(ctx context.Context, system, user string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	prompt := user
	if strings.TrimSpace(system) != "" {
		prompt = system + "\n\n" + user
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0.7))
	if err != nil {
		return "", fmt.Errorf("langchain: %w", err)
	}
	return CleanResponse(out), nil
}
