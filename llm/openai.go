package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Sanidhya49/Invested/logger"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	client  *openai.Client
}

// NewOpenAIClient creates a client; an empty baseURL means api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, hc *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &OpenAIClient{
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
		Model:   model,
		Timeout: timeout,
		client:  openai.NewClientWithConfig(cfg),
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, nil, false)
}

func (c *OpenAIClient) ChatJSON(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, nil, true)
}

func (c *OpenAIClient) ChatWithTools(ctx context.Context, system, user string, tools []Tool) (string, error) {
	return c.complete(ctx, system, user, tools, false)
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, tools []Tool, jsonOut bool) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var msgs []openai.ChatCompletionMessage
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{Model: c.Model}
	if jsonOut {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	for round := 0; ; round++ {
		req.Messages = msgs
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("openai: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("openai: empty choices")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || round >= maxToolRounds {
			if strings.TrimSpace(msg.Content) == "" {
				return "", errors.New("openai: empty response")
			}
			return CleanResponse(msg.Content), nil
		}

		msgs = append(msgs, msg)
		for _, tc := range msg.ToolCalls {
			logger.Debugf("[openai] tool call %s", tc.Function.Name)
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					logger.Warnf("[openai] bad arguments for %s: %v", tc.Function.Name, err)
				}
			}
			out, _ := json.Marshal(runTool(ctx, tools, tc.Function.Name, args))
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(out),
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
			})
		}
	}
}
