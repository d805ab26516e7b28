package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Sanidhya49/Invested/logger"
)

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	Model   string
	Timeout time.Duration
	client  *genai.Client
}

// NewGeminiClient creates a genai client. hc, when set, replaces the SDK's
// transport and must authenticate requests itself.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration, hc *http.Client) (*GeminiClient, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{Model: model, Timeout: timeout, client: client}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, system, user string) (string, error) {
	return c.generate(ctx, system, user, nil, false)
}

func (c *GeminiClient) ChatJSON(ctx context.Context, system, user string) (string, error) {
	return c.generate(ctx, system, user, nil, true)
}

func (c *GeminiClient) ChatWithTools(ctx context.Context, system, user string, tools []Tool) (string, error) {
	return c.generate(ctx, system, user, tools, false)
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) generate(ctx context.Context, system, user string, tools []Tool, jsonOut bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.Model)
	if strings.TrimSpace(system) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if jsonOut {
		model.ResponseMIMEType = "application/json"
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			break
		}
		parts := make([]genai.Part, 0, len(calls))
		for _, fc := range calls {
			logger.Debugf("[gemini] function call %s", fc.Name)
			parts = append(parts, genai.FunctionResponse{
				Name:     fc.Name,
				Response: runTool(ctx, tools, fc.Name, fc.Args),
			})
		}
		if resp, err = session.SendMessage(ctx, parts...); err != nil {
			return "", fmt.Errorf("gemini: function response: %w", err)
		}
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return CleanResponse(text), nil
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, p := range resp.Candidates[0].Content.Parts {
		switch fc := p.(type) {
		case genai.FunctionCall:
			calls = append(calls, fc)
		case *genai.FunctionCall:
			calls = append(calls, *fc)
		}
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var genaiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[s.Type],
		Description: s.Description,
		Items:       toGenaiSchema(s.Items),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenaiSchema(v)
		}
	}
	return out
}
