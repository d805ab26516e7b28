// Package insight turns one provider dataset into a structured JSON insight
// for a named intent. It serves the backend's agent-builder endpoint and
// reads data through the backend's own provider session.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/llm"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/observability"
)

const Name = "insight"

var (
	ErrUnsupportedIntent = errors.New("intent not supported")
	ErrNoSession         = errors.New("MCP session not established during startup.")
)

// IntentError names the unsupported intent.
type IntentError struct{ Intent string }

func (e *IntentError) Error() string { return fmt.Sprintf("Intent '%s' not supported.", e.Intent) }
func (e *IntentError) Unwrap() error { return ErrUnsupportedIntent }

// Intent binds a provider tool to a prompt template. The template's
// {mcp_data} placeholder receives the indented tool payload.
type Intent struct {
	Tool     string
	Template string
	Message  string
}

const spendingPrompt = `
You are a helpful financial assistant. Analyze the following bank transactions to provide a summary of spending habits. Highlight top 3 spending categories and any unusual or large transactions.

Transaction Data:
{mcp_data}

Please provide a structured JSON response with a 'summary' string, a 'categories' dictionary (category: total_amount), and a 'notable_transactions' list.
`

const netWorthPrompt = `
You are a helpful financial assistant. Summarize the user's net worth based on the following data. Highlight the total net worth and provide a breakdown by asset and liability types.

Net Worth Data:
{mcp_data}

Provide a structured JSON response with a 'summary' string and a 'details' dictionary containing 'total_net_worth', 'assets', and 'liabilities'.
`

const creditReportPrompt = `
You are a helpful financial assistant. Analyze the user's credit report data. Summarize the credit score, active loans, credit utilization, and any notable history. Also, state the date of birth from the report.

Credit Report Data:
{mcp_data}

Provide a structured JSON response with a 'summary' string, 'credit_score' (int), 'active_accounts' (list), and 'date_of_birth' (string YYYY-MM-DD).
`

// Intents is the supported intent table.
var Intents = map[string]Intent{
	"analyze_spending": {
		Tool:     "fetch_bank_transactions",
		Template: spendingPrompt,
		Message:  "Here's a summary of your spending habits:",
	},
	"fetch_net_worth": {
		Tool:     "fetch_net_worth",
		Template: netWorthPrompt,
		Message:  "Here's your net worth summary:",
	},
	"fetch_credit_report": {
		Tool:     "fetch_credit_report",
		Template: creditReportPrompt,
		Message:  "Here's your credit report summary:",
	},
}

// Streamer fetches one tool payload from the provider.
type Streamer interface {
	Stream(ctx context.Context, sessionID, tool, phone string) (map[string]any, error)
}

// SessionSource exposes the backend session id, "" until established.
type SessionSource interface {
	ID() string
}

// Insight is the processed answer.
type Insight struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

type Service struct {
	Provider Streamer
	Session  SessionSource
	LLM      llm.Client
	Metrics  *observability.Metrics
}

// Process runs intent against the backend session's data.
func (s *Service) Process(ctx context.Context, intent string) (Insight, error) {
	cfg, ok := Intents[intent]
	if !ok {
		return Insight{}, &IntentError{Intent: intent}
	}

	ctx, run := toolkit.StartRun(ctx, s.Metrics, Name, intent)
	data, err := s.insight(ctx, cfg)
	if err != nil {
		run.Finish(toolkit.OutcomeLLMError, err)
		return Insight{}, err
	}
	run.Finish(toolkit.OutcomeOK, nil)
	return Insight{Message: cfg.Message, Data: data}, nil
}

func (s *Service) insight(ctx context.Context, cfg Intent) (map[string]any, error) {
	sessionID := ""
	if s.Session != nil {
		sessionID = s.Session.ID()
	}
	if sessionID == "" || s.Provider == nil {
		return nil, ErrNoSession
	}

	payload, err := s.Provider.Stream(ctx, sessionID, cfg.Tool, "")
	if err != nil {
		return nil, err
	}
	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", cfg.Tool, err)
	}

	if s.LLM == nil {
		return nil, llm.ErrLLMDisabled
	}
	prompt := strings.Replace(cfg.Template, "{mcp_data}", string(pretty), 1)
	answer, err := llm.ChatJSON(ctx, s.LLM, "", prompt)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := toolkit.DecodeJSON(answer, &out); err != nil {
		logger.Warnf("insight: undecodable answer for %s: %v", cfg.Tool, err)
		return nil, err
	}
	return out, nil
}
