package strategist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/llm"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/types"
)

// toolLLM calls the first tool once, then replies.
type toolLLM struct {
	prompt   string
	toolArgs map[string]any
	toolOut  any
	reply    string
	err      error
}

func (s *toolLLM) Chat(_ context.Context, _, user string) (string, error) {
	s.prompt = user
	return s.reply, s.err
}

func (s *toolLLM) ChatWithTools(ctx context.Context, _, user string, tools []llm.Tool) (string, error) {
	s.prompt = user
	if len(tools) > 0 && s.toolArgs != nil {
		out, err := tools[0].Handler(ctx, s.toolArgs)
		if err != nil {
			return "", err
		}
		s.toolOut = out
	}
	return s.reply, s.err
}

func newAgent(m llm.Client) *Agent {
	s := store.NewMemoryStore()
	return &Agent{Store: s, Loader: &toolkit.Loader{Store: s}, LLM: m}
}

func TestRunUsesMarketTool(t *testing.T) {
	m := &toolLLM{
		toolArgs: map[string]any{"stock_symbols": []any{"RELIANCE", "INFY"}},
		reply: `{"summary":"Concentrated in energy","recommendations":[{"symbol":"RELIANCE","advice":"hold","reasoning":"Beat NIFTY",` +
			`"current_price":2900,"price_analysis":{"target":3200,"stop_loss":2700,"potential_return":10.3},` +
			`"risk_assessment":{"level":"medium","level_percentage":55,"description":"Sector risk"},"action_items":["Trim on rallies"]}]}`,
	}
	got := newAgent(m).Run(context.Background(), "u1")

	assert.Equal(t, toolkit.OutcomeOK, got.Outcome)
	assert.Equal(t, "Concentrated in energy", got.Summary)
	require.Len(t, got.Recommendations, 1)
	rec := got.Recommendations[0]
	assert.Equal(t, &PriceAnalysis{Target: 3200, StopLoss: 2700, PotentialReturn: 10.3}, rec.PriceAnalysis)
	assert.Equal(t, "medium", rec.RiskAssessment.Level)

	assert.Contains(t, m.prompt, "User's Portfolio Data:\n")
	assert.Contains(t, m.prompt, `"stock_transactions":"unavailable"`)
	perf := m.toolOut.(map[string]map[string]float64)
	assert.Equal(t, 15.5, perf["RELIANCE"]["1y_return"])
	assert.Equal(t, 12.0, perf["NIFTY 50"]["1y_return"])
}

func TestRunKeepsStringFigures(t *testing.T) {
	reply := `{"summary":"IT heavy","horizon":"3y","recommendations":[{"symbol":"TCS","advice":"hold","reasoning":"Fair value",` +
		`"current_price":"3,400","price_analysis":{"target":"3,800","stop_loss":3100,"potential_return":"12%"}}]}`
	got := newAgent(&toolLLM{reply: reply}).Run(context.Background(), "u1")

	assert.Equal(t, toolkit.OutcomeOK, got.Outcome)
	require.Len(t, got.Recommendations, 1)
	rec := got.Recommendations[0]
	require.NotNil(t, rec.CurrentPrice)
	assert.Equal(t, types.Number(3400), *rec.CurrentPrice)
	assert.Equal(t, &PriceAnalysis{Target: 3800, StopLoss: 3100, PotentialReturn: 12}, rec.PriceAnalysis)
	assert.JSONEq(t, reply, got.JSON())
}

func TestRunFallbacks(t *testing.T) {
	got := newAgent(&toolLLM{reply: `{"summary":"Fine","recommendations":[]}`}).Run(context.Background(), "u1")
	assert.Equal(t, "Fine", got.Summary)
	assert.Equal(t, DefaultRecommendations(), got.Recommendations)
	assert.Equal(t, toolkit.OutcomeDefaults, got.Outcome)

	got = newAgent(&toolLLM{reply: "not json"}).Run(context.Background(), "u1")
	assert.Equal(t, FallbackStrategy(toolkit.OutcomeDefaults), got)

	got = newAgent(&toolLLM{err: errors.New("down")}).Run(context.Background(), "u1")
	assert.Equal(t, "Could not analyze portfolio, but here are some general recommendations.", got.Summary)
	assert.Equal(t, toolkit.OutcomeLLMError, got.Outcome)

	a := newAgent(&toolLLM{})
	a.Store = nil
	got = a.Run(context.Background(), "u1")
	assert.Equal(t, "SYSTEM", got.Recommendations[0].Symbol)
	assert.JSONEq(t, `{"summary":"Financial data access is temporarily unavailable.","recommendations":[
		{"symbol":"SYSTEM","advice":"Wait","reasoning":"Please try again when the system is fully operational."},
		{"symbol":"GENERAL","advice":"Diversify","reasoning":"Consider diversifying your portfolio when data access is restored."}]}`, got.JSON())
}
