// Package strategist reviews the equity and fund portfolio and produces
// buy/sell/hold recommendations. The model may look up market returns
// through the market performance tool.
package strategist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/llm"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/observability"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/types"
)

const Name = "strategist"

var Keys = []fimcp.DataKey{fimcp.StockTransactions, fimcp.MFTransactions}

type (
	Recommendation = types.Recommendation
	PriceAnalysis  = types.PriceAnalysis
	RiskAssessment = types.RiskAssessment
)

// Strategy is the portfolio review. Raw is the model's answer as sent, set
// only when Recommendations came from it.
type Strategy struct {
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	Raw             map[string]any   `json:"-"`
	Outcome         toolkit.Outcome  `json:"-"`
}

// JSON encodes the strategy the way the agents API returns it.
func (s Strategy) JSON() string {
	var doc any = s
	if s.Raw != nil {
		doc = s.Raw
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func DefaultRecommendations() []Recommendation {
	return []Recommendation{
		{Symbol: "NIFTY 50", Advice: "Diversify", Reasoning: "Consider adding more sectors or asset classes to your portfolio for better risk management."},
		{Symbol: "CASH", Advice: "Increase Equity Allocation", Reasoning: "If you have excess cash, consider allocating more to equities for long-term growth."},
	}
}

// FallbackStrategy is used when the model fails or answers unusably.
func FallbackStrategy(outcome toolkit.Outcome) Strategy {
	return Strategy{
		Summary:         "Could not analyze portfolio, but here are some general recommendations.",
		Recommendations: DefaultRecommendations(),
		Outcome:         outcome,
	}
}

// SystemStrategy is used when there is no user store.
func SystemStrategy() Strategy {
	return Strategy{
		Summary: "Financial data access is temporarily unavailable.",
		Recommendations: []Recommendation{
			{Symbol: "SYSTEM", Advice: "Wait", Reasoning: "Please try again when the system is fully operational."},
			{Symbol: "GENERAL", Advice: "Diversify", Reasoning: "Consider diversifying your portfolio when data access is restored."},
		},
		Outcome: toolkit.OutcomeSystem,
	}
}

const instructions = "You are an expert Investment Strategist for the Indian market. " +
	"You receive the user's stock and mutual fund transactions as JSON. " +
	"Analyze the portfolio and provide specific buy/sell/hold recommendations with price targets and risk assessment. " +
	"If any data is 'unavailable', still provide at least two actionable, proactive recommendations for the user. " +
	"If the user's portfolio is perfect, still suggest at least two ways to improve diversification, reduce risk, or optimize returns. " +
	"Respond ONLY in a valid JSON object: " +
	`{"summary":"...", "recommendations":[{"symbol":"...", "advice":"buy/sell/hold", "reasoning":"...", "current_price":1500, "price_analysis":{"target":1800, "stop_loss":1400, "potential_return":20}, "risk_assessment":{"level":"medium", "level_percentage":60, "description":"..."}, "action_items":["...", "..."]}]}` + "\n"

type Agent struct {
	Store   store.UserStore
	Loader  *toolkit.Loader
	LLM     llm.Client
	Metrics *observability.Metrics
}

// Run reviews uid's portfolio. Results are not cached.
func (a *Agent) Run(ctx context.Context, uid string) Strategy {
	ctx, run := toolkit.StartRun(ctx, a.Metrics, Name, uid)

	if a.Store == nil {
		run.Finish(toolkit.OutcomeSystem, nil)
		return SystemStrategy()
	}

	bundle := a.Loader.Load(ctx, uid, Keys)
	answer, err := a.chat(ctx, bundle.Prompt(Keys, nil))
	if err != nil {
		logger.Error("strategist: model call failed", err)
		run.Finish(toolkit.OutcomeLLMError, err)
		return FallbackStrategy(toolkit.OutcomeLLMError)
	}

	var s Strategy
	raw, err := toolkit.DecodeObject(answer, toolkit.StrategySchema, &s)
	if err != nil {
		logger.Warnf("strategist: unusable model answer: %v", err)
		run.Finish(toolkit.OutcomeDefaults, nil)
		return FallbackStrategy(toolkit.OutcomeDefaults)
	}
	s.Raw = raw
	s.Outcome = toolkit.OutcomeOK
	if len(s.Recommendations) == 0 {
		s.Recommendations = DefaultRecommendations()
		s.Raw = nil
		s.Outcome = toolkit.OutcomeDefaults
	}
	run.Finish(s.Outcome, nil)
	return s
}

func (a *Agent) chat(ctx context.Context, data map[string]any) (string, error) {
	if a.LLM == nil {
		return "", llm.ErrLLMDisabled
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	prompt := instructions + "User's Portfolio Data:\n" + string(encoded)
	return llm.ChatWithTools(ctx, a.LLM, "", prompt, []llm.Tool{llm.MarketTool()})
}
