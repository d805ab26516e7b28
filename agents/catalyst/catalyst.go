// Package catalyst finds growth opportunities in the user's portfolio.
package catalyst

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

const Name = "catalyst"

var Keys = []fimcp.DataKey{fimcp.NetWorth, fimcp.EPFDetails, fimcp.MFTransactions}

// Net worth is presented to the model as a summary.
var promptNames = map[fimcp.DataKey]string{fimcp.NetWorth: "net_worth_summary"}

type (
	Opportunity   = types.Opportunity
	ROIComparison = types.ROIComparison
)

// Result is the outcome of one run. Raw is the model's answer as sent,
// set only when Opportunities came from it.
type Result struct {
	Opportunities []Opportunity   `json:"opportunities"`
	Raw           map[string]any  `json:"-"`
	Outcome       toolkit.Outcome `json:"-"`
}

// JSON encodes the result the way the agents API returns it.
func (r Result) JSON() string {
	var doc any = map[string]any{"opportunities": r.Opportunities}
	if r.Raw != nil {
		doc = r.Raw
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func DefaultOpportunities() []Opportunity {
	return []Opportunity{
		{Title: "Diversify Investments", Description: "Explore new asset classes or sectors to reduce risk and enhance returns.", Category: "Growth"},
		{Title: "Increase Emergency Fund", Description: "Boost your emergency fund to cover at least 6 months of expenses.", Category: "Protection"},
	}
}

func SystemOpportunities() []Opportunity {
	return []Opportunity{
		{Title: "System Maintenance", Description: "Financial data access is temporarily unavailable.", Category: "System"},
		{Title: "General Investment Tip", Description: "Consider diversifying your portfolio across different asset classes.", Category: "Growth"},
	}
}

const instructions = "You are Catalyst, an AI financial growth agent. " +
	"You receive the user's net worth summary, EPF details, and mutual fund transactions as JSON. " +
	"Analyze the data and provide specific investment opportunities with ROI comparisons. " +
	"If any data is 'unavailable', still provide at least two actionable, proactive opportunities for the user. " +
	"If the user's finances are perfect, still suggest at least two ways to improve growth, diversification, or protection. " +
	"Respond ONLY in a valid JSON object: " +
	`{"opportunities": [{"title":"...", "description":"...", "category":"...", "roi_comparison":{"current":12.5, "suggested":18.2}, "action_items":["...", "..."]}]}` + "\n"

type Agent struct {
	Store   store.UserStore
	Loader  *toolkit.Loader
	LLM     llm.Client
	Metrics *observability.Metrics
}

// Run analyzes uid's data and always returns opportunities.
func (a *Agent) Run(ctx context.Context, uid string) Result {
	ctx, run := toolkit.StartRun(ctx, a.Metrics, Name, uid)

	if a.Store == nil {
		run.Finish(toolkit.OutcomeSystem, nil)
		return Result{Opportunities: SystemOpportunities(), Outcome: toolkit.OutcomeSystem}
	}

	bundle := a.Loader.Load(ctx, uid, Keys)
	answer, err := a.chat(ctx, bundle.Prompt(Keys, promptNames))
	if err != nil {
		logger.Error("catalyst: model call failed", err)
		run.Finish(toolkit.OutcomeLLMError, err)
		return Result{Opportunities: DefaultOpportunities(), Outcome: toolkit.OutcomeLLMError}
	}

	var parsed Result
	raw, err := toolkit.DecodeObject(answer, toolkit.OpportunitiesSchema, &parsed)
	if err != nil {
		logger.Warnf("catalyst: unusable model answer: %v", err)
		res := a.fromCache(ctx, uid)
		run.Finish(res.Outcome, nil)
		return res
	}

	res := Result{Opportunities: parsed.Opportunities, Raw: raw, Outcome: toolkit.OutcomeOK}
	var cached any = res.Opportunities
	if items, ok := raw["opportunities"]; ok {
		cached = items
	}
	if len(res.Opportunities) == 0 {
		res = Result{Opportunities: DefaultOpportunities(), Outcome: toolkit.OutcomeDefaults}
		cached = res.Opportunities
	}
	if err := a.Store.Merge(ctx, uid, map[string]any{store.FieldCatalystOpps: cached}); err != nil {
		logger.Warnf("catalyst: failed to cache opportunities for %s: %v", uid, err)
	}
	run.Finish(res.Outcome, nil)
	return res
}

func (a *Agent) chat(ctx context.Context, data map[string]any) (string, error) {
	if a.LLM == nil {
		return "", llm.ErrLLMDisabled
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	return a.LLM.Chat(ctx, "", instructions+"Data:\n"+string(encoded))
}

func (a *Agent) fromCache(ctx context.Context, uid string) Result {
	u, err := a.Store.GetUser(ctx, uid)
	if err == nil && len(u.CatalystOpportunitiesCache) > 0 {
		var opps []Opportunity
		raw, _ := json.Marshal(u.CatalystOpportunitiesCache)
		if json.Unmarshal(raw, &opps) == nil && len(opps) > 0 {
			return Result{Opportunities: opps, Outcome: toolkit.OutcomeCached}
		}
	}
	return Result{Opportunities: DefaultOpportunities(), Outcome: toolkit.OutcomeDefaults}
}
