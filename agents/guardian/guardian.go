// Package guardian produces financial safety alerts.
package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/llm"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/observability"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/types"
)

const Name = "guardian"

var Keys = []fimcp.DataKey{fimcp.BankTransactions, fimcp.CreditReport, fimcp.MFTransactions}

type Alert = types.Alert

// Result is the outcome of one run. Raw is the model's answer as sent,
// set only when Alerts came from it.
type Result struct {
	Alerts  []Alert         `json:"alerts"`
	Raw     map[string]any  `json:"-"`
	Outcome toolkit.Outcome `json:"-"`
}

// JSON encodes the result the way the agents API returns it.
func (r Result) JSON() string {
	var doc any = map[string]any{"alerts": r.Alerts}
	if r.Raw != nil {
		doc = r.Raw
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

// DefaultAlerts are returned when the model gives nothing usable.
func DefaultAlerts() []Alert {
	return []Alert{
		{Type: "Security Reminder", Description: "Review your account security settings regularly.", Severity: "info"},
		{Type: "Growth Tip", Description: "Consider setting up a recurring investment to maximize compounding.", Severity: "info"},
	}
}

// SystemAlerts are returned when there is no user store to work with.
func SystemAlerts() []Alert {
	return []Alert{
		{Type: "System Alert", Description: "Financial data access is temporarily unavailable.", Severity: "info"},
		{Type: "Security Reminder", Description: "Please ensure your account security settings are up to date.", Severity: "info"},
	}
}

// Agent runs Guardian analyses.
type Agent struct {
	Store   store.UserStore
	Loader  *toolkit.Loader
	LLM     llm.Client
	Metrics *observability.Metrics
}

// Prompt builds the model prompt; area narrows the focus (e.g. "credit_health").
func Prompt(area string, data map[string]any) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	focus := ""
	if area != "" {
		focus = "Focus specifically on " + strings.ReplaceAll(area, "_", " ") + " analysis. "
	}
	return "You are Guardian, an AI financial safety agent. " +
		focus +
		"You receive the user's bank transactions, credit report, and mutual fund transactions as JSON. " +
		"If any data is 'unavailable', still provide at least two actionable, proactive alerts for the user. " +
		"If the user's finances are perfect, still suggest at least two ways to improve security, growth, or protection. " +
		"Respond ONLY in a valid JSON object: " +
		`{"alerts": [{"type":"...", "description":"...", "severity":"..."}]}` + "\n" +
		"Data:\n" + string(encoded), nil
}

// Run analyzes uid's data. It always returns alerts.
func (a *Agent) Run(ctx context.Context, uid, area string) Result {
	ctx, run := toolkit.StartRun(ctx, a.Metrics, Name, uid)

	if a.Store == nil {
		run.Finish(toolkit.OutcomeSystem, nil)
		return Result{Alerts: SystemAlerts(), Outcome: toolkit.OutcomeSystem}
	}

	bundle := a.Loader.Load(ctx, uid, Keys)
	prompt, err := Prompt(area, bundle.Prompt(Keys, nil))
	var answer string
	if err == nil {
		answer, err = a.chat(ctx, prompt)
	}
	if err != nil {
		logger.Error("guardian: model call failed", err)
		run.Finish(toolkit.OutcomeLLMError, err)
		return Result{Alerts: DefaultAlerts(), Outcome: toolkit.OutcomeLLMError}
	}

	var parsed Result
	raw, err := toolkit.DecodeObject(answer, toolkit.AlertsSchema, &parsed)
	if err != nil {
		logger.Warnf("guardian: unusable model answer: %v", err)
		res := a.fromCache(ctx, uid)
		run.Finish(res.Outcome, nil)
		return res
	}

	res := Result{Alerts: parsed.Alerts, Raw: raw, Outcome: toolkit.OutcomeOK}
	var cached any = res.Alerts
	if items, ok := raw["alerts"]; ok {
		cached = items
	}
	if len(res.Alerts) == 0 {
		res = Result{Alerts: DefaultAlerts(), Outcome: toolkit.OutcomeDefaults}
		cached = res.Alerts
	}
	if err := a.Store.Merge(ctx, uid, map[string]any{store.FieldGuardianAlerts: cached}); err != nil {
		logger.Warnf("guardian: failed to cache alerts for %s: %v", uid, err)
	}
	run.Finish(res.Outcome, nil)
	return res
}

func (a *Agent) chat(ctx context.Context, prompt string) (string, error) {
	if a.LLM == nil {
		return "", llm.ErrLLMDisabled
	}
	return a.LLM.Chat(ctx, "", prompt)
}

func (a *Agent) fromCache(ctx context.Context, uid string) Result {
	u, err := a.Store.GetUser(ctx, uid)
	if err == nil && len(u.GuardianAlertsCache) > 0 {
		var alerts []Alert
		raw, _ := json.Marshal(u.GuardianAlertsCache)
		if json.Unmarshal(raw, &alerts) == nil && len(alerts) > 0 {
			return Result{Alerts: alerts, Outcome: toolkit.OutcomeCached}
		}
	}
	return Result{Alerts: DefaultAlerts(), Outcome: toolkit.OutcomeDefaults}
}
