package guardian

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/store"
)

type stubLLM struct {
	prompt string
	reply  string
	err    error
}

func (s *stubLLM) Chat(_ context.Context, _, user string) (string, error) {
	s.prompt = user
	return s.reply, s.err
}

func newAgent(m *stubLLM) (*Agent, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return &Agent{Store: s, Loader: &toolkit.Loader{Store: s}, LLM: m}, s
}

func TestPromptArea(t *testing.T) {
	p, err := Prompt("credit_health", map[string]any{"bank_transactions": "unavailable"})
	require.NoError(t, err)
	assert.Contains(t, p, "You are Guardian, an AI financial safety agent. Focus specifically on credit health analysis. You receive")
	assert.Contains(t, p, "Data:\n{\"bank_transactions\":\"unavailable\"}")

	p, _ = Prompt("", nil)
	assert.NotContains(t, p, "Focus specifically")
}

func TestRunParsesAndCaches(t *testing.T) {
	m := &stubLLM{reply: "```json\n{\"alerts\":[{\"type\":\"Overspending\",\"description\":\"Food is up 40%\",\"severity\":\"high\"}]}\n```"}
	a, s := newAgent(m)

	res := a.Run(context.Background(), "u1", "spending")

	assert.Equal(t, toolkit.OutcomeOK, res.Outcome)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "Overspending", res.Alerts[0].Type)
	assert.Contains(t, m.prompt, `"credit_report":"unavailable"`)

	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, u.GuardianAlertsCache, 1)
	assert.JSONEq(t, `{"alerts":[{"type":"Overspending","description":"Food is up 40%","severity":"high"}]}`, res.JSON())
}

func TestRunKeepsExtraKeys(t *testing.T) {
	reply := `{"alerts":[{"type":"Late Payment","description":"Card bill due","severity":"high","due_date":"2025-08-01"}],"overall_risk":"elevated"}`
	a, s := newAgent(&stubLLM{reply: reply})

	res := a.Run(context.Background(), "u1", "")
	assert.Equal(t, toolkit.OutcomeOK, res.Outcome)
	assert.Equal(t, "Late Payment", res.Alerts[0].Type)
	assert.JSONEq(t, reply, res.JSON())

	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, u.GuardianAlertsCache, 1)
	assert.Equal(t, "2025-08-01", u.GuardianAlertsCache[0].(map[string]any)["due_date"])
}

func TestRunEmptyAlertsUsesDefaults(t *testing.T) {
	a, _ := newAgent(&stubLLM{reply: `{"alerts":[]}`})
	res := a.Run(context.Background(), "u1", "")
	assert.Equal(t, DefaultAlerts(), res.Alerts)
	assert.Equal(t, toolkit.OutcomeDefaults, res.Outcome)
}

func TestRunParseFailureUsesCache(t *testing.T) {
	a, s := newAgent(&stubLLM{reply: "I cannot help"})
	res := a.Run(context.Background(), "u1", "")
	assert.Equal(t, DefaultAlerts(), res.Alerts)

	require.NoError(t, s.Merge(context.Background(), "u1", map[string]any{
		store.FieldGuardianAlerts: []any{map[string]any{"type": "Old", "description": "cached", "severity": "low"}},
	}))
	res = a.Run(context.Background(), "u1", "")
	assert.Equal(t, toolkit.OutcomeCached, res.Outcome)
	assert.Equal(t, []Alert{{Type: "Old", Description: "cached", Severity: "low"}}, res.Alerts)
}

func TestRunModelErrorAndNoStore(t *testing.T) {
	a, _ := newAgent(&stubLLM{err: errors.New("down")})
	res := a.Run(context.Background(), "u1", "")
	assert.Equal(t, toolkit.OutcomeLLMError, res.Outcome)
	assert.Equal(t, DefaultAlerts(), res.Alerts)

	a.Store = nil
	res = a.Run(context.Background(), "u1", "")
	assert.Equal(t, SystemAlerts(), res.Alerts)
}
