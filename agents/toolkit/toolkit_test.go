package toolkit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/types"
)

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]map[string]any
	files    map[string]any
	streams  []string
	sessions []string
	phones   []string
}

func (f *fakeFetcher) Stream(ctx context.Context, sessionID, tool, phone string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, tool)
	f.sessions = append(f.sessions, sessionID)
	f.phones = append(f.phones, phone)
	if p, ok := f.payloads[tool]; ok {
		return p, nil
	}
	return nil, &fimcp.StatusError{Code: 500, Body: "Could not read tool data"}
}

func (f *fakeFetcher) FetchFile(ctx context.Context, phone, file string) (any, error) {
	if v, ok := f.files[file]; ok {
		return v, nil
	}
	return nil, fimcp.ErrNotFound
}

type memToolCache struct {
	mu   sync.Mutex
	data map[string]map[string]any
}

func (m *memToolCache) Get(_ context.Context, uid, tool string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[uid+"/"+tool]
	return v, ok
}

func (m *memToolCache) Put(_ context.Context, uid, tool string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]map[string]any{}
	}
	m.data[uid+"/"+tool] = payload
}

var bankPayload = map[string]any{
	"bankTransactions": []any{
		map[string]any{"bank": "HDFC", "txns": []any{[]any{"1000", "SALARY", "2025-07-01", 1.0}}},
	},
}

func seededStore(t *testing.T, uid string, fields map[string]any) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.Merge(context.Background(), uid, fields))
	return s
}

func TestLoadLiveWritesSummary(t *testing.T) {
	s := seededStore(t, "2222222222", map[string]any{store.FieldFiSessionID: "sess-1"})
	f := &fakeFetcher{payloads: map[string]map[string]any{"fetch_bank_transactions": bankPayload}}
	l := &Loader{Store: s, Fetcher: f, TTL: time.Minute}

	b := l.Load(context.Background(), "2222222222", []fimcp.DataKey{fimcp.BankTransactions, fimcp.CreditReport})

	assert.Equal(t, SourceLive, b.Source)
	assert.Equal(t, bankPayload, b.Get(fimcp.BankTransactions))
	assert.Equal(t, Unavailable, b.Get(fimcp.CreditReport))
	assert.False(t, b.Available(fimcp.CreditReport))
	require.Error(t, b.Errors[fimcp.CreditReport])
	assert.Equal(t, []string{"sess-1", "sess-1"}, f.sessions)
	assert.Equal(t, []string{"2222222222", "2222222222"}, f.phones)

	u, err := s.GetUser(context.Background(), "2222222222")
	require.NoError(t, err)
	require.NotNil(t, u.MCPDataCache)
	assert.Contains(t, u.MCPDataCache, "bank_summary")
	assert.Contains(t, u.MCPDataCache, store.FieldMCPCacheTimestamp)
}

func TestLoadUsesFreshSummary(t *testing.T) {
	summary := map[string]any{
		store.FieldMCPCacheTimestamp: store.CacheTimestamp(time.Now()),
		"bank_summary":               map[string]any{"total_banks": 1.0},
	}
	s := seededStore(t, "u1", map[string]any{
		store.FieldFiSessionID:  "sess",
		store.FieldMCPDataCache: summary,
	})
	f := &fakeFetcher{payloads: map[string]map[string]any{}}
	l := &Loader{Store: s, Fetcher: f, TTL: time.Minute}

	b := l.Load(context.Background(), "u1", []fimcp.DataKey{fimcp.BankTransactions})

	assert.Equal(t, SourceCached, b.Source)
	assert.Equal(t, map[string]any{"total_banks": 1.0}, b.Get(fimcp.BankTransactions))
	assert.Empty(t, f.streams)
}

func TestLoadNonPhoneUIDUsesSessionPhone(t *testing.T) {
	s := seededStore(t, "firebase-uid", map[string]any{store.FieldFiSessionID: "sess"})
	f := &fakeFetcher{payloads: map[string]map[string]any{"fetch_bank_transactions": bankPayload}}
	l := &Loader{Store: s, Fetcher: f}

	b := l.Load(context.Background(), "firebase-uid", []fimcp.DataKey{fimcp.BankTransactions, fimcp.Goals})

	assert.Equal(t, []string{""}, f.phones)
	assert.Equal(t, Unavailable, b.Get(fimcp.Goals))
}

func TestLoadMissingUserAndSession(t *testing.T) {
	f := &fakeFetcher{}
	l := &Loader{Store: store.NewMemoryStore(), Fetcher: f}
	b := l.Load(context.Background(), "nobody", []fimcp.DataKey{fimcp.NetWorth})
	assert.True(t, errors.Is(b.Errors[fimcp.NetWorth], ErrUserNotFound))
	assert.Equal(t, "User not found", b.Errors[fimcp.NetWorth].Error())

	l.Store = seededStore(t, "u1", map[string]any{store.FieldFCMToken: "tok"})
	b = l.Load(context.Background(), "u1", []fimcp.DataKey{fimcp.NetWorth})
	assert.Equal(t, "No session ID found. Please authenticate first.", b.Errors[fimcp.NetWorth].Error())
	assert.Equal(t, SourceNone, b.Source)
	assert.Empty(t, f.streams)
}

func TestLoadFallsBackToLocalData(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2222222222"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2222222222", "fetch_credit_report.json"),
		[]byte(`{"creditReports":[]}`), 0o644))

	l := &Loader{Store: store.NewMemoryStore(), Fetcher: &fakeFetcher{}, Local: &fimcp.LocalData{Dir: dir}}
	b := l.Load(context.Background(), "2222222222", []fimcp.DataKey{fimcp.CreditReport, fimcp.EPFDetails})

	assert.Equal(t, SourceLocal, b.Source)
	assert.Equal(t, map[string]any{"creditReports": []any{}}, b.Get(fimcp.CreditReport))
	assert.NotContains(t, b.Errors, fimcp.CreditReport)
	assert.Equal(t, Unavailable, b.Get(fimcp.EPFDetails))
}

func TestLoadToolCache(t *testing.T) {
	s := seededStore(t, "2222222222", map[string]any{store.FieldFiSessionID: "sess"})
	f := &fakeFetcher{payloads: map[string]map[string]any{"fetch_bank_transactions": bankPayload}}
	tc := &memToolCache{}
	l := &Loader{Store: s, Fetcher: f, Tools: tc}

	l.Load(context.Background(), "2222222222", []fimcp.DataKey{fimcp.BankTransactions})
	l.Load(context.Background(), "2222222222", []fimcp.DataKey{fimcp.BankTransactions})

	assert.Len(t, f.streams, 1)
}

func TestLoadGoalsFromFile(t *testing.T) {
	s := seededStore(t, "2222222222", map[string]any{store.FieldFiSessionID: "sess"})
	f := &fakeFetcher{files: map[string]any{"goals.json": []any{}}}
	l := &Loader{Store: s, Fetcher: f}

	b := l.Load(context.Background(), "2222222222", []fimcp.DataKey{fimcp.Goals})
	assert.Equal(t, []any{}, b.Get(fimcp.Goals))
}

func TestLoadGoalsWithoutSession(t *testing.T) {
	s := seededStore(t, "2222222222", map[string]any{store.FieldFCMToken: "tok"})
	f := &fakeFetcher{files: map[string]any{"goals.json": []any{map[string]any{"title": "House"}}}}
	l := &Loader{Store: s, Fetcher: f}

	b := l.Load(context.Background(), "2222222222", []fimcp.DataKey{fimcp.BankTransactions, fimcp.Goals})
	assert.Equal(t, []any{map[string]any{"title": "House"}}, b.Get(fimcp.Goals))
	assert.Equal(t, Unavailable, b.Get(fimcp.BankTransactions))
	assert.ErrorIs(t, b.Errors[fimcp.BankTransactions], ErrNoSession)
	assert.Empty(t, f.streams)
}

func TestBundlePrompt(t *testing.T) {
	b := Bundle{Data: map[fimcp.DataKey]any{fimcp.NetWorth: map[string]any{"x": 1}}}
	out := b.Prompt([]fimcp.DataKey{fimcp.NetWorth, fimcp.EPFDetails}, map[fimcp.DataKey]string{fimcp.NetWorth: "net_worth_summary"})
	assert.Equal(t, map[string]any{
		"net_worth_summary": map[string]any{"x": 1},
		"epf_details":       Unavailable,
	}, out)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		schema  *Schema
		wantErr bool
	}{
		{"fenced", "```json\n{\"alerts\":[{\"type\":\"A\"}]}\n```", AlertsSchema, false},
		{"prose around object", "Here you go: {\"alerts\": []} thanks", AlertsSchema, false},
		{"not json", "no data today", nil, true},
		{"schema mismatch", `{"alerts": "none"}`, AlertsSchema, true},
		{"strategy", `{"summary":"s","recommendations":[{"symbol":"TCS","action_items":["hold"]}]}`, StrategySchema, false},
		{"bad action items", `{"opportunities":[{"action_items":[1]}]}`, OpportunitiesSchema, true},
		{"string figures", `{"summary":"s","recommendations":[{"symbol":"TCS","current_price":"3,400",` +
			`"price_analysis":{"target":"3800","potential_return":"12%"},"risk_assessment":{"level":"low","level_percentage":"30"}}]}`, StrategySchema, false},
		{"string roi", `{"opportunities":[{"title":"FD","roi_comparison":{"current":"6.5%","suggested":null}}]}`, OpportunitiesSchema, false},
		{"object figure", `{"recommendations":[{"symbol":"TCS","current_price":{"value":1}}]}`, StrategySchema, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v map[string]any
			err := Decode(tt.answer, tt.schema, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, v)
		})
	}

	var v map[string]any
	assert.ErrorIs(t, DecodeJSON("plain text", &v), ErrNoJSON)
}

func TestDecodeObjectTypedAndRaw(t *testing.T) {
	var s struct {
		Recommendations []types.Recommendation `json:"recommendations"`
	}
	answer := `{"summary":"ok","market_mood":"bullish","recommendations":[{"symbol":"TCS","current_price":"3,400",` +
		`"price_analysis":{"target":3800,"stop_loss":"₹3,100","potential_return":"12%"},"risk_assessment":{"level":"low","level_percentage":"n/a"}}]}`

	raw, err := DecodeObject(answer, StrategySchema, &s)
	require.NoError(t, err)
	require.Len(t, s.Recommendations, 1)
	rec := s.Recommendations[0]
	require.NotNil(t, rec.CurrentPrice)
	assert.Equal(t, types.Number(3400), *rec.CurrentPrice)
	assert.Equal(t, &types.PriceAnalysis{Target: 3800, StopLoss: 3100, PotentialReturn: 12}, rec.PriceAnalysis)
	assert.Equal(t, types.Number(0), rec.RiskAssessment.LevelPercentage)

	assert.Equal(t, "bullish", raw["market_mood"])
	first := raw["recommendations"].([]any)[0].(map[string]any)
	assert.Equal(t, "3,400", first["current_price"])

	raw, err = DecodeObject(`[1,2]`, nil, &[]int{})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRawSkipsSummaryAndPrefetchReplacesIt(t *testing.T) {
	stale := map[string]any{
		store.FieldMCPCacheTimestamp: store.CacheTimestamp(time.Now()),
		"bank_summary":               map[string]any{"total_banks": 9.0},
		"credit_summary":             map[string]any{"score": "700"},
	}
	s := seededStore(t, "u1", map[string]any{
		store.FieldFiSessionID:  "sess",
		store.FieldMCPDataCache: stale,
	})
	f := &fakeFetcher{payloads: map[string]map[string]any{"fetch_bank_transactions": bankPayload}}
	l := &Loader{Store: s, Fetcher: f, TTL: time.Minute}

	b := l.Raw(context.Background(), "u1", []fimcp.DataKey{fimcp.BankTransactions})
	assert.Equal(t, SourceLive, b.Source)
	assert.Equal(t, bankPayload, b.Get(fimcp.BankTransactions))
	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, stale, u.MCPDataCache)

	b = l.Prefetch(context.Background(), "u1")
	assert.Len(t, f.streams, 1+len(fimcp.AllFinancialKeys))
	assert.True(t, b.Available(fimcp.BankTransactions))
	u, err = s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Contains(t, u.MCPDataCache, "bank_summary")
	assert.NotContains(t, u.MCPDataCache, "credit_summary")
}
