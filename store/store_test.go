package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Merge(ctx, "u1", map[string]any{FieldFiSessionID: "sess"}))
	require.NoError(t, s.Merge(ctx, "u1", map[string]any{FieldFCMToken: "tok"}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sess", u.FiSessionID)
	assert.Equal(t, "tok", u.FCMToken)
}

func TestMemoryStoreMergeIsDeep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Merge(ctx, "u1", map[string]any{
		FieldMCPDataCache: map[string]any{"bank_summary": map[string]any{"total_banks": 2}, "credit_summary": "old"},
	}))
	require.NoError(t, s.Merge(ctx, "u1", map[string]any{
		FieldMCPDataCache: map[string]any{"bank_summary": map[string]any{"total_balance": 10}},
	}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"bank_summary":   map[string]any{"total_banks": float64(2), "total_balance": float64(10)},
		"credit_summary": "old",
	}, u.MCPDataCache)

	require.NoError(t, s.Replace(ctx, "u1", FieldMCPDataCache, map[string]any{"net_worth_summary": "new"}))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"net_worth_summary": "new"}, u.MCPDataCache)
}

func TestMemoryStoreSetReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "reports", "r1", map[string]any{"a": 1, "b": 2}))
	require.NoError(t, s.Set(ctx, "reports", "r1", map[string]any{"a": 3}))

	doc, ok := s.Doc("reports", "r1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(3)}, doc)
}

func TestDecodeUserCaches(t *testing.T) {
	u := DecodeUser(map[string]any{
		FieldGuardianAlerts: []any{map[string]any{"type": "x"}},
		FieldCatalystOpps:   []any{},
		FieldMCPDataCache:   map[string]any{"net_worth": "unavailable"},
	})
	assert.Len(t, u.GuardianAlertsCache, 1)
	assert.NotNil(t, u.CatalystOpportunitiesCache)
	assert.Equal(t, "unavailable", u.MCPDataCache["net_worth"])
	assert.Empty(t, u.FiSessionID)
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsFresh(CacheTimestamp(now.Add(-time.Minute)), 5*time.Minute, now))
	assert.False(t, IsFresh(CacheTimestamp(now.Add(-6*time.Minute)), 5*time.Minute, now))
	assert.True(t, IsFresh("2025-07-01T11:59:00.123456", 5*time.Minute, now))
	assert.True(t, IsFresh("2025-07-01T11:59:00Z", 5*time.Minute, now))
	assert.False(t, IsFresh("", 5*time.Minute, now))
	assert.False(t, IsFresh("yesterday", 5*time.Minute, now))
}

func TestCachedMCPData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.Nil(t, CachedMCPData(ctx, s, "u1", time.Minute))

	fresh := map[string]any{"net_worth": map[string]any{}, FieldMCPCacheTimestamp: CacheTimestamp(time.Now())}
	require.NoError(t, s.Merge(ctx, "u1", map[string]any{FieldMCPDataCache: fresh}))
	assert.NotNil(t, CachedMCPData(ctx, s, "u1", time.Minute))

	stale := map[string]any{"net_worth": map[string]any{}, FieldMCPCacheTimestamp: CacheTimestamp(time.Now().Add(-time.Hour))}
	require.NoError(t, s.Merge(ctx, "u1", map[string]any{FieldMCPDataCache: stale}))
	assert.Nil(t, CachedMCPData(ctx, s, "u1", time.Minute))
}

func TestToolCaches(t *testing.T) {
	var c ToolCache = NopToolCache{}
	c.Put(context.Background(), "u", "fetch_net_worth", map[string]any{"a": 1})
	_, ok := c.Get(context.Background(), "u", "fetch_net_worth")
	assert.False(t, ok)

	r, err := NewRedisToolCache("redis://localhost:6379/0", time.Minute)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "invested:fi:u1:fetch_net_worth", r.Key("u1", "fetch_net_worth"))

	_, err = NewRedisToolCache("://bad", time.Minute)
	assert.Error(t, err)
}
