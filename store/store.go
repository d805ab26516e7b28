// Package store persists per-user documents (session id, FCM token, caches)
// and raw tool payload caches.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user document does not exist.
var ErrNotFound = errors.New("store: not found")

// Field names of the user document.
const (
	FieldFiSessionID       = "fi_session_id"
	FieldFCMToken          = "fcm_token"
	FieldMCPDataCache      = "mcp_data_cache"
	FieldGuardianAlerts    = "guardian_alerts_cache"
	FieldCatalystOpps      = "catalyst_opportunities_cache"
	FieldMCPCacheTimestamp = "mcp_cache_timestamp"

	UsersCollection = "users"
)

// User is the decoded users/{uid} document.
type User struct {
	FiSessionID                string
	FCMToken                   string
	MCPDataCache               map[string]any
	GuardianAlertsCache        []any
	CatalystOpportunitiesCache []any
	Raw                        map[string]any
}

// UserStore reads and merge-writes user documents.
type UserStore interface {
	GetUser(ctx context.Context, uid string) (*User, error)
	// Merge deep-merges fields into the user document. Nested maps are
	// merged key by key; any other value overwrites.
	Merge(ctx context.Context, uid string, fields map[string]any) error
	// Replace overwrites one top-level field of the user document.
	Replace(ctx context.Context, uid, field string, value any) error
	Set(ctx context.Context, collection, doc string, fields map[string]any) error
}

// DecodeUser maps a raw document onto User.
func DecodeUser(raw map[string]any) *User {
	u := &User{Raw: raw}
	u.FiSessionID, _ = raw[FieldFiSessionID].(string)
	u.FCMToken, _ = raw[FieldFCMToken].(string)
	u.MCPDataCache, _ = raw[FieldMCPDataCache].(map[string]any)
	u.GuardianAlertsCache, _ = raw[FieldGuardianAlerts].([]any)
	u.CatalystOpportunitiesCache, _ = raw[FieldCatalystOpps].([]any)
	return u
}

// CacheTimeLayout is the naive UTC ISO-8601 layout used for cache stamps.
const CacheTimeLayout = "2006-01-02T15:04:05.999999"

// CacheTimestamp formats t for mcp_cache_timestamp.
func CacheTimestamp(t time.Time) string {
	return t.UTC().Format(CacheTimeLayout)
}

// IsFresh reports whether a cache stamped ts is younger than ttl at now.
// Stamps without a zone are read as UTC.
func IsFresh(ts string, ttl time.Duration, now time.Time) bool {
	if ts == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t, err = time.ParseInLocation(CacheTimeLayout, ts, time.UTC)
		if err != nil {
			return false
		}
	}
	return now.Sub(t) < ttl
}

// CachedMCPData returns the user's mcp_data_cache if it is younger than ttl,
// otherwise nil.
func CachedMCPData(ctx context.Context, s UserStore, uid string, ttl time.Duration) map[string]any {
	u, err := s.GetUser(ctx, uid)
	if err != nil || u.MCPDataCache == nil {
		return nil
	}
	ts, _ := u.MCPDataCache[FieldMCPCacheTimestamp].(string)
	if !IsFresh(ts, ttl, time.Now()) {
		return nil
	}
	return u.MCPDataCache
}
