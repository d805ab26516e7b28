// Package toolkit holds what every agent shares: the financial data loader
// and strict decoding of model output.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/finance"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/store"
)

// Unavailable replaces data that could not be loaded from any source.
const Unavailable = "unavailable"

// Source says where the bulk of a Bundle came from.
type Source string

const (
	SourceLive   Source = "live"
	SourceCached Source = "cached"
	SourceLocal  Source = "local"
	SourceNone   Source = "none"
)

var (
	ErrUserNotFound = errors.New("User not found")
	ErrNoSession    = errors.New("No session ID found. Please authenticate first.")
	errNoPhone      = errors.New("no phone number for user")
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Fetcher is the part of the provider client the loader needs.
type Fetcher interface {
	Stream(ctx context.Context, sessionID, tool, phone string) (map[string]any, error)
	FetchFile(ctx context.Context, phone, file string) (any, error)
}

// Bundle is the per-key data handed to a prompt.
type Bundle struct {
	Data   map[fimcp.DataKey]any
	Source Source
	Errors map[fimcp.DataKey]error
}

// Get returns the value for key, or Unavailable.
func (b Bundle) Get(key fimcp.DataKey) any {
	if v, ok := b.Data[key]; ok && v != nil {
		return v
	}
	return Unavailable
}

// Available reports whether key resolved to real data.
func (b Bundle) Available(key fimcp.DataKey) bool {
	_, ok := b.Data[key]
	return ok
}

// Loader resolves user data through the summary cache, the provider, and the
// local test data directory, in that order.
type Loader struct {
	Store   store.UserStore
	Fetcher Fetcher
	Local   *fimcp.LocalData
	Tools   store.ToolCache
	TTL     time.Duration
	Now     func() time.Time
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Loader) tools() store.ToolCache {
	if l.Tools == nil {
		return store.NopToolCache{}
	}
	return l.Tools
}

// Load returns data for keys. It never fails: keys that cannot be resolved
// map to Unavailable and their last error is kept in Bundle.Errors.
func (l *Loader) Load(ctx context.Context, uid string, keys []fimcp.DataKey) Bundle {
	return l.load(ctx, uid, keys, true)
}

// Raw is Load without the summary cache, for callers that need full
// provider payloads.
func (l *Loader) Raw(ctx context.Context, uid string, keys []fimcp.DataKey) Bundle {
	return l.load(ctx, uid, keys, false)
}

// Prefetch loads all six financial categories from the provider and
// replaces the user's summary cache with them.
func (l *Loader) Prefetch(ctx context.Context, uid string) Bundle {
	b := l.load(ctx, uid, fimcp.AllFinancialKeys, false)
	fetched := make(map[fimcp.DataKey]any, len(b.Data))
	for k, v := range b.Data {
		fetched[k] = v
	}
	if len(fetched) > 0 {
		l.writeSummary(ctx, uid, nil, fetched)
	}
	return b
}

func (l *Loader) load(ctx context.Context, uid string, keys []fimcp.DataKey, useSummary bool) Bundle {
	b := Bundle{
		Data:   make(map[fimcp.DataKey]any, len(keys)),
		Errors: make(map[fimcp.DataKey]error),
		Source: SourceNone,
	}

	var cached map[string]any
	if useSummary && l.Store != nil && l.TTL > 0 {
		cached = store.CachedMCPData(ctx, l.Store, uid, l.TTL)
	}

	var pending []fimcp.DataKey
	for _, k := range keys {
		if section, ok := cached[finance.SummaryKey(k)]; ok && section != nil {
			b.Data[k] = section
			continue
		}
		pending = append(pending, k)
	}
	if len(pending) < len(keys) {
		b.Source = SourceCached
	}
	if len(pending) == 0 {
		return b
	}

	fetched, errs := l.fetchLive(ctx, uid, pending)
	if len(fetched) > 0 {
		b.Source = SourceLive
		if useSummary {
			l.writeSummary(ctx, uid, cached, fetched)
		}
	}

	var failed []fimcp.DataKey
	for _, k := range pending {
		if v, ok := fetched[k]; ok {
			b.Data[k] = v
			continue
		}
		b.Errors[k] = errs[k]
		failed = append(failed, k)
	}

	if len(failed) > 0 && l.Local != nil {
		loaded := 0
		for _, k := range failed {
			v, err := l.Local.Load(uid, k)
			if err != nil {
				logger.Debugf("toolkit: no local %s for %s: %v", k, uid, err)
				continue
			}
			b.Data[k] = v
			delete(b.Errors, k)
			loaded++
		}
		if loaded > 0 && b.Source == SourceNone {
			b.Source = SourceLocal
		}
	}
	return b
}

func (l *Loader) fetchLive(ctx context.Context, uid string, keys []fimcp.DataKey) (map[fimcp.DataKey]any, map[fimcp.DataKey]error) {
	out := make(map[fimcp.DataKey]any, len(keys))
	errs := make(map[fimcp.DataKey]error, len(keys))

	if l.Fetcher == nil {
		for _, k := range keys {
			errs[k] = errors.New("no data provider configured")
		}
		return out, errs
	}

	// Goals are read by phone and do not need a provider session.
	sessionID, err := l.sessionID(ctx, uid)
	if err != nil {
		logger.Warnf("toolkit: %s: %v", uid, err)
		var goalsOnly []fimcp.DataKey
		for _, k := range keys {
			if k == fimcp.Goals {
				goalsOnly = append(goalsOnly, k)
				continue
			}
			errs[k] = err
		}
		keys = goalsOnly
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			v, err := l.fetchOne(gctx, uid, sessionID, k)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warnf("toolkit: fetch %s for %s: %v", k, uid, err)
				errs[k] = err
				return nil
			}
			out[k] = v
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}

func (l *Loader) sessionID(ctx context.Context, uid string) (string, error) {
	if l.Store == nil {
		return "", ErrUserNotFound
	}
	u, err := l.Store.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read user: %w", err)
	}
	if u.FiSessionID == "" {
		return "", ErrNoSession
	}
	return u.FiSessionID, nil
}

// phoneFor returns uid when it is itself a phone number; otherwise the
// provider uses the phone bound to the session.
func phoneFor(uid string) string {
	if phonePattern.MatchString(uid) {
		return uid
	}
	return ""
}

func (l *Loader) fetchOne(ctx context.Context, uid, sessionID string, k fimcp.DataKey) (any, error) {
	if k == fimcp.Goals {
		phone := phoneFor(uid)
		if phone == "" {
			return nil, errNoPhone
		}
		return l.Fetcher.FetchFile(ctx, phone, k.FileName())
	}

	tool := k.StreamTool()
	if v, ok := l.tools().Get(ctx, uid, tool); ok {
		return v, nil
	}
	v, err := l.Fetcher.Stream(ctx, sessionID, tool, phoneFor(uid))
	if err != nil {
		return nil, err
	}
	l.tools().Put(ctx, uid, tool, v)
	return v, nil
}

func (l *Loader) writeSummary(ctx context.Context, uid string, cached map[string]any, fetched map[fimcp.DataKey]any) {
	if l.Store == nil {
		return
	}
	raw := make(map[string]any, len(fetched))
	for k, v := range fetched {
		raw[string(k)] = v
	}
	summary := finance.SafeSummary(raw, l.now())
	for k, v := range cached {
		if _, ok := summary[k]; !ok {
			summary[k] = v
		}
	}
	if err := l.Store.Replace(ctx, uid, store.FieldMCPDataCache, summary); err != nil {
		logger.Warnf("toolkit: failed to cache data summary for %s: %v", uid, err)
	}
}

// Prompt renders the bundle as the data map sent to a model, keyed by data
// key name. Keys can be renamed through alias.
func (b Bundle) Prompt(keys []fimcp.DataKey, alias map[fimcp.DataKey]string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		name := string(k)
		if a, ok := alias[k]; ok {
			name = a
		}
		out[name] = b.Get(k)
	}
	return out
}
