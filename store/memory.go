package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process UserStore for tests and offline development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]map[string]any)}
}

func (m *MemoryStore) GetUser(ctx context.Context, uid string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[UsersCollection][uid]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	return DecodeUser(clone(doc)), nil
}

func (m *MemoryStore) Merge(ctx context.Context, uid string, fields map[string]any) error {
	return m.write(UsersCollection, uid, fields, true)
}

func (m *MemoryStore) Replace(ctx context.Context, uid, field string, value any) error {
	normalized := clone(map[string]any{field: value})
	if normalized == nil {
		return fmt.Errorf("store: fields are not serializable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docLocked(UsersCollection, uid, true)
	doc[field] = normalized[field]
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, doc string, fields map[string]any) error {
	return m.write(collection, doc, fields, false)
}

func (m *MemoryStore) write(collection, id string, fields map[string]any, merge bool) error {
	// Round-trip through JSON so stored values look like what Firestore returns.
	normalized := clone(fields)
	if normalized == nil {
		return fmt.Errorf("store: fields are not serializable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	mergeInto(m.docLocked(collection, id, merge), normalized)
	return nil
}

// docLocked returns the stored document, creating it when missing or when
// keep is false.
func (m *MemoryStore) docLocked(collection, id string, keep bool) map[string]any {
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		m.docs[collection] = coll
	}
	doc, ok := coll[id]
	if !ok || !keep {
		doc = make(map[string]any)
		coll[id] = doc
	}
	return doc
}

// mergeInto applies src to dst the way Firestore's MergeAll does.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		sub, isMap := v.(map[string]any)
		existing, hasMap := dst[k].(map[string]any)
		if isMap && hasMap {
			mergeInto(existing, sub)
			continue
		}
		dst[k] = v
	}
}

// Doc returns a copy of a raw document, for tests.
func (m *MemoryStore) Doc(collection, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	return clone(doc), ok
}

func clone(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
