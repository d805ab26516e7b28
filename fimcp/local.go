package fimcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalData reads user data files straight from the test data directory.
// It is the last resort when the provider is unreachable.
type LocalData struct {
	Dir string
}

// Load decodes {Dir}/{uid}/{file for key}.
func (l *LocalData) Load(uid string, key DataKey) (any, error) {
	if l == nil || l.Dir == "" {
		return nil, fmt.Errorf("local data: %w", ErrNotFound)
	}
	if uid == "" || filepath.Base(uid) != uid {
		return nil, fmt.Errorf("local data: invalid uid %q: %w", uid, ErrBadRequest)
	}

	path := filepath.Join(l.Dir, uid, key.FileName())
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("local data %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("local data %s: %w", path, err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("local data %s: %w", path, ErrNotJSON)
	}
	return v, nil
}
