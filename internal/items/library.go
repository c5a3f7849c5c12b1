// Package items provides in-memory reference stores for citation sessions.
package items

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/cslbridge/internal/model"
)

// ErrItemNotFound means the library has no item with the requested id
var ErrItemNotFound = errors.New("item not found")

// Library is a concurrency-safe in-memory item store keyed by string id
type Library struct {
	mu    sync.RWMutex
	items map[string]model.Reference
}

// NewLibrary creates a library holding refs. Every ref needs a non-empty id.
func NewLibrary(refs ...model.Reference) (*Library, error) {
	lib := &Library{items: make(map[string]model.Reference, len(refs))}
	for _, ref := range refs {
		if err := lib.Add(ref); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// Add stores a copy of ref, replacing any item with the same id
func (l *Library) Add(ref model.Reference) error {
	id, err := key(ref["id"])
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[id] = ref.Clone()
	return nil
}

// Remove deletes an item, reporting whether it existed
func (l *Library) Remove(id model.ItemID) bool {
	k, err := key(id)
	if err != nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[k]
	delete(l.items, k)
	return ok
}

// RetrieveItem returns a copy of the item so callers may mutate it freely
func (l *Library) RetrieveItem(ctx context.Context, id model.ItemID) (model.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k, err := key(id)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	ref, ok := l.items[k]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, k)
	}
	return ref.Clone(), nil
}

// IDs returns all item ids, sorted
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.items))
	for id := range l.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of items
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// LoadFile reads a CSL-JSON array (.json) or a YAML list (.yaml, .yml) of items
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	// decode into plain maps so nested values keep the map[string]any type
	var raw []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse items JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse items YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported items file %q", path)
	}

	refs := make([]model.Reference, 0, len(raw))
	for _, m := range raw {
		refs = append(refs, model.Reference(m))
	}
	return NewLibrary(refs...)
}

func key(id any) (string, error) {
	k, err := cast.ToStringE(id)
	if err != nil {
		return "", fmt.Errorf("item id %v: %w", id, err)
	}
	if k == "" {
		return "", fmt.Errorf("empty item id")
	}
	return k, nil
}
