package metadata

import (
	"sync"

	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
)

// MemoryInnerStore is the default InnerStore backend: an in-process map
// guarded by a mutex, grounded on
// coordinator/internal/store/memory_cache.go's map+mutex cache, enforcing
// the same obsolete/replace/sibling put semantics as store.MemoryStore so
// that cluster.xml and server.state (which get no special-cased check in
// Store.Put, only stores.xml does) still behave like a real C3 engine.
type MemoryInnerStore struct {
	mu   sync.RWMutex
	data map[string][]versioning.Versioned[string]
}

// NewMemoryInnerStore creates an empty backend.
func NewMemoryInnerStore() *MemoryInnerStore {
	return &MemoryInnerStore{data: make(map[string][]versioning.Versioned[string])}
}

func (m *MemoryInnerStore) Get(key string) ([]versioning.Versioned[string], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	existing := m.data[key]
	out := make([]versioning.Versioned[string], len(existing))
	copy(out, existing)
	return out, nil
}

func (m *MemoryInnerStore) Put(key string, value versioning.Versioned[string]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.data[key]
	kept := make([]versioning.Versioned[string], 0, len(existing)+1)
	for _, e := range existing {
		switch e.Version.Compare(value.Version) {
		case versioning.After, versioning.Equal:
			return store.ErrObsoleteVersion
		case versioning.Before:
			// superseded
		case versioning.Concurrently:
			kept = append(kept, e)
		}
	}
	kept = append(kept, value)
	m.data[key] = kept
	return nil
}

func (m *MemoryInnerStore) Close() error { return nil }
