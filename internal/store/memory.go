package store

import (
	"sync"

	"github.com/pairdb/ring/internal/versioning"
)

// MemoryStore is an in-process, map-backed implementation of Store. It is
// the module's answer to the storage engines spec.md §1 explicitly puts
// out of scope (BDB, read-only Hadoop stores, and the soft-value cache) —
// a minimal concrete backend that satisfies C3's put/sibling semantics so
// every other component has something to run against.
type MemoryStore struct {
	name string
	mu   sync.RWMutex
	data map[string][]versioning.Versioned[[]byte]
}

// NewMemoryStore creates an empty store identified by name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name: name,
		data: make(map[string][]versioning.Versioned[[]byte]),
	}
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Get(key []byte) ([]versioning.Versioned[[]byte], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.data[string(key)]
	out := make([]versioning.Versioned[[]byte], len(existing))
	copy(out, existing)
	return out, nil
}

func (s *MemoryStore) GetAll(keys [][]byte) (map[string][]versioning.Versioned[[]byte], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]versioning.Versioned[[]byte], len(keys))
	for _, k := range keys {
		if v, ok := s.data[string(k)]; ok && len(v) > 0 {
			cp := make([]versioning.Versioned[[]byte], len(v))
			copy(cp, v)
			out[string(k)] = cp
		}
	}
	return out, nil
}

func (s *MemoryStore) Put(key []byte, value versioning.Versioned[[]byte]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[string(key)]
	kept := make([]versioning.Versioned[[]byte], 0, len(existing)+1)
	for _, e := range existing {
		switch e.Version.Compare(value.Version) {
		case versioning.After, versioning.Equal:
			return ErrObsoleteVersion
		case versioning.Before:
			// superseded, drop it
		case versioning.Concurrently:
			kept = append(kept, e)
		}
	}
	kept = append(kept, value)
	s.data[string(key)] = kept
	return nil
}

func (s *MemoryStore) Delete(key []byte, version versioning.VectorClock) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[string(key)]
	if len(existing) == 0 {
		return false, nil
	}
	kept := make([]versioning.Versioned[[]byte], 0, len(existing))
	removedAny := false
	for _, e := range existing {
		cmp := e.Version.Compare(version)
		if cmp == versioning.Before || cmp == versioning.Equal {
			removedAny = true
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(s.data, string(key))
	} else {
		s.data[string(key)] = kept
	}
	return removedAny, nil
}

func (s *MemoryStore) Entries() (EntryIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0)
	for k, versions := range s.data {
		for _, v := range versions {
			entries = append(entries, Entry{Key: []byte(k), Value: v})
		}
	}
	return &sliceIterator{entries: entries}, nil
}

func (s *MemoryStore) Close() error { return nil }

type sliceIterator struct {
	entries []Entry
	pos     int
}

func (it *sliceIterator) Next() (Entry, bool) {
	if it.pos >= len(it.entries) {
		return Entry{}, false
	}
	e := it.entries[it.pos]
	it.pos++
	return e, true
}

func (it *sliceIterator) Close() error { return nil }
