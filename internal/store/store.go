// Package store defines the uniform byte-key, byte-value store interface
// that the metadata store, slop store, and per-StoreDefinition storage
// engines all implement.
package store

import (
	"errors"

	"github.com/pairdb/ring/internal/versioning"
)

// ErrObsoleteVersion is returned by Put when an existing entry is AFTER or
// EQUAL to the incoming version.
var ErrObsoleteVersion = errors.New("store: obsolete version")

// ErrNotSupported is returned by engines that don't implement a required
// capability (e.g. Entries on an engine with no iteration support).
var ErrNotSupported = errors.New("store: not supported")

// Entry is one (key, versioned value) pair yielded by Entries.
type Entry struct {
	Key   []byte
	Value versioning.Versioned[[]byte]
}

// EntryIterator yields Entries until exhausted. Close must be called when
// done, even on early termination.
type EntryIterator interface {
	Next() (Entry, bool)
	Close() error
}

// Store is the uniform local storage interface (spec.md §4.3, C3).
type Store interface {
	Get(key []byte) ([]versioning.Versioned[[]byte], error)
	GetAll(keys [][]byte) (map[string][]versioning.Versioned[[]byte], error)
	// Put enforces vector-clock put semantics: an existing entry that is
	// AFTER or EQUAL to value's version makes Put fail with
	// ErrObsoleteVersion; entries BEFORE value's version are replaced;
	// entries CONCURRENTLY with it are kept as siblings alongside it.
	Put(key []byte, value versioning.Versioned[[]byte]) error
	// Delete removes every version dominated by version and reports
	// whether anything was removed.
	Delete(key []byte, version versioning.VectorClock) (bool, error)
	Entries() (EntryIterator, error)
	Close() error
	Name() string
}
