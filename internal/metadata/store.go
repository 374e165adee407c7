// Package metadata implements the versioned, single-writer cluster
// metadata store (C4), ported from voldemort.store.metadata.MetadataStore.
package metadata

import (
	"fmt"
	"sync"

	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/versioning"
)

const (
	StoreName = "metadata"

	ClusterKey      = "cluster.xml"
	StoresKey       = "stores.xml"
	ServerStateKey  = "server.state"
	OldClusterKey   = "old.cluster.xml"
)

var knownKeys = map[string]struct{}{
	ClusterKey:     {},
	StoresKey:      {},
	ServerStateKey: {},
	OldClusterKey:  {},
}

// ServerState is the two-phase rebalance state machine value stored under
// ServerStateKey (spec.md §4.4).
type ServerState string

const (
	NormalState      ServerState = "NORMAL_STATE"
	RebalancingState ServerState = "REBALANCING_STATE"
)

// InnerStore is the small key→string-value store the metadata store is
// built atop (spec.md §4.4: "Built atop a small inner key→string-value
// store"). MemoryInnerStore and PostgresInnerStore both implement it.
type InnerStore interface {
	Get(key string) ([]versioning.Versioned[string], error)
	Put(key string, value versioning.Versioned[string]) error
	Close() error
}

// Store is the cluster metadata store: versioned, validated persistence of
// cluster.xml, stores.xml, and server.state, ported method-for-method from
// MetadataStore.java.
type Store struct {
	inner InnerStore

	clusterMapper cluster.ClusterMapper
	storeMapper   cluster.StoreDefinitionsMapper

	mu sync.Mutex // serializes Put, matching the original's `synchronized(this)` block
}

// New wraps inner with metadata semantics.
func New(inner InnerStore) *Store {
	return &Store{inner: inner}
}

func (s *Store) Name() string { return StoreName }

// Get returns every version currently stored for key. Unlike Put, Get
// takes no lock — readers never block behind a writer holding the
// metadata critical section any longer than the single inner Put call.
func (s *Store) Get(key string) ([]versioning.Versioned[string], error) {
	return s.inner.Get(key)
}

// Put validates and persists a metadata value. Only one Put proceeds at a
// time across the entire store (spec.md §4.4's critical section).
func (s *Store) Put(key string, value versioning.Versioned[string]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == StoresKey {
		current, err := s.inner.Get(StoresKey)
		if err != nil {
			return err
		}
		switch len(current) {
		case 0:
			// No current stores; whatever is put is fine.
		case 1:
			if current[0].Version.Compare(value.Version) != versioning.Before {
				return ErrObsoleteVersion
			}
		default:
			return ErrInconsistentMetadata
		}
	}

	return s.inner.Put(key, value)
}

// Delete always fails: metadata is not deletable (spec.md §4.4).
func (s *Store) Delete(_ string, _ versioning.VectorClock) (bool, error) {
	return false, ErrPermissionDenied
}

// Entries always fails: the metadata store does not support iteration
// (spec.md §4.4).
func (s *Store) Entries() error {
	return ErrNotSupported
}

func (s *Store) Close() error { return s.inner.Close() }

// getSingleValue enforces that exactly one version of key exists, mapping
// zero or many versions to InconsistentMetadata per spec.md §4.4.
func (s *Store) getSingleValue(key string) (string, error) {
	found, err := s.inner.Get(key)
	if err != nil {
		return "", err
	}
	if len(found) != 1 {
		return "", fmt.Errorf("%w: expected 1 version of %q, found %d", ErrInconsistentMetadata, key, len(found))
	}
	return found[0].Value, nil
}

// GetCluster parses cluster.xml; fails InconsistentMetadata unless exactly
// one version is stored.
func (s *Store) GetCluster() (cluster.Cluster, error) {
	doc, err := s.getSingleValue(ClusterKey)
	if err != nil {
		return cluster.Cluster{}, err
	}
	return s.clusterMapper.ReadCluster(doc)
}

// GetStores parses stores.xml.
func (s *Store) GetStores() ([]cluster.StoreDefinition, error) {
	doc, err := s.getSingleValue(StoresKey)
	if err != nil {
		return nil, err
	}
	return s.storeMapper.ReadStoreList(doc)
}

// GetStore returns one named store definition, or ErrStoreNotFound.
func (s *Store) GetStore(name string) (cluster.StoreDefinition, error) {
	defs, err := s.GetStores()
	if err != nil {
		return cluster.StoreDefinition{}, err
	}
	for _, d := range defs {
		if d.Name == name {
			return d, nil
		}
	}
	return cluster.StoreDefinition{}, ErrStoreNotFound
}

// GetServerState reads server.state, defaulting to NormalState if absent
// (spec.md §4.4's boot default).
func (s *Store) GetServerState() (ServerState, error) {
	found, err := s.inner.Get(ServerStateKey)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return NormalState, nil
	}
	return ServerState(found[len(found)-1].Value), nil
}

// SetServerState transitions server.state. Only the admin opcode handlers
// (internal/admin) call this — client writes never touch server.state.
func (s *Store) SetServerState(state ServerState, version versioning.VectorClock) error {
	return s.Put(ServerStateKey, versioning.NewVersioned(string(state), version))
}

// IsKnownKey reports whether key is one of the reserved metadata keys
// (spec.md §3).
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}
