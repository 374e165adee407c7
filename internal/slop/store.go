package slop

import (
	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/routing"
	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
)

// SlopStore is the store.Store specialization this package quarantines
// misrouted writes into: keys are derived Slop.MakeKey() bytes, values are
// versioned Slop records carried as opaque []byte, encoded by the encodeSlop
// function given to New.
type SlopStore = store.Store

// DetectingStore wraps an inner store.Store and diverts puts/deletes for
// keys this node doesn't own to a slop queue instead, ported directly from
// SlopDetectingStore.java.
type DetectingStore struct {
	inner             store.Store
	slopStore         SlopStore
	replicationFactor int
	localNode         cluster.Node
	strategy          routing.Strategy

	encodeSlop func(Slop) []byte
}

// New builds a DetectingStore. encodeSlop serializes a Slop record to the
// bytes stored in slopStore; the callers in this module pass EncodeSlop
// (codec.go).
func New(inner store.Store, slopStore SlopStore, replicationFactor int, localNode cluster.Node, strategy routing.Strategy, encodeSlop func(Slop) []byte) *DetectingStore {
	return &DetectingStore{
		inner:             inner,
		slopStore:         slopStore,
		replicationFactor: replicationFactor,
		localNode:         localNode,
		strategy:          strategy,
		encodeSlop:        encodeSlop,
	}
}

// isLocal reports whether localNode sits within the replicated prefix of
// key's preference list (spec.md §4.5 step 1-2).
func (d *DetectingStore) isLocal(key []byte) bool {
	owners := d.strategy.Route(key)
	idx := routing.IndexOf(owners, d.localNode.ID)
	return idx >= 0 && idx < d.replicationFactor
}

func (d *DetectingStore) Name() string { return d.inner.Name() }

func (d *DetectingStore) Get(key []byte) ([]versioning.Versioned[[]byte], error) {
	return d.inner.Get(key)
}

func (d *DetectingStore) GetAll(keys [][]byte) (map[string][]versioning.Versioned[[]byte], error) {
	return d.inner.GetAll(keys)
}

// Put forwards to the inner store when localNode owns key; otherwise it
// quarantines the write as a Slop record and never touches the inner store
// (spec.md §4.5's invariant: a subsequent Get on this node must not see it).
func (d *DetectingStore) Put(key []byte, value versioning.Versioned[[]byte]) error {
	if d.isLocal(key) {
		return d.inner.Put(key, value)
	}

	s := NewSlop(d.Name(), OpPut, key, value.Value, d.localNode.ID, int64(value.Version.Timestamp))
	slopKey := s.MakeKey()
	return d.slopStore.Put(slopKey, versioning.NewVersioned(d.encodeSlop(s), value.Version))
}

// Delete forwards to the inner store when localNode owns key; otherwise it
// quarantines a DELETE Slop and returns false, matching the Java source's
// "return false" on the quarantine path.
func (d *DetectingStore) Delete(key []byte, version versioning.VectorClock) (bool, error) {
	if d.isLocal(key) {
		return d.inner.Delete(key, version)
	}

	s := NewSlop(d.Name(), OpDelete, key, nil, d.localNode.ID, int64(version.Timestamp))
	slopKey := s.MakeKey()
	if err := d.slopStore.Put(slopKey, versioning.NewVersioned(d.encodeSlop(s), version)); err != nil {
		return false, err
	}
	return false, nil
}

func (d *DetectingStore) Entries() (store.EntryIterator, error) {
	return d.inner.Entries()
}

func (d *DetectingStore) Close() error { return d.inner.Close() }
