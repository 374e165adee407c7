package slop

import (
	"testing"

	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/routing"
	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodeOnePartitionEach() cluster.Cluster {
	return cluster.Cluster{
		Name: "test",
		Nodes: []cluster.Node{
			{ID: 0, Host: "n0", PartitionIDs: []int{0}, Status: cluster.Available},
			{ID: 1, Host: "n1", PartitionIDs: []int{1}, Status: cluster.Available},
		},
	}
}

func noopEncode(s Slop) []byte { return s.Key }

// findMisroutedKey brute-forces a byte key that routes to partition 1
// (owned by node 1) so a put from node 0 with rf=1 is guaranteed to divert.
func findMisroutedKey(t *testing.T, strat *routing.ConsistentStrategy) []byte {
	t.Helper()
	for i := 0; i < 10000; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		parts := strat.PartitionList(key)
		if len(parts) == 1 && parts[0] == 1 {
			return key
		}
	}
	t.Fatal("could not find a key routing to partition 1")
	return nil
}

func TestDetectingStore_LocalWritePassesThrough(t *testing.T) {
	c := twoNodeOnePartitionEach()
	strat := routing.NewConsistentStrategy(c, 1)
	inner := store.NewMemoryStore("s")
	slopStore := store.NewMemoryStore("slop")
	node0, _ := c.NodeByID(0)

	ds := New(inner, slopStore, 1, node0, strat, noopEncode)

	// Find a key that routes locally to node 0 (partition 0).
	var localKey []byte
	for i := 0; i < 10000; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		parts := strat.PartitionList(key)
		if len(parts) == 1 && parts[0] == 0 {
			localKey = key
			break
		}
	}
	require.NotNil(t, localKey)

	clock := versioning.New().Increment(0)
	require.NoError(t, ds.Put(localKey, versioning.NewVersioned([]byte("v1"), clock)))

	got, err := inner.Get(localKey)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("v1"), got[0].Value)
}

func TestDetectingStore_MisroutedPutDivertsToSlop(t *testing.T) {
	c := twoNodeOnePartitionEach()
	strat := routing.NewConsistentStrategy(c, 1)
	inner := store.NewMemoryStore("s")
	slopStore := store.NewMemoryStore("slop")
	node0, _ := c.NodeByID(0)

	ds := New(inner, slopStore, 1, node0, strat, noopEncode)

	key := findMisroutedKey(t, strat)
	clock := versioning.New().Increment(0)
	require.NoError(t, ds.Put(key, versioning.NewVersioned([]byte("v1"), clock)))

	got, err := inner.Get(key)
	require.NoError(t, err)
	assert.Empty(t, got, "misrouted put must never reach the inner store")

	s := NewSlop("s", OpPut, key, []byte("v1"), 0, 0)
	slopGot, err := slopStore.Get(s.MakeKey())
	require.NoError(t, err)
	require.Len(t, slopGot, 1)
}

func TestDetectingStore_MisroutedDeleteReturnsFalse(t *testing.T) {
	c := twoNodeOnePartitionEach()
	strat := routing.NewConsistentStrategy(c, 1)
	inner := store.NewMemoryStore("s")
	slopStore := store.NewMemoryStore("slop")
	node0, _ := c.NodeByID(0)

	ds := New(inner, slopStore, 1, node0, strat, noopEncode)

	key := findMisroutedKey(t, strat)
	clock := versioning.New().Increment(0)
	removed, err := ds.Delete(key, clock)
	require.NoError(t, err)
	assert.False(t, removed)

	s := NewSlop("s", OpDelete, key, nil, 0, 0)
	slopGot, err := slopStore.Get(s.MakeKey())
	require.NoError(t, err)
	require.Len(t, slopGot, 1)
}

func TestSlop_MakeKey_DeterministicAndDistinct(t *testing.T) {
	a := NewSlop("s", OpPut, []byte("k"), []byte("v"), 0, 0)
	b := NewSlop("s", OpPut, []byte("k"), []byte("v2"), 0, 0)
	assert.Equal(t, a.MakeKey(), b.MakeKey(), "key derivation ignores value, so re-insertion is idempotent")

	c := NewSlop("s", OpDelete, []byte("k"), nil, 0, 0)
	assert.NotEqual(t, a.MakeKey(), c.MakeKey(), "distinct ops must not collide")
}
