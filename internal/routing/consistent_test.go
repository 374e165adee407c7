package routing

import (
	"fmt"
	"testing"

	"github.com/pairdb/ring/internal/cluster"
	"github.com/stretchr/testify/assert"
)

func fourNodeCluster() cluster.Cluster {
	return cluster.Cluster{
		Name: "c",
		Nodes: []cluster.Node{
			{ID: 0, PartitionIDs: []int{0}, Status: cluster.Available},
			{ID: 1, PartitionIDs: []int{1}, Status: cluster.Available},
			{ID: 2, PartitionIDs: []int{2}, Status: cluster.Available},
			{ID: 3, PartitionIDs: []int{3}, Status: cluster.Available},
		},
	}
}

func TestConsistentStrategy_RouteLength(t *testing.T) {
	c := fourNodeCluster()
	s := NewConsistentStrategy(c, 2)

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		nodes := s.Route(key)
		assert.Len(t, nodes, 2)

		seen := map[uint16]bool{}
		for _, n := range nodes {
			assert.False(t, seen[n.ID], "duplicate node in preference list")
			seen[n.ID] = true
		}
	}
}

func TestConsistentStrategy_ReplicationFactorClampedToNodeCount(t *testing.T) {
	c := fourNodeCluster()
	s := NewConsistentStrategy(c, 10)

	nodes := s.Route([]byte("any-key"))
	assert.Len(t, nodes, 4)
}

func TestConsistentStrategy_DeterministicForSameClusterAndKey(t *testing.T) {
	c := fourNodeCluster()
	s1 := NewConsistentStrategy(c, 2)
	s2 := NewConsistentStrategy(c, 2)

	key := []byte("stable-key")
	assert.Equal(t, s1.Route(key), s2.Route(key))
	assert.Equal(t, s1.PartitionList(key), s2.PartitionList(key))
}

func TestIndexOf(t *testing.T) {
	c := fourNodeCluster()
	s := NewConsistentStrategy(c, 2)
	prefList := s.Route([]byte("k"))

	assert.GreaterOrEqual(t, IndexOf(prefList, prefList[0].ID), 0)
	assert.Equal(t, -1, IndexOf(prefList, 999))
}
