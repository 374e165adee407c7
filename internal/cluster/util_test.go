package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTwoNode() Cluster {
	return Cluster{
		Name: "c",
		Nodes: []Node{
			{ID: 0, PartitionIDs: []int{0, 1}, Status: Available},
			{ID: 1, PartitionIDs: []int{2, 3}, Status: Available},
		},
	}
}

func TestStealList_Intersection(t *testing.T) {
	old := baseTwoNode()
	updated := UpdateClusterStealPartitions(old, Node{ID: 1})

	n0, ok := updated.NodeByID(0)
	require.True(t, ok)
	assert.Equal(t, []int{1}, n0.PartitionIDs)
	n1, ok := updated.NodeByID(1)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{0, 2, 3}, n1.PartitionIDs)

	stealList := StealList(old, updated, 0, 1)
	require.Len(t, stealList, 1)
	assert.Equal(t, []int{0}, stealList)
}

func TestTempCluster_DoesNotAliasStealList(t *testing.T) {
	old := baseTwoNode()
	stealList := []int{0}

	tmp := TempCluster(old, 0, 1, stealList)
	stealList[0] = 999 // mutate caller's slice after building tempCluster

	n1, ok := tmp.NodeByID(1)
	assert.True(t, ok)
	assert.Contains(t, n1.PartitionIDs, 0)
	assert.NotContains(t, n1.PartitionIDs, 999)

	n0, ok := tmp.NodeByID(0)
	assert.True(t, ok)
	assert.NotContains(t, n0.PartitionIDs, 0)
}

func TestUpdateClusterDeleteNode_RedistributesPartitions(t *testing.T) {
	old := baseTwoNode()
	updated := UpdateClusterDeleteNode(old, 1)

	_, stillPresent := updated.NodeByID(1)
	assert.False(t, stillPresent)

	n0, ok := updated.NodeByID(0)
	assert.True(t, ok)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, n0.PartitionIDs)
}

func TestUnionNodeIDs_IncludesDepartingNode(t *testing.T) {
	old := baseTwoNode()
	updated := UpdateClusterDeleteNode(old, 1)

	union := UnionNodeIDs(old, updated)
	assert.ElementsMatch(t, []uint16{0, 1}, union)
}
