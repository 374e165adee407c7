package membership

import (
	"testing"

	"github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairdb/ring/internal/cluster"
)

func newTestTracker(t *testing.T, name string) *Tracker {
	t.Helper()
	tracker, err := NewTracker(Config{NodeName: name, BindPort: 0}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Shutdown() })
	return tracker
}

func TestTracker_SelfIsAvailableAfterCreate(t *testing.T) {
	tracker := newTestTracker(t, "0")
	assert.True(t, tracker.IsAvailable("0"))
}

func TestTracker_UnknownNodeIsUnavailable(t *testing.T) {
	tracker := newTestTracker(t, "0")
	assert.False(t, tracker.IsAvailable("1"))
}

func TestTracker_ApplyTo_MarksStatusFromAvailability(t *testing.T) {
	tracker := newTestTracker(t, "0")
	c := cluster.Cluster{Name: "test", Nodes: []cluster.Node{
		{ID: 0, PartitionIDs: []int{0}},
		{ID: 1, PartitionIDs: []int{1}},
	}}

	applied := tracker.ApplyTo(c)
	require.Len(t, applied.Nodes, 2)
	assert.Equal(t, cluster.Available, applied.Nodes[0].Status)
	assert.Equal(t, cluster.Unavailable, applied.Nodes[1].Status)

	// original cluster must be untouched (ApplyTo returns a copy)
	assert.Equal(t, cluster.NodeStatus(""), c.Nodes[0].Status)
}

func TestTracker_EventDelegate_JoinAndLeaveFlipAvailability(t *testing.T) {
	tracker := newTestTracker(t, "0")
	delegate := &eventDelegate{tracker: tracker}

	delegate.NotifyJoin(&memberlist.Node{Name: "1"})
	assert.True(t, tracker.IsAvailable("1"))

	delegate.NotifyLeave(&memberlist.Node{Name: "1"})
	assert.False(t, tracker.IsAvailable("1"))
}
