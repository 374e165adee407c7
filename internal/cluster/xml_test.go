package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterMapper_RoundTrip(t *testing.T) {
	c := Cluster{
		Name: "test-cluster",
		Nodes: []Node{
			{ID: 0, Host: "n0", HTTPPort: 8080, SocketPort: 6666, AdminPort: 6667, PartitionIDs: []int{0, 1}, Status: Available},
			{ID: 1, Host: "n1", HTTPPort: 8081, SocketPort: 6668, AdminPort: 6669, PartitionIDs: []int{2, 3}, Status: Available},
		},
	}

	mapper := ClusterMapper{}
	doc := mapper.WriteCluster(c)

	parsed, err := mapper.ReadCluster(doc)
	require.NoError(t, err)
	assert.Equal(t, c.Name, parsed.Name)
	require.Len(t, parsed.Nodes, 2)
	assert.Equal(t, c.Nodes[0].PartitionIDs, parsed.Nodes[0].PartitionIDs)
	assert.Equal(t, c.Nodes[1].Host, parsed.Nodes[1].Host)

	// Re-serializing the parsed cluster yields byte-identical output.
	assert.Equal(t, doc, mapper.WriteCluster(parsed))
}

func TestStoreDefinitionsMapper_RoundTrip(t *testing.T) {
	defs := []StoreDefinition{
		{
			Name: "s", Type: "memory", Routing: RoutingServer,
			ReplicationFactor: 2, RequiredReads: 1, PreferredReads: 2,
			RequiredWrites: 1, PreferredWrites: 2,
			KeySerializer: "string", ValueSerializer: "string",
		},
	}
	mapper := StoreDefinitionsMapper{}
	doc := mapper.WriteStoreList(defs)

	parsed, err := mapper.ReadStoreList(doc)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, defs[0], parsed[0])
}

func TestStoreDefinition_Validate(t *testing.T) {
	valid := StoreDefinition{ReplicationFactor: 3, PreferredReads: 2, RequiredReads: 1, PreferredWrites: 2, RequiredWrites: 1}
	assert.NoError(t, valid.Validate(3))

	invalid := StoreDefinition{ReplicationFactor: 1, PreferredReads: 2, RequiredReads: 1, PreferredWrites: 1, RequiredWrites: 1}
	assert.Error(t, invalid.Validate(3))
}
