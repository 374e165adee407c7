package admin

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/versioning"
)

func TestServer_Close_StopsEveryServedListener(t *testing.T) {
	metadataStore := metadata.New(metadata.NewMemoryInnerStore())
	require.NoError(t, metadataStore.Put(metadata.ClusterKey,
		versioning.NewVersioned(cluster.ClusterMapper{}.WriteCluster(cluster.Cluster{}), versioning.New().Increment(0))))

	srv := NewServer(0, metadataStore, nil, nil, nil, nil, zap.NewNop())

	lnA, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	lnB, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() { doneA <- srv.Serve(lnA) }()
	go func() { doneB <- srv.Serve(lnB) }()

	// give both goroutines a moment to register their listener
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, srv.Close())

	select {
	case err := <-doneA:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve(lnA) did not return after Close")
	}
	select {
	case err := <-doneB:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve(lnB) did not return after Close")
	}
}
