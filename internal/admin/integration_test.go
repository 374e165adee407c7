package admin

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/routing"
	"github.com/pairdb/ring/internal/slop"
	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
)

// startTestServer wires a single-node, single-store server with rf=1 (so
// every key is local) and returns its listener address and a closer.
func startTestServer(t *testing.T) (addr string, metadataStore *metadata.Store, close func()) {
	t.Helper()

	inner := metadata.NewMemoryInnerStore()
	metadataStore = metadata.New(inner)

	node := cluster.Node{ID: 0, Host: "127.0.0.1", PartitionIDs: []int{0}}
	c := cluster.Cluster{Name: "test", Nodes: []cluster.Node{node}}
	require.NoError(t, metadataStore.Put(metadata.ClusterKey,
		versioning.NewVersioned(cluster.ClusterMapper{}.WriteCluster(c), versioning.New().Increment(0))))

	strategy := routing.NewConsistentStrategy(c, 1)
	engine := store.NewMemoryStore("s")
	slopStore := store.NewMemoryStore(slop.StoreName)
	detecting := slop.New(engine, slopStore, 1, node, strategy, slop.EncodeSlop)

	routed := map[string]RoutedStore{
		"s": {Inner: engine, Detecting: detecting, Strategy: strategy},
	}

	srv := NewServer(0, metadataStore, routed, slopStore, slop.EncodeSlop, func() error { return nil }, zap.NewNop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)

	return ln.Addr().String(), metadataStore, func() { srv.Close() }
}

func TestServer_ClientPutGetDelete_RoundTrip(t *testing.T) {
	addr, _, closeSrv := startTestServer(t)
	defer closeSrv()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	clock := versioning.New().Increment(0)
	key := []byte("hello")
	value := []byte("world")

	// CLIENT_PUT
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Write([]byte{byte(OpClientPut)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(conn, "s"))
	require.NoError(t, WriteBytes(conn, key))
	require.NoError(t, WriteBytes(conn, clock.ToBytes()))
	require.NoError(t, WriteBytes(conn, value))
	require.NoError(t, ReadPrelude(conn))

	// CLIENT_GET
	_, err = conn.Write([]byte{byte(OpClientGet)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(conn, "s"))
	require.NoError(t, WriteBytes(conn, key))
	require.NoError(t, ReadPrelude(conn))
	n, err := ReadInt32(conn)
	require.NoError(t, err)
	require.Equal(t, int32(1), n)
	total, err := ReadInt32(conn)
	require.NoError(t, err)
	blob := make([]byte, total)
	_, err = io.ReadFull(conn, blob)
	require.NoError(t, err)
	gotClock, err := versioning.FromBytes(blob[:clock.SizeInBytes()])
	require.NoError(t, err)
	assert.Equal(t, versioning.Equal, gotClock.Compare(clock))
	assert.Equal(t, value, blob[clock.SizeInBytes():])

	// CLIENT_DELETE
	_, err = conn.Write([]byte{byte(OpClientDelete)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(conn, "s"))
	require.NoError(t, WriteBytes(conn, key))
	require.NoError(t, WriteBytes(conn, clock.Increment(0).ToBytes()))
	require.NoError(t, ReadPrelude(conn))
	flag := make([]byte, 1)
	_, err = io.ReadFull(conn, flag)
	require.NoError(t, err)
	assert.Equal(t, byte(1), flag[0])
}

func TestServer_UpdateClusterMetadata_UnknownKeyRejected(t *testing.T) {
	addr, _, closeSrv := startTestServer(t)
	defer closeSrv()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = conn.Write([]byte{byte(OpUpdateClusterMetadata)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(conn, "not.a.real.key"))
	require.NoError(t, WriteUTF(conn, "<cluster/>"))
	err = ReadPrelude(conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrUnknownMetadataKey)
}

func TestServer_ClientOpsRejectedDuringRebalancing(t *testing.T) {
	addr, metadataStore, closeSrv := startTestServer(t)
	defer closeSrv()

	require.NoError(t, metadataStore.SetServerState(metadata.RebalancingState, versioning.New().Increment(0)))

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = conn.Write([]byte{byte(OpClientGet)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(conn, "s"))
	require.NoError(t, WriteBytes(conn, []byte("k")))
	err = ReadPrelude(conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestServer_GetPutPartitionAsStream_SelfTransferIsNoop(t *testing.T) {
	addr, _, closeSrv := startTestServer(t)
	defer closeSrv()

	seedConn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer seedConn.Close()
	require.NoError(t, seedConn.SetDeadline(time.Now().Add(2*time.Second)))

	clock := versioning.New().Increment(0)
	_, err = seedConn.Write([]byte{byte(OpClientPut)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(seedConn, "s"))
	require.NoError(t, WriteBytes(seedConn, []byte("streamed-key")))
	require.NoError(t, WriteBytes(seedConn, clock.ToBytes()))
	require.NoError(t, WriteBytes(seedConn, []byte("streamed-value")))
	require.NoError(t, ReadPrelude(seedConn))

	getConn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer getConn.Close()
	require.NoError(t, getConn.SetDeadline(time.Now().Add(2*time.Second)))
	putConn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer putConn.Close()
	require.NoError(t, putConn.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = getConn.Write([]byte{byte(OpGetPartitionAsStream)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(getConn, "s"))
	require.NoError(t, WriteInt32(getConn, 1))
	require.NoError(t, WriteInt32(getConn, 0))
	require.NoError(t, ReadPrelude(getConn))

	_, err = putConn.Write([]byte{byte(OpPutPartitionAsStream)})
	require.NoError(t, err)
	require.NoError(t, WriteUTF(putConn, "s"))

	count := 0
	for {
		entry, ok, err := ReadStreamEntry(getConn)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
		require.NoError(t, WriteStreamEntry(putConn, entry))
	}
	require.NoError(t, WriteStreamEnd(putConn))
	require.NoError(t, ReadPrelude(putConn))
	assert.Equal(t, 1, count)
}
