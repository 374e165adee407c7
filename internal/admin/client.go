package admin

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/versioning"
	"go.uber.org/zap"
)

// clockSizeIn reads the leading u16 entryCount off a vectorClockSerialized
// ‖ value blob and returns the clock's exact wire length (spec.md §3).
func clockSizeIn(blob []byte) int {
	count := int(binary.BigEndian.Uint16(blob))
	return 2 + count*10 + 8
}

// Client is the admin protocol client (C7), ported method-for-method from
// AdminClient.java: every call checks out a connection from a shared
// SocketPool, frames the request, reads the response prelude, and checks
// the connection back in — or discards it on I/O failure.
type Client struct {
	currentNode cluster.Node
	metadata    *metadata.Store
	pool        *SocketPool
	logger      *zap.Logger
}

// NewClient builds an admin client bound to currentNode's identity, a
// read-only handle on the shared metadata store, and a connection pool.
func NewClient(currentNode cluster.Node, metadataStore *metadata.Store, pool *SocketPool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{currentNode: currentNode, metadata: metadataStore, pool: pool, logger: logger}
}

func adminAddr(n cluster.Node) string {
	return fmt.Sprintf("%s:%d", n.Host, n.AdminPort)
}

// call checks out a connection to addr, runs fn against it, and checks the
// connection back in on success or discards it on any I/O error — the
// same checkout/try/checkin-or-discard shape every AdminClient.java method
// repeats.
func (c *Client) call(addr string, fn func(conn net.Conn) error) error {
	conn, err := c.pool.Checkout(addr)
	if err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		c.pool.Discard(addr, conn)
		return err
	}
	c.pool.Checkin(addr, conn)
	return nil
}

// UpdateClusterMetaData pushes cluster to targetNodeId under metadataKey
// (cluster.xml or old.cluster.xml).
func (c *Client) UpdateClusterMetaData(targetNodeID uint16, clusterState cluster.Cluster, metadataKey string) error {
	node, ok := clusterState.NodeByID(targetNodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, targetNodeID)
	}
	addr := adminAddr(node)
	doc := cluster.ClusterMapper{}.WriteCluster(clusterState)

	return c.call(addr, func(conn net.Conn) error {
		if _, err := conn.Write([]byte{byte(OpUpdateClusterMetadata)}); err != nil {
			return err
		}
		if err := WriteUTF(conn, metadataKey); err != nil {
			return err
		}
		if err := WriteUTF(conn, doc); err != nil {
			return err
		}
		return ReadPrelude(conn)
	})
}

// UpdateStoresMetaData pushes storesList to targetNodeID's stores.xml.
func (c *Client) UpdateStoresMetaData(targetNodeID uint16, storesList []cluster.StoreDefinition) error {
	clusterState, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}
	node, ok := clusterState.NodeByID(targetNodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, targetNodeID)
	}
	addr := adminAddr(node)
	doc := cluster.StoreDefinitionsMapper{}.WriteStoreList(storesList)

	return c.call(addr, func(conn net.Conn) error {
		if _, err := conn.Write([]byte{byte(OpUpdateStoresMetadata)}); err != nil {
			return err
		}
		if err := WriteUTF(conn, doc); err != nil {
			return err
		}
		return ReadPrelude(conn)
	})
}

// RestartServices asks nodeId to reload its stores after a metadata change.
func (c *Client) RestartServices(nodeID uint16) error {
	clusterState, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}
	node, ok := clusterState.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, nodeID)
	}
	addr := adminAddr(node)
	return c.call(addr, func(conn net.Conn) error {
		if _, err := conn.Write([]byte{byte(OpRestartServices)}); err != nil {
			return err
		}
		return ReadPrelude(conn)
	})
}

// SetRebalancingStateAndRestart flips nodeId's server.state to
// REBALANCING_STATE, then restarts its services.
func (c *Client) SetRebalancingStateAndRestart(nodeID uint16) error {
	clusterState, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}
	node, ok := clusterState.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, nodeID)
	}
	addr := adminAddr(node)
	if err := c.call(addr, func(conn net.Conn) error {
		if _, err := conn.Write([]byte{byte(OpRebalancingServerMode)}); err != nil {
			return err
		}
		return ReadPrelude(conn)
	}); err != nil {
		return err
	}
	return c.RestartServices(nodeID)
}

// SetNormalStateAndRestart flips nodeId's server.state to NORMAL_STATE,
// then restarts its services.
func (c *Client) SetNormalStateAndRestart(nodeID uint16) error {
	clusterState, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}
	node, ok := clusterState.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, nodeID)
	}
	addr := adminAddr(node)
	if err := c.call(addr, func(conn net.Conn) error {
		if _, err := conn.Write([]byte{byte(OpNormalServerMode)}); err != nil {
			return err
		}
		return ReadPrelude(conn)
	}); err != nil {
		return err
	}
	return c.RestartServices(nodeID)
}

// RedirectGet asks redirectedNodeID for every version of key in storeName,
// used when a client's request lands on a node mid-rebalance that no
// longer (or not yet) owns the key locally.
func (c *Client) RedirectGet(redirectedNodeID uint16, storeName string, key []byte) ([]versioning.Versioned[[]byte], error) {
	clusterState, err := c.metadata.GetCluster()
	if err != nil {
		return nil, err
	}
	node, ok := clusterState.NodeByID(redirectedNodeID)
	if !ok {
		return nil, fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, redirectedNodeID)
	}
	addr := adminAddr(node)

	var results []versioning.Versioned[[]byte]
	err = c.call(addr, func(conn net.Conn) error {
		if _, err := conn.Write([]byte{byte(OpRedirectGet)}); err != nil {
			return err
		}
		if err := WriteUTF(conn, storeName); err != nil {
			return err
		}
		if err := WriteInt32(conn, int32(len(key))); err != nil {
			return err
		}
		if _, err := conn.Write(key); err != nil {
			return err
		}

		r := conn
		if err := ReadPrelude(r); err != nil {
			return err
		}
		n, err := ReadInt32(r)
		if err != nil {
			return err
		}
		results = make([]versioning.Versioned[[]byte], 0, n)
		for i := int32(0); i < n; i++ {
			total, err := ReadInt32(r)
			if err != nil {
				return err
			}
			blob := make([]byte, total)
			if _, err := io.ReadFull(r, blob); err != nil {
				return err
			}
			clock, err := versioning.FromBytes(blob[:clockSizeIn(blob)])
			if err != nil {
				return err
			}
			value := blob[clock.SizeInBytes():]
			results = append(results, versioning.NewVersioned(append([]byte(nil), value...), clock))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PipeGetAndPutStreams streams stealList's partitions of storeName from
// fromNodeID directly to toNodeID without buffering them through this
// process: two connections are checked out and bytes are copied frame by
// frame from the get stream into the put stream.
func (c *Client) PipeGetAndPutStreams(fromNodeID, toNodeID uint16, storeName string, stealList []int) error {
	clusterState, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}
	fromNode, ok := clusterState.NodeByID(fromNodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, fromNodeID)
	}
	toNode, ok := clusterState.NodeByID(toNodeID)
	if !ok {
		return fmt.Errorf("%w: node %d not in cluster", metadata.ErrStoreNotFound, toNodeID)
	}
	getAddr := adminAddr(fromNode)
	putAddr := adminAddr(toNode)

	getConn, err := c.pool.Checkout(getAddr)
	if err != nil {
		return err
	}
	putConn, err := c.pool.Checkout(putAddr)
	if err != nil {
		c.pool.Discard(getAddr, getConn)
		return err
	}

	if err := c.pipe(getConn, putConn, storeName, stealList); err != nil {
		c.pool.Discard(getAddr, getConn)
		c.pool.Discard(putAddr, putConn)
		return err
	}
	c.pool.Checkin(getAddr, getConn)
	c.pool.Checkin(putAddr, putConn)
	return nil
}

func (c *Client) pipe(getConn, putConn net.Conn, storeName string, stealList []int) error {
	if _, err := getConn.Write([]byte{byte(OpGetPartitionAsStream)}); err != nil {
		return err
	}
	if err := WriteUTF(getConn, storeName); err != nil {
		return err
	}
	if err := WriteInt32(getConn, int32(len(stealList))); err != nil {
		return err
	}
	for _, p := range stealList {
		if err := WriteInt32(getConn, int32(p)); err != nil {
			return err
		}
	}

	if _, err := putConn.Write([]byte{byte(OpPutPartitionAsStream)}); err != nil {
		return err
	}
	if err := WriteUTF(putConn, storeName); err != nil {
		return err
	}

	getReader := getConn
	if err := ReadPrelude(getReader); err != nil {
		return err
	}

	for {
		entry, ok, err := ReadStreamEntry(getReader)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := WriteStreamEntry(putConn, entry); err != nil {
			return err
		}
	}
	if err := WriteStreamEnd(putConn); err != nil {
		return err
	}

	putReader := putConn
	return ReadPrelude(putReader)
}
