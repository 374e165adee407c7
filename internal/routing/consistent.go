// Package routing implements the deterministic key → preference-list
// mapping (C2) that the slop-detecting store and admin client consult for
// ownership decisions.
package routing

import (
	"hash/fnv"

	"github.com/pairdb/ring/internal/cluster"
)

// Strategy maps keys to ordered preference lists of owning nodes.
// Grounded on voldemort.routing.RoutingStrategy, named in
// SlopDetectingStore.java's routeRequest call.
type Strategy interface {
	// Route returns the ordered preference list for key, of length
	// min(replicationFactor, len(nodes)).
	Route(key []byte) []cluster.Node
	// PartitionList returns the ring walk as partition ids rather than
	// nodes, used by slop detection and the bulk stream engine (C8) to
	// find a key's primary partition.
	PartitionList(key []byte) []int
}

// ConsistentStrategy hashes a key to a partition and walks the
// partition→owner ring in order, collecting distinct node ids until
// replicationFactor are gathered. Grounded on
// coordinator/internal/algorithm/consistent_hash.go's ring walk
// (sort.Search + wraparound + distinct-owner collection), simplified to
// spec.md's direct partition→owner map instead of virtual nodes.
type ConsistentStrategy struct {
	cluster           cluster.Cluster
	replicationFactor int
	numPartitions     int
}

// NewConsistentStrategy builds a routing strategy over a fixed cluster
// snapshot. Re-create the strategy when the cluster changes — it is
// intentionally immutable, matching spec.md §4.2's "stable under cluster
// identity" contract.
func NewConsistentStrategy(c cluster.Cluster, replicationFactor int) *ConsistentStrategy {
	return &ConsistentStrategy{
		cluster:           c,
		replicationFactor: replicationFactor,
		numPartitions:     c.NumPartitions(),
	}
}

func (s *ConsistentStrategy) hashPartition(key []byte) int {
	if s.numPartitions == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write(key)
	return int(h.Sum64() % uint64(s.numPartitions))
}

// PartitionList returns every partition id in ring order starting at the
// key's primary partition, collecting as many distinct owning nodes as
// Route would but expressed as partitions instead of nodes.
func (s *ConsistentStrategy) PartitionList(key []byte) []int {
	if s.numPartitions == 0 {
		return nil
	}
	start := s.hashPartition(key)
	rf := s.replicationFactor
	if rf > len(s.cluster.Nodes) {
		rf = len(s.cluster.Nodes)
	}

	seenNodes := map[uint16]struct{}{}
	partitions := make([]int, 0, rf)
	for i := 0; i < s.numPartitions && len(seenNodes) < rf; i++ {
		p := (start + i) % s.numPartitions
		owner, ok := s.cluster.PartitionOwner(p)
		if !ok {
			continue
		}
		if _, seen := seenNodes[owner]; seen {
			continue
		}
		seenNodes[owner] = struct{}{}
		partitions = append(partitions, p)
	}
	return partitions
}

// Route returns the ordered preference list of nodes for key.
func (s *ConsistentStrategy) Route(key []byte) []cluster.Node {
	partitions := s.PartitionList(key)
	nodes := make([]cluster.Node, 0, len(partitions))
	for _, p := range partitions {
		ownerID, ok := s.cluster.PartitionOwner(p)
		if !ok {
			continue
		}
		node, ok := s.cluster.NodeByID(ownerID)
		if !ok {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// IndexOf returns the position of nodeID within key's preference list, or
// -1 if it is not in the list at all. Used by the slop-detecting store's
// ownership check.
func IndexOf(prefList []cluster.Node, nodeID uint16) int {
	for i, n := range prefList {
		if n.ID == nodeID {
			return i
		}
	}
	return -1
}
