package cluster

import "sort"

// This file ports voldemort.utils.ClusterUtils, named throughout
// AdminClient.java's stealPartitionsFromCluster/returnPartitionsToCluster,
// with spec.md §9's two fixes applied: TempCluster never aliases the
// caller's steal list, and callers are expected to propagate to the union
// of old and new node sets rather than just the updated one.

// UpdateClusterStealPartitions returns the cluster that results from
// `stealer` taking over exactly one partition: the lowest-numbered
// partition currently owned by whichever other node owns the most
// partitions (ties broken by the node's position in old.Nodes). This
// matches spec.md §8 Scenario 1 ("Steal-one-partition"): two nodes tied at
// two partitions apiece still yield a transfer of partition 0, because the
// call is a request for one additional partition, not a rebalance to an
// even split. It never removes other nodes from the topology, and a
// stealer with no other node to take from is returned unchanged.
func UpdateClusterStealPartitions(old Cluster, stealer Node) Cluster {
	nodes := make([]Node, len(old.Nodes))
	stealerIdx := -1
	for i, n := range old.Nodes {
		nodes[i] = n.Clone()
		if n.ID == stealer.ID {
			stealerIdx = i
		}
	}
	if stealerIdx < 0 {
		nodes = append(nodes, stealer.Clone())
		stealerIdx = len(nodes) - 1
	}

	donor := largestDonor(nodes, stealerIdx)
	if donor >= 0 && len(nodes[donor].PartitionIDs) > 0 {
		sorted := append([]int(nil), nodes[donor].PartitionIDs...)
		sort.Ints(sorted)
		p := sorted[0]
		nodes[donor].PartitionIDs = removePartition(nodes[donor].PartitionIDs, p)
		nodes[stealerIdx].PartitionIDs = append(nodes[stealerIdx].PartitionIDs, p)
	}

	return Cluster{Name: old.Name, Nodes: nodes}
}

func largestDonor(nodes []Node, exclude int) int {
	best := -1
	for i, n := range nodes {
		if i == exclude {
			continue
		}
		if best < 0 || len(n.PartitionIDs) > len(nodes[best].PartitionIDs) {
			best = i
		}
	}
	return best
}

func removePartition(partitions []int, p int) []int {
	out := make([]int, 0, len(partitions))
	for _, existing := range partitions {
		if existing != p {
			out = append(out, existing)
		}
	}
	return out
}

// UpdateClusterDeleteNode returns the cluster with leavingID removed and
// its partitions dealt round-robin across the remaining nodes, in their
// order in old.Nodes starting from the first.
func UpdateClusterDeleteNode(old Cluster, leavingID uint16) Cluster {
	var leaving Node
	remaining := make([]Node, 0, len(old.Nodes))
	for _, n := range old.Nodes {
		if n.ID == leavingID {
			leaving = n.Clone()
			continue
		}
		remaining = append(remaining, n.Clone())
	}
	if len(remaining) == 0 {
		return Cluster{Name: old.Name, Nodes: remaining}
	}
	for i, p := range leaving.PartitionIDs {
		target := i % len(remaining)
		remaining[target].PartitionIDs = append(remaining[target].PartitionIDs, p)
	}
	return Cluster{Name: old.Name, Nodes: remaining}
}

// StealList returns the partitions that move from fromNodeID (in old) to
// toNodeID (in updated): the intersection of old's partitions for
// fromNodeID and updated's partitions for toNodeID. Always returns a fresh
// slice — callers are free to mutate it without aliasing either cluster.
func StealList(old, updated Cluster, fromNodeID, toNodeID uint16) []int {
	fromNode, ok := old.NodeByID(fromNodeID)
	if !ok {
		return nil
	}
	toNode, ok := updated.NodeByID(toNodeID)
	if !ok {
		return nil
	}
	oldSet := make(map[int]struct{}, len(fromNode.PartitionIDs))
	for _, p := range fromNode.PartitionIDs {
		oldSet[p] = struct{}{}
	}
	out := make([]int, 0)
	for _, p := range toNode.PartitionIDs {
		if _, present := oldSet[p]; present {
			out = append(out, p)
		}
	}
	return out
}

// TempCluster builds the atomic-per-donor intermediate cluster used during
// a single steal/return hop: identical to base except fromNode's
// partitions shrink by stealList and toNode's grow by stealList. stealList
// is never mutated or aliased into the result.
func TempCluster(base Cluster, fromNodeID, toNodeID uint16, stealList []int) Cluster {
	steal := append([]int(nil), stealList...)
	stealSet := make(map[int]struct{}, len(steal))
	for _, p := range steal {
		stealSet[p] = struct{}{}
	}

	nodes := make([]Node, len(base.Nodes))
	for i, n := range base.Nodes {
		switch n.ID {
		case fromNodeID:
			kept := make([]int, 0, len(n.PartitionIDs))
			for _, p := range n.PartitionIDs {
				if _, removed := stealSet[p]; !removed {
					kept = append(kept, p)
				}
			}
			nodes[i] = Node{ID: n.ID, Host: n.Host, HTTPPort: n.HTTPPort,
				SocketPort: n.SocketPort, AdminPort: n.AdminPort,
				PartitionIDs: kept, Status: n.Status}
		case toNodeID:
			grown := append(append([]int(nil), n.PartitionIDs...), steal...)
			nodes[i] = Node{ID: n.ID, Host: n.Host, HTTPPort: n.HTTPPort,
				SocketPort: n.SocketPort, AdminPort: n.AdminPort,
				PartitionIDs: grown, Status: n.Status}
		default:
			nodes[i] = n.Clone()
		}
	}
	return Cluster{Name: base.Name, Nodes: nodes}
}

// UnionNodeIDs returns the distinct node ids present in either cluster, in
// order of first appearance (a's nodes, then b's). Used to propagate a
// tempCluster to every node that
// might still be running with the old topology in memory — spec.md §9's
// fix for the original's omission of departing nodes.
func UnionNodeIDs(a, b Cluster) []uint16 {
	seen := map[uint16]struct{}{}
	var out []uint16
	for _, n := range a.Nodes {
		if _, ok := seen[n.ID]; !ok {
			seen[n.ID] = struct{}{}
			out = append(out, n.ID)
		}
	}
	for _, n := range b.Nodes {
		if _, ok := seen[n.ID]; !ok {
			seen[n.ID] = struct{}{}
			out = append(out, n.ID)
		}
	}
	return out
}
