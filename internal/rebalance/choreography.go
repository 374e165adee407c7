// Package rebalance drives the two rebalance choreographies (C7), ported
// from AdminClient.java's stealPartitionsFromCluster and
// returnPartitionsToCluster, with spec.md §9's fixes applied: tempCluster
// propagates to the union of old and new node sets, and steal lists are
// never aliased between donor and recipient.
package rebalance

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairdb/ring/internal/admin"
	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/metadata"
)

// Choreographer runs rebalance operations against the local node's
// metadata store and a shared admin client.
type Choreographer struct {
	currentNode cluster.Node
	metadata    *metadata.Store
	adminClient *admin.Client
	transfers   *admin.TransferCache // optional; nil disables dedupe
	logger      *zap.Logger
}

// New builds a Choreographer. transfers may be nil to disable the Redis
// dedupe cache (C13) entirely, falling back to always re-streaming.
func New(currentNode cluster.Node, metadataStore *metadata.Store, adminClient *admin.Client, transfers *admin.TransferCache, logger *zap.Logger) *Choreographer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Choreographer{currentNode: currentNode, metadata: metadataStore, adminClient: adminClient, transfers: transfers, logger: logger}
}

// StealPartitionsFromCluster rebalances the cluster by having currentNode
// (T) steal partitions from every other node (D_i), per spec.md §4.7.
func (c *Choreographer) StealPartitionsFromCluster(ctx context.Context, storeName string) error {
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID), zap.String("store", storeName), zap.Uint16("node", c.currentNode.ID))
	logger.Info("stealPartitionsFromCluster starting")

	currentCluster, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}

	if err := c.adminClient.UpdateClusterMetaData(c.currentNode.ID, currentCluster, metadata.OldClusterKey); err != nil {
		return err
	}
	if err := c.adminClient.SetRebalancingStateAndRestart(c.currentNode.ID); err != nil {
		return err
	}

	updatedCluster := cluster.UpdateClusterStealPartitions(currentCluster, c.currentNode)
	unionNodes := cluster.UnionNodeIDs(currentCluster, updatedCluster)

	for _, donor := range currentCluster.Nodes {
		if donor.ID == c.currentNode.ID {
			continue
		}

		stealList := cluster.StealList(currentCluster, updatedCluster, donor.ID, c.currentNode.ID)
		if len(stealList) == 0 {
			continue
		}
		tempCluster := cluster.TempCluster(currentCluster, donor.ID, c.currentNode.ID, stealList)

		for _, nodeID := range unionNodes {
			if err := c.adminClient.UpdateClusterMetaData(nodeID, tempCluster, metadata.ClusterKey); err != nil {
				return err
			}
		}

		if err := c.pipeWithDedupe(ctx, runID, storeName, donor.ID, c.currentNode.ID, stealList); err != nil {
			logger.Error("partition transfer failed, aborting on first failing donor", zap.Uint16("donor", donor.ID), zap.Error(err))
			return err
		}
	}

	if err := c.adminClient.SetNormalStateAndRestart(c.currentNode.ID); err != nil {
		return err
	}
	logger.Info("stealPartitionsFromCluster completed")
	return nil
}

// ReturnPartitionsToCluster rebalances the cluster by having currentNode
// leave, returning its partitions to the remaining nodes, per spec.md §4.7.
func (c *Choreographer) ReturnPartitionsToCluster(ctx context.Context, storeName string) error {
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID), zap.String("store", storeName), zap.Uint16("node", c.currentNode.ID))
	logger.Info("returnPartitionsToCluster starting")

	currentCluster, err := c.metadata.GetCluster()
	if err != nil {
		return err
	}
	updatedCluster := cluster.UpdateClusterDeleteNode(currentCluster, c.currentNode.ID)
	unionNodes := cluster.UnionNodeIDs(currentCluster, updatedCluster)

	for _, node := range updatedCluster.Nodes {
		if node.ID == c.currentNode.ID {
			continue
		}

		if err := c.adminClient.UpdateClusterMetaData(node.ID, currentCluster, metadata.OldClusterKey); err != nil {
			return err
		}

		stealList := cluster.StealList(currentCluster, updatedCluster, c.currentNode.ID, node.ID)
		tempCluster := cluster.TempCluster(currentCluster, c.currentNode.ID, node.ID, stealList)

		for _, nodeID := range unionNodes {
			if err := c.adminClient.UpdateClusterMetaData(nodeID, tempCluster, metadata.ClusterKey); err != nil {
				return err
			}
		}

		if err := c.adminClient.SetRebalancingStateAndRestart(node.ID); err != nil {
			return err
		}

		if err := c.pipeWithDedupe(ctx, runID, storeName, c.currentNode.ID, node.ID, stealList); err != nil {
			logger.Error("partition transfer failed, aborting on first failing recipient", zap.Uint16("recipient", node.ID), zap.Error(err))
			return err
		}

		if err := c.adminClient.SetNormalStateAndRestart(node.ID); err != nil {
			return err
		}
	}
	logger.Info("returnPartitionsToCluster completed")
	return nil
}

// pipeWithDedupe filters stealList down to partitions not already recorded
// complete in the transfer cache (if one is configured), pipes only those,
// and records every partition in the original list as complete on success
// — so a retried choreography call after a crash mid-run skips partitions
// an earlier attempt already finished (spec.md §9's retry scenario, C13).
// runID is carried only for log correlation across the calls this one
// choreography run makes; the dedupe key itself is run-independent
// (donor, recipient, store, partition) so a later run with a fresh runID
// still recognizes work a prior run completed.
func (c *Choreographer) pipeWithDedupe(ctx context.Context, runID, storeName string, fromNodeID, toNodeID uint16, stealList []int) error {
	logger := c.logger.With(zap.String("run_id", runID))
	toPipe := stealList
	if c.transfers != nil {
		toPipe = make([]int, 0, len(stealList))
		for _, p := range stealList {
			done, err := c.transfers.Completed(ctx, admin.TransferKey{DonorID: fromNodeID, RecipientID: toNodeID, StoreName: storeName, PartitionID: p})
			if err != nil {
				logger.Error("transfer cache lookup failed", zap.Int("partition", p), zap.Error(err))
				return err
			}
			if !done {
				toPipe = append(toPipe, p)
			} else {
				logger.Info("partition already transferred, skipping", zap.Int("partition", p))
			}
		}
	}

	if len(toPipe) > 0 {
		if err := c.adminClient.PipeGetAndPutStreams(fromNodeID, toNodeID, storeName, toPipe); err != nil {
			return err
		}
	}

	if c.transfers == nil {
		return nil
	}
	for _, p := range stealList {
		if err := c.transfers.Record(ctx, admin.TransferKey{DonorID: fromNodeID, RecipientID: toNodeID, StoreName: storeName, PartitionID: p}); err != nil {
			logger.Error("transfer cache record failed", zap.Int("partition", p), zap.Error(err))
			return err
		}
	}
	return nil
}
