package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTransferNotRecorded names the never-recorded case. TransferCache.Completed
// does not return it: a key that was never recorded is reported as
// (false, nil), since Record only ever marks completion.
var ErrTransferNotRecorded = errors.New("admin: transfer not recorded")

// TransferKey identifies one partition's hop between two nodes, the dedupe
// unit spec.md §9's retry scenario needs: a retried stealPartitionsFromCluster
// call after a coordinator crash must not re-stream partitions an earlier
// attempt already finished. Deliberately has no run id — a retry after a
// crash is a brand new run, and the whole point is that it recognizes work
// a *previous* run completed.
type TransferKey struct {
	DonorID     uint16
	RecipientID uint16
	StoreName   string
	PartitionID int
}

func (k TransferKey) redisKey() string {
	return fmt.Sprintf("rebalance:%d:%d:%s:%d", k.DonorID, k.RecipientID, k.StoreName, k.PartitionID)
}

// TransferCache is an optional Redis-backed dedupe cache (C13), grounded on
// coordinator/internal/store/redis_idempotency_store.go's client
// construction and ping-on-connect pattern. The rebalance choreography
// consults it before re-issuing PUT_PARTITION_AS_STREAM for a partition it
// already successfully piped.
type TransferCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTransferCache connects to addr and verifies reachability before
// returning, matching the teacher's connect-then-Ping shape.
func NewTransferCache(addr, password string, db int, ttl time.Duration) (*TransferCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("admin: connect to transfer cache: %w", err)
	}
	return &TransferCache{client: client, ttl: ttl}, nil
}

// Completed reports whether key was already recorded as finished.
func (c *TransferCache) Completed(ctx context.Context, key TransferKey) (bool, error) {
	_, err := c.client.Get(ctx, key.redisKey()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record marks key as finished, expiring after ttl so a long-abandoned
// rebalance run doesn't pin memory forever.
func (c *TransferCache) Record(ctx context.Context, key TransferKey) error {
	return c.client.Set(ctx, key.redisKey(), "1", c.ttl).Err()
}

func (c *TransferCache) Close() error {
	return c.client.Close()
}
