package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferKey_RedisKey_RunIndependent(t *testing.T) {
	a := TransferKey{DonorID: 0, RecipientID: 1, StoreName: "s", PartitionID: 3}
	b := TransferKey{DonorID: 0, RecipientID: 1, StoreName: "s", PartitionID: 3}
	assert.Equal(t, a.redisKey(), b.redisKey())
}

func TestTransferKey_RedisKey_DistinguishesPartition(t *testing.T) {
	a := TransferKey{DonorID: 0, RecipientID: 1, StoreName: "s", PartitionID: 3}
	b := TransferKey{DonorID: 0, RecipientID: 1, StoreName: "s", PartitionID: 4}
	assert.NotEqual(t, a.redisKey(), b.redisKey())
}
