// Package slop implements the slop-detecting store (C5): a delegating
// store that diverts misrouted writes into a local quarantine queue,
// ported from voldemort.store.slop.SlopDetectingStore and Slop.
package slop

import (
	"encoding/binary"
	"hash/fnv"
)

// StoreName is the name of the local store holding quarantined Slop
// records, distinct from Slop.StoreName which names the wrapped store a
// misrouted write targeted.
const StoreName = "slop"

// Operation is the write kind a Slop was recording when it was quarantined.
type Operation uint8

const (
	OpPut    Operation = 1
	OpDelete Operation = 2
)

func (o Operation) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Slop is a quarantined write: a key that did not belong on the node that
// received it, parked here for later hand-off to its rightful owner.
type Slop struct {
	StoreName         string
	Op                Operation
	Key               []byte
	Value             []byte // nil for OpDelete
	OriginatingNodeID uint16
	ArrivalTime       int64 // unix millis; caller-supplied (DetectingStore uses the write's vector-clock timestamp), never time.Now() internally
}

// NewSlop builds a Slop record for key misrouted to originatingNodeID.
func NewSlop(storeName string, op Operation, key, value []byte, originatingNodeID uint16, arrivalTime int64) Slop {
	return Slop{
		StoreName:         storeName,
		Op:                op,
		Key:               key,
		Value:             value,
		OriginatingNodeID: originatingNodeID,
		ArrivalTime:       arrivalTime,
	}
}

// MakeKey derives the slop store's key deterministically from
// (storeName, originatingNodeId, op, key) so re-insertion of the same
// misrouted write is idempotent per hop (spec.md §3's slop record note).
func (s Slop) MakeKey() []byte {
	h := fnv.New64a()
	h.Write([]byte(s.StoreName))
	h.Write([]byte{0})
	var nodeBuf [2]byte
	binary.BigEndian.PutUint16(nodeBuf[:], s.OriginatingNodeID)
	h.Write(nodeBuf[:])
	h.Write([]byte{byte(s.Op)})
	h.Write(s.Key)

	sum := h.Sum64()
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, sum)
	return out
}
