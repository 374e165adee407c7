// Package versioning implements vector-clock based causality tracking for
// values stored in the cluster.
package versioning

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidClockFormat is returned by FromBytes when the serialized form
// is truncated or its entries are not sorted by node id.
var ErrInvalidClockFormat = errors.New("versioning: invalid vector clock format")

// Occurred describes the happens-before relationship between two clocks.
type Occurred int

const (
	Before Occurred = iota
	After
	Concurrently
	Equal
)

func (o Occurred) String() string {
	switch o {
	case Before:
		return "BEFORE"
	case After:
		return "AFTER"
	case Concurrently:
		return "CONCURRENTLY"
	case Equal:
		return "EQUAL"
	default:
		return "UNKNOWN"
	}
}

// entry is one (nodeId, counter) pair. Entries within a VectorClock are
// always kept sorted by NodeID with no duplicates.
type entry struct {
	NodeID  uint16
	Counter uint64
}

// VectorClock is an immutable, ordered set of per-node counters plus the
// wall-clock timestamp of the last mutation.
type VectorClock struct {
	entries   []entry
	Timestamp uint64
}

// New returns an empty vector clock stamped with the current time.
func New() VectorClock {
	return VectorClock{Timestamp: uint64(time.Now().UnixMilli())}
}

// FromBytes decodes the wire format described in spec.md §3:
// u16 entryCount, entryCount×(u16 nodeId, u64 counter), u64 timestamp.
func FromBytes(b []byte) (VectorClock, error) {
	if len(b) < 2 {
		return VectorClock{}, ErrInvalidClockFormat
	}
	count := int(binary.BigEndian.Uint16(b))
	want := 2 + count*10 + 8
	if len(b) != want {
		return VectorClock{}, ErrInvalidClockFormat
	}
	entries := make([]entry, count)
	off := 2
	var lastNode int32 = -1
	for i := 0; i < count; i++ {
		nodeID := binary.BigEndian.Uint16(b[off:])
		counter := binary.BigEndian.Uint64(b[off+2:])
		if int32(nodeID) <= lastNode {
			return VectorClock{}, ErrInvalidClockFormat
		}
		lastNode = int32(nodeID)
		entries[i] = entry{NodeID: nodeID, Counter: counter}
		off += 10
	}
	ts := binary.BigEndian.Uint64(b[off:])
	return VectorClock{entries: entries, Timestamp: ts}, nil
}

// ToBytes serializes the clock in the wire format from spec.md §3. The
// returned slice is exactly SizeInBytes() long.
func (c VectorClock) ToBytes() []byte {
	b := make([]byte, c.SizeInBytes())
	binary.BigEndian.PutUint16(b, uint16(len(c.entries)))
	off := 2
	for _, e := range c.entries {
		binary.BigEndian.PutUint16(b[off:], e.NodeID)
		binary.BigEndian.PutUint64(b[off+2:], e.Counter)
		off += 10
	}
	binary.BigEndian.PutUint64(b[off:], c.Timestamp)
	return b
}

// SizeInBytes returns the exact wire length: 2 + entryCount*10 + 8.
func (c VectorClock) SizeInBytes() int {
	return 2 + len(c.entries)*10 + 8
}

// Increment returns a new clock with nodeId's counter bumped by one (or
// created at 1 if absent) and the timestamp refreshed to now.
func (c VectorClock) Increment(nodeID uint16) VectorClock {
	entries := make([]entry, len(c.entries))
	copy(entries, c.entries)

	idx, found := c.find(nodeID)
	if found {
		entries[idx].Counter++
	} else {
		entries = insertSorted(entries, entry{NodeID: nodeID, Counter: 1})
	}
	return VectorClock{entries: entries, Timestamp: uint64(time.Now().UnixMilli())}
}

// Merge returns the per-nodeId max of the two clocks, with the later
// timestamp.
func (c VectorClock) Merge(other VectorClock) VectorClock {
	merged := map[uint16]uint64{}
	for _, e := range c.entries {
		merged[e.NodeID] = e.Counter
	}
	for _, e := range other.entries {
		if cur, ok := merged[e.NodeID]; !ok || e.Counter > cur {
			merged[e.NodeID] = e.Counter
		}
	}
	ts := c.Timestamp
	if other.Timestamp > ts {
		ts = other.Timestamp
	}
	out := VectorClock{Timestamp: ts}
	for nodeID, counter := range merged {
		out.entries = insertSorted(out.entries, entry{NodeID: nodeID, Counter: counter})
	}
	return out
}

// Compare returns how c relates to other: c BEFORE other iff every counter
// in c is <= the corresponding counter in other and at least one is
// strictly less; symmetric for AFTER; mixed/disjoint differences are
// CONCURRENTLY; identical counter sets are EQUAL.
func (c VectorClock) Compare(other VectorClock) Occurred {
	cMap := c.toMap()
	oMap := other.toMap()

	allLE, allGE := true, true
	anyLT, anyGT := false, false

	nodes := map[uint16]struct{}{}
	for n := range cMap {
		nodes[n] = struct{}{}
	}
	for n := range oMap {
		nodes[n] = struct{}{}
	}

	for n := range nodes {
		a, b := cMap[n], oMap[n]
		switch {
		case a < b:
			anyLT = true
			allGE = false
		case a > b:
			anyGT = true
			allLE = false
		}
	}

	switch {
	case allLE && allGE:
		return Equal
	case allLE && anyLT:
		return Before
	case allGE && anyGT:
		return After
	default:
		return Concurrently
	}
}

func (c VectorClock) toMap() map[uint16]uint64 {
	m := make(map[uint16]uint64, len(c.entries))
	for _, e := range c.entries {
		m[e.NodeID] = e.Counter
	}
	return m
}

func (c VectorClock) find(nodeID uint16) (int, bool) {
	for i, e := range c.entries {
		if e.NodeID == nodeID {
			return i, true
		}
	}
	return 0, false
}

func insertSorted(entries []entry, e entry) []entry {
	i := 0
	for i < len(entries) && entries[i].NodeID < e.NodeID {
		i++
	}
	if i < len(entries) && entries[i].NodeID == e.NodeID {
		entries[i] = e
		return entries
	}
	out := make([]entry, 0, len(entries)+1)
	out = append(out, entries[:i]...)
	out = append(out, e)
	out = append(out, entries[i:]...)
	return out
}

func (c VectorClock) String() string {
	return fmt.Sprintf("VectorClock%v@%d", c.entries, c.Timestamp)
}
