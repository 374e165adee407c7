package slop

import (
	"encoding/binary"
	"fmt"
)

// EncodeSlop serializes a Slop record to the flat binary layout the slop
// store persists: u16 storeNameLen, bytes storeName, byte op, i32 keyLen,
// bytes key, i32 valueLen (-1 for nil), bytes value, u16 originatingNodeId,
// i64 arrivalTime. Matches the admin wire protocol's own length-prefix
// conventions (internal/admin/protocol.go) so the two packages read like
// one dialect.
func EncodeSlop(s Slop) []byte {
	buf := make([]byte, 0, 2+len(s.StoreName)+1+4+len(s.Key)+4+len(s.Value)+2+8)

	var u16buf [2]byte
	binary.BigEndian.PutUint16(u16buf[:], uint16(len(s.StoreName)))
	buf = append(buf, u16buf[:]...)
	buf = append(buf, s.StoreName...)

	buf = append(buf, byte(s.Op))

	var i32buf [4]byte
	binary.BigEndian.PutUint32(i32buf[:], uint32(len(s.Key)))
	buf = append(buf, i32buf[:]...)
	buf = append(buf, s.Key...)

	if s.Value == nil {
		binary.BigEndian.PutUint32(i32buf[:], uint32(0xFFFFFFFF))
	} else {
		binary.BigEndian.PutUint32(i32buf[:], uint32(len(s.Value)))
	}
	buf = append(buf, i32buf[:]...)
	if s.Value != nil {
		buf = append(buf, s.Value...)
	}

	binary.BigEndian.PutUint16(u16buf[:], s.OriginatingNodeID)
	buf = append(buf, u16buf[:]...)

	var i64buf [8]byte
	binary.BigEndian.PutUint64(i64buf[:], uint64(s.ArrivalTime))
	buf = append(buf, i64buf[:]...)

	return buf
}

// DecodeSlop parses the layout EncodeSlop writes.
func DecodeSlop(b []byte) (Slop, error) {
	var s Slop
	if len(b) < 2 {
		return s, fmt.Errorf("slop: truncated record")
	}
	nameLen := int(binary.BigEndian.Uint16(b))
	b = b[2:]
	if len(b) < nameLen+1+4 {
		return s, fmt.Errorf("slop: truncated record")
	}
	s.StoreName = string(b[:nameLen])
	b = b[nameLen:]

	s.Op = Operation(b[0])
	b = b[1:]

	keyLen := int(int32(binary.BigEndian.Uint32(b)))
	b = b[4:]
	if keyLen < 0 || len(b) < keyLen+4 {
		return s, fmt.Errorf("slop: truncated record")
	}
	s.Key = append([]byte(nil), b[:keyLen]...)
	b = b[keyLen:]

	valLen := int32(binary.BigEndian.Uint32(b))
	b = b[4:]
	if valLen == -1 {
		s.Value = nil
	} else {
		if int(valLen) < 0 || len(b) < int(valLen)+2+8 {
			return s, fmt.Errorf("slop: truncated record")
		}
		s.Value = make([]byte, valLen)
		copy(s.Value, b[:valLen])
		b = b[valLen:]
	}

	if len(b) < 2+8 {
		return s, fmt.Errorf("slop: truncated record")
	}
	s.OriginatingNodeID = binary.BigEndian.Uint16(b)
	b = b[2:]
	s.ArrivalTime = int64(binary.BigEndian.Uint64(b))
	return s, nil
}
