package admin

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode identifies the kind of framed request on the admin wire protocol
// (spec.md §4.6). Frame shape: opcode byte, opcode-specific payload, then a
// response prelude {i16 retCode, if retCode != 0: utf8 errorMessage}
// followed by an opcode-specific success payload.
type Opcode byte

const (
	OpUpdateClusterMetadata  Opcode = 0x01
	OpUpdateStoresMetadata   Opcode = 0x02 // reassigned from the source's colliding 0x01, see spec.md §9
	OpRebalancingServerMode  Opcode = 0x03
	OpNormalServerMode       Opcode = 0x04
	OpRestartServices        Opcode = 0x05
	OpRedirectGet            Opcode = 0x06
	OpGetPartitionAsStream   Opcode = 0x07
	OpPutPartitionAsStream   Opcode = 0x08

	// Additive client opcodes (C14); not part of the rebalance core but
	// routed through the same framed connection and server.state gate.
	OpClientGet    Opcode = 0x10
	OpClientPut    Opcode = 0x11
	OpClientDelete Opcode = 0x12
)

// streamEnd is the i32 sentinel terminating GET/PUT_PARTITION_AS_STREAM.
const streamEnd int32 = -1

// WriteUTF writes a length-prefixed UTF-8 string: u16 len, then bytes.
func WriteUTF(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("admin: utf8 string too long (%d bytes)", len(s))
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadUTF reads a length-prefixed UTF-8 string written by WriteUTF.
func ReadUTF(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBytes writes a length-prefixed byte blob: i32 len, then bytes.
func WriteBytes(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads a length-prefixed byte blob written by WriteBytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative byte blob length %d", ErrInvalidRequest, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteInt32 writes a big-endian i32, the unit spec.md §4.6 uses for
// lengths and the stream end sentinel.
func WriteInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt32 reads a big-endian i32.
func ReadInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// WriteInt16 writes a big-endian i16, used by the response prelude's
// retCode field.
func WriteInt16(w io.Writer, v int16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt16 reads a big-endian i16.
func ReadInt16(r io.Reader) (int16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(buf[:])), nil
}

// WritePrelude writes the response prelude: {i16 retCode, if retCode != 0:
// utf8 errorMessage}, mapping err via ErrorCodeMapper.
func WritePrelude(w io.Writer, err error) error {
	mapper := ErrorCodeMapper{}
	code, message := mapper.ToWire(err)
	if werr := WriteInt16(w, int16(code)); werr != nil {
		return werr
	}
	if code == CodeOK {
		return nil
	}
	return WriteUTF(w, message)
}

// ReadPrelude reads a response prelude, returning the re-inflated error (nil
// on success).
func ReadPrelude(r io.Reader) error {
	code, err := ReadInt16(r)
	if err != nil {
		return err
	}
	if Code(code) == CodeOK {
		return nil
	}
	message, err := ReadUTF(r)
	if err != nil {
		return err
	}
	return ErrorCodeMapper{}.FromWire(Code(code), message)
}

// KeyValueEntry is one (key, value-with-clock) pair as it appears on the
// bulk stream wire: i32 keyLen, bytes key, i32 valLen, bytes
// valueWithClock, where valueWithClock is vectorClockSerialized ‖ value.
type KeyValueEntry struct {
	Key            []byte
	ValueWithClock []byte
}

// WriteStreamEntry writes one KeyValueEntry frame.
func WriteStreamEntry(w io.Writer, e KeyValueEntry) error {
	if err := WriteInt32(w, int32(len(e.Key))); err != nil {
		return err
	}
	if _, err := w.Write(e.Key); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(len(e.ValueWithClock))); err != nil {
		return err
	}
	_, err := w.Write(e.ValueWithClock)
	return err
}

// WriteStreamEnd writes the i32 -1 sentinel terminating a streaming opcode.
func WriteStreamEnd(w io.Writer) error {
	return WriteInt32(w, streamEnd)
}

// ReadStreamEntry reads one frame, returning ok=false (no error) when the
// end-of-stream sentinel was read instead of a key length.
func ReadStreamEntry(r io.Reader) (entry KeyValueEntry, ok bool, err error) {
	keyLen, err := ReadInt32(r)
	if err != nil {
		return KeyValueEntry{}, false, err
	}
	if keyLen == streamEnd {
		return KeyValueEntry{}, false, nil
	}
	if keyLen < 0 {
		return KeyValueEntry{}, false, fmt.Errorf("%w: negative key length %d", ErrInvalidRequest, keyLen)
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return KeyValueEntry{}, false, err
	}
	valLen, err := ReadInt32(r)
	if err != nil {
		return KeyValueEntry{}, false, err
	}
	if valLen < 0 {
		return KeyValueEntry{}, false, fmt.Errorf("%w: negative value length %d", ErrInvalidRequest, valLen)
	}
	val := make([]byte, valLen)
	if _, err := io.ReadFull(r, val); err != nil {
		return KeyValueEntry{}, false, err
	}
	return KeyValueEntry{Key: key, ValueWithClock: val}, true, nil
}
