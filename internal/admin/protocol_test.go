package admin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairdb/ring/internal/metadata"
)

func TestWriteReadUTF_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUTF(&buf, "cluster.xml"))
	got, err := ReadUTF(&buf)
	require.NoError(t, err)
	assert.Equal(t, "cluster.xml", got)
}

func TestWriteReadUTF_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUTF(&buf, ""))
	got, err := ReadUTF(&buf)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestWriteReadBytes_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x01, 0x02, 0x03, 0xFF}
	require.NoError(t, WriteBytes(&buf, payload))
	got, err := ReadBytes(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteReadInt32_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInt32(&buf, -1))
	got, err := ReadInt32(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)
}

func TestWriteReadInt16_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInt16(&buf, 7))
	got, err := ReadInt16(&buf)
	require.NoError(t, err)
	assert.Equal(t, int16(7), got)
}

func TestPrelude_OKRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePrelude(&buf, nil))
	assert.NoError(t, ReadPrelude(&buf))
}

func TestPrelude_ErrorRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePrelude(&buf, metadata.ErrStoreNotFound))
	err := ReadPrelude(&buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrStoreNotFound)
}

func TestStreamEntry_RoundTripAndEnd(t *testing.T) {
	var buf bytes.Buffer
	entry := KeyValueEntry{Key: []byte("k"), ValueWithClock: []byte("clock+value")}
	require.NoError(t, WriteStreamEntry(&buf, entry))
	require.NoError(t, WriteStreamEnd(&buf))

	got, ok, err := ReadStreamEntry(&buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	_, ok, err = ReadStreamEntry(&buf)
	require.NoError(t, err)
	assert.False(t, ok)
}
