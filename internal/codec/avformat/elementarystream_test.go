package avformat

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vplsoft/govpl/internal/codec/avutil"
)

func TestWriteReadPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewElementaryStreamWriter(&buf)

	packets := []*avutil.Packet{
		{Data: []byte{1, 2, 3}, Pts: 0, KeyFrame: true},
		{Data: []byte{4, 5}, Pts: 3003, KeyFrame: false},
		{Data: []byte{}, Pts: 6006, KeyFrame: false},
	}
	for _, p := range packets {
		require.NoError(t, w.WritePacket(p))
	}

	r := NewElementaryStreamReader(&buf)
	for _, want := range packets {
		got, err := r.ReadPacket()
		require.NoError(t, err)
		assert.Equal(t, want.Data, got.Data)
		assert.Equal(t, want.Pts, got.Pts)
		assert.Equal(t, want.KeyFrame, got.KeyFrame)
	}

	_, err := r.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadPacketTruncatedPayloadErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewElementaryStreamWriter(&buf)
	require.NoError(t, w.WritePacket(&avutil.Packet{Data: []byte{1, 2, 3, 4, 5}, Pts: 1}))

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	r := NewElementaryStreamReader(truncated)

	_, err := r.ReadPacket()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestReadPacketTruncatedHeaderIsEOF(t *testing.T) {
	r := NewElementaryStreamReader(bytes.NewReader(nil))
	_, err := r.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}
