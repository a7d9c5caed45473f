package wire_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filerelay/filerelay/wire"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteFrame(&buf, []byte{1, 2, 3}))
	require.NoError(t, wire.WriteFrame(&buf, []byte("second frame")))

	got, err := wire.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got, err = wire.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("second frame"), got)

	_, err = wire.ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	_, err := wire.ReadFrame(buf)
	assert.ErrorIs(t, err, wire.ErrFrameEmpty)
}

func TestReadFrameRejectsOverLength(t *testing.T) {
	lenBuf := make([]byte, 4)
	lenBuf[3] = 0x08 // 0x08000000, far beyond MaxFrameLen
	buf := bytes.NewBuffer(lenBuf)
	_, err := wire.ReadFrame(buf)
	assert.ErrorIs(t, err, wire.ErrFrameTooLong)
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteFrame(&buf, []byte("hello world")))
	truncated := buf.Bytes()[:len(buf.Bytes())-3]

	_, err := wire.ReadFrame(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	err := wire.WriteFrame(&buf, nil)
	assert.ErrorIs(t, err, wire.ErrFrameEmpty)
}
