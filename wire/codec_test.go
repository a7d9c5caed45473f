package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filerelay/filerelay/wire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []wire.Message{
		&wire.Chat{Sender: "abcd1234", Target: "", Content: "hi"},
		&wire.Chat{Sender: "abcd1234", Target: "ffff0000", Content: "p"},
		&wire.FileStart{Sender: "a1", Target: "b2", TransferID: "t1", FileName: "x.bin", FileSize: 20000},
		&wire.FileData{Sender: "a1", Target: "b2", TransferID: "t1", Seq: 2, Data: bytes.Repeat([]byte{0x7f}, 3616)},
		&wire.FileData{Sender: "a1", Target: "b2", TransferID: "t1", Seq: 0, Data: nil},
		&wire.FileEnd{Sender: "a1", Target: "b2", TransferID: "t1", Success: true, ErrorMessage: ""},
		&wire.FileEnd{Sender: "a1", Target: "b2", TransferID: "t1", Success: false, ErrorMessage: "expired"},
		&wire.Ack{Sender: "a1", Target: "b2", TransferID: "t1", Seq: 7},
		&wire.Error{Sender: wire.ServerSenderID, Target: "a1", Description: "unknown transfer"},
		&wire.ClientConnect{Sender: "a1", ClientName: "nick"},
		&wire.ClientDisconnect{Sender: "a1", Reason: "bye"},
		&wire.ClientIDResponse{Sender: wire.ServerSenderID, ClientID: "a1"},
		&wire.DownloadAccept{Sender: "b2", TransferID: "t1"},
		&wire.DownloadReject{Sender: "b2", TransferID: "t1"},
		&wire.UploadConfirmed{Sender: wire.ServerSenderID, TransferID: "t1"},
	}

	for _, m := range cases {
		payload, err := wire.Encode(m)
		require.NoError(t, err)

		decoded, err := wire.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, m, decoded)

		// encode(decode(payload)) == payload
		reencoded, err := wire.Encode(decoded)
		require.NoError(t, err)
		assert.Equal(t, payload, reencoded)
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	payload, err := wire.Encode(&wire.Chat{Sender: "a1", Target: "", Content: "hello"})
	require.NoError(t, err)

	_, err = wire.Decode(payload[:len(payload)-2])
	assert.Error(t, err)
}

func TestDecodeRejectsTrailingGarbage(t *testing.T) {
	payload, err := wire.Encode(&wire.Ack{Sender: "a1", Target: "b2", TransferID: "t1", Seq: 1})
	require.NoError(t, err)

	_, err = wire.Decode(append(payload, 0xFF))
	assert.ErrorIs(t, err, wire.ErrMalformedFrame)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := wire.Decode([]byte{0xEE, 0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, wire.ErrUnknownKind)
}

func TestDecodeRejectsOverlongLengthField(t *testing.T) {
	// Kind=CHAT, sender length field claims more bytes than remain.
	payload := []byte{byte(wire.KindChat), 0xFF, 0xFF, 0xFF, 0x7F}
	_, err := wire.Decode(payload)
	assert.ErrorIs(t, err, wire.ErrMalformedFrame)
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	_, err := wire.Decode(nil)
	assert.ErrorIs(t, err, wire.ErrMalformedFrame)
}

func TestEqualFold(t *testing.T) {
	assert.True(t, wire.EqualFold("SERVER", "server"))
	assert.True(t, wire.EqualFold("SeRvEr", wire.ServerSenderID))
	assert.False(t, wire.EqualFold("SERVER", "serve"))
	assert.False(t, wire.EqualFold("abcd1234", "abcd1235"))
}
