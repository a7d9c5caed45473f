// Package wire implements the hub's length-prefixed binary framing
// protocol and its closed message taxonomy.
//
// Wire format: a stream of frames, each a 4-byte little-endian unsigned
// length L followed by exactly L bytes of payload. The payload's first
// byte is a Kind tag; everything after it is kind-specific fields,
// encoded as described in message.go and codec.go.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameLen bounds the declared length of any frame. It must
// accommodate the largest permitted FILE_DATA frame (one chunk plus
// envelope overhead) with headroom; the spec recommends 100 MiB.
const MaxFrameLen = 100 * 1024 * 1024

// MinFrameLen is the smallest legal frame: just the 1-byte kind tag.
const MinFrameLen = 1

// ReadFrame reads one length-prefixed payload from r. It rejects a
// declared length outside (0, MaxFrameLen].
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	l := binary.LittleEndian.Uint32(lenBuf[:])
	if l == 0 {
		return nil, ErrFrameEmpty
	}
	if l > MaxFrameLen {
		return nil, ErrFrameTooLong
	}
	payload := make([]byte, l)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes the 4-byte length prefix and payload to w as a
// single logical write. Callers are responsible for serializing
// concurrent writers (see conn.Endpoint).
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrFrameEmpty
	}
	if len(payload) > MaxFrameLen {
		return ErrFrameTooLong
	}
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	n, err := w.Write(buf)
	if err != nil {
		return errors.Wrap(err, "wire: write frame")
	}
	if n != len(buf) {
		return errors.Wrap(io.ErrShortWrite, "wire: write frame")
	}
	return nil
}
