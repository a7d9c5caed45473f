package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Encode serializes m into a frame payload (kind tag + fields). It never
// fails for a well-formed value.
func Encode(m Message) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(m.Kind()))

	switch v := m.(type) {
	case *Chat:
		writeString(buf, v.Sender)
		writeString(buf, v.Target)
		writeString(buf, v.Content)
	case *FileStart:
		writeString(buf, v.Sender)
		writeString(buf, v.Target)
		writeString(buf, v.TransferID)
		writeString(buf, v.FileName)
		writeInt64(buf, v.FileSize)
	case *FileData:
		writeString(buf, v.Sender)
		writeString(buf, v.Target)
		writeString(buf, v.TransferID)
		writeInt32(buf, v.Seq)
		writeBytes(buf, v.Data)
	case *FileEnd:
		writeString(buf, v.Sender)
		writeString(buf, v.Target)
		writeString(buf, v.TransferID)
		writeBool(buf, v.Success)
		writeString(buf, v.ErrorMessage)
	case *Ack:
		writeString(buf, v.Sender)
		writeString(buf, v.Target)
		writeString(buf, v.TransferID)
		writeInt32(buf, v.Seq)
	case *Error:
		writeString(buf, v.Sender)
		writeString(buf, v.Target)
		writeString(buf, v.Description)
	case *ClientConnect:
		writeString(buf, v.Sender)
		writeString(buf, v.ClientName)
	case *ClientDisconnect:
		writeString(buf, v.Sender)
		writeString(buf, v.Reason)
	case *ClientIDResponse:
		writeString(buf, v.Sender)
		writeString(buf, v.ClientID)
	case *DownloadAccept:
		writeString(buf, v.Sender)
		writeString(buf, v.TransferID)
	case *DownloadReject:
		writeString(buf, v.Sender)
		writeString(buf, v.TransferID)
	case *UploadConfirmed:
		writeString(buf, v.Sender)
		writeString(buf, v.TransferID)
	default:
		return nil, errors.Errorf("wire: encode: unsupported message type %T", m)
	}

	return buf.Bytes(), nil
}

// Decode parses a complete frame payload into the message it encodes.
// It rejects truncation, a length field that would overflow the
// remaining buffer, an unknown kind tag, and trailing garbage after the
// last field.
func Decode(payload []byte) (Message, error) {
	if len(payload) < MinFrameLen {
		return nil, ErrMalformedFrame
	}
	r := &reader{b: payload[1:]}
	kind := Kind(payload[0])

	var m Message
	switch kind {
	case KindChat:
		v := &Chat{}
		v.Sender = r.string()
		v.Target = r.string()
		v.Content = r.string()
		m = v
	case KindFileStart:
		v := &FileStart{}
		v.Sender = r.string()
		v.Target = r.string()
		v.TransferID = r.string()
		v.FileName = r.string()
		v.FileSize = r.int64()
		m = v
	case KindFileData:
		v := &FileData{}
		v.Sender = r.string()
		v.Target = r.string()
		v.TransferID = r.string()
		v.Seq = r.int32()
		v.Data = r.bytes()
		m = v
	case KindFileEnd:
		v := &FileEnd{}
		v.Sender = r.string()
		v.Target = r.string()
		v.TransferID = r.string()
		v.Success = r.bool()
		v.ErrorMessage = r.string()
		m = v
	case KindAck:
		v := &Ack{}
		v.Sender = r.string()
		v.Target = r.string()
		v.TransferID = r.string()
		v.Seq = r.int32()
		m = v
	case KindError:
		v := &Error{}
		v.Sender = r.string()
		v.Target = r.string()
		v.Description = r.string()
		m = v
	case KindClientConnect:
		v := &ClientConnect{}
		v.Sender = r.string()
		v.ClientName = r.string()
		m = v
	case KindClientDisconnect:
		v := &ClientDisconnect{}
		v.Sender = r.string()
		v.Reason = r.string()
		m = v
	case KindClientIDResponse:
		v := &ClientIDResponse{}
		v.Sender = r.string()
		v.ClientID = r.string()
		m = v
	case KindDownloadAccept:
		v := &DownloadAccept{}
		v.Sender = r.string()
		v.TransferID = r.string()
		m = v
	case KindDownloadReject:
		v := &DownloadReject{}
		v.Sender = r.string()
		v.TransferID = r.string()
		m = v
	case KindUploadConfirmed:
		v := &UploadConfirmed{}
		v.Sender = r.string()
		v.TransferID = r.string()
		m = v
	default:
		return nil, ErrUnknownKind
	}

	if r.err != nil {
		return nil, r.err
	}
	if !r.exhausted() {
		return nil, ErrMalformedFrame
	}
	return m, nil
}

// --- low level field encoding ---

func writeString(buf *bytes.Buffer, s string) { writeBytes(buf, []byte(s)) }

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

// reader decodes the fixed-order fields of one message body, tracking
// the first error encountered so call sites can chain field reads
// without checking after every call.
type reader struct {
	b   []byte
	err error
}

func (r *reader) exhausted() bool { return len(r.b) == 0 }

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.b) {
		r.err = ErrMalformedFrame
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < 4 {
		r.err = ErrMalformedFrame
		return nil
	}
	l := binary.LittleEndian.Uint32(r.b[:4])
	r.b = r.b[4:]
	if int64(l) > int64(len(r.b)) {
		r.err = ErrMalformedFrame
		return nil
	}
	// A zero-length field decodes as nil, so a nil field round-trips.
	if l == 0 {
		return nil
	}
	data := r.take(int(l))
	if r.err != nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

func (r *reader) string() string {
	b := r.bytes()
	if r.err != nil {
		return ""
	}
	return string(b)
}

func (r *reader) int64() int64 {
	b := r.take(8)
	if r.err != nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *reader) int32() int32 {
	b := r.take(4)
	if r.err != nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *reader) bool() bool {
	b := r.take(1)
	if r.err != nil {
		return false
	}
	return b[0] != 0
}
