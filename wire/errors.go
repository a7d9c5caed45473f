package wire

import "errors"

// Sentinel errors returned by Decode and the frame layer. Callers that
// forward these across a package boundary should wrap them with
// github.com/pkg/errors to attach call-site context.
var (
	// ErrMalformedFrame means a payload could not be decoded into any
	// known message: truncated fields, a length prefix that would
	// overflow the buffer, or trailing garbage after the last field.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrUnknownKind means the 1-byte kind tag does not match any
	// message in the closed taxonomy.
	ErrUnknownKind = errors.New("wire: unknown message kind")

	// ErrFrameTooLong means a frame's declared length exceeds
	// MaxFrameLen.
	ErrFrameTooLong = errors.New("wire: frame exceeds MaxFrameLen")

	// ErrFrameEmpty means a frame's declared length is zero; every
	// frame must carry at least the 1-byte kind tag.
	ErrFrameEmpty = errors.New("wire: frame length is zero")
)
