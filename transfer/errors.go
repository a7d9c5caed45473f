package transfer

import "errors"

var (
	// ErrExists means Open was called with a transfer id already present
	// in the registry.
	ErrExists = errors.New("transfer: id already exists")

	// ErrNotFound means the referenced transfer id has no entry (it was
	// never opened, or has already reached a terminal state and been
	// removed).
	ErrNotFound = errors.New("transfer: not found")

	// ErrTerminal means the referenced transfer has already reached a
	// terminal state; no further operation on it is meaningful.
	ErrTerminal = errors.New("transfer: already terminal")

	// ErrWrongState means the operation is not meaningful in the
	// transfer's current state (e.g. Accept on a transfer that is not
	// Proposed).
	ErrWrongState = errors.New("transfer: wrong state for operation")

	// ErrSequenceOutOfRange means a chunk's sequence number is negative
	// or >= the transfer's expected chunk count.
	ErrSequenceOutOfRange = errors.New("transfer: sequence out of range")

	// ErrDuplicateSequence means a chunk's sequence number has already
	// been recorded for this transfer.
	ErrDuplicateSequence = errors.New("transfer: duplicate sequence")

	// ErrRejectedByPolicy means an upload policy hook refused a proposed
	// transfer (size cap, name check, file-type allow-list).
	ErrRejectedByPolicy = errors.New("transfer: rejected by policy")
)
