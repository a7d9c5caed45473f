// Package transfer implements the process-wide transfer registry: the
// bookkeeper for every in-flight file transfer's consent state and chunk
// accounting. The registry never forwards bytes itself (§4.3); it only
// tracks state and reports results to its caller, normally hub.Hub.
package transfer

import "time"

// State is the explicit, exhaustive transfer lifecycle state (§3, and
// the §9 redesign note: "Ad-hoc boolean state for transfer phase" →
// "explicit state enum with exhaustive transitions").
type State int

const (
	// Proposed: FILE_START reached the hub, recipient has not responded.
	Proposed State = iota
	// Accepted: recipient sent DOWNLOAD_ACCEPT, no chunks seen yet.
	Accepted
	// Rejected: recipient sent DOWNLOAD_REJECT. Terminal.
	Rejected
	// InFlight: at least one chunk has been recorded.
	InFlight
	// Completed: every expected chunk was recorded and FILE_END(success)
	// arrived. Terminal.
	Completed
	// Aborted: FILE_END(failure), FILE_END(success) before every expected
	// chunk was recorded, idle expiry, or peer loss. Terminal.
	Aborted
)

func (s State) String() string {
	switch s {
	case Proposed:
		return "Proposed"
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case InFlight:
		return "InFlight"
	case Completed:
		return "Completed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is one of the states after which no
// further registry operation on that transfer id may succeed.
func (s State) Terminal() bool {
	switch s {
	case Rejected, Completed, Aborted:
		return true
	default:
		return false
	}
}

// ChunkResult is the outcome of ObserveChunk.
type ChunkResult int

const (
	// ChunkOk: the chunk was recorded; the transfer is not yet complete.
	ChunkOk ChunkResult = iota
	// ChunkComplete: the chunk was recorded and completed the expected
	// sequence-number set.
	ChunkComplete
	// ChunkError: the chunk was not recorded (out of range or a
	// duplicate sequence). Not fatal to the transfer.
	ChunkError
)

// Transfer is one in-flight (or just-terminated) file transfer.
type Transfer struct {
	ID                 string
	FileName           string
	Size               int64
	SenderID           string
	TargetID           string
	State              State
	ExpectedChunkCount int32
	BytesAccounted     int64
	CreatedAt          time.Time
	LastActivity       time.Time

	seen map[int32]struct{}
}

// Clone returns a value copy of t suitable for handing to a caller
// outside the registry's lock (the seen-sequence set is not copied; it
// is internal bookkeeping, not part of the Transfer's public shape).
func (t *Transfer) Clone() *Transfer {
	c := *t
	c.seen = nil
	return &c
}
