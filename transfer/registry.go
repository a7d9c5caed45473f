package transfer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/filerelay/filerelay/wire"
)

// UploadPolicy is a pluggable hook consulted by Open: it can refuse a
// proposed transfer (by returning a non-nil error) based on file name,
// declared size, or any other property of the FILE_START. The file-type
// allow-list mentioned in §9 is exactly this kind of hook; the wire
// protocol itself carries no opinion on it.
type UploadPolicy func(fileName string, size int64) error

// AllowAll is the default UploadPolicy: it accepts everything.
func AllowAll(string, int64) error { return nil }

// entry is one registry row plus the mutex guarding its mutable fields,
// per §5's concurrency note: "all mutations for a given id [guarded] by
// its own mutex".
type entry struct {
	mu sync.Mutex
	t  *Transfer
}

// Registry is the process-wide, concurrency-safe table of in-flight
// transfers, keyed by transfer id. It never forwards bytes; it is a
// bookkeeper (§4.3).
type Registry struct {
	policy UploadPolicy

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry constructs an empty Registry. A nil policy is equivalent
// to AllowAll.
func NewRegistry(policy UploadPolicy) *Registry {
	if policy == nil {
		policy = AllowAll
	}
	return &Registry{policy: policy, entries: make(map[string]*entry)}
}

// NewTransferID generates a fresh canonical-UUID-text transfer id, for
// use by the side that originates a FILE_START.
func NewTransferID() string { return uuid.NewString() }

// Open transitions a newly announced transfer into Proposed. It rejects
// if the id is already present, or if the upload policy denies it.
func (r *Registry) Open(start *wire.FileStart) (*Transfer, error) {
	if r.policy != nil {
		if err := r.policy(start.FileName, start.FileSize); err != nil {
			return nil, errors.Wrap(ErrRejectedByPolicy, err.Error())
		}
	}

	expected := expectedChunkCount(start.FileSize)

	now := time.Now()
	t := &Transfer{
		ID:                 start.TransferID,
		FileName:           start.FileName,
		Size:               start.FileSize,
		SenderID:           start.Sender,
		TargetID:           start.Target,
		State:              Proposed,
		ExpectedChunkCount: expected,
		CreatedAt:          now,
		LastActivity:       now,
		seen:               make(map[int32]struct{}, expected),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[start.TransferID]; exists {
		return nil, ErrExists
	}
	r.entries[start.TransferID] = &entry{t: t}
	return t.Clone(), nil
}

func expectedChunkCount(size int64) int32 {
	if size <= 0 {
		return 0
	}
	n := size / wire.ChunkSize
	if size%wire.ChunkSize != 0 {
		n++
	}
	return int32(n)
}

// Accept transitions Proposed -> Accepted.
func (r *Registry) Accept(id string) (*Transfer, error) {
	return r.transition(id, func(t *Transfer) error {
		if t.State != Proposed {
			return ErrWrongState
		}
		t.State = Accepted
		t.LastActivity = time.Now()
		return nil
	})
}

// Reject transitions Proposed -> Rejected and removes the entry
// immediately; the caller (hub) is still responsible for routing the
// reject notification.
func (r *Registry) Reject(id string) (*Transfer, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.t.State.Terminal() {
		return nil, ErrTerminal
	}
	if e.t.State != Proposed {
		return nil, ErrWrongState
	}
	e.t.State = Rejected
	e.t.LastActivity = time.Now()
	out := e.t.Clone()
	r.remove(id)
	return out, nil
}

// ObserveChunk records one FILE_DATA's sequence number, if the transfer
// is Accepted or InFlight and the sequence is in range and previously
// unseen. It returns ChunkComplete once every expected sequence number
// has been recorded.
func (r *Registry) ObserveChunk(id string, seq int32, dataLen int) (ChunkResult, *Transfer, error) {
	e, err := r.lookup(id)
	if err != nil {
		return ChunkError, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.t

	if t.State != Accepted && t.State != InFlight {
		return ChunkError, t.Clone(), errors.Wrapf(ErrWrongState, "transfer %s is %s", id, t.State)
	}
	if seq < 0 || seq >= t.ExpectedChunkCount {
		return ChunkError, t.Clone(), ErrSequenceOutOfRange
	}
	if _, dup := t.seen[seq]; dup {
		return ChunkError, t.Clone(), ErrDuplicateSequence
	}

	t.seen[seq] = struct{}{}
	t.BytesAccounted += int64(dataLen)
	t.LastActivity = time.Now()
	if t.State == Accepted {
		t.State = InFlight
	}

	if len(t.seen) == int(t.ExpectedChunkCount) {
		return ChunkComplete, t.Clone(), nil
	}
	return ChunkOk, t.Clone(), nil
}

// Close applies the terminal transition for a transfer that has
// finished, successfully or not, and removes its entry. A success close
// ends Completed only if every expected chunk was recorded; otherwise
// the transfer ends Aborted.
func (r *Registry) Close(id string, success bool) (*Transfer, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.t.State.Terminal() {
		e.mu.Unlock()
		return nil, ErrTerminal
	}
	if success && len(e.t.seen) == int(e.t.ExpectedChunkCount) {
		e.t.State = Completed
	} else {
		e.t.State = Aborted
	}
	e.t.LastActivity = time.Now()
	out := e.t.Clone()
	e.mu.Unlock()

	r.remove(id)
	return out, nil
}

// Sweep removes every entry whose last activity is older than now.Add(-maxIdle)
// and returns the removed transfers (marked Aborted) so the caller can
// notify the peers involved.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) []*Transfer {
	cutoff := now.Add(-maxIdle)

	r.mu.RLock()
	var expired []string
	for id, e := range r.entries {
		e.mu.Lock()
		stale := e.t.LastActivity.Before(cutoff)
		e.mu.Unlock()
		if stale {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	removed := make([]*Transfer, 0, len(expired))
	for _, id := range expired {
		r.mu.Lock()
		e, ok := r.entries[id]
		if !ok {
			r.mu.Unlock()
			continue
		}
		e.mu.Lock()
		if !e.t.LastActivity.Before(cutoff) || e.t.State.Terminal() {
			// Activity arrived (or it terminated normally) between the
			// scan above and taking the write lock; leave it alone.
			e.mu.Unlock()
			r.mu.Unlock()
			continue
		}
		e.t.State = Aborted
		out := e.t.Clone()
		e.mu.Unlock()
		delete(r.entries, id)
		r.mu.Unlock()
		removed = append(removed, out)
	}
	return removed
}

// ByPeer returns a snapshot of every non-terminal transfer in which
// peerID participates, as either sender or recipient. The hub uses this
// on peer disconnect to find transfers that must be aborted and whose
// surviving side must be notified (§4.4).
func (r *Registry) ByPeer(peerID string) []*Transfer {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var out []*Transfer
	for _, id := range ids {
		r.mu.RLock()
		e, ok := r.entries[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		e.mu.Lock()
		involved := !e.t.State.Terminal() && (e.t.SenderID == peerID || e.t.TargetID == peerID)
		var clone *Transfer
		if involved {
			clone = e.t.Clone()
		}
		e.mu.Unlock()
		if involved {
			out = append(out, clone)
		}
	}
	return out
}

// Get returns a snapshot of the current state of transfer id, without
// mutating it.
func (r *Registry) Get(id string) (*Transfer, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.Clone(), nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *Registry) transition(id string, fn func(*Transfer) error) (*Transfer, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.t.State.Terminal() {
		return nil, ErrTerminal
	}
	if err := fn(e.t); err != nil {
		return nil, err
	}
	return e.t.Clone(), nil
}
