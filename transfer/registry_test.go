package transfer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filerelay/filerelay/transfer"
	"github.com/filerelay/filerelay/wire"
)

func start(size int64) *wire.FileStart {
	return &wire.FileStart{
		Sender:     "aaaa1111",
		Target:     "bbbb2222",
		TransferID: transfer.NewTransferID(),
		FileName:   "x.bin",
		FileSize:   size,
	}
}

func TestOpenComputesExpectedChunkCount(t *testing.T) {
	r := transfer.NewRegistry(nil)

	s := start(20000) // two full 8192 chunks + a 3616 remainder
	tr, err := r.Open(s)
	require.NoError(t, err)
	assert.Equal(t, int32(3), tr.ExpectedChunkCount)
	assert.Equal(t, transfer.Proposed, tr.State)
}

func TestOpenRejectsDuplicateID(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(100)
	_, err := r.Open(s)
	require.NoError(t, err)

	_, err = r.Open(s)
	assert.ErrorIs(t, err, transfer.ErrExists)
}

func TestOpenRejectsByPolicy(t *testing.T) {
	r := transfer.NewRegistry(func(name string, size int64) error {
		if size > 10 {
			return assertErr
		}
		return nil
	})
	_, err := r.Open(start(100))
	assert.ErrorIs(t, err, transfer.ErrRejectedByPolicy)
}

var assertErr = fmtErr("too big")

type fmtErr string

func (e fmtErr) Error() string { return string(e) }

func TestAcceptLifecycle(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(100)
	_, err := r.Open(s)
	require.NoError(t, err)

	tr, err := r.Accept(s.TransferID)
	require.NoError(t, err)
	assert.Equal(t, transfer.Accepted, tr.State)

	// Accept again: already past Proposed.
	_, err = r.Accept(s.TransferID)
	assert.ErrorIs(t, err, transfer.ErrWrongState)
}

func TestRejectRemovesEntry(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(100)
	_, err := r.Open(s)
	require.NoError(t, err)

	tr, err := r.Reject(s.TransferID)
	require.NoError(t, err)
	assert.Equal(t, transfer.Rejected, tr.State)

	_, err = r.Get(s.TransferID)
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestObserveChunkRequiresAcceptedOrInFlight(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(10)
	_, err := r.Open(s)
	require.NoError(t, err)

	_, _, err = r.ObserveChunk(s.TransferID, 0, 10)
	assert.ErrorIs(t, err, transfer.ErrWrongState)
}

func TestObserveChunkCompletesOnFullSet(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(20000)
	_, err := r.Open(s)
	require.NoError(t, err)
	_, err = r.Accept(s.TransferID)
	require.NoError(t, err)

	res, tr, err := r.ObserveChunk(s.TransferID, 0, 8192)
	require.NoError(t, err)
	assert.Equal(t, transfer.ChunkOk, res)
	assert.Equal(t, transfer.InFlight, tr.State)

	res, _, err = r.ObserveChunk(s.TransferID, 1, 8192)
	require.NoError(t, err)
	assert.Equal(t, transfer.ChunkOk, res)

	res, tr, err = r.ObserveChunk(s.TransferID, 2, 3616)
	require.NoError(t, err)
	assert.Equal(t, transfer.ChunkComplete, res)
	assert.Equal(t, int64(20000), tr.BytesAccounted)
}

func TestObserveChunkRejectsOutOfRange(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(100) // expected chunk count 1
	_, err := r.Open(s)
	require.NoError(t, err)
	_, err = r.Accept(s.TransferID)
	require.NoError(t, err)

	_, _, err = r.ObserveChunk(s.TransferID, 5, 100)
	assert.ErrorIs(t, err, transfer.ErrSequenceOutOfRange)

	_, _, err = r.ObserveChunk(s.TransferID, -1, 100)
	assert.ErrorIs(t, err, transfer.ErrSequenceOutOfRange)
}

func TestObserveChunkRejectsDuplicateWithoutDoubleCounting(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(100)
	_, err := r.Open(s)
	require.NoError(t, err)
	_, err = r.Accept(s.TransferID)
	require.NoError(t, err)

	_, _, err = r.ObserveChunk(s.TransferID, 0, 100)
	require.NoError(t, err)

	_, tr, err := r.ObserveChunk(s.TransferID, 0, 100)
	assert.ErrorIs(t, err, transfer.ErrDuplicateSequence)
	assert.Equal(t, int64(100), tr.BytesAccounted, "duplicate chunk must not be double-counted")
}

func TestCloseIsTerminal(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(10)
	_, err := r.Open(s)
	require.NoError(t, err)
	_, err = r.Accept(s.TransferID)
	require.NoError(t, err)
	_, _, err = r.ObserveChunk(s.TransferID, 0, 10)
	require.NoError(t, err)

	tr, err := r.Close(s.TransferID, true)
	require.NoError(t, err)
	assert.Equal(t, transfer.Completed, tr.State)

	_, err = r.Close(s.TransferID, true)
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestSweepRemovesEveryStaleEntry(t *testing.T) {
	r := transfer.NewRegistry(nil)
	first := start(10)
	second := start(10)
	_, err := r.Open(first)
	require.NoError(t, err)
	_, err = r.Open(second)
	require.NoError(t, err)

	now := time.Now()
	removed := r.Sweep(now.Add(6*time.Minute), 5*time.Minute)
	require.Len(t, removed, 2)

	_, err = r.Get(first.TransferID)
	assert.ErrorIs(t, err, transfer.ErrNotFound)
	_, err = r.Get(second.TransferID)
	assert.ErrorIs(t, err, transfer.ErrNotFound)
	for _, tr := range removed {
		assert.Equal(t, transfer.Aborted, tr.State)
	}
}

func TestSweepLeavesRecentlyActiveEntries(t *testing.T) {
	r := transfer.NewRegistry(nil)
	s := start(10)
	_, err := r.Open(s)
	require.NoError(t, err)

	removed := r.Sweep(time.Now().Add(1*time.Minute), 5*time.Minute)
	assert.Empty(t, removed)

	_, err = r.Get(s.TransferID)
	assert.NoError(t, err)
}
