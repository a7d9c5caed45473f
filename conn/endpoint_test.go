package conn_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filerelay/filerelay/conn"
	"github.com/filerelay/filerelay/wire"
)

func newPipeEndpoints(t *testing.T) (*conn.Endpoint, *conn.Endpoint) {
	t.Helper()
	a, b := net.Pipe()
	epA := conn.New(context.Background(), a, nil)
	epB := conn.New(context.Background(), b, nil)
	t.Cleanup(func() {
		epA.Close()
		epB.Close()
	})
	return epA, epB
}

func TestSendReceiveRoundTrip(t *testing.T) {
	a, b := newPipeEndpoints(t)

	msg := &wire.Chat{Sender: "a1", Target: "", Content: "hi"}
	errCh := make(chan error, 1)
	go func() { errCh <- a.Send(msg) }()

	got, err := b.Receive()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
	require.NoError(t, <-errCh)
}

func TestReceiveReturnsEOFOnClose(t *testing.T) {
	a, b := newPipeEndpoints(t)
	require.NoError(t, a.Close())

	_, err := b.Receive()
	assert.Equal(t, io.EOF, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, _ := newPipeEndpoints(t)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	a, b := newPipeEndpoints(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(seq int32) {
			defer wg.Done()
			_ = a.Send(&wire.Ack{Sender: "a1", Target: "b1", TransferID: "t1", Seq: seq})
		}(int32(i))
	}

	seen := map[int32]bool{}
	for i := 0; i < n; i++ {
		m, err := b.Receive()
		require.NoError(t, err)
		ack, ok := m.(*wire.Ack)
		require.True(t, ok)
		assert.False(t, seen[ack.Seq], "sequence %d delivered more than once: frame interleaving corrupted the stream", ack.Seq)
		seen[ack.Seq] = true
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestCloseCancelsContext(t *testing.T) {
	a, _ := newPipeEndpoints(t)
	ctx := a.Context()
	require.NoError(t, a.Close())
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected endpoint context to be cancelled after Close")
	}
}
