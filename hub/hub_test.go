package hub

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filerelay/filerelay/config"
	"github.com/filerelay/filerelay/conn"
	"github.com/filerelay/filerelay/events"
	"github.com/filerelay/filerelay/wire"
)

// testClient is a minimal peer for exercising the hub end to end: it
// speaks raw wire.Message values over a real TCP connection rather than
// pulling in the peerclient package.
type testClient struct {
	t  *testing.T
	ep *conn.Endpoint
	id string
}

func dialClient(t *testing.T, addr string, name string) *testClient {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	ep := conn.New(context.Background(), nc, nil)
	tc := &testClient{t: t, ep: ep}

	require.NoError(t, tc.ep.Send(&wire.ClientConnect{ClientName: name}))
	m, err := tc.ep.Receive()
	require.NoError(t, err)
	resp, ok := m.(*wire.ClientIDResponse)
	require.True(t, ok, "expected CLIENT_ID_RESPONSE, got %T", m)
	tc.id = resp.ClientID
	return tc
}

func startHub(t *testing.T) (addr string, h *Hub, stop func()) {
	t.Helper()
	h = New(config.New(config.WithSweepInterval(50*time.Millisecond), config.WithTransferIdleTimeout(200*time.Millisecond)), events.NewBus())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = l.Addr().String()
	l.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.ListenAndServe(context.Background(), addr)
	}()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr, h, func() { h.Close() }
}

func TestClientConnectAssignsDistinctIDs(t *testing.T) {
	addr, _, stop := startHub(t)
	defer stop()

	a := dialClient(t, addr, "alice")
	b := dialClient(t, addr, "bob")

	require.NotEmpty(t, a.id)
	require.NotEmpty(t, b.id)
	require.NotEqual(t, a.id, b.id)
}

func TestBroadcastChatReachesOtherPeersNotSender(t *testing.T) {
	addr, _, stop := startHub(t)
	defer stop()

	a := dialClient(t, addr, "alice")
	b := dialClient(t, addr, "bob")

	require.NoError(t, a.ep.Send(&wire.Chat{Content: "hello room"}))

	m, err := b.ep.Receive()
	require.NoError(t, err)
	chat, ok := m.(*wire.Chat)
	require.True(t, ok)
	require.Equal(t, a.id, chat.Sender)
	require.Equal(t, "hello room", chat.Content)

	// The sender itself must not receive its own broadcast.
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.ep.Receive()
	}()
	select {
	case <-done:
		t.Fatal("sender unexpectedly received its own broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnicastChatDeliversOnlyToTarget(t *testing.T) {
	addr, _, stop := startHub(t)
	defer stop()

	a := dialClient(t, addr, "alice")
	b := dialClient(t, addr, "bob")
	c := dialClient(t, addr, "carol")

	require.NoError(t, a.ep.Send(&wire.Chat{Target: b.id, Content: "psst"}))

	m, err := b.ep.Receive()
	require.NoError(t, err)
	chat := m.(*wire.Chat)
	require.Equal(t, "psst", chat.Content)
	require.Equal(t, a.id, chat.Sender)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.ep.Receive()
	}()
	select {
	case <-done:
		t.Fatal("non-target unexpectedly received the unicast")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChatSenderIDIsRewrittenByHub(t *testing.T) {
	addr, _, stop := startHub(t)
	defer stop()

	a := dialClient(t, addr, "alice")
	b := dialClient(t, addr, "bob")

	// Attempt to spoof another sender id; the hub must overwrite it.
	require.NoError(t, a.ep.Send(&wire.Chat{Sender: "not-alice", Target: b.id, Content: "hi"}))

	m, err := b.ep.Receive()
	require.NoError(t, err)
	chat := m.(*wire.Chat)
	require.Equal(t, a.id, chat.Sender)
}
