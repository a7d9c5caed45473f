// Package hub implements the routing hub: the server-side dispatcher
// that accepts connections, assigns peer ids, forwards messages
// according to the routing rules in SPEC_FULL.md §4.4, and mediates
// file-transfer consent.
//
// Grounded on netconf/server/ssh/server.go's accept loop (one listener
// goroutine, one goroutine per connection) and
// netconf/server/netconf/server.go's Server/SessionHandler pairing (a
// session map keyed by a server-assigned id, a handler invoked per
// connection).
package hub

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	"github.com/filerelay/filerelay/config"
	"github.com/filerelay/filerelay/conn"
	"github.com/filerelay/filerelay/events"
	"github.com/filerelay/filerelay/transfer"
	"github.com/filerelay/filerelay/wire"
)

// Hub is the server-side message router and transfer coordinator.
type Hub struct {
	cfg       *config.Config
	trace     *Trace
	connTrace *conn.Trace
	registry  *transfer.Registry
	bus       *events.Bus

	listener net.Listener

	peersMu sync.RWMutex
	peers   map[string]*peer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Hub. cfg and bus may be nil.
func New(cfg *config.Config, bus *events.Bus) *Hub {
	if cfg == nil {
		cfg = config.New()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Hub{
		cfg:       cfg,
		trace:     NoOpLoggingHooks,
		connTrace: conn.NoOpLoggingHooks,
		registry:  transfer.NewRegistry(cfg.UploadPolicy),
		bus:       bus,
		peers:     make(map[string]*peer),
	}
}

// WithTrace installs hub-level diagnostic hooks, merged over
// NoOpLoggingHooks so any hook t leaves nil is a no-op.
func (h *Hub) WithTrace(t *Trace) *Hub {
	if t != nil {
		merged := *t
		_ = mergo.Merge(&merged, NoOpLoggingHooks)
		h.trace = &merged
	}
	return h
}

// WithConnTrace installs per-connection diagnostic hooks for every
// endpoint the hub accepts, merged over conn.NoOpLoggingHooks.
func (h *Hub) WithConnTrace(t *conn.Trace) *Hub {
	if t != nil {
		merged := *t
		_ = mergo.Merge(&merged, conn.NoOpLoggingHooks)
		h.connTrace = &merged
	}
	return h
}

// ListenAndServe binds the listening socket and runs the accept loop and
// sweep loop until ctx is cancelled or Close is called. It blocks until
// the listener is closed.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	l, err := net.Listen("tcp", addr)
	h.trace.Listening(addr, err)
	if err != nil {
		return errors.Wrap(err, "hub: listen")
	}
	h.listener = l

	h.wg.Add(1)
	go h.sweepLoop()

	go func() {
		<-h.ctx.Done()
		l.Close()
	}()

	return h.acceptLoop()
}

// Close shuts the hub down: it stops accepting connections, cancels every
// endpoint's context, and waits for all per-connection goroutines and the
// sweep loop to drain.
func (h *Hub) Close() error {
	if h.cancel != nil {
		h.cancel()
	}
	var err error
	if h.listener != nil {
		err = h.listener.Close()
	}
	h.wg.Wait()
	return err
}

func (h *Hub) acceptLoop() error {
	for {
		nc, err := h.listener.Accept()
		h.trace.Accepted(remoteAddrOf(nc), err)
		if err != nil {
			h.wg.Wait()
			return err
		}
		h.wg.Add(1)
		go h.handleConn(nc)
	}
}

func remoteAddrOf(c net.Conn) net.Addr {
	if c == nil {
		return nil
	}
	return c.RemoteAddr()
}

func (h *Hub) handleConn(nc net.Conn) {
	defer h.wg.Done()

	ep := conn.New(h.ctx, nc, h.connTrace)
	defer ep.Close()

	var id string
	defer func() {
		if id != "" {
			h.removePeer(id)
		}
	}()

	for {
		m, err := ep.Receive()
		if err != nil {
			if err != io.EOF {
				// Transport/framing error: terminate the endpoint (§7).
			}
			return
		}

		if id == "" {
			cc, ok := m.(*wire.ClientConnect)
			if !ok {
				// Per §4.4, a peer's id is assigned as soon as its first
				// CLIENT_CONNECT arrives; anything else before that is
				// ignored rather than crashing the connection.
				continue
			}
			id, err = h.registerPeer(ep, cc.ClientName)
			if err != nil {
				return
			}
			h.trace.PeerID(id)
			h.bus.Publish(events.Event{Kind: events.PeerJoined, PeerID: id})
			_ = ep.Send(&wire.ClientIDResponse{Sender: wire.ServerSenderID, ClientID: id})
			continue
		}

		h.dispatch(id, m)
	}
}

func (h *Hub) registerPeer(ep *conn.Endpoint, displayName string) (string, error) {
	id, err := assignID(h.idInUse)
	if err != nil {
		return "", err
	}
	p := &peer{id: id, displayName: displayName, ep: ep, connectedAt: time.Now()}
	h.peersMu.Lock()
	h.peers[id] = p
	h.peersMu.Unlock()
	return id, nil
}

func (h *Hub) idInUse(id string) bool {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	_, ok := h.peers[id]
	return ok
}

func (h *Hub) removePeer(id string) {
	h.peersMu.Lock()
	delete(h.peers, id)
	h.peersMu.Unlock()

	for _, t := range h.registry.ByPeer(id) {
		if _, err := h.registry.Close(t.ID, false); err != nil {
			continue
		}
		if err := h.notifyPeerLost(t, id); err != nil {
			h.trace.Dispatch(wire.KindFileEnd, id, survivorOf(t, id), err)
		}
		h.bus.Publish(events.Event{Kind: events.TransferEnded, TransferID: t.ID, Err: errPeerLost})
	}

	h.bus.Publish(events.Event{Kind: events.PeerLeft, PeerID: id})
}

// survivorOf returns the id of the peer on the other end of t from the
// one identified by lostID.
func survivorOf(t *transfer.Transfer, lostID string) string {
	if t.SenderID == lostID {
		return t.TargetID
	}
	return t.SenderID
}

var errPeerLost = errors.New("hub: peer lost mid-transfer")

// notifyPeerLost tells the surviving side of transfer t that the peer
// identified by lostID disconnected, per §4.4 ("the hub SHOULD abort and
// notify the surviving side") and scenario S5: the receiver's FILE_END
// teardown (peerclient) deletes the partial file once it gets this
// frame, so the disconnecting side itself is never sent one.
func (h *Hub) notifyPeerLost(t *transfer.Transfer, lostID string) error {
	survivor := survivorOf(t, lostID)
	p, ok := h.getPeer(survivor)
	if !ok {
		return nil
	}
	return p.ep.Send(&wire.FileEnd{
		Sender:       wire.ServerSenderID,
		Target:       survivor,
		TransferID:   t.ID,
		Success:      false,
		ErrorMessage: "peer lost",
	})
}

func (h *Hub) getPeer(id string) (*peer, bool) {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	p, ok := h.peers[id]
	return p, ok
}

// snapshotPeers returns the current peer table as a slice, taken under
// the read lock and released before any network I/O — broadcast fan-out
// must never hold the table lock across a write (§5).
func (h *Hub) snapshotPeers() []*peer {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	out := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, p)
	}
	return out
}

func (h *Hub) sweepLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-ticker.C:
			h.runSweep(now)
		}
	}
}

func (h *Hub) runSweep(now time.Time) {
	expired := h.registry.Sweep(now, h.cfg.TransferIdleTimeout)
	var agg error
	for _, t := range expired {
		if err := h.notifyExpired(t); err != nil {
			agg = multierror.Append(agg, err)
		}
		h.bus.Publish(events.Event{Kind: events.TransferEnded, TransferID: t.ID, Err: errExpired})
	}
	h.trace.Sweep(len(expired), agg)
}

var errExpired = errors.New("hub: transfer expired")

func (h *Hub) notifyExpired(t *transfer.Transfer) error {
	end := &wire.FileEnd{Sender: wire.ServerSenderID, TransferID: t.ID, Success: false, ErrorMessage: "expired"}
	var agg error
	if p, ok := h.getPeer(t.SenderID); ok {
		end.Target = t.SenderID
		if err := p.ep.Send(end); err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	if p, ok := h.getPeer(t.TargetID); ok {
		endCopy := *end
		endCopy.Target = t.TargetID
		if err := p.ep.Send(&endCopy); err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	return agg
}
