// Package conn implements the connection endpoint: one established duplex
// byte channel with a single reader and a mutex-serialized writer, plus a
// per-connection cancellation handle.
package conn

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/filerelay/filerelay/wire"
)

// Endpoint wraps one net.Conn. Reads are single-owner: only one
// goroutine may call Receive on a given Endpoint at a time (the
// dispatcher's read loop). Send may be called concurrently from any
// number of goroutines; writeMu makes the length-prefix-then-body pair
// atomic so frames from distinct producers never interleave on the wire.
type Endpoint struct {
	conn  net.Conn
	trace *Trace

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New wraps c as an Endpoint. ctx is the parent for the endpoint's own
// cancellation context; cancelling ctx (or calling Close) tears the
// endpoint down.
func New(ctx context.Context, c net.Conn, trace *Trace) *Endpoint {
	if trace == nil {
		trace = NoOpLoggingHooks
	}
	epCtx, cancel := context.WithCancel(ctx)
	e := &Endpoint{conn: c, trace: trace, ctx: epCtx, cancel: cancel}
	trace.Connected(e)
	go func() {
		<-epCtx.Done()
		e.teardown(nil)
	}()
	return e
}

// Context returns the endpoint's cancellation context. It is cancelled
// exactly once, when the endpoint is torn down for any reason.
func (e *Endpoint) Context() context.Context { return e.ctx }

// RemoteAddr returns the underlying connection's remote address.
func (e *Endpoint) RemoteAddr() net.Addr { return e.conn.RemoteAddr() }

// Send serializes and emits one frame. On error the endpoint is
// considered dead and its cancellation signal is raised; the caller
// should still call Close for symmetry, which is a no-op at that point.
func (e *Endpoint) Send(m wire.Message) error {
	payload, err := wire.Encode(m)
	if err != nil {
		return errors.Wrap(err, "conn: encode")
	}

	e.writeMu.Lock()
	err = wire.WriteFrame(e.conn, payload)
	e.writeMu.Unlock()

	e.trace.Sent(e, m, err)
	if err != nil {
		e.teardown(err)
		return errors.Wrap(err, "conn: send")
	}
	return nil
}

// Receive reads and decodes the next frame. It returns io.EOF on an
// orderly close by the peer, or a wrapped error for a transport failure
// or a framing violation. Receive is not safe to call concurrently with
// itself on the same Endpoint.
func (e *Endpoint) Receive() (wire.Message, error) {
	payload, err := wire.ReadFrame(e.conn)
	if err != nil {
		e.trace.Received(e, nil, err)
		if err == io.EOF {
			e.teardown(nil)
			return nil, io.EOF
		}
		e.teardown(err)
		return nil, errors.Wrap(err, "conn: receive")
	}

	m, err := wire.Decode(payload)
	e.trace.Received(e, m, err)
	if err != nil {
		// Framing errors are non-recoverable for the connection (§7).
		e.teardown(err)
		return nil, errors.Wrap(err, "conn: decode")
	}
	return m, nil
}

// Close is idempotent: it releases the underlying connection and raises
// the cancellation signal exactly once, regardless of how many times or
// from how many goroutines it is called.
func (e *Endpoint) Close() error {
	e.teardown(nil)
	return e.closeErr
}

func (e *Endpoint) teardown(cause error) {
	e.closeOnce.Do(func() {
		e.cancel()
		e.closeErr = e.conn.Close()
		e.trace.Disconnected(e, cause)
	})
}
