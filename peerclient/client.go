// Package peerclient implements the client side of the protocol: the
// CLIENT_CONNECT handshake, chat send/receive, and the sender/receiver
// halves of a file transfer. Grounded on the teacher's netconf/client
// package's split between a thin transport wrapper (conn.Endpoint here,
// ssh.Session there) and a request/reply layer built on top of it.
package peerclient

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	"github.com/filerelay/filerelay/config"
	"github.com/filerelay/filerelay/conn"
	"github.com/filerelay/filerelay/wire"
)

// ChatHandler receives every CHAT frame routed to this client.
type ChatHandler func(m *wire.Chat)

// DownloadOffer describes a pending inbound transfer awaiting the user's
// accept/reject decision.
type DownloadOffer struct {
	TransferID string
	FileName   string
	FileSize   int64
	SenderID   string
	Ordinal    int
	offeredAt  time.Time
}

// Client is one connected peer's local handle to the hub: it owns the
// endpoint, the local peer id the hub assigned, and the upload/download
// bookkeeping built on top of the wire protocol.
type Client struct {
	cfg   *config.Config
	trace *Trace

	ep *conn.Endpoint
	id string

	chatHandler ChatHandler

	uploads   *uploadTracker
	downloads *downloadTracker

	closeOnce sync.Once
}

// Dial connects to the hub at addr, performs the CLIENT_CONNECT
// handshake under displayName, and returns a ready Client. The returned
// Client's background receive loop must be started with Client.Run.
func Dial(ctx context.Context, addr, displayName string, cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.New()
	}
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "peerclient: dial hub")
	}

	ep := conn.New(ctx, nc, nil)
	c := &Client{
		cfg:       cfg,
		trace:     NoOpLoggingHooks,
		ep:        ep,
		uploads:   newUploadTracker(),
		downloads: newDownloadTracker(),
	}

	if err := ep.Send(&wire.ClientConnect{ClientName: displayName}); err != nil {
		ep.Close()
		return nil, errors.Wrap(err, "peerclient: send CLIENT_CONNECT")
	}
	m, err := ep.Receive()
	if err != nil {
		ep.Close()
		return nil, errors.Wrap(err, "peerclient: await CLIENT_ID_RESPONSE")
	}
	resp, ok := m.(*wire.ClientIDResponse)
	if !ok {
		ep.Close()
		return nil, errors.Errorf("peerclient: expected CLIENT_ID_RESPONSE, got %T", m)
	}
	c.id = resp.ClientID
	return c, nil
}

// WithTrace installs diagnostic hooks, merged over NoOpLoggingHooks so
// any hook t leaves nil is a no-op.
func (c *Client) WithTrace(t *Trace) *Client {
	if t != nil {
		merged := *t
		_ = mergo.Merge(&merged, NoOpLoggingHooks)
		c.trace = &merged
	}
	return c
}

// OnChat registers the handler invoked for every inbound CHAT frame.
func (c *Client) OnChat(h ChatHandler) { c.chatHandler = h }

// ID returns the peer id the hub assigned this client during the
// handshake.
func (c *Client) ID() string { return c.id }

// SendChat sends a chat message, broadcast if target == "".
func (c *Client) SendChat(target, content string) error {
	return c.ep.Send(&wire.Chat{Target: target, Content: content})
}

// Close tears down the underlying connection, aborting any in-flight
// transfers.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.ep.Close() })
	return err
}

// Run drives the client's receive loop until the connection closes. It
// blocks; callers normally run it in its own goroutine. Every inbound
// frame is routed to the chat handler or to the upload/download trackers
// depending on its kind.
func (c *Client) Run() error {
	for {
		m, err := c.ep.Receive()
		if err != nil {
			c.trace.Disconnected(err)
			return err
		}
		c.route(m)
	}
}

func (c *Client) route(m wire.Message) {
	switch msg := m.(type) {
	case *wire.Chat:
		if c.chatHandler != nil {
			c.chatHandler(msg)
		}
	case *wire.FileStart:
		c.handleFileStart(msg)
	case *wire.UploadConfirmed:
		c.handleUploadConfirmed(msg)
	case *wire.FileData:
		c.handleFileData(msg)
	case *wire.FileEnd:
		c.handleFileEnd(msg)
	case *wire.Ack:
		c.handleAck(msg)
	case *wire.Error:
		c.trace.ServerError(msg.Description)
	default:
	}
}
