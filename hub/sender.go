package hub

import "github.com/filerelay/filerelay/wire"

// sender is the narrow send-only interface the dispatch table depends
// on for each peer's outbound path. *conn.Endpoint satisfies it; tests
// exercise dispatch.go against a generated mock instead of a real
// socket, the way the teacher's snmp package mocks net.PacketConn for
// server_test.go.
type sender interface {
	Send(m wire.Message) error
}
