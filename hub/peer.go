package hub

import (
	"time"
)

// peer is one connected client as the hub sees it: its assigned id, its
// chosen display name, and the sender used to reach it (normally a
// *conn.Endpoint).
type peer struct {
	id          string
	displayName string
	ep          sender
	connectedAt time.Time
}
