package hub

import (
	"context"
	"net"

	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"

	"github.com/filerelay/filerelay/wire"
)

type traceContextKey struct{}

// Trace defines hub-level diagnostic hooks: accept-loop and dispatch
// events, distinct from the per-connection conn.Trace and from the
// domain events published on events.Bus. Same Default/Diagnostic/NoOp +
// mergo convention as the teacher's netconf/ssh trace types.
type Trace struct {
	Listening func(addr string, err error)
	Accepted  func(remote net.Addr, err error)
	PeerID    func(id string)
	Dispatch  func(kind wire.Kind, senderID, targetID string, err error)
	Sweep     func(expiredCount int, err error)
}

// ContextTrace returns the Trace carried by ctx, merged over
// NoOpLoggingHooks.
func ContextTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceContextKey{}).(*Trace)
	if trace == nil {
		return NoOpLoggingHooks
	}
	merged := *trace
	_ = mergo.Merge(&merged, NoOpLoggingHooks)
	return &merged
}

// WithTrace returns a context carrying trace.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

var DefaultLoggingHooks = &Trace{
	Listening: func(addr string, err error) {
		if err != nil {
			logrus.WithField("addr", addr).WithError(err).Error("hub: listen failed")
		} else {
			logrus.WithField("addr", addr).Info("hub: listening")
		}
	},
	Accepted: func(remote net.Addr, err error) {
		if err != nil {
			logrus.WithError(err).Warn("hub: accept failed")
		}
	},
	Dispatch: func(kind wire.Kind, senderID, targetID string, err error) {
		if err != nil {
			logrus.WithField("kind", kind).WithField("sender", senderID).WithField("target", targetID).WithError(err).Warn("hub: dispatch error")
		}
	},
	Sweep: func(expiredCount int, err error) {
		if expiredCount > 0 {
			logrus.WithField("expired", expiredCount).Info("hub: swept idle transfers")
		}
		if err != nil {
			logrus.WithError(err).Warn("hub: sweep notification errors")
		}
	},
}

var DiagnosticLoggingHooks = &Trace{
	Listening: func(addr string, err error) {
		logrus.WithField("addr", addr).WithError(err).Info("hub: listen")
	},
	Accepted: func(remote net.Addr, err error) {
		logrus.WithField("remote", remote).WithError(err).Info("hub: accepted")
	},
	PeerID: func(id string) {
		logrus.WithField("peer", id).Debug("hub: peer id assigned")
	},
	Dispatch: func(kind wire.Kind, senderID, targetID string, err error) {
		logrus.WithField("kind", kind).WithField("sender", senderID).WithField("target", targetID).WithError(err).Debug("hub: dispatch")
	},
	Sweep: func(expiredCount int, err error) {
		logrus.WithField("expired", expiredCount).WithError(err).Debug("hub: sweep")
	},
}

var NoOpLoggingHooks = &Trace{
	Listening: func(addr string, err error) {},
	Accepted:  func(remote net.Addr, err error) {},
	PeerID:    func(id string) {},
	Dispatch:  func(kind wire.Kind, senderID, targetID string, err error) {},
	Sweep:     func(expiredCount int, err error) {},
}
