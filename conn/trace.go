package conn

import (
	"context"

	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"

	"github.com/filerelay/filerelay/wire"
)

// unique type to prevent assignment collisions on the context key.
type traceContextKey struct{}

// Trace defines a structure for handling per-endpoint lifecycle events.
// Every field is a hook function; callers supply only the hooks they
// care about and merge the rest from a default via WithTrace/mergo, the
// same convention the teacher's netconf/ssh trace types use.
type Trace struct {
	// Connected is called once a new Endpoint has been constructed.
	Connected func(e *Endpoint)
	// Disconnected is called once, when the endpoint is torn down,
	// whatever the cause (cause is nil for a clean Close).
	Disconnected func(e *Endpoint, cause error)
	// Sent is called after every Send attempt, successful or not.
	Sent func(e *Endpoint, m wire.Message, err error)
	// Received is called after every Receive attempt. m is nil when err
	// is non-nil.
	Received func(e *Endpoint, m wire.Message, err error)
}

// ContextTrace returns the Trace associated with ctx, merged over
// NoOpLoggingHooks so every field is callable. If ctx carries none, it
// returns NoOpLoggingHooks directly.
func ContextTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceContextKey{}).(*Trace)
	if trace == nil {
		return NoOpLoggingHooks
	}
	merged := *trace
	_ = mergo.Merge(&merged, NoOpLoggingHooks)
	return &merged
}

// WithTrace returns a context carrying trace, for any collaborator that
// reads it back with ContextTrace. conn.New does not consult the
// context; it takes its Trace as an argument.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// DefaultLoggingHooks logs only the events an operator normally cares
// about: failures, not every successful frame.
var DefaultLoggingHooks = &Trace{
	Disconnected: func(e *Endpoint, cause error) {
		if cause != nil {
			logrus.WithField("remote", e.RemoteAddr()).WithError(cause).Warn("conn: disconnected")
		}
	},
	Sent: func(e *Endpoint, m wire.Message, err error) {
		if err != nil {
			logrus.WithField("remote", e.RemoteAddr()).WithField("kind", m.Kind()).WithError(err).Warn("conn: send failed")
		}
	},
	Received: func(e *Endpoint, m wire.Message, err error) {
		if err != nil {
			logrus.WithField("remote", e.RemoteAddr()).WithError(err).Warn("conn: receive failed")
		}
	},
}

// DiagnosticLoggingHooks logs every lifecycle event, useful when
// debugging the wire protocol.
var DiagnosticLoggingHooks = &Trace{
	Connected: func(e *Endpoint) {
		logrus.WithField("remote", e.RemoteAddr()).Info("conn: connected")
	},
	Disconnected: func(e *Endpoint, cause error) {
		logrus.WithField("remote", e.RemoteAddr()).WithError(cause).Info("conn: disconnected")
	},
	Sent: func(e *Endpoint, m wire.Message, err error) {
		logrus.WithField("remote", e.RemoteAddr()).WithField("kind", m.Kind()).WithError(err).Debug("conn: sent")
	},
	Received: func(e *Endpoint, m wire.Message, err error) {
		kind := "?"
		if m != nil {
			kind = m.Kind().String()
		}
		logrus.WithField("remote", e.RemoteAddr()).WithField("kind", kind).WithError(err).Debug("conn: received")
	},
}

// NoOpLoggingHooks does nothing; it is the merge base so every Trace
// field is always callable without a nil check at the call site.
var NoOpLoggingHooks = &Trace{
	Connected:    func(e *Endpoint) {},
	Disconnected: func(e *Endpoint, cause error) {},
	Sent:         func(e *Endpoint, m wire.Message, err error) {},
	Received:     func(e *Endpoint, m wire.Message, err error) {},
}
