package peerclient

import (
	"context"

	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"
)

type traceContextKey struct{}

// Trace defines diagnostic hooks for the client side of the protocol:
// upload/download progress and server-reported errors, following the
// same Default/Diagnostic/NoOp + mergo convention used throughout this
// repo (conn.Trace, hub.Trace).
type Trace struct {
	Disconnected       func(err error)
	ServerError        func(description string)
	Compressed         func(path string, originalSize, compressedSize int64)
	CompressionSkipped func(path string, err error)
	ChunkAcked         func(transferID string, seq int32)
	ChunkOutOfOrder    func(transferID string, expected, got int32)
	DownloadOffered    func(offer DownloadOffer)
	DownloadExpired    func(transferID string)
	DownloadWriteError func(transferID string, err error)
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
	ServerError: func(description string) {
		logrus.WithField("description", description).Warn("peerclient: server reported an error")
	},
	DownloadWriteError: func(transferID string, err error) {
		logrus.WithField("transfer", transferID).WithError(err).Error("peerclient: failed writing download")
	},
}

var DiagnosticLoggingHooks = &Trace{
	Disconnected: func(err error) {
		logrus.WithError(err).Info("peerclient: disconnected")
	},
	ServerError: func(description string) {
		logrus.WithField("description", description).Info("peerclient: server error")
	},
	Compressed: func(path string, originalSize, compressedSize int64) {
		logrus.WithField("path", path).WithField("original", originalSize).WithField("compressed", compressedSize).Debug("peerclient: compressed upload")
	},
	CompressionSkipped: func(path string, err error) {
		logrus.WithField("path", path).WithError(err).Debug("peerclient: compression skipped")
	},
	ChunkAcked: func(transferID string, seq int32) {
		logrus.WithField("transfer", transferID).WithField("seq", seq).Debug("peerclient: chunk acked")
	},
	ChunkOutOfOrder: func(transferID string, expected, got int32) {
		logrus.WithField("transfer", transferID).WithField("expected", expected).WithField("got", got).Debug("peerclient: chunk out of order")
	},
	DownloadOffered: func(offer DownloadOffer) {
		logrus.WithField("transfer", offer.TransferID).WithField("file", offer.FileName).Debug("peerclient: download offered")
	},
	DownloadExpired: func(transferID string) {
		logrus.WithField("transfer", transferID).Debug("peerclient: download offer expired")
	},
	DownloadWriteError: func(transferID string, err error) {
		logrus.WithField("transfer", transferID).WithError(err).Debug("peerclient: download write error")
	},
}

var NoOpLoggingHooks = &Trace{
	Disconnected:       func(err error) {},
	ServerError:        func(description string) {},
	Compressed:         func(path string, originalSize, compressedSize int64) {},
	CompressionSkipped: func(path string, err error) {},
	ChunkAcked:         func(transferID string, seq int32) {},
	ChunkOutOfOrder:    func(transferID string, expected, got int32) {},
	DownloadOffered:    func(offer DownloadOffer) {},
	DownloadExpired:    func(transferID string) {},
	DownloadWriteError: func(transferID string, err error) {},
}
