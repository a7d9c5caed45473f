// Package config provides functional-options configuration shared by
// hub.Hub and peerclient.Client, grounded on netconf/client/config.go's
// Config-struct-plus-option-function pattern.
package config

import (
	"time"

	"github.com/filerelay/filerelay/transfer"
)

const (
	// DefaultPort is the hub's default listening port (§6).
	DefaultPort = 8888

	// DefaultTransferIdleTimeout is the registry sweep's idle cap (§4.3,
	// §5): a transfer untouched for this long is aborted and removed.
	DefaultTransferIdleTimeout = 5 * time.Minute

	// DefaultSweepInterval is how often the hub runs the idle sweep (§4.4).
	DefaultSweepInterval = 1 * time.Minute

	// DefaultPendingUploadTimeout bounds how long a sender waits locally
	// for UPLOAD_CONFIRMED before giving up (§3, §5).
	DefaultPendingUploadTimeout = 2 * time.Minute

	// DefaultPendingDownloadTimeout bounds how long a receiver holds a
	// proposed transfer awaiting user acceptance (§3, §5).
	DefaultPendingDownloadTimeout = 10 * time.Minute

	// DefaultMaxFileSize is the sender-side size ceiling (§4.5).
	DefaultMaxFileSize = 100 * 1024 * 1024

	// DefaultCompressionThreshold is the size above which the peer
	// client core will attempt compression before sending (§4.5).
	DefaultCompressionThreshold = 10 * 1024 * 1024

	// DefaultStorageDir is where the receiver writes completed downloads
	// (§6).
	DefaultStorageDir = "storage"
)

// Config holds the tunables shared across hub and peer client. Zero
// value is not meaningful; use New.
type Config struct {
	Port                   int
	TransferIdleTimeout    time.Duration
	SweepInterval          time.Duration
	PendingUploadTimeout   time.Duration
	PendingDownloadTimeout time.Duration
	MaxFileSize            int64
	CompressionThreshold   int64
	StorageDir             string
	UploadPolicy           transfer.UploadPolicy
}

// Option configures a Config.
type Option func(*Config)

// New builds a Config from defaults, applying opts in order.
func New(opts ...Option) *Config {
	c := &Config{
		Port:                   DefaultPort,
		TransferIdleTimeout:    DefaultTransferIdleTimeout,
		SweepInterval:          DefaultSweepInterval,
		PendingUploadTimeout:   DefaultPendingUploadTimeout,
		PendingDownloadTimeout: DefaultPendingDownloadTimeout,
		MaxFileSize:            DefaultMaxFileSize,
		CompressionThreshold:   DefaultCompressionThreshold,
		StorageDir:             DefaultStorageDir,
		UploadPolicy:           transfer.AllowAll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithPort overrides the hub's listening port.
func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

// WithStorageDir overrides the receiver's download directory.
func WithStorageDir(dir string) Option {
	return func(c *Config) { c.StorageDir = dir }
}

// WithUploadPolicy installs a file-name/size allow-list hook (§9: the
// file-type allow-list is a pluggable policy hook, not part of the wire
// contract).
func WithUploadPolicy(p transfer.UploadPolicy) Option {
	return func(c *Config) { c.UploadPolicy = p }
}

// WithTransferIdleTimeout overrides the registry sweep's idle cap.
func WithTransferIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.TransferIdleTimeout = d }
}

// WithSweepInterval overrides how often the hub runs the idle sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Config) { c.SweepInterval = d }
}

// WithCompressionThreshold overrides the size above which the sender
// attempts compression before sending.
func WithCompressionThreshold(n int64) Option {
	return func(c *Config) { c.CompressionThreshold = n }
}
