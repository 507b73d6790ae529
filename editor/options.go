package editor

import "time"

// Options represents configuration options for the edit pipeline.
type Options struct {
	// QueueSize is the per-document job queue capacity. A full queue
	// rejects the edit with an error frame rather than blocking the
	// reader.
	QueueSize int

	// WorkerIdleTTL is how long a document worker lingers without
	// jobs before it retires. Workers are re-created on demand.
	WorkerIdleTTL time.Duration

	// PreflightEnabled toggles the advisory stale-version check that
	// runs before a job is enqueued.
	PreflightEnabled bool

	// CacheTTL is the TTL used for document snapshots written through
	// to the cache.
	CacheTTL time.Duration
}

// DefaultServiceOptions returns the default pipeline options.
func DefaultServiceOptions() *Options {
	return &Options{
		QueueSize:        64,
		WorkerIdleTTL:    time.Minute,
		PreflightEnabled: true,
		CacheTTL:         time.Hour,
	}
}

// Option configures Options.
type Option func(*Options)

// WithQueueSize sets the per-document job queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Options) {
		o.QueueSize = n
	}
}

// WithWorkerIdleTTL sets how long an idle document worker lingers.
func WithWorkerIdleTTL(d time.Duration) Option {
	return func(o *Options) {
		o.WorkerIdleTTL = d
	}
}

// WithPreflight toggles the advisory stale-version check.
func WithPreflight(enabled bool) Option {
	return func(o *Options) {
		o.PreflightEnabled = enabled
	}
}

// WithCacheTTL sets the TTL for write-through document snapshots.
func WithCacheTTL(d time.Duration) Option {
	return func(o *Options) {
		o.CacheTTL = d
	}
}
