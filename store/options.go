package store

import "time"

// Options represents configuration options for the Mongo store.
type Options struct {
	// DatabaseName is the MongoDB database holding the collections.
	DatabaseName string

	// DocumentsCollection is the name of the documents collection.
	DocumentsCollection string

	// OperationsCollection is the name of the operation log collection.
	OperationsCollection string

	// MaxCommitTime bounds how long a transaction may take to commit.
	MaxCommitTime time.Duration

	// OperationTimeout is the default timeout applied to single
	// (non-transactional) store operations when the caller's context
	// carries no deadline. A value of 0 means no timeout.
	OperationTimeout time.Duration
}

// DefaultOptions returns the default store options.
func DefaultOptions() *Options {
	return &Options{
		DatabaseName:         "coedit",
		DocumentsCollection:  "documents",
		OperationsCollection: "operations",
		MaxCommitTime:        time.Second * 10,
		OperationTimeout:     time.Second * 30,
	}
}

// Option configures Options.
type Option func(*Options)

// WithDatabaseName sets the MongoDB database name.
func WithDatabaseName(name string) Option {
	return func(o *Options) {
		o.DatabaseName = name
	}
}

// WithCollections sets the documents and operations collection names.
func WithCollections(documents, operations string) Option {
	return func(o *Options) {
		o.DocumentsCollection = documents
		o.OperationsCollection = operations
	}
}

// WithMaxCommitTime bounds the transaction commit time.
func WithMaxCommitTime(d time.Duration) Option {
	return func(o *Options) {
		o.MaxCommitTime = d
	}
}

// WithOperationTimeout sets the default per-operation timeout.
func WithOperationTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.OperationTimeout = d
	}
}

// NewOptions creates Options with the given options applied over the
// defaults.
func NewOptions(opts ...Option) *Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
