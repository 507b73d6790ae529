// Package store provides versioned persistence for collaborative
// documents and their operation log.
//
// A Store keeps a (content, version) pair per document plus an
// append-only log of committed operations keyed by
// (document_id, applied_version). RunEditTransaction is the
// transactional critical section the edit pipeline runs inside: it
// reads the current document, collects the operations the client has
// not seen, and commits the new content together with the new
// operation row atomically.
//
// Two adapters are provided: MongoStore for production deployments and
// MemoryStore for tests and single-process setups.
package store

import "context"

// EditFunc is invoked by RunEditTransaction with the current document
// and the operations committed after the caller's base version,
// ordered ascending by applied version. It returns the new content and
// the operation row to append. Returning an error aborts the
// transaction; nothing is written.
type EditFunc func(doc *Document, missed []*Operation) (newContent string, op *Operation, err error)

// Store is the persistence abstraction consumed by the edit pipeline
// and the HTTP API.
type Store interface {
	// InsertDocument creates a new document row. The caller assigns
	// the ID; Version should start at 0.
	InsertDocument(ctx context.Context, doc *Document) error

	// FindDocument retrieves a document by ID.
	// Returns ErrNotFound if no such document exists.
	FindDocument(ctx context.Context, id string) (*Document, error)

	// SetDocumentTitle updates document metadata only. Content and
	// version are owned by the edit pipeline and are never touched
	// here. Returns the updated document or ErrNotFound.
	SetDocumentTitle(ctx context.Context, id, title string) (*Document, error)

	// ListOperations returns the operations of a document with
	// applied_version > afterVersion, ordered ascending.
	ListOperations(ctx context.Context, documentID string, afterVersion int64) ([]*Operation, error)

	// RunEditTransaction runs fn inside an exclusive critical section
	// on the document row: read document, collect missed operations
	// (applied_version > baseVersion, ascending), invoke fn, then
	// atomically write the new content and version and append the
	// returned operation. On any failure the transaction rolls back
	// and no partial state remains.
	//
	// Returns the committed operation and the new document version,
	// ErrNotFound when the document does not exist, ErrConflict when
	// the final write observed a different version than the read, or a
	// wrapped storage error.
	//
	// The store supplies atomicity; the caller enforces the
	// version-increment invariant by setting op.AppliedVersion.
	RunEditTransaction(ctx context.Context, documentID string, baseVersion int64, fn EditFunc) (*Operation, int64, error)

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
