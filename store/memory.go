package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore implements Store with in-process maps. A per-document
// mutex gives RunEditTransaction the same exclusivity the Mongo
// adapter gets from its transaction, and every value crossing the API
// boundary is deep-copied so callers never share internal state.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	// operations are kept in applied_version order per document.
	operations map[string][]*Operation
	docLocks   map[string]*sync.Mutex
	closed     bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:  make(map[string]*Document),
		operations: make(map[string][]*Operation),
		docLocks:   make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) docLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.docLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.docLocks[id] = lock
	}
	return lock
}

// InsertDocument creates a new document row.
func (s *MemoryStore) InsertDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	now := time.Now().UTC()
	stored := doc.Copy()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	s.documents[stored.ID] = stored
	return nil
}

// FindDocument retrieves a document by ID.
func (s *MemoryStore) FindDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Copy(), nil
}

// SetDocumentTitle updates the document title only.
func (s *MemoryStore) SetDocumentTitle(ctx context.Context, id, title string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Title = title
	doc.UpdatedAt = time.Now().UTC()
	return doc.Copy(), nil
}

// ListOperations returns operations with applied_version > afterVersion
// ordered ascending.
func (s *MemoryStore) ListOperations(ctx context.Context, documentID string, afterVersion int64) ([]*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.missedLocked(documentID, afterVersion), nil
}

func (s *MemoryStore) missedLocked(documentID string, afterVersion int64) []*Operation {
	var out []*Operation
	for _, op := range s.operations[documentID] {
		if op.AppliedVersion > afterVersion {
			out = append(out, op.Copy())
		}
	}
	return out
}

// RunEditTransaction runs fn while holding the document's lock. The
// write happens only after fn returns without error, so a failed fn
// leaves no partial state.
func (s *MemoryStore) RunEditTransaction(ctx context.Context, documentID string, baseVersion int64, fn EditFunc) (*Operation, int64, error) {
	lock := s.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	closed := s.closed
	doc, ok := s.documents[documentID]
	var snapshot *Document
	if ok {
		snapshot = doc.Copy()
	}
	missed := s.missedLocked(documentID, baseVersion)
	s.mu.RUnlock()

	if closed {
		return nil, 0, ErrClosed
	}
	if !ok {
		return nil, 0, ErrNotFound
	}

	newContent, op, err := fn(snapshot, missed)
	if err != nil {
		return nil, 0, err
	}

	stored := op.Copy()
	if stored.ID.IsZero() {
		stored.ID = primitive.NewObjectID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	doc, ok = s.documents[documentID]
	if !ok {
		s.mu.Unlock()
		return nil, 0, ErrNotFound
	}
	if doc.Version != snapshot.Version {
		current := doc.Version
		s.mu.Unlock()
		return nil, 0, NewConflictError(documentID, snapshot.Version, current)
	}
	doc.Content = newContent
	doc.Version = stored.AppliedVersion
	doc.UpdatedAt = time.Now().UTC()
	s.operations[documentID] = append(s.operations[documentID], stored)
	s.mu.Unlock()

	return stored.Copy(), stored.AppliedVersion, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
