// Package editor implements the edit pipeline: it turns validated
// inbound edit frames into committed operations and broadcast-ready
// payloads.
//
// One edit flows preflight -> per-document queue -> transform ->
// apply -> persist -> ack/broadcast. Every edit for a document is
// routed through a single-consumer queue owned by a per-document
// worker goroutine, so two commits against the same document never
// interleave and broadcasts leave in applied-version order.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"coedit/cache"
	"coedit/core"
	"coedit/hub"
	"coedit/ot"
	"coedit/protocol"
	"coedit/store"
)

// ErrShuttingDown is returned by Submit after Shutdown has begun.
var ErrShuttingDown = errors.New("editor is shutting down")

// Service is the edit pipeline.
type Service struct {
	store  store.Store
	hub    *hub.Hub
	cache  cache.Cache[*store.Document]
	logger *zap.Logger
	opts   *Options

	mu      sync.Mutex
	workers map[string]*docWorker
	wg      sync.WaitGroup
	closed  bool
}

type job struct {
	session hub.Session
	frame   protocol.EditFrame
}

type docWorker struct {
	documentID string
	jobs       chan job
}

// NewService creates the edit pipeline.
func NewService(st store.Store, h *hub.Hub, c cache.Cache[*store.Document], opts ...Option) *Service {
	options := DefaultServiceOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Service{
		store:   st,
		hub:     h,
		cache:   c,
		logger:  core.With(zap.String("component", "editor")),
		opts:    options,
		workers: make(map[string]*docWorker),
	}
}

// Document returns the current snapshot of a document, consulting the
// cache first and filling it on a miss. The returned value is the
// caller's to keep.
func (s *Service) Document(ctx context.Context, id string) (*store.Document, error) {
	if doc, err := s.cache.Get(ctx, id); err == nil {
		return doc, nil
	}

	doc, err := s.store.FindDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, id, doc, s.opts.CacheTTL); err != nil {
		s.logger.Warn("Failed to cache document",
			zap.String("document_id", id),
			zap.Error(err))
	}

	return doc, nil
}

// Submit runs the preflight check on the caller's goroutine and, when
// it passes, hands the edit to the document's worker. Replies to the
// sender (sync_needed, error, ack) go through session.Send; committed
// operations are broadcast to the document's other subscribers.
func (s *Service) Submit(ctx context.Context, session hub.Session, documentID string, frame protocol.EditFrame) error {
	if s.opts.PreflightEnabled {
		done, err := s.preflight(ctx, session, documentID, frame)
		if err != nil || done {
			return err
		}
	}

	if err := s.enqueue(documentID, job{session: session, frame: frame}); err != nil {
		s.sendToSender(session, documentID, protocol.ErrorFrame("Server busy, try again"))
		return err
	}
	return nil
}

// preflight is the cheap advisory path: a base version that does not
// match the current document version gets a sync_needed snapshot
// without touching the transaction. It reports done=true when the
// sender has already been answered.
func (s *Service) preflight(ctx context.Context, session hub.Session, documentID string, frame protocol.EditFrame) (bool, error) {
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendToSender(session, documentID, protocol.ErrorFrame("Document not found"))
			return true, nil
		}
		// The preflight is advisory; a storage hiccup here falls
		// through to the transactional path.
		s.logger.Warn("Preflight lookup failed",
			zap.String("document_id", documentID),
			zap.Error(err))
		return false, nil
	}

	if frame.BaseVersion != doc.Version {
		s.sendToSender(session, documentID, protocol.SyncNeededFrame(doc.Content, doc.Version))
		return true, nil
	}
	return false, nil
}

// enqueue routes the job to the document's worker, creating one when
// absent. The worker map mutex also covers the channel send, so a
// retiring worker can verify its queue is empty before leaving the
// map.
func (s *Service) enqueue(documentID string, j job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrShuttingDown
	}

	w, ok := s.workers[documentID]
	if !ok {
		w = &docWorker{
			documentID: documentID,
			jobs:       make(chan job, s.opts.QueueSize),
		}
		s.workers[documentID] = w
		s.wg.Add(1)
		go s.runWorker(w)
	}

	select {
	case w.jobs <- j:
		return nil
	default:
		return fmt.Errorf("edit queue full for document %s", documentID)
	}
}

// runWorker drains one document's queue. After WorkerIdleTTL without
// jobs the worker retires; retirement is checked under the service
// mutex so no job can slip into a dead queue.
func (s *Service) runWorker(w *docWorker) {
	defer s.wg.Done()

	idle := time.NewTimer(s.opts.WorkerIdleTTL)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-w.jobs:
			if !ok {
				return
			}
			s.commit(w.documentID, j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.opts.WorkerIdleTTL)
		case <-idle.C:
			s.mu.Lock()
			if len(w.jobs) == 0 && !s.closed {
				delete(s.workers, w.documentID)
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			idle.Reset(s.opts.WorkerIdleTTL)
		}
	}
}

// commit runs the transactional path for one edit and delivers the
// results. It runs on the document worker, never on the connection
// handler, so a sender disconnect cannot cancel an in-flight commit.
func (s *Service) commit(documentID string, j job) {
	// The commit deliberately ignores the session's lifetime: commit
	// or rollback runs to completion and survivors still get the
	// broadcast.
	ctx := context.Background()

	var committed *store.Document

	op, newVersion, err := s.store.RunEditTransaction(ctx, documentID, j.frame.BaseVersion,
		func(doc *store.Document, missed []*store.Operation) (string, *store.Operation, error) {
			in := ot.Edit{
				Position:   j.frame.Position,
				InsertText: j.frame.Text(),
				DeleteLen:  j.frame.DeleteLen,
				UserID:     j.session.UserID(),
			}
			transformed := ot.Transform(in, missedEdits(missed))

			newContent := doc.Content
			if transformed.InsertText != "" || transformed.DeleteLen > 0 {
				newContent = ot.Apply(newContent, transformed)
			}

			rec := &store.Operation{
				DocumentID:     documentID,
				UserID:         j.session.UserID(),
				BaseVersion:    j.frame.BaseVersion,
				Position:       transformed.Position,
				InsertText:     transformed.InsertText,
				DeleteLen:      transformed.DeleteLen,
				AppliedVersion: doc.Version + 1,
				CreatedAt:      time.Now().UTC(),
			}

			committed = doc.Copy()
			committed.Content = newContent
			committed.Version = rec.AppliedVersion

			return newContent, rec, nil
		})

	if err != nil {
		s.deliverError(j.session, documentID, err)
		return
	}

	// Write-through so the next preflight sees the committed version.
	if err := s.cache.Set(ctx, documentID, committed, s.opts.CacheTTL); err != nil {
		s.logger.Warn("Failed to write document through to cache",
			zap.String("document_id", documentID),
			zap.Error(err))
	}

	s.logger.Debug("Operation committed",
		zap.String("document_id", documentID),
		zap.String("user_id", j.session.UserID()),
		zap.Int64("applied_version", newVersion))

	// A dead sender drops the ack silently; the commit stands either
	// way and the rest still hear about it.
	if err := j.session.Send(protocol.AckFrame(op, newVersion)); err != nil {
		s.logger.Debug("Ack dropped, sender gone",
			zap.String("session_id", j.session.ID()),
			zap.String("document_id", documentID))
	}

	s.hub.Broadcast(documentID, protocol.OpFrame(op, newVersion), j.session.ID())
}

// deliverError maps a transaction failure to the sender-only error
// frame. Nothing is broadcast; atomicity left the document unchanged.
func (s *Service) deliverError(session hub.Session, documentID string, err error) {
	msg := "Failed to apply operation"
	if errors.Is(err, store.ErrNotFound) {
		msg = "Document not found"
	}

	s.logger.Error("Edit transaction failed",
		zap.String("document_id", documentID),
		zap.String("session_id", session.ID()),
		zap.Error(err))

	s.sendToSender(session, documentID, protocol.ErrorFrame(msg))
}

func (s *Service) sendToSender(session hub.Session, documentID string, payload []byte) {
	if err := session.Send(payload); err != nil {
		s.hub.Disconnect(documentID, session.ID())
		session.Close()
	}
}

func missedEdits(ops []*store.Operation) []ot.Edit {
	edits := make([]ot.Edit, len(ops))
	for i, op := range ops {
		edits[i] = ot.Edit{
			Position:   op.Position,
			InsertText: op.InsertText,
			DeleteLen:  op.DeleteLen,
			UserID:     op.UserID,
		}
	}
	return edits
}

// Shutdown stops accepting edits and waits for every queued job to
// commit and broadcast.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, w := range s.workers {
		close(w.jobs)
	}
	s.workers = make(map[string]*docWorker)
	s.mu.Unlock()

	s.wg.Wait()
}
