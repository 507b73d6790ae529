package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coedit/store"
)

const sseKeepAlivePeriod = 15 * time.Second

// sseSession is a read-only hub subscriber relayed over Server-Sent
// Events. It receives the same broadcast frames as the WebSocket
// sessions but never submits edits.
type sseSession struct {
	id        string
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSSESession(id string) *sseSession {
	return &sseSession{
		id:   id,
		ch:   make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (s *sseSession) ID() string     { return s.id }
func (s *sseSession) UserID() string { return "" }

func (s *sseSession) Send(payload []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.ch <- payload:
		return nil
	default:
		return errors.New("session send buffer full")
	}
}

func (s *sseSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// handleStream is the SSE operations feed:
// GET /api/v1/documents/{documentID}/stream
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if _, err := h.store.FindDocument(r.Context(), documentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("Failed to check document for stream",
			zap.String("document_id", documentID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := newSSESession("sse-" + uuid.NewString())
	h.hub.Connect(documentID, session)
	defer func() {
		h.hub.Disconnect(documentID, session.id)
		session.Close()
	}()

	keepAlive := time.NewTicker(sseKeepAlivePeriod)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-session.done:
			return
		case payload := <-session.ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
