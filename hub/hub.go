// Package hub tracks the live subscriber sessions of each document and
// multiplexes outbound frames to them.
//
// The hub guarantees ordering only within a single Broadcast call;
// global per-document ordering comes from the edit pipeline, which
// serializes commits and broadcasts them in applied-version order.
package hub

import (
	"sync"

	"go.uber.org/zap"

	"coedit/core"
)

// Session is one live subscriber connection. Send must serialize
// writes internally; the hub may call it from any goroutine.
type Session interface {
	// ID is the unique session identifier.
	ID() string

	// UserID is the authenticated user behind the session.
	UserID() string

	// Send delivers an already-encoded frame to the peer. An error
	// marks the session dead; the hub disconnects it.
	Send(payload []byte) error

	// Close tears down the underlying connection.
	Close() error
}

// Hub is the per-document subscriber registry.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Session // documentID -> sessionID -> session
	logger   *zap.Logger
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]Session),
		logger:   core.With(zap.String("component", "hub")),
	}
}

// Connect adds a session to the document's subscriber set, creating
// the set if absent. Re-connecting the same session ID replaces the
// previous entry, so the set never holds duplicates.
func (h *Hub) Connect(documentID string, session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[documentID]; !ok {
		h.sessions[documentID] = make(map[string]Session)
	}
	h.sessions[documentID][session.ID()] = session

	h.logger.Info("Session connected",
		zap.String("session_id", session.ID()),
		zap.String("user_id", session.UserID()),
		zap.String("document_id", documentID))
}

// Disconnect removes a session from the document's subscriber set.
// When the set empties, the document entry is removed too.
func (h *Hub) Disconnect(documentID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.sessions[documentID]
	if !ok {
		return
	}

	if _, ok := sessions[sessionID]; ok {
		delete(sessions, sessionID)
		h.logger.Info("Session disconnected",
			zap.String("session_id", sessionID),
			zap.String("document_id", documentID))
	}

	if len(sessions) == 0 {
		delete(h.sessions, documentID)
	}
}

// Broadcast sends payload to every subscriber of the document except
// excludeSessionID. A failed send disconnects and closes that session
// but never aborts fan-out to the rest.
func (h *Hub) Broadcast(documentID string, payload []byte, excludeSessionID string) {
	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions[documentID]))
	for id, session := range h.sessions[documentID] {
		if id == excludeSessionID {
			continue
		}
		targets = append(targets, session)
	}
	h.mu.RUnlock()

	for _, session := range targets {
		if err := session.Send(payload); err != nil {
			h.logger.Warn("Failed to send to session, disconnecting",
				zap.String("session_id", session.ID()),
				zap.String("document_id", documentID),
				zap.Error(err))
			h.Disconnect(documentID, session.ID())
			session.Close()
		}
	}
}

// Subscribers returns the number of live sessions on a document.
func (h *Hub) Subscribers(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[documentID])
}

// Close disconnects every session and empties the registry.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sessions := range h.sessions {
		for _, session := range sessions {
			session.Close()
		}
	}
	h.sessions = make(map[string]map[string]Session)
}
