package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coedit/protocol"
	"coedit/store"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings go out; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames.
	maxMessageSize = 512 * 1024

	// sendBufferSize is the outbound frame queue per session. A full
	// queue fails the send, which the hub treats as a dead session.
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSession is one WebSocket subscriber. All writes to the connection
// go through the write pump; Send only enqueues.
type wsSession struct {
	id         string
	userID     string
	documentID string
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func newWSSession(conn *websocket.Conn, userID, documentID string) *wsSession {
	return &wsSession{
		id:         uuid.NewString(),
		userID:     userID,
		documentID: documentID,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
	}
}

func (s *wsSession) ID() string     { return s.id }
func (s *wsSession) UserID() string { return s.userID }

// Send enqueues a frame for the write pump. It fails when the session
// is closed or the buffer is full; either way the session counts as
// dead for fan-out purposes.
func (s *wsSession) Send(payload []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.send <- payload:
		return nil
	case <-s.done:
		return errors.New("session closed")
	default:
		return errors.New("session send buffer full")
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

// writePump owns every write on the connection: queued frames and
// keepalive pings.
func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket is the document edit endpoint:
// GET /ws/documents/{documentID}?token=...
func (h *Handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	// Auth failure closes with 1008 (policy violation) after the
	// upgrade; nothing is ever broadcast for this connection.
	token := r.URL.Query().Get("token")
	userID, err := h.auth.VerifyToken(token)
	if err != nil {
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			deadline)
		conn.Close()
		return
	}

	doc, err := h.editor.Document(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			conn.WriteMessage(websocket.TextMessage, protocol.ErrorFrame("Document not found"))
		} else {
			h.logger.Error("Failed to load document for session",
				zap.String("document_id", documentID),
				zap.Error(err))
			conn.WriteMessage(websocket.TextMessage, protocol.ErrorFrame("Failed to load document"))
		}
		conn.Close()
		return
	}

	session := newWSSession(conn, userID, documentID)
	go session.writePump()

	// The init snapshot goes out before the hub can interleave any
	// broadcast, so it is always the first frame the client sees.
	if err := session.Send(protocol.InitFrame(doc.Content, doc.Version)); err != nil {
		session.Close()
		return
	}

	h.hub.Connect(documentID, session)
	h.readPump(session)
}

// readPump reads client frames until the connection dies. Malformed
// frames get an error reply and the connection stays open; valid
// edits go to the pipeline.
func (h *Handlers) readPump(session *wsSession) {
	defer func() {
		h.hub.Disconnect(session.documentID, session.id)
		session.Close()
	}()

	session.conn.SetReadLimit(maxMessageSize)
	session.conn.SetReadDeadline(time.Now().Add(pongWait))
	session.conn.SetPongHandler(func(string) error {
		session.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.String("session_id", session.id),
					zap.String("document_id", session.documentID),
					zap.Error(err))
			}
			return
		}

		frame, err := protocol.ParseEditFrame(message)
		if err != nil {
			session.Send(protocol.ErrorFrame("Invalid message format: " + err.Error()))
			continue
		}

		if err := h.editor.Submit(context.Background(), session, session.documentID, frame); err != nil {
			h.logger.Warn("Failed to submit edit",
				zap.String("session_id", session.id),
				zap.String("document_id", session.documentID),
				zap.Error(err))
		}
	}
}
