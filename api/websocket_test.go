package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coedit/protocol"
)

// wsFrame is the union of every server frame shape.
type wsFrame struct {
	Type           string             `json:"type"`
	Content        string             `json:"content"`
	Version        int64              `json:"version"`
	Message        string             `json:"message"`
	Op             protocol.OpPayload `json:"op"`
	UpdatedVersion int64              `json:"updated_version"`
}

func (ts *testServer) dialWS(t *testing.T, documentID, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.httpSrv.URL, "http") +
		"/ws/documents/" + documentID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

func readWSFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame wsFrame
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func sendEdit(t *testing.T, conn *websocket.Conn, position int, insertText string, deleteLen int, baseVersion int64) {
	t.Helper()

	frame := map[string]interface{}{
		"position":     position,
		"insert_text":  nil,
		"delete_len":   deleteLen,
		"base_version": baseVersion,
	}
	if insertText != "" {
		frame["insert_text"] = insertText
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func TestWebSocketSendsInitFrameFirst(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerAndLogin(t, "alice")
	doc := ts.createDocument(t, token, "Notes", "hello")

	conn := ts.dialWS(t, doc.ID, token)

	frame := readWSFrame(t, conn)
	assert.Equal(t, "init", frame.Type)
	assert.Equal(t, "hello", frame.Content)
	assert.Equal(t, int64(0), frame.Version)
}

func TestWebSocketEditAckAndBroadcast(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, aliceID := ts.registerAndLogin(t, "alice")
	bobToken, _ := ts.registerAndLogin(t, "bob")
	doc := ts.createDocument(t, aliceToken, "Notes", "hello")

	alice := ts.dialWS(t, doc.ID, aliceToken)
	bob := ts.dialWS(t, doc.ID, bobToken)
	require.Equal(t, "init", readWSFrame(t, alice).Type)
	require.Equal(t, "init", readWSFrame(t, bob).Type)

	sendEdit(t, alice, 5, "!", 0, 0)

	ack := readWSFrame(t, alice)
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, int64(1), ack.UpdatedVersion)
	assert.Equal(t, aliceID, ack.Op.UserID)
	assert.Equal(t, doc.ID, ack.Op.DocID)

	broadcast := readWSFrame(t, bob)
	assert.Equal(t, "op", broadcast.Type)
	assert.Equal(t, ack.Op.ID, broadcast.Op.ID)
	assert.Equal(t, int64(1), broadcast.UpdatedVersion)
}

func TestWebSocketTwoWayEditing(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, _ := ts.registerAndLogin(t, "alice")
	bobToken, _ := ts.registerAndLogin(t, "bob")
	doc := ts.createDocument(t, aliceToken, "Notes", "")

	alice := ts.dialWS(t, doc.ID, aliceToken)
	bob := ts.dialWS(t, doc.ID, bobToken)
	require.Equal(t, "init", readWSFrame(t, alice).Type)
	require.Equal(t, "init", readWSFrame(t, bob).Type)

	sendEdit(t, alice, 0, "Hello", 0, 0)
	require.Equal(t, "ack", readWSFrame(t, alice).Type)
	require.Equal(t, "op", readWSFrame(t, bob).Type)

	sendEdit(t, bob, 5, " world", 0, 1)
	require.Equal(t, "ack", readWSFrame(t, bob).Type)
	require.Equal(t, "op", readWSFrame(t, alice).Type)

	final, err := ts.store.FindDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", final.Content)
	assert.Equal(t, int64(2), final.Version)
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerAndLogin(t, "alice")
	doc := ts.createDocument(t, token, "Notes", "")

	// The upgrade succeeds; the close comes as a policy violation.
	url := "ws" + strings.TrimPrefix(ts.httpSrv.URL, "http") +
		"/ws/documents/" + doc.ID + "?token=not-a-token"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected close 1008, got %v", err)
}

func TestWebSocketUnknownDocument(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerAndLogin(t, "alice")

	conn := ts.dialWS(t, "nope", token)

	frame := readWSFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "Document not found", frame.Message)
}

func TestWebSocketMalformedFrameKeepsConnectionOpen(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerAndLogin(t, "alice")
	doc := ts.createDocument(t, token, "Notes", "")

	conn := ts.dialWS(t, doc.ID, token)
	require.Equal(t, "init", readWSFrame(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := readWSFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Message, "Invalid message format")

	// The connection survived; a valid edit still goes through.
	sendEdit(t, conn, 0, "x", 0, 0)
	ack := readWSFrame(t, conn)
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, int64(1), ack.UpdatedVersion)
}

func TestWebSocketStaleBaseVersionGetsSyncNeeded(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerAndLogin(t, "alice")
	doc := ts.createDocument(t, token, "Notes", "hello")

	conn := ts.dialWS(t, doc.ID, token)
	require.Equal(t, "init", readWSFrame(t, conn).Type)

	sendEdit(t, conn, 0, "x", 0, 7)

	frame := readWSFrame(t, conn)
	assert.Equal(t, "sync_needed", frame.Type)
	assert.Equal(t, "hello", frame.Content)
	assert.Equal(t, int64(0), frame.Version)
}

func TestSSEStreamRelaysCommittedOperations(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerAndLogin(t, "alice")
	doc := ts.createDocument(t, token, "Notes", "hello")

	resp, err := http.Get(ts.httpSrv.URL + "/api/v1/documents/" + doc.ID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the stream's hub subscription before committing.
	require.Eventually(t, func() bool {
		return ts.hub.Subscribers(doc.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn := ts.dialWS(t, doc.ID, token)
	require.Equal(t, "init", readWSFrame(t, conn).Type)
	sendEdit(t, conn, 5, "!", 0, 0)
	require.Equal(t, "ack", readWSFrame(t, conn).Type)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var frame wsFrame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		assert.Equal(t, "op", frame.Type)
		assert.Equal(t, "!", frame.Op.InsertText)
		assert.Equal(t, int64(1), frame.UpdatedVersion)
		return
	}
	t.Fatalf("stream ended without an operation event: %v", scanner.Err())
}

func TestSSEStreamUnknownDocument(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.httpSrv.URL + "/api/v1/documents/nope/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
