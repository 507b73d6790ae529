// Package protocol defines the JSON frames exchanged over the
// document WebSocket and the SSE operations feed.
//
// Client-to-server frames carry one edit. Server-to-client frames are
// discriminated by a "type" field: "init" on accept, "ack" to the
// sender of a committed edit, "op" to every other subscriber,
// "sync_needed" when the sender's base version was stale, and "error".
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"coedit/store"
)

// EditFrame is the client-to-server edit message. InsertText is a
// pointer because the wire format allows an explicit null.
type EditFrame struct {
	Position    int     `json:"position"`
	InsertText  *string `json:"insert_text"`
	DeleteLen   int     `json:"delete_len"`
	BaseVersion int64   `json:"base_version"`
}

// Text returns the insert text, treating null as empty.
func (f EditFrame) Text() string {
	if f.InsertText == nil {
		return ""
	}
	return *f.InsertText
}

// Validate checks the frame's field ranges. Out-of-range positions
// are not rejected here; they are clamped at apply time.
func (f EditFrame) Validate() error {
	if f.Position < 0 {
		return fmt.Errorf("position must be >= 0, got %d", f.Position)
	}
	if f.DeleteLen < 0 {
		return fmt.Errorf("delete_len must be >= 0, got %d", f.DeleteLen)
	}
	if f.BaseVersion < 0 {
		return fmt.Errorf("base_version must be >= 0, got %d", f.BaseVersion)
	}
	return nil
}

// ParseEditFrame decodes and validates a client frame.
func ParseEditFrame(data []byte) (EditFrame, error) {
	var frame EditFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := frame.Validate(); err != nil {
		return frame, err
	}
	return frame, nil
}

// OpPayload is the operation shape embedded in ack and op frames.
type OpPayload struct {
	ID          string    `json:"id"`
	DocID       string    `json:"doc_id"`
	UserID      string    `json:"user_id"`
	BaseVersion int64     `json:"base_version"`
	Position    int       `json:"position"`
	InsertText  string    `json:"insert_text"`
	DeleteLen   int       `json:"delete_len"`
	CreatedAt   time.Time `json:"created_at"`
}

// OpFromRecord converts a persisted operation to its wire shape.
func OpFromRecord(op *store.Operation) OpPayload {
	return OpPayload{
		ID:          op.ID.Hex(),
		DocID:       op.DocumentID,
		UserID:      op.UserID,
		BaseVersion: op.BaseVersion,
		Position:    op.Position,
		InsertText:  op.InsertText,
		DeleteLen:   op.DeleteLen,
		CreatedAt:   op.CreatedAt,
	}
}

type initFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Version int64  `json:"version"`
}

type opFrame struct {
	Type           string    `json:"type"`
	Op             OpPayload `json:"op"`
	UpdatedVersion int64     `json:"updated_version"`
}

type syncNeededFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Version int64  `json:"version"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// marshal encodes v, which is always one of the frame structs above;
// they contain nothing json.Marshal can reject.
func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal frame: %v", err))
	}
	return data
}

// InitFrame is the first frame sent after a connection is accepted.
func InitFrame(content string, version int64) []byte {
	return marshal(initFrame{Type: "init", Content: content, Version: version})
}

// AckFrame acknowledges a committed edit to its sender.
func AckFrame(op *store.Operation, updatedVersion int64) []byte {
	return marshal(opFrame{Type: "ack", Op: OpFromRecord(op), UpdatedVersion: updatedVersion})
}

// OpFrame delivers a committed edit to the other subscribers.
func OpFrame(op *store.Operation, updatedVersion int64) []byte {
	return marshal(opFrame{Type: "op", Op: OpFromRecord(op), UpdatedVersion: updatedVersion})
}

// SyncNeededFrame carries a full snapshot to a sender whose base
// version was stale.
func SyncNeededFrame(content string, version int64) []byte {
	return marshal(syncNeededFrame{Type: "sync_needed", Content: content, Version: version})
}

// ErrorFrame reports a recoverable error to one session.
func ErrorFrame(message string) []byte {
	return marshal(errorFrame{Type: "error", Message: message})
}
