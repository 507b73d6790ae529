package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"coedit/store"
	"coedit/testutil"
)

func TestMain(m *testing.M) {
	testutil.TestMainWithLogLevel(m)
}

func TestParseEditFrame(t *testing.T) {
	frame, err := ParseEditFrame([]byte(`{"position":3,"insert_text":"hi","delete_len":0,"base_version":7}`))
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Position)
	assert.Equal(t, "hi", frame.Text())
	assert.Equal(t, 0, frame.DeleteLen)
	assert.Equal(t, int64(7), frame.BaseVersion)
}

func TestParseEditFrameNullInsertText(t *testing.T) {
	frame, err := ParseEditFrame([]byte(`{"position":2,"insert_text":null,"delete_len":4,"base_version":1}`))
	require.NoError(t, err)
	assert.Nil(t, frame.InsertText)
	assert.Equal(t, "", frame.Text())
	assert.Equal(t, 4, frame.DeleteLen)
}

func TestParseEditFrameRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed json", data: `{"position":`},
		{name: "negative position", data: `{"position":-1,"insert_text":"x","delete_len":0,"base_version":0}`},
		{name: "negative delete_len", data: `{"position":0,"insert_text":null,"delete_len":-2,"base_version":0}`},
		{name: "negative base_version", data: `{"position":0,"insert_text":"x","delete_len":0,"base_version":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEditFrame([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseEditFrameAllowsNoop(t *testing.T) {
	// A frame with neither insert nor delete is valid; it commits as a
	// no-op and still bumps the version.
	frame, err := ParseEditFrame([]byte(`{"position":0,"insert_text":null,"delete_len":0,"base_version":0}`))
	require.NoError(t, err)
	assert.Equal(t, "", frame.Text())
	assert.Equal(t, 0, frame.DeleteLen)
}

func testOperation() *store.Operation {
	return &store.Operation{
		ID:             primitive.NewObjectID(),
		DocumentID:     "doc-1",
		UserID:         "user-1",
		BaseVersion:    4,
		Position:       2,
		InsertText:     "hi",
		DeleteLen:      1,
		AppliedVersion: 5,
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestInitFrameShape(t *testing.T) {
	var decoded struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Version int64  `json:"version"`
	}
	require.NoError(t, json.Unmarshal(InitFrame("hello", 3), &decoded))
	assert.Equal(t, "init", decoded.Type)
	assert.Equal(t, "hello", decoded.Content)
	assert.Equal(t, int64(3), decoded.Version)
}

func TestAckAndOpFrameShapes(t *testing.T) {
	op := testOperation()

	for _, tt := range []struct {
		frameType string
		payload   []byte
	}{
		{frameType: "ack", payload: AckFrame(op, 5)},
		{frameType: "op", payload: OpFrame(op, 5)},
	} {
		var decoded struct {
			Type           string    `json:"type"`
			Op             OpPayload `json:"op"`
			UpdatedVersion int64     `json:"updated_version"`
		}
		require.NoError(t, json.Unmarshal(tt.payload, &decoded))
		assert.Equal(t, tt.frameType, decoded.Type)
		assert.Equal(t, int64(5), decoded.UpdatedVersion)
		assert.Equal(t, op.ID.Hex(), decoded.Op.ID)
		assert.Equal(t, "doc-1", decoded.Op.DocID)
		assert.Equal(t, "user-1", decoded.Op.UserID)
		assert.Equal(t, int64(4), decoded.Op.BaseVersion)
		assert.Equal(t, 2, decoded.Op.Position)
		assert.Equal(t, "hi", decoded.Op.InsertText)
		assert.Equal(t, 1, decoded.Op.DeleteLen)
		assert.True(t, op.CreatedAt.Equal(decoded.Op.CreatedAt))
	}
}

func TestSyncNeededFrameShape(t *testing.T) {
	var decoded struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Version int64  `json:"version"`
	}
	require.NoError(t, json.Unmarshal(SyncNeededFrame("snapshot", 9), &decoded))
	assert.Equal(t, "sync_needed", decoded.Type)
	assert.Equal(t, "snapshot", decoded.Content)
	assert.Equal(t, int64(9), decoded.Version)
}

func TestErrorFrameShape(t *testing.T) {
	var decoded struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(ErrorFrame("Document not found"), &decoded))
	assert.Equal(t, "error", decoded.Type)
	assert.Equal(t, "Document not found", decoded.Message)
}
