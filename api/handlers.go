package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coedit/auth"
	"coedit/editor"
	"coedit/hub"
	"coedit/store"
)

// Handlers holds the dependencies of the HTTP handlers.
type Handlers struct {
	store  store.Store
	editor *editor.Service
	hub    *hub.Hub
	auth   *auth.Service
	logger *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseJSONBody decodes the request body into target.
func parseJSONBody(r *http.Request, target interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.New("failed to read request body")
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.New("invalid JSON: " + err.Error())
	}
	return nil
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusConflict, "username already taken")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "username and password are required")
		default:
			h.logger.Error("Failed to register user", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, userID, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error("Failed to log in user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"user_id": userID,
	})
}

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Handlers) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	doc := &store.Document{
		ID:      uuid.NewString(),
		Title:   req.Title,
		Content: req.Content,
		Version: 0,
		OwnerID: userIDFrom(r.Context()),
	}

	if err := h.store.InsertDocument(r.Context(), doc); err != nil {
		h.logger.Error("Failed to create document", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handlers) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	doc, err := h.editor.Document(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("Failed to get document",
			zap.String("document_id", documentID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// documentMetadata is the mutable-via-PATCH subset of a document.
type documentMetadata struct {
	Title string `json:"title"`
}

// handlePatchDocument applies an RFC 7386 JSON merge patch to the
// document's metadata. Content and version are owned by the edit
// pipeline and cannot be patched.
func (h *Handlers) handlePatchDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	patch, err := io.ReadAll(r.Body)
	if err != nil || len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}
	defer r.Body.Close()

	doc, err := h.store.FindDocument(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("Failed to get document for patch",
			zap.String("document_id", documentID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	current, err := json.Marshal(documentMetadata{Title: doc.Title})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to patch document")
		return
	}

	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid merge patch: "+err.Error())
		return
	}

	var meta documentMetadata
	if err := json.Unmarshal(merged, &meta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid merge patch: "+err.Error())
		return
	}

	updated, err := h.store.SetDocumentTitle(r.Context(), documentID, meta.Title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("Failed to patch document",
			zap.String("document_id", documentID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to patch document")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) handleListOperations(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = parsed
	}

	if _, err := h.store.FindDocument(r.Context(), documentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("Failed to check document",
			zap.String("document_id", documentID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list operations")
		return
	}

	ops, err := h.store.ListOperations(r.Context(), documentID, after)
	if err != nil {
		h.logger.Error("Failed to list operations",
			zap.String("document_id", documentID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list operations")
		return
	}
	if ops == nil {
		ops = []*store.Operation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": ops})
}
