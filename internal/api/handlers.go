package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"
	"docs-editor/internal/services"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests
// Learning: Uses INTERFACES defined in this package (consumer-driven)
type Handler struct {
	docs     DocumentService
	realtime RealtimeHandler
	sessions SessionStats
}

func NewHandler(docs DocumentService, realtime RealtimeHandler, sessions SessionStats) *Handler {
	return &Handler{
		docs:     docs,
		realtime: realtime,
		sessions: sessions,
	}
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

// writeError maps service errors onto HTTP statuses
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.AddSpanError(r.Context(), err)

	switch {
	case errors.Is(err, models.ErrNotFound):
		writeMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeMsg(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, services.ErrInvalidInput):
		writeMsg(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[%s] %s %s: %v", middleware.GetRequestID(r.Context()), r.Method, r.URL.Path, err)
		writeMsg(w, http.StatusInternalServerError, "Server Error")
	}
}

// identity returns the caller set by the auth middleware
func identity(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	who, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeMsg(w, http.StatusUnauthorized, "Authorization denied")
	}
	return who, ok
}

// Document handlers

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	var in models.DocumentCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.Create(r.Context(), who, &in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	docs, err := h.docs.List(r.Context(), who)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	doc, err := h.docs.Get(r.Context(), who, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	var in models.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.Update(r.Context(), who, mux.Vars(r)["id"], &in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), who, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	writeMsg(w, http.StatusOK, "Document removed")
}

// Sharing handlers

func (h *Handler) ShareDocument(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	var in models.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.Share(r.Context(), who, mux.Vars(r)["id"], &in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) RemoveAccess(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.RemoveAccess(r.Context(), who, mux.Vars(r)["id"], in.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Comment handlers

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	var in models.CommentCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.docs.AddComment(r.Context(), who, mux.Vars(r)["id"], &in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	comments, err := h.docs.DeleteComment(r.Context(), who, vars["id"], vars["commentId"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// Version handlers

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	versions, err := h.docs.Versions(r.Context(), who, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if versions == nil {
		versions = []models.Version{}
	}

	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	doc, err := h.docs.RestoreVersion(r.Context(), who, vars["id"], vars["versionId"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Presence handlers

func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	who, ok := identity(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	users, err := h.docs.Presence(r.Context(), who, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id":  id,
		"active_users": users,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Stats(),
	})
}
