package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleWebSocket accepts a collaboration connection that joins documents by event
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.realtime.HandleConnection(w, r)
}

// HandleDocumentWebSocket accepts a collaboration connection bound to the document in the path
func (h *Handler) HandleDocumentWebSocket(w http.ResponseWriter, r *http.Request) {
	h.realtime.HandleDocumentConnection(w, r)
}
