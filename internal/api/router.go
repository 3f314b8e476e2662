package api

import (
	"net/http"

	"docs-editor/internal/middleware"

	"github.com/gorilla/mux"
)

// RouterOptions carries the cross-cutting pieces the router needs
type RouterOptions struct {
	Auth           *middleware.Authenticator
	AllowedOrigins []string
}

func SetupRoutes(h *Handler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	// Learning: Middleware runs in order - tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.Health).Methods("GET")

	// Everything under /api/documents needs a verified identity
	docs := api.PathPrefix("/documents").Subrouter()
	docs.Use(opts.Auth.RequireIdentity)

	docs.HandleFunc("", h.CreateDocument).Methods("POST")
	docs.HandleFunc("", h.ListDocuments).Methods("GET")
	docs.HandleFunc("/{id}", h.GetDocument).Methods("GET")
	docs.HandleFunc("/{id}", h.UpdateDocument).Methods("PUT")
	docs.HandleFunc("/{id}", h.DeleteDocument).Methods("DELETE")

	docs.HandleFunc("/{id}/share", h.ShareDocument).Methods("POST")
	docs.HandleFunc("/{id}/share/remove", h.RemoveAccess).Methods("POST")

	docs.HandleFunc("/{id}/comments", h.AddComment).Methods("POST")
	docs.HandleFunc("/{id}/comments/{commentId}", h.DeleteComment).Methods("DELETE")

	docs.HandleFunc("/{id}/versions", h.ListVersions).Methods("GET")
	docs.HandleFunc("/{id}/versions/{versionId}/restore", h.RestoreVersion).Methods("PUT")

	docs.HandleFunc("/{id}/presence", h.GetPresence).Methods("GET")

	// WebSocket routes
	// The join identity is client supplied and not checked against a token
	r.HandleFunc("/ws", h.HandleWebSocket)
	r.HandleFunc("/ws/document/{id}", h.HandleDocumentWebSocket)

	// Preflight requests never reach a route; CORS middleware answers them
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return r
}
