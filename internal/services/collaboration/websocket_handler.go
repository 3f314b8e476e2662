package collaboration

import (
	"log"
	"net/http"
	"strings"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

// HandlerOptions tunes the websocket transport
type HandlerOptions struct {
	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts any.
	AllowedOrigins []string
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
	// MaxMessageBytes caps inbound frame size. Zero means no limit.
	MaxMessageBytes int64
}

// WebSocketHandler upgrades HTTP requests into gateway connections
type WebSocketHandler struct {
	gateway  *Gateway
	upgrader websocket.Upgrader
	opts     HandlerOptions
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(gateway *Gateway, opts HandlerOptions) *WebSocketHandler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}

	return &WebSocketHandler{
		gateway: gateway,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients do not send Origin
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// HandleConnection accepts a connection that joins documents via events
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "", models.UserDescriptor{})
}

// HandleDocumentConnection accepts a connection and joins it to the document
// in the URL right away. User info comes from query params, unverified.
func (h *WebSocketHandler) HandleDocumentConnection(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]

	user := models.UserDescriptor{
		ID:   r.URL.Query().Get("user_id"),
		Name: r.URL.Query().Get("user_name"),
	}
	if user.ID == "" {
		user.ID = "anonymous"
	}
	if user.Name == "" {
		user.Name = "Anonymous"
	}

	h.serve(w, r, documentID, user)
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, documentID string, user models.UserDescriptor) {
	ctx, span := middleware.StartSpan(r.Context(), "WebSocket.Connect",
		attribute.String("document.id", documentID),
		attribute.String("user.id", user.ID),
	)

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		span.End()
		return
	}

	client := newClient(conn, h.opts.SendBuffer)
	session, err := h.gateway.Open(client)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		span.End()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()))
		conn.Close()
		return
	}
	client.session = session
	span.SetAttributes(attribute.String("conn.id", session.ID()))

	go client.WritePump()

	if documentID != "" {
		if err := session.Join(ctx, documentID, user); err != nil {
			client.Deliver(models.NewErrorEvent(documentID, err))
		}
	}
	span.End()

	log.Printf("✓ WebSocket connection %s established", session.ID())

	// Block on the read side so the request context lives as long as the connection
	client.ReadPump(r.Context(), h.opts.MaxMessageBytes)
}
