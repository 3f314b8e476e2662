package collaboration

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: CONNECTION STATE MACHINE

Every transport connection walks through three states:

	Unbound --join--> Bound --leave--> Unbound
	   |                |
	   +----close-------+----close----> Closed (terminal)

The Gateway owns the registry and is the only thing that mutates it.
Each Connection has its own mutex, so one connection's events are handled
to completion in arrival order while other connections proceed in parallel.
*/

// ConnState is the lifecycle state of a gateway connection
type ConnState int

const (
	StateUnbound ConnState = iota
	StateBound
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gateway binds transport connections to document sessions
type Gateway struct {
	registry *Registry
	presence *Reconciler
	relay    *Relay

	mu     sync.Mutex
	conns  map[string]*Connection
	closed bool
}

// NewGateway creates a gateway around an injected registry
func NewGateway(registry *Registry) *Gateway {
	return &Gateway{
		registry: registry,
		presence: NewReconciler(registry),
		relay:    NewRelay(registry),
		conns:    make(map[string]*Connection),
	}
}

// Open registers a new, unbound connection that delivers to sink
func (g *Gateway) Open(sink Sink) (*Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrGatewayClosed
	}

	c := &Connection{
		id:      uuid.NewString(),
		gateway: g,
		sink:    sink,
		state:   StateUnbound,
	}
	g.conns[c.id] = c
	return c, nil
}

// Presence returns the current active users of a document
func (g *Gateway) Presence(documentID string) []models.UserDescriptor {
	return g.presence.ActiveUsers(documentID)
}

// Publish pushes a server-originated event to every participant of a document
func (g *Gateway) Publish(ctx context.Context, documentID string, event *models.Event) int {
	return g.relay.Publish(ctx, documentID, event)
}

// Stats reports live session counts
func (g *Gateway) Stats() Stats {
	return g.registry.Stats()
}

// Shutdown closes every open connection and refuses new ones
func (g *Gateway) Shutdown() {
	log.Println("🛑 Shutting down session gateway...")

	g.mu.Lock()
	g.closed = true
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close(context.Background())
		if closer, ok := c.sink.(io.Closer); ok {
			closer.Close()
		}
	}

	log.Printf("✓ Session gateway shutdown complete (%d connections closed)", len(conns))
}

func (g *Gateway) forget(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, connID)
}

// Connection is one transport connection's view of the collaboration layer
type Connection struct {
	id      string
	gateway *Gateway
	sink    Sink

	mu         sync.Mutex
	state      ConnState
	documentID string
}

// ID returns the opaque connection identifier
func (c *Connection) ID() string {
	return c.id
}

// State returns the current lifecycle state
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DocumentID returns the bound document, or "" when unbound
func (c *Connection) DocumentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentID
}

// Join binds the connection to documentID as user.
// Joining the already bound document is a no-op. Joining another document
// moves the connection there, reconciling presence in both sessions.
func (c *Connection) Join(ctx context.Context, documentID string, user models.UserDescriptor) error {
	if documentID == "" {
		return ErrMissingDocument
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateBound:
		if c.documentID == documentID {
			return nil
		}
		c.unbindLocked(ctx)
	}

	p := &Participant{
		Participant: models.Participant{
			ConnID:   c.id,
			User:     user,
			JoinedAt: time.Now(),
		},
		Sink: c.sink,
	}
	g := c.gateway
	if _, changed := g.registry.Bind(documentID, p); changed {
		c.state = StateBound
		c.documentID = documentID
		log.Printf("  Connection %s joined document %s as %s", c.id, documentID, user.ID)
		middleware.AddSpanEvent(ctx, "session.joined",
			attribute.String("document.id", documentID),
			attribute.String("user.id", user.ID),
		)
		g.presence.Reconcile(ctx, documentID)
	}

	return nil
}

// Leave unbinds the connection from documentID without closing it.
// Leaving while unbound is a no-op.
func (c *Connection) Leave(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateUnbound:
		return nil
	}

	if documentID != "" && documentID != c.documentID {
		return ErrDocumentMismatch
	}

	c.unbindLocked(ctx)
	return nil
}

// Change relays payload to the other participants of the bound document.
// An empty documentID means the bound one.
func (c *Connection) Change(ctx context.Context, documentID string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateUnbound:
		return ErrNotJoined
	}

	if documentID != "" && documentID != c.documentID {
		return ErrDocumentMismatch
	}

	c.gateway.relay.Relay(ctx, c.documentID, c.id, payload)
	return nil
}

// Close tears the connection down. It is safe to call more than once;
// only the first call unbinds and reconciles presence.
func (c *Connection) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return
	}
	if c.state == StateBound {
		c.unbindLocked(ctx)
	}
	c.state = StateClosed
	c.gateway.forget(c.id)
}

// Handle dispatches one inbound wire event
func (c *Connection) Handle(ctx context.Context, event *models.Event) error {
	switch event.Type {
	case models.EventJoin:
		user := models.UserDescriptor{ID: "anonymous", Name: "Anonymous"}
		if event.User != nil && event.User.ID != "" {
			user = *event.User
		}
		return c.Join(ctx, event.DocumentID, user)

	case models.EventLeave:
		return c.Leave(ctx, event.DocumentID)

	case models.EventChange:
		return c.Change(ctx, event.DocumentID, event.Payload)

	default:
		return ErrUnknownEvent
	}
}

func (c *Connection) unbindLocked(ctx context.Context) {
	documentID := c.documentID
	g := c.gateway

	c.state = StateUnbound
	c.documentID = ""

	if g.registry.Unbind(documentID, c.id) {
		log.Printf("  Connection %s left document %s", c.id, documentID)
		middleware.AddSpanEvent(ctx, "session.left", attribute.String("document.id", documentID))
		g.presence.Reconcile(ctx, documentID)
	}
}
