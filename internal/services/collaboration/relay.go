package collaboration

import (
	"context"
	"encoding/json"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: LAST-WRITER-WINS RELAY

Changes are forwarded as-is to the other participants of a document.
There is no merge step: two editors typing at once simply overwrite each
other, and the explicit save to the document store is the only durable point.

Delivery is at-most-once. Events from one sender arrive in the order that
sender emitted them, because a connection's inbound events are handled
one at a time. Nothing orders events across senders.
*/

// Relay forwards change payloads within a document session
type Relay struct {
	registry *Registry
}

// NewRelay creates a change relay over a registry
func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Relay delivers payload to every participant of documentID except the origin
func (r *Relay) Relay(ctx context.Context, documentID, originConnID string, payload json.RawMessage) int {
	members := r.registry.MembersOf(documentID)

	_, span := middleware.StartSpan(ctx, "Relay.Changes",
		attribute.String("document.id", documentID),
		attribute.String("origin.conn_id", originConnID),
		attribute.Int("payload.size", len(payload)),
	)
	defer span.End()

	event := &models.Event{
		Type:       models.EventReceive,
		DocumentID: documentID,
		Payload:    payload,
	}
	return deliverAll(members, event, originConnID)
}

// Publish delivers a server-originated event to every participant of documentID
func (r *Relay) Publish(ctx context.Context, documentID string, event *models.Event) int {
	members := r.registry.MembersOf(documentID)

	_, span := middleware.StartSpan(ctx, "Relay.Publish",
		attribute.String("document.id", documentID),
		attribute.String("event.type", string(event.Type)),
	)
	defer span.End()

	if event.DocumentID == "" {
		event.DocumentID = documentID
	}
	return deliverAll(members, event, "")
}
