package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// Reconciler computes and pushes the active-user list of a document.
// Learning: Presence is event driven. It runs after every bind/unbind,
// never on a timer.
type Reconciler struct {
	registry *Registry

	// Held from snapshot to last delivery, so recipients see presence
	// lists in the order membership changed. Sinks never block.
	mu sync.Mutex
}

// NewReconciler creates a presence reconciler over a registry
func NewReconciler(registry *Registry) *Reconciler {
	return &Reconciler{registry: registry}
}

// ActiveUsers returns the deduplicated users of a document session
func (r *Reconciler) ActiveUsers(documentID string) []models.UserDescriptor {
	return dedupUsers(r.registry.MembersOf(documentID))
}

// Reconcile sends the current active-user list to every participant of
// documentID and returns how many received it
func (r *Reconciler) Reconcile(ctx context.Context, documentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.registry.MembersOf(documentID)
	users := dedupUsers(members)

	_, span := middleware.StartSpan(ctx, "Presence.Reconcile",
		attribute.String("document.id", documentID),
		attribute.Int("session.members", len(members)),
		attribute.Int("session.users", len(users)),
	)
	defer span.End()

	return deliverAll(members, models.NewPresenceEvent(documentID, users), "")
}

// dedupUsers keeps the first connection's descriptor for each user ID.
// A user with several tabs open shows up once.
func dedupUsers(members []*Participant) []models.UserDescriptor {
	seen := make(map[string]bool, len(members))
	users := make([]models.UserDescriptor, 0, len(members))

	for _, p := range members {
		if seen[p.User.ID] {
			continue
		}
		seen[p.User.ID] = true
		users = append(users, p.User)
	}

	return users
}

// frameSink is implemented by sinks that accept pre-encoded events
type frameSink interface {
	deliverFrame(data []byte) error
}

// deliverAll sends event to every member except skipConnID.
// The event is encoded at most once and the bytes shared by every frame sink.
// A failing recipient never stops delivery to the rest.
func deliverAll(members []*Participant, event *models.Event, skipConnID string) int {
	var frame []byte
	delivered := 0

	for _, p := range members {
		if skipConnID != "" && p.ConnID == skipConnID {
			continue
		}

		var err error
		if fs, ok := p.Sink.(frameSink); ok {
			if frame == nil {
				if frame, err = json.Marshal(event); err != nil {
					log.Printf("⚠️  Failed to encode %s: %v", event.Type, err)
					return delivered
				}
			}
			err = fs.deliverFrame(frame)
		} else {
			err = p.Sink.Deliver(event)
		}

		if err != nil {
			if !errors.Is(err, ErrSinkClosed) {
				log.Printf("⚠️  Failed to deliver %s to connection %s: %v", event.Type, p.ConnID, err)
			}
			continue
		}
		delivered++
	}

	return delivered
}
