package collaboration

import (
	"sync"
	"time"

	"docs-editor/internal/models"
)

/*
LEARNING: SESSION REGISTRY

The registry is the only shared mutable state in the collaboration layer.
It answers one question: which live connections are bound to a document?

It never talks to the network. Broadcasting is the Reconciler's and Relay's job,
which keeps membership bookkeeping testable without a transport.

One RWMutex guards both maps. Callers get copies, never the live slices.
*/

// Sink receives events for one connection.
// Deliver must not block: slow receivers buffer or drop.
type Sink interface {
	Deliver(event *models.Event) error
}

// Participant is a live connection as tracked by the registry
type Participant struct {
	models.Participant
	Sink Sink
}

// Stats is a point-in-time view of registry size
type Stats struct {
	Documents    int `json:"documents"`
	Participants int `json:"participants"`
}

// Registry maps document IDs to their currently bound participants
type Registry struct {
	mu        sync.RWMutex
	documents map[string][]*Participant // documentID -> members in bind order
	bound     map[string]string         // connID -> documentID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		documents: make(map[string][]*Participant),
		bound:     make(map[string]string),
	}
}

// Bind adds a participant to the session for documentID.
// Binding the same connection to the same document again is a no-op.
// A connection already bound elsewhere is moved (last bind wins) and the
// previous document is returned so the caller can reconcile it too.
func (r *Registry) Bind(documentID string, p *Participant) (previous string, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.bound[p.ConnID]; ok {
		if current == documentID {
			return "", false
		}
		r.removeLocked(current, p.ConnID)
		previous = current
	}

	p.DocumentID = documentID
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	r.documents[documentID] = append(r.documents[documentID], p)
	r.bound[p.ConnID] = documentID

	return previous, true
}

// Unbind removes a connection from the session for documentID.
// Unknown connections, or connections bound to another document, are ignored.
func (r *Registry) Unbind(documentID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.bound[connID]; !ok || current != documentID {
		return false
	}
	return r.removeLocked(documentID, connID)
}

func (r *Registry) removeLocked(documentID, connID string) bool {
	members := r.documents[documentID]
	for i, p := range members {
		if p.ConnID != connID {
			continue
		}

		next := append(members[:i], members[i+1:]...)

		// Remove empty document rooms
		if len(next) == 0 {
			delete(r.documents, documentID)
		} else {
			r.documents[documentID] = next
		}
		delete(r.bound, connID)
		return true
	}
	return false
}

// MembersOf returns a snapshot of the participants bound to documentID,
// in the order they joined
func (r *Registry) MembersOf(documentID string) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.documents[documentID]
	result := make([]*Participant, len(members))
	copy(result, members)
	return result
}

// DocumentOf reports which document a connection is bound to
func (r *Registry) DocumentOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	documentID, ok := r.bound[connID]
	return documentID, ok
}

// Stats returns the number of active sessions and bound connections
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Documents:    len(r.documents),
		Participants: len(r.bound),
	}
}
