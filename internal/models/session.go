package models

import (
	"encoding/json"
	"time"
)

// UserDescriptor identifies a user in a collaboration session.
// Learning: This comes straight from the client at join time. Nothing here
// verifies it against the HTTP identity, so treat it as display data only.
type UserDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Participant represents one live connection bound to a document session
type Participant struct {
	ConnID     string         `json:"conn_id"`
	DocumentID string         `json:"document_id"`
	User       UserDescriptor `json:"user"`
	JoinedAt   time.Time      `json:"joined_at"`
}

// EventType names a message on the collaboration wire protocol
type EventType string

const (
	// Client -> server
	EventJoin   EventType = "join-document"
	EventLeave  EventType = "leave-document"
	EventChange EventType = "send-changes"

	// Server -> client
	EventActiveUsers   EventType = "active-users"
	EventReceive       EventType = "receive-changes"
	EventNewComment    EventType = "new-comment"
	EventDeleteComment EventType = "delete-comment"
	EventError         EventType = "error"
)

// Event is the JSON envelope exchanged over the websocket.
// Only the fields relevant to a given event type are populated.
type Event struct {
	Type       EventType        `json:"event"`
	DocumentID string           `json:"documentId,omitempty"`
	User       *UserDescriptor  `json:"user,omitempty"`
	Users      []UserDescriptor `json:"users,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// NewPresenceEvent builds an active-users event
func NewPresenceEvent(documentID string, users []UserDescriptor) *Event {
	return &Event{
		Type:       EventActiveUsers,
		DocumentID: documentID,
		Users:      users,
	}
}

// NewErrorEvent builds an error acknowledgement for a single connection
func NewErrorEvent(documentID string, err error) *Event {
	return &Event{
		Type:       EventError,
		DocumentID: documentID,
		Error:      err.Error(),
	}
}
