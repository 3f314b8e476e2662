package collaboration

import "errors"

var (
	// Protocol violations. These are reported to the offending connection only.
	ErrMissingDocument  = errors.New("document id is required")
	ErrNotJoined        = errors.New("connection has not joined a document")
	ErrDocumentMismatch = errors.New("connection is bound to a different document")
	ErrUnknownEvent     = errors.New("unknown event type")

	// ErrClosed is returned for events arriving after the connection closed.
	ErrClosed = errors.New("connection is closed")

	// ErrGatewayClosed is returned when opening a connection during shutdown.
	ErrGatewayClosed = errors.New("session gateway is shut down")

	// Delivery failures, isolated to a single recipient.
	ErrSinkClosed   = errors.New("recipient connection is closed")
	ErrSlowConsumer = errors.New("recipient send buffer is full")
)
