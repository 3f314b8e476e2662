package collaboration

import (
	"sync"
	"testing"

	"docs-editor/internal/models"

	"github.com/stretchr/testify/require"
)

// recordingSink captures delivered events. A non-nil err makes every delivery fail.
type recordingSink struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
	closed bool
}

func (s *recordingSink) Deliver(event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) all() []*models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) ofType(t models.EventType) []*models.Event {
	var out []*models.Event
	for _, e := range s.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) lastPresence(t *testing.T) []models.UserDescriptor {
	t.Helper()

	presence := s.ofType(models.EventActiveUsers)
	require.NotEmpty(t, presence, "expected at least one active-users event")
	return presence[len(presence)-1].Users
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func participant(connID, userID, name string, sink Sink) *Participant {
	if sink == nil {
		sink = &recordingSink{}
	}
	return &Participant{
		Participant: models.Participant{
			ConnID: connID,
			User:   models.UserDescriptor{ID: userID, Name: name},
		},
		Sink: sink,
	}
}

func connIDs(members []*Participant) []string {
	ids := make([]string, 0, len(members))
	for _, p := range members {
		ids = append(ids, p.ConnID)
	}
	return ids
}

// gatedSink blocks inside the first delivery that matches hold until release
// is closed. entered is closed once that delivery has started.
type gatedSink struct {
	recordingSink

	hold    func(*models.Event) bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSink(hold func(*models.Event) bool) *gatedSink {
	return &gatedSink{
		hold:    hold,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gatedSink) Deliver(event *models.Event) error {
	if s.hold(event) {
		gated := false
		s.once.Do(func() { gated = true })
		if gated {
			close(s.entered)
			<-s.release
		}
	}
	return s.recordingSink.Deliver(event)
}
