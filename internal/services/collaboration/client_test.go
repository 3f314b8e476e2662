package collaboration

import (
	"encoding/json"
	"testing"

	"docs-editor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Deliver(t *testing.T) {
	t.Run("full buffer drops the frame and closes the client", func(t *testing.T) {
		c := newClient(nil, 1)
		event := models.NewPresenceEvent("D1", []models.UserDescriptor{alice})

		assert.NoError(t, c.Deliver(event))
		assert.ErrorIs(t, c.Deliver(event), ErrSlowConsumer)
		assert.ErrorIs(t, c.Deliver(event), ErrSinkClosed)

		assert.Len(t, c.send, 1)
		select {
		case <-c.done:
		default:
			t.Fatal("client should be closed")
		}
	})

	t.Run("closed client refuses delivery", func(t *testing.T) {
		c := newClient(nil, 4)
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		assert.ErrorIs(t, c.Deliver(&models.Event{Type: models.EventReceive}), ErrSinkClosed)
		assert.Empty(t, c.send)
	})

	t.Run("queued frame is the encoded event", func(t *testing.T) {
		c := newClient(nil, 1)

		require.NoError(t, c.Deliver(&models.Event{
			Type:       models.EventReceive,
			DocumentID: "D1",
			Payload:    json.RawMessage(`"X"`),
		}))

		assert.JSONEq(t, `{"event":"receive-changes","documentId":"D1","payload":"X"}`, string(<-c.send))
	})
}

func TestDeliverAll_EncodesOnce(t *testing.T) {
	a, b := newClient(nil, 1), newClient(nil, 1)
	recorder := &recordingSink{}
	members := []*Participant{
		participant("c1", "u1", "Alice", a),
		participant("c2", "u2", "Bob", b),
		participant("c3", "u3", "Carol", recorder),
	}

	delivered := deliverAll(members, models.NewPresenceEvent("D1", []models.UserDescriptor{alice}), "")

	assert.Equal(t, 3, delivered)
	frameA, frameB := <-a.send, <-b.send
	require.NotEmpty(t, frameA)
	assert.Same(t, &frameA[0], &frameB[0])
	assert.Len(t, recorder.all(), 1)
}
