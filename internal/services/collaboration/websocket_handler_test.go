package collaboration

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docs-editor/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts HandlerOptions) (*httptest.Server, *Gateway) {
	t.Helper()

	gateway := NewGateway(NewRegistry())
	handler := NewWebSocketHandler(gateway, opts)

	router := mux.NewRouter()
	router.HandleFunc("/ws", handler.HandleConnection)
	router.HandleFunc("/ws/document/{id}", handler.HandleDocumentConnection)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		gateway.Shutdown()
		server.Close()
	})
	return server, gateway
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWebSocketHandler_CollaborationSession(t *testing.T) {
	server, _ := newTestServer(t, HandlerOptions{})

	a := dial(t, server, "/ws/document/D1?user_id=u1&user_name=Alice")
	event := readEvent(t, a)
	assert.Equal(t, models.EventActiveUsers, event.Type)
	assert.Equal(t, []models.UserDescriptor{alice}, event.Users)

	b := dial(t, server, "/ws/document/D1?user_id=u2&user_name=Bob")
	assert.Equal(t, []models.UserDescriptor{alice, bob}, readEvent(t, b).Users)
	assert.Equal(t, []models.UserDescriptor{alice, bob}, readEvent(t, a).Users)

	require.NoError(t, a.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"send-changes","documentId":"D1","payload":"X"}`)))

	event = readEvent(t, b)
	assert.Equal(t, models.EventReceive, event.Type)
	assert.Equal(t, "D1", event.DocumentID)
	assert.JSONEq(t, `"X"`, string(event.Payload))

	// The next thing A sees is B leaving, so its own change was never echoed
	require.NoError(t, b.Close())
	event = readEvent(t, a)
	assert.Equal(t, models.EventActiveUsers, event.Type)
	assert.Equal(t, []models.UserDescriptor{alice}, event.Users)
}

func TestWebSocketHandler_JoinByEvent(t *testing.T) {
	server, gateway := newTestServer(t, HandlerOptions{})

	conn := dial(t, server, "/ws")
	require.NoError(t, conn.WriteJSON(models.Event{
		Type:       models.EventJoin,
		DocumentID: "D7",
		User:       &bob,
	}))

	event := readEvent(t, conn)
	assert.Equal(t, models.EventActiveUsers, event.Type)
	assert.Equal(t, "D7", event.DocumentID)
	assert.Equal(t, []models.UserDescriptor{bob}, gateway.Presence("D7"))
}

func TestWebSocketHandler_AnonymousDocumentConnection(t *testing.T) {
	server, _ := newTestServer(t, HandlerOptions{})

	conn := dial(t, server, "/ws/document/D1")

	event := readEvent(t, conn)
	assert.Equal(t, []models.UserDescriptor{{ID: "anonymous", Name: "Anonymous"}}, event.Users)
}

func TestWebSocketHandler_ProtocolErrors(t *testing.T) {
	server, _ := newTestServer(t, HandlerOptions{})

	t.Run("malformed frame", func(t *testing.T) {
		conn := dial(t, server, "/ws")
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

		event := readEvent(t, conn)
		assert.Equal(t, models.EventError, event.Type)
		assert.NotEmpty(t, event.Error)
	})

	t.Run("change before join", func(t *testing.T) {
		conn := dial(t, server, "/ws")
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"send-changes","documentId":"D1","payload":"X"}`)))

		event := readEvent(t, conn)
		assert.Equal(t, models.EventError, event.Type)
		assert.Equal(t, ErrNotJoined.Error(), event.Error)
	})

	t.Run("connection survives a protocol error", func(t *testing.T) {
		conn := dial(t, server, "/ws")
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"dance"}`)))
		assert.Equal(t, models.EventError, readEvent(t, conn).Type)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"join-document","documentId":"D9","user":{"id":"u1","name":"Alice"}}`)))
		assert.Equal(t, models.EventActiveUsers, readEvent(t, conn).Type)
	})
}

func TestWebSocketHandler_Origin(t *testing.T) {
	server, _ := newTestServer(t, HandlerOptions{AllowedOrigins: []string{"http://localhost:5173"}})
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	t.Run("unknown origin is refused", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}

		_, resp, err := websocket.DefaultDialer.Dial(url, header)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("listed origin is accepted", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://localhost:5173"}}

		conn, _, err := websocket.DefaultDialer.Dial(url, header)

		require.NoError(t, err)
		conn.Close()
	})
}

func TestWebSocketHandler_OversizedFrameClosesConnection(t *testing.T) {
	server, gateway := newTestServer(t, HandlerOptions{MaxMessageBytes: 64})

	conn := dial(t, server, "/ws/document/D1?user_id=u1&user_name=Alice")
	readEvent(t, conn)

	big := `{"event":"send-changes","payload":"` + strings.Repeat("x", 256) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	assert.Eventually(t, func() bool {
		return gateway.Stats().Participants == 0
	}, 2*time.Second, 10*time.Millisecond)
}
