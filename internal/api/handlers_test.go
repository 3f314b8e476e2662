package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"
	"docs-editor/internal/services"
	"docs-editor/internal/services/collaboration"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDocs answers a handful of calls; anything else panics through the nil interface
type stubDocs struct {
	DocumentService

	doc      *models.Document
	users    []models.UserDescriptor
	err      error
	lastWho  *models.Identity
	lastID   string
	lastEdit *models.DocumentUpdate
}

func (s *stubDocs) Get(ctx context.Context, who *models.Identity, id string) (*models.Document, error) {
	s.lastWho, s.lastID = who, id
	return s.doc, s.err
}

func (s *stubDocs) List(ctx context.Context, who *models.Identity) ([]*models.Document, error) {
	s.lastWho = who
	return nil, s.err
}

func (s *stubDocs) Update(ctx context.Context, who *models.Identity, id string, in *models.DocumentUpdate) (*models.Document, error) {
	s.lastWho, s.lastID, s.lastEdit = who, id, in
	return s.doc, s.err
}

func (s *stubDocs) Delete(ctx context.Context, who *models.Identity, id string) error {
	s.lastWho, s.lastID = who, id
	return s.err
}

func (s *stubDocs) Presence(ctx context.Context, who *models.Identity, id string) ([]models.UserDescriptor, error) {
	s.lastWho, s.lastID = who, id
	return s.users, s.err
}

var caller = models.Identity{ID: "u1", Email: "alice@example.com", Name: "Alice"}

type testEnv struct {
	server  *httptest.Server
	docs    *stubDocs
	gateway *collaboration.Gateway
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	auth := middleware.NewAuthenticator("s3cret")
	token, err := auth.Issue(caller, time.Hour)
	require.NoError(t, err)

	docs := &stubDocs{doc: &models.Document{ID: "D1", Title: "Plan", OwnerID: caller.ID}}
	gateway := collaboration.NewGateway(collaboration.NewRegistry())
	ws := collaboration.NewWebSocketHandler(gateway, collaboration.HandlerOptions{})

	router := SetupRoutes(NewHandler(docs, ws, gateway), RouterOptions{
		Auth:           auth,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		gateway.Shutdown()
		server.Close()
	})

	return &testEnv{server: server, docs: docs, gateway: gateway, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if authed {
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: e.token})
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestRouter_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/documents/D1", "", false)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "No token, authorization denied", body["msg"])
	assert.Nil(t, env.docs.lastWho)
}

func TestRouter_GetDocument(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/documents/D1", "", true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Plan", body["title"])
	assert.Equal(t, "D1", env.docs.lastID)
	assert.Equal(t, caller.ID, env.docs.lastWho.ID)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_ListDocumentsIsNeverNull(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/documents", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var docs []models.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestRouter_UpdateDocument(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPut, "/api/documents/D1", `{"content":"v2","saveVersion":true}`, true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, env.docs.lastEdit)
	assert.Equal(t, "v2", *env.docs.lastEdit.Content)
	assert.Nil(t, env.docs.lastEdit.Title)
	assert.True(t, env.docs.lastEdit.SaveVersion)
}

func TestRouter_UpdateDocumentBadBody(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPut, "/api/documents/D1", `{`, true)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, env.docs.lastEdit)
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("document D1: %w", models.ErrNotFound), http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: email is required", services.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			env := newTestEnv(t)
			env.docs.err = tt.err

			resp, body := env.do(t, http.MethodDelete, "/api/documents/D1", "", true)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["msg"])
		})
	}
}

func TestRouter_DeleteDocument(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodDelete, "/api/documents/D1", "", true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Document removed", body["msg"])
}

func TestRouter_Presence(t *testing.T) {
	env := newTestEnv(t)
	env.docs.users = []models.UserDescriptor{{ID: "u2", Name: "Bob"}}

	resp, body := env.do(t, http.MethodGet, "/api/documents/D1/presence", "", true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "D1", body["document_id"])
	assert.Equal(t, []interface{}{map[string]interface{}{"id": "u2", "name": "Bob"}}, body["active_users"])
}

func TestRouter_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/documents/D1", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthReportsSessions(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/document/D1?user_id=u1&user_name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The first presence event means the join has happened
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventActiveUsers, event.Type)

	resp, body := env.do(t, http.MethodGet, "/api/health", "", false)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]interface{}{"documents": float64(1), "participants": float64(1)}, body["sessions"])
}
