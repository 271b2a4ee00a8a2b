package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"upwatch/config"
	"upwatch/internals/security"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *Hub, *security.TokenService) {
	tokenSvc := security.NewTokenService(&config.AuthConfig{Secret: "test-secret", ExpiryMin: 5})
	h := New(nil, testLogger())
	return NewHandler(h, tokenSvc, testLogger()), h, tokenSvc
}

func issueToken(t *testing.T, tokenSvc *security.TokenService, userID uuid.UUID) string {
	t.Helper()
	token, err := tokenSvc.GenerateAccessToken(security.RequestClaims{
		UserID: userID.String(),
		Email:  "user@example.com",
	})
	require.NoError(t, err)
	return token
}

func TestStreamRejectsMissingToken(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)

	handler.Stream(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestStreamRejectsInvalidToken(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?token=garbage", nil)

	handler.Stream(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamDeliversEvents(t *testing.T) {
	handler, h, tokenSvc := newTestHandler()
	userID := uuid.New()
	token := issueToken(t, tokenSvc, userID)

	srv := httptest.NewServer(http.HandlerFunc(handler.Stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?token="+token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// first frame is always the snapshot
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, EventSnapshot+": "))

	// wait for the connection to register before broadcasting
	require.Eventually(t, func() bool {
		return h.Stats().TotalConnections == 1
	}, time.Second, 10*time.Millisecond)

	h.Broadcast(userID, Event{Type: EventStatusUpdate, Payload: StatusUpdate{
		MonitorID: "m1",
		Status:    "up",
	}})

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, EventStatusUpdate+": "))

	var upd StatusUpdate
	payload := strings.TrimPrefix(strings.TrimSpace(line), EventStatusUpdate+": ")
	require.NoError(t, json.Unmarshal([]byte(payload), &upd))
	assert.Equal(t, "m1", upd.MonitorID)
}

func TestStreamDoesNotLeakAcrossUsers(t *testing.T) {
	handler, h, tokenSvc := newTestHandler()
	alice := uuid.New()
	bob := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(handler.Stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?token="+issueToken(t, tokenSvc, alice), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n') // snapshot
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.Stats().TotalConnections == 1
	}, time.Second, 10*time.Millisecond)

	// bob's event must never reach alice's stream
	h.Broadcast(bob, Event{Type: EventAlert, Payload: AlertNotice{MonitorID: "secret"}})
	h.Broadcast(alice, Event{Type: EventStatusUpdate, Payload: StatusUpdate{MonitorID: "mine"}})

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "mine")
	assert.NotContains(t, line, "secret")
}

func TestStatusEndpoint(t *testing.T) {
	handler, h, _ := newTestHandler()

	c1 := h.AddConnection(context.Background(), uuid.New())
	defer h.RemoveConnection(c1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/status", nil)

	handler.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			TotalConnections int `json:"totalConnections"`
			ActiveUsers      int `json:"activeUsers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.TotalConnections)
	assert.Equal(t, 1, body.Data.ActiveUsers)
}
