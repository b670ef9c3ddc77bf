package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thraizz/coup-server-go/internal/lobby"
)

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHTTPLobbyFlow(t *testing.T) {
	env := newTestEnv(t)
	h := NewHTTPHandler(env.lobbies, env.service, nil, zaptest.NewLogger(t))

	rec := doRequest(t, h, http.MethodPost, "/api/lobbies", `{"player":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[lobby.Snapshot](t, rec)
	assert.Equal(t, "alice", created.Host)
	code := created.Code

	rec = doRequest(t, h, http.MethodPost, "/api/lobbies/"+strings.ToLower(code)+"/join", `{"player":"bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alice", "bob"}, decodeBody[lobby.Snapshot](t, rec).Players)

	rec = doRequest(t, h, http.MethodPost, "/api/lobbies/"+code+"/join", `{"player":"bob"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/lobbies/"+code+"/start", `{"player":"bob"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PermissionDenied", decodeBody[ErrorMessage](t, rec).Code)

	rec = doRequest(t, h, http.MethodGet, "/api/rooms/"+code, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/lobbies/"+code+"/start", `{"player":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, lobby.StateStarted, decodeBody[lobby.Snapshot](t, rec).State)

	rec = doRequest(t, h, http.MethodGet, "/api/rooms/"+strings.ToLower(code)+"?viewer=bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decodeBody[StateMessage](t, rec)
	assert.Equal(t, code, msg.RoomID)
	assert.Equal(t, uint64(1), msg.Version)
	assert.Equal(t, "bob", msg.State.Viewer)
	assert.Len(t, playerState(t, msg.State, "bob").Influence, 2)
	assert.Empty(t, playerState(t, msg.State, "alice").Influence)

	rec = doRequest(t, h, http.MethodGet, "/api/lobbies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]lobby.Snapshot](t, rec), 1)
}

func TestHTTPErrors(t *testing.T) {
	env := newTestEnv(t)
	h := NewHTTPHandler(env.lobbies, env.service, nil, zaptest.NewLogger(t))

	rec := doRequest(t, h, http.MethodPost, "/api/lobbies", `{"player":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MessageError, decodeBody[ErrorMessage](t, rec).Type)

	rec = doRequest(t, h, http.MethodPost, "/api/lobbies", `{"player":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/lobbies/ZZZZZZ", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/lobbies/ZZZZZZ/join", `{"player":"bob"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/lobbies", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
