package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/lobby"
)

// HTTPHandler serves the lobby API, room snapshots and the WebSocket endpoint.
type HTTPHandler struct {
	lobbies *lobby.Manager
	service *Service
	hub     *Hub
	logger  *zap.Logger
	mux     *http.ServeMux
}

// NewHTTPHandler wires the routes.
func NewHTTPHandler(lobbies *lobby.Manager, service *Service, hub *Hub, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPHandler{
		lobbies: lobbies,
		service: service,
		hub:     hub,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("GET /api/lobbies", h.listLobbies)
	h.mux.HandleFunc("POST /api/lobbies", h.createLobby)
	h.mux.HandleFunc("GET /api/lobbies/{code}", h.getLobby)
	h.mux.HandleFunc("POST /api/lobbies/{code}/join", h.joinLobby)
	h.mux.HandleFunc("POST /api/lobbies/{code}/leave", h.leaveLobby)
	h.mux.HandleFunc("POST /api/lobbies/{code}/start", h.startLobby)
	h.mux.HandleFunc("GET /api/rooms/{id}", h.getRoom)
	if hub != nil {
		h.mux.Handle("GET /ws", hub)
	}
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type playerRequest struct {
	Player string `json:"player"`
}

func (h *HTTPHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) listLobbies(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.lobbies.List())
}

func (h *HTTPHandler) createLobby(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.lobbies.Create(req.Player)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, snap)
}

func (h *HTTPHandler) getLobby(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lobbies.GetLobby(r.PathValue("code"))
	if !ok {
		h.writeError(w, fmt.Errorf("%w: %s", lobby.ErrLobbyNotFound, r.PathValue("code")))
		return
	}
	h.writeJSON(w, http.StatusOK, l.Snapshot())
}

func (h *HTTPHandler) joinLobby(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.lobbies.Join(r.PathValue("code"), req.Player)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *HTTPHandler) leaveLobby(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.lobbies.Leave(r.PathValue("code"), req.Player)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *HTTPHandler) startLobby(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.lobbies.Start(r.Context(), r.PathValue("code"), req.Player)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *HTTPHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID := lobby.NormalizeCode(r.PathValue("id"))
	rm, err := h.service.Room(r.Context(), roomID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, version := rm.Snapshot(r.URL.Query().Get("viewer"))
	h.writeJSON(w, http.StatusOK, StateMessage{Type: MessageState, RoomID: roomID, Version: version, State: view})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, code, errorMessage("", err))
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}
