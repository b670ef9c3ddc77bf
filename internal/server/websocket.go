package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/config"
	"github.com/thraizz/coup-server-go/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

// Client message types besides the room commands.
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
)

// WSMessage is a message sent by a client. Type is "subscribe",
// "unsubscribe" or a room command name; the remaining fields are the
// command's arguments.
type WSMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	CommandRequest
}

// wsClient is one WebSocket connection. A client watches at most one room at a time.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	roomID    string
	viewer    string
	cancelSub func()
}

// Hub owns the WebSocket connections.
type Hub struct {
	service  *Service
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients    map[*wsClient]bool
	unregister chan *wsClient
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub serving commands through service.
func NewHub(service *Service, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		service:    service,
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run unregisters disconnected clients until ctx is done, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.unsubscribe()
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client unregistered", zap.Int("clients", h.ClientCount()))

		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				client.unsubscribe()
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) add(client *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.clients[client] = true
	h.logger.Debug("websocket client registered", zap.Int("clients", len(h.clients)))
	return true
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if !h.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(errorMessage("", fmt.Errorf("%w: %v", ErrBadRequest, err)))
			continue
		}
		c.handle(msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(msg WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	switch msg.Type {
	case MessageSubscribe:
		if err := c.subscribe(ctx, msg.RoomID, msg.Player); err != nil {
			c.reply(errorMessage(msg.RequestID, err))
		}
		return
	case MessageUnsubscribe:
		c.unsubscribe()
		return
	}

	kind, err := room.ParseCommandKind(msg.Type)
	if err != nil {
		c.reply(errorMessage(msg.RequestID, fmt.Errorf("%w: %v", ErrBadRequest, err)))
		return
	}
	res, err := c.hub.service.Execute(ctx, kind, msg.CommandRequest)
	if err != nil {
		c.reply(errorMessage(msg.RequestID, err))
		return
	}
	c.reply(resultMessage(msg.RequestID, res))
}

// subscribe replaces the client's room subscription.
func (c *wsClient) subscribe(ctx context.Context, roomID, viewer string) error {
	r, err := c.hub.service.Room(ctx, roomID)
	if err != nil {
		return err
	}
	c.unsubscribe()

	updates, cancel := r.Subscribe(viewer)
	c.mu.Lock()
	c.roomID, c.viewer, c.cancelSub = roomID, viewer, cancel
	c.mu.Unlock()

	go func() {
		for u := range updates {
			c.reply(stateMessage(roomID, viewer, u))
		}
	}()
	return nil
}

func (c *wsClient) unsubscribe() {
	c.mu.Lock()
	cancel := c.cancelSub
	c.cancelSub = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// reply queues v for the write pump. Messages to a client that cannot keep
// up are dropped; the client re-syncs from the next state message.
func (c *wsClient) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping message")
	}
}
