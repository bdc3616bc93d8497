package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var ErrNotConnected = errors.New("user not connected")

// Hub fans status events out to every websocket a user has open.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *zap.Logger
}

// Client is one websocket connection.
type Client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

type socketMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHub accepts upgrades from allowedOrigins and from clients that send no Origin.
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		done:       make(chan struct{}),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.log.Warn("websocket connection rejected", zap.String("origin", origin))
			return false
		},
	}
	return h
}

// Run handles registrations until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			h.closeAll()
			return nil
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, ok := h.clients[client.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[client.userID] = conns
	}
	conns[client] = struct{}{}
	h.log.Info("websocket client connected", zap.String("user_id", client.userID.String()), zap.Int("connections", len(conns)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns := h.clients[client.userID]
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	h.log.Info("websocket client disconnected", zap.String("user_id", client.userID.String()))
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

// Notify pushes a status event. Users without a connection are skipped.
func (h *Hub) Notify(userID uuid.UUID, event StatusEvent) {
	if err := h.SendToUser(userID, event); err != nil && !errors.Is(err, ErrNotConnected) {
		h.log.Warn("failed to push status", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// SendToUser queues v on every connection of the user. Slow connections drop messages.
func (h *Hub) SendToUser(userID uuid.UUID, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		return ErrNotConnected
	}
	for client := range conns {
		h.queue(client, data)
	}
	return nil
}

// queue must be called with the read lock held.
func (h *Hub) queue(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.log.Warn("websocket send buffer full, dropping message", zap.String("user_id", client.userID.String()))
	}
}

func (h *Hub) reply(client *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if _, ok := h.clients[client.userID][client]; ok {
		h.queue(client, data)
	}
}

// ConnectionCount returns the number of open connections of a user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID])
}

// Serve upgrades the request and blocks until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	if welcome, err := json.Marshal(socketMessage{Type: "connection", Message: "WebSocket connection established", Timestamp: time.Now().UTC()}); err == nil {
		client.send <- welcome
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go h.writePump(client)
	h.readPump(client)
	return nil
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message socketMessage
		if err := client.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", zap.String("user_id", client.userID.String()), zap.Error(err))
			}
			return
		}

		if message.Type == "ping" {
			h.reply(client, socketMessage{Type: "pong", Timestamp: time.Now().UTC()})
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
