package desk

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/daybook/internal/account"
	"github.com/atmx/daybook/internal/metrics"
	"github.com/atmx/daybook/internal/model"
)

// writeWait bounds a single write to a client so a stalled peer cannot hold
// up the hub.
const writeWait = 10 * time.Second

// Message is a JSON message sent to WebSocket clients.
type Message struct {
	Type   string           `json:"type"`
	UserID string           `json:"user_id"`
	Status model.SyncStatus `json:"status,omitempty"`
	Date   string           `json:"date,omitempty"`
}

type envelope struct {
	userID string
	data   []byte
}

// Hub fans out sync status and summary changes to the WebSocket clients of
// the affected user. It implements cloudsync.Notifier.
type Hub struct {
	clients    map[*websocket.Conn]string
	broadcast  chan envelope
	register   chan client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

type client struct {
	conn   *websocket.Conn
	userID string
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan envelope, 256),
		register:   make(chan client),
		unregister: make(chan *websocket.Conn),
	}
}

// Run is the hub's event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c.userID
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("ws client connected", "user", c.userID, "total", n)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))

		case env := <-h.broadcast:
			h.mu.Lock()
			for conn, uid := range h.clients {
				if uid != env.userID {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, env.data); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
		}
	}
}

// Send queues msg for the clients of msg.UserID.
func (h *Hub) Send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- envelope{userID: msg.UserID, data: data}:
	default:
		// Drop if buffer full; clients re-read state on reconnect.
	}
}

// SyncStatusChanged broadcasts a sync_status message.
func (h *Hub) SyncStatusChanged(userID string, status model.SyncStatus) {
	h.Send(Message{Type: "sync_status", UserID: userID, Status: status})
}

// SummariesChanged broadcasts a summaries_changed message for date.
func (h *Hub) SummariesChanged(userID, date string) {
	h.Send(Message{Type: "summaries_changed", UserID: userID, Date: date})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := account.UserID(r.Context())
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- client{conn: conn, userID: userID}

	// Read pump: detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}()
}
