package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"domino-engine/models"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	sendBuffer   = 64
)

// WSMessage is the envelope for everything pushed to observers.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	tableID string // empty means every table
}

// Hub streams snapshots and table events to websocket observers. It is a
// report sink, so it never blocks the reporter: slow clients lose messages.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]bool
	upgrader websocket.Upgrader
	origins  []string
	logger   *zap.Logger
	closed   bool
}

func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[*wsClient]bool),
		origins: allowedOrigins,
		logger:  logger.Named("hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows everything when no origins are configured.
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == origin {
			return true
		}
	}
	h.logger.Debug("rejected websocket origin", zap.String("origin", origin))
	return false
}

func (h *Hub) Name() string {
	return "websocket"
}

func (h *Hub) Publish(_ context.Context, snap models.TableSnapshot) error {
	h.broadcast(snap.TableID, WSMessage{Type: "snapshot", Payload: snap})
	return nil
}

func (h *Hub) BroadcastEvent(event models.Event) {
	h.broadcast(event.TableID, WSMessage{Type: "event", Payload: event})
}

func (h *Hub) broadcast(tableID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.tableID != "" && client.tableID != tableID {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("ws subscriber channel full", zap.String("table_id", tableID))
		}
	}
}

// Handle upgrades the request. ?table=<id> limits the stream to one table.
// initial is sent to the client before anything else.
func (h *Hub) Handle(c *gin.Context, initial []models.TableSnapshot) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		tableID: c.Query("table"),
	}
	for _, snap := range initial {
		if client.tableID != "" && client.tableID != snap.TableID {
			continue
		}
		if data, err := json.Marshal(WSMessage{Type: "snapshot", Payload: snap}); err == nil {
			select {
			case client.send <- data:
			default:
			}
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()
	h.logger.Debug("observer connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// readPump only watches for the client going away; observers cannot send
// anything that matters.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
