// Package main provides WebSocket fan-out of sync and connectivity events
// to the UI shell (desktop only).
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	syncpkg "github.com/kbrou/agrisync/internal/sync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Only the embedded shell on localhost may connect
		return r.Host == "localhost" || strings.HasPrefix(r.Host, "localhost:")
	},
}

// WSClient represents one connected UI shell.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub maintains active shell connections and broadcasts event envelopes.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// WebSocket event types pushed to the shell.
const (
	EventSyncStarted   = "sync.started"
	EventSyncItem      = "sync.item"
	EventSyncCompleted = "sync.completed"

	EventConnectivityChanged = "connectivity.changed"
	EventQueueUpdated        = "queue.updated"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (total: %d)", client.id, len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s (total: %d)", client.id, len(h.clients))

		case message := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer is full, close connection
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an envelope to all connected shells.
func (h *WSHub) Broadcast(messageType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[WS] Failed to marshal message: %v", err)
		return
	}

	h.broadcast <- bytes
}

// OnSyncEvent implements sync.SyncEventHandler: engine lifecycle events are
// fanned out to the shell as they happen.
func (h *WSHub) OnSyncEvent(event syncpkg.SyncEvent) {
	switch event.Type {
	case syncpkg.SyncEventStarted:
		h.Broadcast(EventSyncStarted, map[string]interface{}{
			"status": "started",
		})

	case syncpkg.SyncEventItemSynced:
		h.Broadcast(EventSyncItem, map[string]interface{}{
			"operation_id": event.ItemID,
			"synced":       true,
		})

	case syncpkg.SyncEventItemFailed:
		h.Broadcast(EventSyncItem, map[string]interface{}{
			"operation_id": event.ItemID,
			"synced":       false,
			"error":        event.Error,
		})

	case syncpkg.SyncEventCompleted:
		data := map[string]interface{}{"status": "completed"}
		if event.Result != nil {
			data["attempted"] = event.Result.Attempted
			data["succeeded"] = event.Result.Succeeded
			data["failed"] = event.Result.Failed
			data["duration"] = event.Result.Duration.Milliseconds()
		}
		h.Broadcast(EventSyncCompleted, data)
	}
}

// BroadcastConnectivityChanged notifies shells of an online/offline change.
func (h *WSHub) BroadcastConnectivityChanged(online bool) {
	h.Broadcast(EventConnectivityChanged, map[string]interface{}{
		"online": online,
	})
}

// BroadcastQueueUpdated notifies shells that the pending count changed.
func (h *WSHub) BroadcastQueueUpdated(pending int) {
	h.Broadcast(EventQueueUpdated, map[string]interface{}{
		"pending": pending,
	})
}

// readPump discards client messages and watches for disconnect.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket handles WebSocket upgrade requests from the shell.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] Failed to upgrade: %v", err)
			return
		}

		clientID := time.Now().Format("20060102150405") + "-" + r.RemoteAddr

		client := &WSClient{
			id:   clientID,
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
