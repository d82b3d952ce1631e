// Package ws pushes snapshots to browser clients over WebSocket and accepts
// session commands from them.
package ws

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/infra/logger"
)

// Client represents a connected WebSocket client. An empty session receives
// every session's messages.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session string
}

// Hub manages WebSocket clients and broadcasts messages. It is also a
// snapshot sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	log     logger.Logger
	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		log:     logger.New("ws-hub"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends msg to every client following sessionID.
func (h *Hub) Broadcast(sessionID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.session != "" && c.session != sessionID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			h.log.Warnf("client buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were skipped for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// RecordSnapshot broadcasts a snapshot envelope.
func (h *Hub) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	msg, err := NewEnvelope(TypeSnapshot, SnapshotPayload{SessionID: sessionID, Snapshot: snap})
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, msg)
	return nil
}

// RecordDaySummary broadcasts a day_summary envelope.
func (h *Hub) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	msg, err := NewEnvelope(TypeDaySummary, DaySummaryPayload{SessionID: sessionID, Summary: sum})
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, msg)
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
