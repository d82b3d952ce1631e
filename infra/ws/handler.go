package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/infra/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Sessions is the part of the session manager the handler needs.
type Sessions interface {
	Get(id string) (*simulation.Session, error)
	Apply(id string, cmd simulation.Command) error
}

// Handler upgrades connections and routes client commands to sessions.
// The session to follow is read from the "session" query parameter.
type Handler struct {
	hub      *Hub
	sessions Sessions
	log      logger.Logger
}

func NewHandler(hub *Hub, sessions Sessions) *Handler {
	return &Handler{hub: hub, sessions: sessions, log: logger.New("ws-handler")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	var current *simulation.Session
	if sessionID != "" {
		s, err := h.sessions.Get(sessionID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		current = s
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		session: sessionID,
	}
	h.hub.Register(client)
	go client.writePump()

	if current != nil {
		h.sendTo(client, TypeSnapshot, SnapshotPayload{SessionID: sessionID, Snapshot: current.Current()})
	}
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnf("WebSocket read error: %v", err)
			}
			return
		}
		h.handleMessage(c, msg)
	}
}

// commandPayload is a simulation.Command addressed to a session. The
// session defaults to the one the client follows.
type commandPayload struct {
	SessionID string `json:"sessionId"`
	simulation.Command
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.sendError(c, "invalid message")
		return
	}
	switch env.Type {
	case TypeCommand:
		var p commandPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "invalid command payload")
			return
		}
		id := p.SessionID
		if id == "" {
			id = c.session
		}
		if err := h.sessions.Apply(id, p.Command); err != nil {
			h.sendError(c, err.Error())
			return
		}
		if s, err := h.sessions.Get(id); err == nil {
			h.sendTo(c, TypeSnapshot, SnapshotPayload{SessionID: id, Snapshot: s.Current()})
		}
	default:
		h.sendError(c, "unknown message type: "+env.Type)
	}
}

func (h *Handler) sendTo(c *Client, msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		h.log.Errorf("marshal %s: %v", msgType, err)
		return
	}
	// Unregister closes c.send under the hub lock.
	h.hub.mu.RLock()
	defer h.hub.mu.RUnlock()
	if !h.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.hub.dropped.Add(1)
	}
}

func (h *Handler) sendError(c *Client, message string) {
	h.sendTo(c, TypeError, ErrorPayload{Message: message})
}
