package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zapdesk/zapdesk/pkg/logger"
	"github.com/zapdesk/zapdesk/pkg/relay"
	"github.com/zapdesk/zapdesk/pkg/session"
)

// WSHub upgrades WebSocket connections and manages their lifecycle. Every
// connected client is attached to the relay bus as its own transport, so a
// client connecting while a QR is buffered receives it on attach and later
// clients receive nothing stale.
type WSHub struct {
	bus           *relay.Bus
	manager       *session.Manager
	allowedOrigin string

	mu      sync.Mutex
	clients map[*WSClient]bool
	closed  bool
}

// NewWSHub creates a hub publishing into bus and dispatching inbound
// commands to manager.
func NewWSHub(bus *relay.Bus, manager *session.Manager, allowedOrigin string) *WSHub {
	return &WSHub{
		bus:           bus,
		manager:       manager,
		allowedOrigin: allowedOrigin,
		clients:       make(map[*WSClient]bool),
	}
}

func (h *WSHub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // same-origin requests carry no Origin header
			}
			if h.allowedOrigin != "" && origin == h.allowedOrigin {
				return true
			}
			if isLocalOrigin(origin) {
				return true
			}
			logger.WarnCF("ws", "Rejected WebSocket from disallowed origin", map[string]interface{}{"origin": origin})
			return false
		},
	}
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("ws", "WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan relay.Event, 256),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	logger.InfoCF("ws", "Client connected", map[string]interface{}{"client": client.id})

	// Attach before the pumps start: a buffered QR delivered on attach just
	// queues in the send channel until the write pump drains it, while the
	// read pump removing the client can only run afterwards.
	h.bus.Attach(client)

	go client.writePump()
	go client.readPump()
}

func (h *WSHub) remove(client *WSClient) {
	h.bus.Detach(client)

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	client.close()

	logger.InfoCF("ws", "Client disconnected", map[string]interface{}{"client": client.id})
}

// Shutdown detaches and closes every client.
func (h *WSHub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
		c.conn.Close()
	}
}

// WSClient is one connected WebSocket peer, attached to the relay bus as a
// transport of its own.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan relay.Event
	hub  *WSHub

	mu     sync.Mutex
	closed bool
}

// Name identifies the transport in logs.
func (c *WSClient) Name() string { return "ws:" + c.id }

// Deliver queues an event for the write pump. Non-blocking; a slow client
// drops. The mutex serializes delivery against close: bus broadcasts run
// from a snapshot taken outside the bus lock, so a Deliver can arrive after
// the client was detached.
func (c *WSClient) Deliver(e relay.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- e:
	default:
		logger.WarnCF("ws", "Client too slow, event dropped", map[string]interface{}{
			"client": c.id, "type": e.Type,
		})
	}
}

// close marks the client dead and closes the send channel, ending the write
// pump. Idempotent.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// wsCommand is an inbound client command ({"action": ..., "data": {...}}).
type wsCommand struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.deliverError("", "malformed command")
			continue
		}
		c.dispatch(cmd)
	}
}

// dispatch executes an inbound command. Results reach every subscriber
// through the relay bus; failures go back to the issuing client only.
func (c *WSClient) dispatch(cmd wsCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd.Action {
	case "sendMessage":
		var body struct {
			To      string `json:"to"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(cmd.Data, &body); err != nil {
			c.deliverError(cmd.Action, "malformed payload")
			return
		}
		if _, err := c.hub.manager.SendMessage(ctx, body.To, body.Content); err != nil {
			c.deliverError(cmd.Action, err.Error())
		}

	case "editMessage":
		var body struct {
			MessageID  string `json:"messageId"`
			To         string `json:"to"`
			NewContent string `json:"newContent"`
		}
		if err := json.Unmarshal(cmd.Data, &body); err != nil {
			c.deliverError(cmd.Action, "malformed payload")
			return
		}
		if err := c.hub.manager.EditMessage(ctx, body.MessageID, body.NewContent, body.To); err != nil {
			c.deliverError(cmd.Action, err.Error())
		}

	case "deleteMessage":
		var body struct {
			MessageID string `json:"messageId"`
			To        string `json:"to"`
		}
		if err := json.Unmarshal(cmd.Data, &body); err != nil {
			c.deliverError(cmd.Action, "malformed payload")
			return
		}
		if err := c.hub.manager.DeleteMessage(ctx, body.MessageID, body.To); err != nil {
			c.deliverError(cmd.Action, err.Error())
		}

	default:
		c.deliverError(cmd.Action, "unknown action")
	}
}

// deliverError sends a command failure to this client only. Errors are
// never relay events; the shared stream stays a success-path log.
func (c *WSClient) deliverError(action, msg string) {
	c.Deliver(relay.New("error", map[string]string{
		"action":  action,
		"message": msg,
	}))
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
