package network

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/allegiance/internal/alliance"
	"github.com/talgya/allegiance/internal/faction"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// How long a command may wait on the tick loop before the session
	// gets a busy reply instead of hanging.
	commandTimeout = 10 * time.Second
)

// Client is one WebSocket chat session. A session starts anonymous and
// binds to an actor with a hello message; commands from an unbound session
// still reach the simulation, which answers with its own identity error.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	session   string

	actorID faction.ActorID
	name    string
	bound   bool
	admin   bool
}

// clientMessage is the JSON frame received from clients.
type clientMessage struct {
	Type     string          `json:"type"` // "hello" or "chat"
	ActorID  faction.ActorID `json:"actor_id,omitempty"`
	Name     string          `json:"name,omitempty"`
	AdminKey string          `json:"admin_key,omitempty"`
	Text     string          `json:"text,omitempty"`
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		session: uuid.NewString(),
	}
}

func (c *Client) register() {
	c.hub.register <- c
}

// closeSend closes the outbound channel exactly once. Only the hub calls
// this, and only after the client's readPump has unregistered.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump pumps messages from the websocket connection into the world.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("chat read error", "session", c.session, "error", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(ServerMessage{Type: "error", Text: "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMessage) {
	switch msg.Type {
	case "hello":
		c.handleHello(msg)
	case "chat":
		c.handleChat(msg.Text)
	default:
		c.reply(ServerMessage{Type: "error", Text: "unknown message type"})
	}
}

func (c *Client) handleHello(msg clientMessage) {
	if msg.Name == "" {
		c.reply(ServerMessage{Type: "error", Text: "hello requires a name"})
		return
	}
	c.actorID = msg.ActorID
	c.name = msg.Name
	c.bound = true
	c.admin = c.hub.adminKey != "" && msg.AdminKey == c.hub.adminKey

	c.hub.world.EnsureActor(c.actorID, c.name)
	slog.Info("chat session bound", "session", c.session, "actor", c.actorID, "name", c.name, "admin", c.admin)
	c.reply(ServerMessage{Type: "reply", Text: "Welcome, " + c.name + "."})
}

func (c *Client) handleChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if alliance.IsCommand(text) {
		// Unbound sessions pass actor 0, which the engine rejects as an
		// unresolved identity; that keeps the error path in one place.
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		reply, err := c.hub.world.SubmitCommand(ctx, c.actorID, text, c.admin)
		if err != nil {
			c.reply(ServerMessage{Type: "error", Text: "the world is not responding; try again shortly"})
			return
		}
		c.reply(ServerMessage{Type: "reply", Text: reply})
		return
	}

	if !c.bound {
		c.reply(ServerMessage{Type: "error", Text: "send a hello message before chatting"})
		return
	}
	c.hub.Broadcast(ServerMessage{Type: "chat", From: c.name, Text: text})
}

// reply sends a message to this client only.
func (c *Client) reply(msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("serialize chat reply", "error", err)
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
