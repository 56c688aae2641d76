// Package network is the WebSocket chat gateway: players connect, identify
// themselves, and talk. Lines starting with the alliance command prefix are
// routed into the simulation; everything else is plain chat, broadcast to
// every connected client.
package network

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/allegiance/internal/engine"
	"github.com/talgya/allegiance/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway fronts a game server, not a browser app; accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	mu         sync.Mutex
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	world    *engine.World
	adminKey string
}

// NewHub initializes the chat hub for a world. adminKey, when non-empty,
// lets a client claim admin on hello by presenting the same key.
func NewHub(world *engine.World, adminKey string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		world:      world,
		adminKey:   adminKey,
	}
}

// Run is the hub's main loop. It owns the client set.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("chat hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("chat client connected", "session", client.session)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				slog.Info("chat client disconnected", "session", client.session)
			}
			h.mu.Unlock()
			// The readPump has exited by the time it unregisters, so no
			// reply can be in flight; this is the only place send closes.
			client.closeSend()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it from the set and close its
					// connection. Its readPump notices and unregisters,
					// which is what finally closes the send channel —
					// never this loop, since the client may be mid-reply.
					delete(h.clients, client)
					client.conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ServeWS upgrades an HTTP request to a WebSocket chat session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	client := newClient(h, conn)
	client.register()
	go client.writePump()
	go client.readPump()
}

// Broadcast serializes a server message and fans it out to every client.
func (h *Hub) Broadcast(msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("serialize chat broadcast", "error", err)
		return
	}
	h.broadcast <- payload
}

// StartEventPoller pushes new world events to connected clients. It polls
// the event log with a sequence cursor so the hub stays decoupled from the
// tick loop while seeing the same events.
func (h *Hub) StartEventPoller(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		var cursor uint64

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fresh := h.world.Events.Since(cursor)
				for _, ev := range fresh {
					h.Broadcast(ServerMessage{
						Type:  "event",
						Text:  ev.Description,
						Event: &ev,
					})
					cursor = ev.Seq
				}
			}
		}
	}()
}

// ServerMessage is the JSON frame sent to clients.
type ServerMessage struct {
	Type  string        `json:"type"` // "chat", "reply", "event", "error"
	From  string        `json:"from,omitempty"`
	Text  string        `json:"text"`
	Event *events.Event `json:"event,omitempty"`
}
