/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Seednode/promptbox/internal/game"
)

const (
	sendBuffer     = 32
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
)

// Messages coming from clients
type ClientMessage struct {
	Type     string        `json:"type"`             // "create-room", "join-room", "start-game", "submit-prompt", "leave-room"
	Name     string        `json:"name,omitempty"`   // create-room / join-room
	Code     string        `json:"code,omitempty"`   // join-room / start-game / submit-prompt
	Text     string        `json:"text,omitempty"`   // submit-prompt
	Settings *RoomSettings `json:"config,omitempty"` // create-room
}

// SessionInfoMessage is sent immediately on connect so the client knows
// its player id.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session-info"
	PlayerID string `json:"playerId"`
}

// ResultMessage answers a single request, e.g. "join-room-result".
type ResultMessage struct {
	Type string `json:"type"`
	Result
}

// ErrorMessage is sent to a single client for unusable input.
type ErrorMessage struct {
	Type   string `json:"type"` // "error"
	Reason string `json:"reason"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	limiter  *rate.Limiter
}

// Hub tracks connected clients by player id and fans room notifications
// out to the members of each room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	registry *game.Registry
	rooms    *Rooms
	limit    rate.Limit
	burst    int
	log      zerolog.Logger
}

var _ game.Notifier = (*Hub)(nil)

func newHub(registry *game.Registry, limit rate.Limit, burst int, log zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		limit:    limit,
		burst:    burst,
		log:      log,
	}
}

// Notify queues msg for every connected member of the room. Clients whose
// buffer is full miss the message rather than stall the game.
func (h *Hub) Notify(code string, msg any) {
	room, ok := h.registry.GetRoom(code)
	if !ok {
		return
	}

	for _, id := range room.PlayerIDs() {
		h.sendTo(id, msg)
	}
}

func (h *Hub) sendTo(playerID string, msg any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[playerID]
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("player", playerID).Msg("SERVE: Dropped message for slow client")
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.playerID] = c
	h.mu.Unlock()

	h.sendTo(c.playerID, SessionInfoMessage{Type: "session-info", PlayerID: c.playerID})
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.playerID]; ok && current == c {
		delete(h.clients, c.playerID)
		close(c.send)
	}
	h.mu.Unlock()

	h.rooms.Leave(c.playerID)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}

func (h *Hub) dispatch(c *Client, msg ClientMessage) {
	var res Result

	switch msg.Type {
	case "create-room":
		var settings RoomSettings
		if msg.Settings != nil {
			settings = *msg.Settings
		}
		res = h.rooms.Create(c.playerID, msg.Name, settings)
	case "join-room":
		res = h.rooms.Join(c.playerID, msg.Code, msg.Name)
	case "start-game":
		res = h.rooms.Start(c.playerID, msg.Code)
	case "submit-prompt":
		res = h.rooms.Submit(c.playerID, msg.Code, msg.Text)
	case "leave-room":
		res = h.rooms.Leave(c.playerID)
	default:
		h.sendTo(c.playerID, ErrorMessage{Type: "error", Reason: "unknown message type"})
		return
	}

	h.log.Debug().
		Str("player", c.playerID).
		Str("type", msg.Type).
		Bool("ok", res.OK).
		Str("reason", res.Reason).
		Msg("SERVE: Handled request")

	h.sendTo(c.playerID, ResultMessage{Type: msg.Type + "-result", Result: res})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Str("remote", realIP(r)).Msg("SERVE: Websocket upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendBuffer),
			playerID: uuid.NewString(),
			limiter:  rate.NewLimiter(h.limit, h.burst),
		}

		h.log.Info().Str("player", client.playerID).Str("remote", realIP(r)).Msg("SERVE: Client connected")

		h.register(client)

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()

		h.log.Info().Str("player", c.playerID).Msg("SERVE: Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			h.sendTo(c.playerID, ErrorMessage{Type: "error", Reason: "rate limited"})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendTo(c.playerID, ErrorMessage{Type: "error", Reason: "malformed message"})
			continue
		}

		h.dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
