package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizroom/quizroom-backend/internal/game"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// Conn is one registered websocket connection. PlayerID is uuid.Nil until the
// join handshake binds the connection to a player; observer connections never
// bind one.
type Conn struct {
	ID        string
	SessionID uuid.UUID
	PlayerID  uuid.UUID
	Observer  bool

	sock *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewConn wraps an upgraded socket for hub registration.
func NewConn(sock *websocket.Conn, sessionID uuid.UUID, observer bool) *Conn {
	return &Conn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Observer:  observer,
		sock:      sock,
		send:      make(chan []byte, sendBuffer),
	}
}

// BindPlayer attaches the connection to a player after a successful join.
func (c *Conn) BindPlayer(playerID uuid.UUID) {
	c.PlayerID = playerID
}

// Close terminates the outbound pump and the underlying socket. Safe to call
// more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// writePump serializes all writes to the socket and keeps the connection
// alive with pings. Runs until the send channel closes or a write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks the connections of every live session room and fans engine
// events out to them. It implements game.Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Conn]bool
	log   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[*Conn]bool),
		log:   log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register adds a connection to its session room and starts its write pump.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	room, ok := h.rooms[c.SessionID]
	if !ok {
		room = make(map[*Conn]bool)
		h.rooms[c.SessionID] = room
	}
	room[c] = true
	h.mu.Unlock()

	go c.writePump()
}

// Unregister removes a connection and closes its pump. Empty rooms are
// dropped.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if room, ok := h.rooms[c.SessionID]; ok {
		if room[c] {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.SessionID)
			}
		}
	}
	h.mu.Unlock()

	c.Close()
}

// ToRoom delivers an event to every connection in the session's room. The
// sessionEnded event also tears the room down after delivery.
func (h *Hub) ToRoom(sessionID uuid.UUID, evt game.Event) {
	raw, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(evt.Type)).Msg("marshal event")
		return
	}

	h.mu.RLock()
	conns := h.snapshot(sessionID, func(*Conn) bool { return true })
	h.mu.RUnlock()

	for _, c := range conns {
		h.deliver(c, raw)
	}

	if evt.Type == game.EventSessionEnded {
		h.closeRoom(sessionID)
	}
}

// ToPlayer delivers an event to the connections bound to one player.
func (h *Hub) ToPlayer(sessionID, playerID uuid.UUID, evt game.Event) {
	raw, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(evt.Type)).Msg("marshal event")
		return
	}

	h.mu.RLock()
	conns := h.snapshot(sessionID, func(c *Conn) bool { return c.PlayerID == playerID })
	h.mu.RUnlock()

	for _, c := range conns {
		h.deliver(c, raw)
	}
}

// ToObservers delivers an event to observer connections only.
func (h *Hub) ToObservers(sessionID uuid.UUID, evt game.Event) {
	raw, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(evt.Type)).Msg("marshal event")
		return
	}

	h.mu.RLock()
	conns := h.snapshot(sessionID, func(c *Conn) bool { return c.Observer })
	h.mu.RUnlock()

	for _, c := range conns {
		h.deliver(c, raw)
	}
}

// Send delivers a transport-level payload to one connection.
func (h *Hub) Send(c *Conn, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal payload")
		return
	}
	h.deliver(c, raw)
}

// RoomSize reports the number of connections in a session room.
func (h *Hub) RoomSize(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// CloseAll tears down every room. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*Conn
	for id, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
}

// snapshot copies matching room members so delivery happens outside the lock.
// Caller holds h.mu.
func (h *Hub) snapshot(sessionID uuid.UUID, match func(*Conn) bool) []*Conn {
	room, ok := h.rooms[sessionID]
	if !ok {
		return nil
	}
	out := make([]*Conn, 0, len(room))
	for c := range room {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// deliver enqueues without blocking; a connection that cannot keep up is
// dropped rather than stalling the whole room.
func (h *Hub) deliver(c *Conn, raw []byte) {
	defer func() {
		// Losing the race against Unregister closing the send channel is
		// harmless; the connection is gone either way.
		_ = recover()
	}()
	select {
	case c.send <- raw:
	default:
		h.log.Warn().
			Str("conn_id", c.ID).
			Str("session_id", c.SessionID.String()).
			Msg("send buffer full, dropping connection")
		go h.Unregister(c)
	}
}

func (h *Hub) closeRoom(sessionID uuid.UUID) {
	h.mu.Lock()
	room := h.rooms[sessionID]
	delete(h.rooms, sessionID)
	h.mu.Unlock()

	for c := range room {
		c.Close()
	}
}
