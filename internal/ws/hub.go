package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"linkup/internal/models"
	"linkup/internal/observability"
)

const writeWait = 5 * time.Second

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains active websocket rooms, one per owner and chat.
type Hub struct {
	rooms map[roomKey]map[*websocket.Conn]*client
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[roomKey]map[*websocket.Conn]*client),
	}
}

// AddClient registers a websocket connection to a chat room.
func (h *Hub) AddClient(owner, chatID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey{owner: owner, chatID: chatID}
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = make(map[*websocket.Conn]*client)
	}
	h.rooms[key][conn] = &client{conn: conn, info: info}
}

// RemoveClient removes a websocket connection.
func (h *Hub) RemoveClient(owner, chatID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey{owner: owner, chatID: chatID}
	if conns, ok := h.rooms[key]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, key)
		}
	}
}

// RoomSize returns the number of connections watching a chat.
func (h *Hub) RoomSize(owner, chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey{owner: owner, chatID: chatID}])
}

// BroadcastChatEvent sends a conversation event to every client watching the chat.
// Connections that fail to accept the write are dropped.
func (h *Hub) BroadcastChatEvent(ev models.ChatEvent) {
	clients := h.snapshot(roomKey{owner: ev.Owner, chatID: ev.ChatID})
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("marshal chat event")
		return
	}
	for _, cl := range clients {
		if err := cl.write(payload); err != nil {
			log.Warn().Err(err).Str("conn_id", cl.info.ConnID).Msg("websocket write error")
			_ = cl.conn.Close()
			h.RemoveClient(ev.Owner, ev.ChatID, cl.conn)
			h.publishWSError(cl.info, err)
			continue
		}
		observability.IncWSEvent("chat", ev.Type)
	}
}

// CloseRoom disconnects every client of a chat, used when the chat is closed.
func (h *Hub) CloseRoom(owner, chatID string) {
	key := roomKey{owner: owner, chatID: chatID}
	clients := h.snapshot(key)

	h.mu.Lock()
	delete(h.rooms, key)
	h.mu.Unlock()

	for _, cl := range clients {
		if cl.conn == nil {
			continue
		}
		cl.mu.Lock()
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "chat closed"),
			time.Now().Add(writeWait))
		cl.mu.Unlock()
		_ = cl.conn.Close()
	}
}

func (h *Hub) snapshot(key roomKey) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.rooms[key]
	out := make([]*client, 0, len(conns))
	for _, cl := range conns {
		out = append(out, cl)
	}
	return out
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	publishLifecycle(context.Background(), info, "ws_error", err.Error())
	observability.IncWSEvent("chat", "ws_error")
}
