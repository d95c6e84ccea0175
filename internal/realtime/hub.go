package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// AllHosts is the room that receives events of every host.
	AllHosts = "Todos"

	// EventBotStatus carries a BotStatusEvent.
	EventBotStatus = "bot_status"
)

// BotStatusEvent is broadcast whenever a stored bot status is written.
type BotStatusEvent struct {
	RecallBotID string `json:"recall_bot_id"`
	Host        string `json:"host"`
	Status      string `json:"status"`
}

// Hub maintains host -> set of connections and broadcasts messages.
// With Redis configured, events go through pub/sub so every instance delivers them once.
type Hub struct {
	// host -> map[clientID]*Client
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishHostEvent(ctx context.Context, host, event string, payload []byte) error
}

// RedisSubscriber subscribes to a room's channel and invokes handler for incoming events.
// Subscribing to AllHosts receives the events of every host.
type RedisSubscriber interface {
	SubscribeHost(host string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may both be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its host room. Starts the Redis subscription for the room if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Host] == nil {
		h.rooms[c.Host] = make(map[string]*Client)
		if h.redisSub != nil {
			room := c.Host
			cancel, err := h.redisSub.SubscribeHost(room, func(event string, payload []byte) {
				h.Broadcast(room, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe host channel failed", zap.String("host", room), zap.Error(err))
			} else {
				h.subs[room] = cancel
			}
		}
	}
	h.rooms[c.Host][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined", zap.String("client_id", c.ID), zap.String("host", c.Host))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.Host]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.Host)
			if cancel, ok := h.subs[c.Host]; ok {
				cancel()
				delete(h.subs, c.Host)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left", zap.String("client_id", c.ID), zap.String("host", c.Host))
}

// Broadcast sends a message to all clients of a room (local only).
func (h *Hub) Broadcast(room, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishBotStatus delivers a status change to the host's room and the AllHosts room.
func (h *Hub) PublishBotStatus(ctx context.Context, host, recallBotID, status string) error {
	ev := BotStatusEvent{RecallBotID: recallBotID, Host: host, Status: status}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if h.redis != nil {
		// The subscriber callbacks perform the local broadcast, including on this instance.
		return h.redis.PublishHostEvent(ctx, host, EventBotStatus, data)
	}
	h.Broadcast(host, EventBotStatus, data)
	if host != AllHosts {
		h.Broadcast(AllHosts, EventBotStatus, data)
	}
	return nil
}

// ClientCount returns the number of connected clients in a room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(room, clientID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.rooms[room][clientID]
	if !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}
