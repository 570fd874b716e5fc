package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// RedisBridge carries event messages between server instances.
type RedisBridge interface {
	PublishEventMessage(ctx context.Context, eventID uuid.UUID, kind string, payload []byte) error
	SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_id -> set of watching connections and fans messages out to them.
// With a RedisBridge, publishes go through Redis so every instance delivers them once.
type Hub struct {
	events map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	bridge RedisBridge
	logger *zap.Logger
}

// NewHub creates a hub. bridge may be nil for a single-instance deployment.
func NewHub(bridge RedisBridge, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		events: make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		bridge: bridge,
		logger: logger,
	}
}

// Register adds a client to an event room and subscribes to the event channel for the first watcher.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.events[c.EventID] == nil {
		h.events[c.EventID] = make(map[string]*Client)
		if h.bridge != nil {
			eventID := c.EventID
			cancel, err := h.bridge.SubscribeEvent(eventID, func(kind string, payload []byte) {
				h.Broadcast(eventID, kind, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe event channel", zap.String("event_id", eventID.String()), zap.Error(err))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.events[c.EventID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("watcher joined event", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client and drops the channel subscription when the room empties.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.events[c.EventID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.events, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("watcher left event", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to every local watcher of the event. Slow clients are skipped.
func (h *Hub) Broadcast(eventID uuid.UUID, kind string, payload any) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal broadcast", zap.String("kind", kind), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: kind, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.events[eventID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Publish delivers a message to all watchers of the event on every instance.
func (h *Hub) Publish(ctx context.Context, eventID uuid.UUID, kind string, data any) error {
	if h.bridge == nil {
		h.Broadcast(eventID, kind, data)
		return nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	return h.bridge.PublishEventMessage(ctx, eventID, kind, body)
}

// Watchers returns the number of local connections watching the event.
func (h *Hub) Watchers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}
