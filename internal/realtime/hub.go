package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub tracks live sessions and their room subscriptions, and fans events
// out to them. A room is the set of sessions currently joined to one
// channel.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		sessions: map[string]*Session{},
		rooms:    map[string]map[string]*Session{},
		logger:   log.With(slog.String("component", "hub")),
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
}

// Unregister removes a session from the hub and every room, and closes its
// send channel. Safe to call more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.ID]; ok {
		delete(h.sessions, s.ID)
		for channelID, room := range h.rooms {
			delete(room, s.ID)
			if len(room) == 0 {
				delete(h.rooms, channelID)
			}
		}
		s.closeSend()
	}
	h.mu.Unlock()
}

// Join subscribes a session to a channel's room.
func (h *Hub) Join(channelID string, s *Session) {
	h.mu.Lock()
	room, ok := h.rooms[channelID]
	if !ok {
		room = map[string]*Session{}
		h.rooms[channelID] = room
	}
	room[s.ID] = s
	h.mu.Unlock()
}

// BroadcastToRoom delivers an event to every session joined to the channel,
// excluding excludeSessionID when non-empty. Slow receivers are dropped.
func (h *Hub) BroadcastToRoom(channelID, excludeSessionID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode event failed", slog.String("event", event.Event), slog.Any("error", err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.rooms[channelID] {
		if id == excludeSessionID {
			continue
		}
		s.trySend(data)
	}
}

// BroadcastAll delivers an event to every connected session.
func (h *Hub) BroadcastAll(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode event failed", slog.String("event", event.Event), slog.Any("error", err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.trySend(data)
	}
}

// SendTo delivers an event to a single session.
func (h *Hub) SendTo(s *Session, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode event failed", slog.String("event", event.Event), slog.Any("error", err))
		return
	}
	s.trySend(data)
}

// RoomSize returns the number of sessions joined to a channel.
func (h *Hub) RoomSize(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channelID])
}
