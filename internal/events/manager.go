package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/services/stats"
)

// EventLevelUp is the SSE event name for level-up notifications
const EventLevelUp = "level-up"

// LevelUpPayload is the JSON body of a level-up event
type LevelUpPayload struct {
	PlayerID      model.PlayerID `json:"player_id"`
	PreviousLevel int64          `json:"previous_level"`
	NewLevel      int64          `json:"new_level"`
	Experience    int64          `json:"experience"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// HubManager owns one hub per player with open streams
type HubManager struct {
	hubs   map[model.PlayerID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// Ensure HubManager can receive level-up notifications
var _ stats.Notifier = (*HubManager)(nil)

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.PlayerID]*Hub),
		logger: logger.With(slog.String("component", "events")),
	}
}

// GetOrCreateHub returns the player's hub, starting one if needed
func (m *HubManager) GetOrCreateHub(playerID model.PlayerID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		return hub
	}

	hub := NewHub(playerID, m.logger)
	m.hubs[playerID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the player's hub, or nil if none exists
func (m *HubManager) GetHub(playerID model.PlayerID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[playerID]
}

// NotifyLevelUp pushes the event to the player's open streams, if any
func (m *HubManager) NotifyLevelUp(ctx context.Context, event stats.LevelUpEvent) {
	hub := m.GetHub(event.PlayerID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(LevelUpPayload{
		PlayerID:      event.PlayerID,
		PreviousLevel: event.PreviousLevel,
		NewLevel:      event.NewLevel,
		Experience:    event.Stats.Experience,
		OccurredAt:    event.OccurredAt,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to encode level-up event", slog.Any("error", err))
		return
	}
	hub.Publish(EventLevelUp, string(data))
}

// RemoveHub closes and forgets a player's hub
func (m *HubManager) RemoveHub(playerID model.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		hub.Close()
		delete(m.hubs, playerID)
	}
}

// CleanupEmptyHubs closes hubs with no connected clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("empty event hubs cleaned up", slog.Int("removed", removed))
	}
}

// Close shuts down every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}
