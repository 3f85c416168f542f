package stats

//go:generate mockgen -package=mocks -destination=mocks/mock_notifier.go github.com/mcoot/rublocks/internal/services/stats Notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/rublocks/internal/model"
)

// LevelUpEvent is emitted after a session pushes a player to a higher level
type LevelUpEvent struct {
	PlayerID      model.PlayerID
	PreviousLevel int64
	NewLevel      int64
	Stats         model.PlayerStats
	OccurredAt    time.Time
}

// Notifier receives level-up events once the new stats are durable.
// Implementations must not block the caller for long.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, event LevelUpEvent)
}

// LogNotifier records level-ups in the structured log
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs each event
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyLevelUp(ctx context.Context, event LevelUpEvent) {
	n.logger.InfoContext(ctx, "player leveled up",
		slog.String("player_id", string(event.PlayerID)),
		slog.Int64("previous_level", event.PreviousLevel),
		slog.Int64("new_level", event.NewLevel),
		slog.Int64("experience", event.Stats.Experience),
	)
}

// MultiNotifier fans an event out to every wrapped notifier in order
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyLevelUp(ctx context.Context, event LevelUpEvent) {
	for _, n := range m {
		if n != nil {
			n.NotifyLevelUp(ctx, event)
		}
	}
}
