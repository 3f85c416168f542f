package stats

import (
	"fmt"
	"math"

	"github.com/mcoot/rublocks/internal/model"
)

// ExperiencePerLevel is the amount of experience that grants one level
const ExperiencePerLevel = 100

// Result is the outcome of applying a session delta to a stats record
type Result struct {
	Stats         model.PlayerStats
	PreviousLevel int64
	LeveledUp     bool
}

// LevelForExperience maps cumulative experience to a level.
// Level 1 at zero experience, one level per ExperiencePerLevel.
func LevelForExperience(experience int64) int64 {
	if experience < 0 {
		return 1
	}
	return experience/ExperiencePerLevel + 1
}

// Validate rejects deltas carrying a negative field
func Validate(delta model.SessionDelta) error {
	fields := []struct {
		name  string
		value int64
	}{
		{"score", delta.Score},
		{"games_played", delta.GamesPlayed},
		{"play_time", delta.PlayTime},
		{"coins_earned", delta.CoinsEarned},
		{"experience_earned", delta.ExperienceEarned},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative (got %d)", model.ErrInvalidDelta, f.name, f.value)
		}
	}
	return nil
}

// Reconcile applies a finished session's delta to the current stats.
// A nil current is treated as the first-ever session. The input is never
// modified; on error nothing is produced.
func Reconcile(current *model.PlayerStats, delta model.SessionDelta) (Result, error) {
	if err := Validate(delta); err != nil {
		return Result{}, err
	}

	base := model.NewPlayerStats()
	if current != nil {
		base = *current
	}

	next := model.PlayerStats{
		GamesPlayed:   addSaturating(base.GamesPlayed, delta.GamesPlayed),
		HighScore:     max(base.HighScore, delta.Score),
		TotalPlayTime: addSaturating(base.TotalPlayTime, delta.PlayTime),
		Coins:         addSaturating(base.Coins, delta.CoinsEarned),
		Experience:    addSaturating(base.Experience, delta.ExperienceEarned),
	}
	next.Level = LevelForExperience(next.Experience)

	return Result{
		Stats:         next,
		PreviousLevel: base.Level,
		LeveledUp:     next.Level > base.Level,
	}, nil
}

// MergeDeltas combines two deltas so that applying the merge equals
// applying them in sequence: additive fields sum, score takes the max.
func MergeDeltas(a, b model.SessionDelta) model.SessionDelta {
	return model.SessionDelta{
		Score:            max(a.Score, b.Score),
		GamesPlayed:      addSaturating(a.GamesPlayed, b.GamesPlayed),
		PlayTime:         addSaturating(a.PlayTime, b.PlayTime),
		CoinsEarned:      addSaturating(a.CoinsEarned, b.CoinsEarned),
		ExperienceEarned: addSaturating(a.ExperienceEarned, b.ExperienceEarned),
	}
}

// addSaturating adds two non-negative values, pinning at MaxInt64
func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
