package storage

import (
	"cmp"
	"slices"
)

// SortRanking orders entries the way TopByHighScore must return them
func SortRanking(entries []StatsEntry) {
	slices.SortFunc(entries, func(a, b StatsEntry) int {
		if c := cmp.Compare(b.Stats.HighScore, a.Stats.HighScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Stats.Level, a.Stats.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
}
