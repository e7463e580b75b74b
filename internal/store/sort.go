package store

import (
	"sort"

	"github.com/skillswap/swap-app/internal/models"
)

// SortMatches orders matches by latest activity, newest first. Ties fall
// back to the match id so listings are stable across backends.
func SortMatches(ms []*models.MatchRecord) {
	sort.SliceStable(ms, func(i, j int) bool {
		ai, aj := ms[i].ActivityAt(), ms[j].ActivityAt()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return ms[i].ID < ms[j].ID
	})
}
