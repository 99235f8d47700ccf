package coordinator

import (
	"sort"
	"time"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Ranker orders the players eligible for a rank, best first.
type Ranker interface {
	Rank(entries []*types.PlayerEntry) []*types.PlayerEntry
}

// ScoreRanker ranks by total score, then average response time, then the
// time of the first prediction, then entry slot.
type ScoreRanker struct{}

// Rank returns the entries that completed every round, ordered.
func (ScoreRanker) Rank(entries []*types.PlayerEntry) []*types.PlayerEntry {
	eligible := make([]*types.PlayerEntry, 0, len(entries))
	for _, e := range entries {
		if e.AllRoundsCompleted {
			eligible = append(eligible, e)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AvgResponseTime != b.AvgResponseTime {
			return a.AvgResponseTime < b.AvgResponseTime
		}
		if first, ok := earlier(a.FirstPredictionAt, b.FirstPredictionAt); ok {
			return first
		}
		return a.EntrySlot < b.EntrySlot
	})
	return eligible
}

// earlier reports whether a precedes b; ok is false when they tie. A missing
// timestamp sorts last.
func earlier(a, b *time.Time) (bool, bool) {
	switch {
	case a == nil && b == nil:
		return false, false
	case a == nil:
		return false, true
	case b == nil:
		return true, true
	case a.Equal(*b):
		return false, false
	}
	return a.Before(*b), true
}
