// Package leaderboard ranks scores and players.
package leaderboard

import (
	"sort"
	"time"

	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/ZJUSCT/TPServer/internal/scoring"
)

// BeatmapEntry is one row of a per-beatmap leaderboard.
type BeatmapEntry struct {
	Rank       int       `json:"rank"`
	UserID     uint      `json:"user_id"`
	Username   string    `json:"username"`
	FinalValue float64   `json:"final_value"`
	Timestamp  time.Time `json:"timestamp"`
}

// GlobalEntry is one row of the global leaderboard.
type GlobalEntry struct {
	Rank        int     `json:"rank"`
	UserID      uint    `json:"user_id"`
	Username    string  `json:"username"`
	GlobalScore float64 `json:"global_score"`
	ScoreCount  int     `json:"score_count"`
}

// ForBeatmap numbers scores 1..N in the order given. Callers pass scores
// already sorted by final value descending and already limited; the store
// breaks ties by earliest submission.
func ForBeatmap(scores []models.Score) []BeatmapEntry {
	entries := make([]BeatmapEntry, 0, len(scores))
	for i, s := range scores {
		entries = append(entries, BeatmapEntry{
			Rank:       i + 1,
			UserID:     s.UserID,
			Username:   s.User.Username,
			FinalValue: s.FinalValue,
			Timestamp:  s.Timestamp,
		})
	}
	return entries
}

// Global aggregates every user's final values with scoring.GlobalRankScore,
// ranks all users by that aggregate and only then truncates to limit, so
// ranks are true global positions. Users without scores rank with 0. Equal
// aggregates keep the order of users, which the store lists by id.
// A non-positive limit returns every user.
func Global(users []models.User, finalValues map[uint][]float64, limit int) []GlobalEntry {
	entries := make([]GlobalEntry, 0, len(users))
	for _, u := range users {
		values := finalValues[u.ID]
		entries = append(entries, GlobalEntry{
			UserID:      u.ID,
			Username:    u.Username,
			GlobalScore: scoring.GlobalRankScore(values),
			ScoreCount:  len(values),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].GlobalScore > entries[j].GlobalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
