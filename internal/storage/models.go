package storage

import (
	"time"

	"github.com/word-battle/internal/replay"
)

// StoredReplay is a decoded replay kept for playback and statistics
type StoredReplay struct {
	ID        string         `json:"id"`
	FileName  string         `json:"fileName,omitempty"`
	Record    *replay.Record `json:"record"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Result is the terminal event of a stored replay
type Result struct {
	ReplayID string         `json:"replayId"`
	Player   string         `json:"player"`
	Outcome  replay.Outcome `json:"outcome"`
}

// LeaderboardEntry represents a player's ranking
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	Username string  `json:"username"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Draws    int     `json:"draws"`
	Games    int     `json:"games"`
	WinRate  float64 `json:"winRate"`
}

func resultOf(r *StoredReplay) (Result, bool) {
	final := r.Record.Final()
	if final == nil || !final.Outcome.Terminal() {
		return Result{}, false
	}
	return Result{ReplayID: r.ID, Player: final.PlayerName, Outcome: final.Outcome}, true
}
