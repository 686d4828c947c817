package storage

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/word-battle/internal/replay"
)

var (
	ErrNotFound = errors.New("replay not found")
	ErrNoRecord = errors.New("replay has no record")
)

const defaultLimit = 20

// Store persists decoded replays
type Store interface {
	// Save stores r, assigning an ID and creation time when missing.
	// Saving an ID that already exists is a no-op.
	Save(ctx context.Context, r *StoredReplay) error
	// Get returns ErrNotFound for an unknown ID
	Get(ctx context.Context, id string) (*StoredReplay, error)
	// List returns every replay, oldest first
	List(ctx context.Context) ([]*StoredReplay, error)
	ClearAll(ctx context.Context) error
	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Close() error
}

func prepare(r *StoredReplay) error {
	if r.Record == nil {
		return ErrNoRecord
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// MemoryStore keeps replays in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	replays map[string]*StoredReplay
	order   []string
}

// NewMemoryStore constructs an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{replays: make(map[string]*StoredReplay)}
}

func (m *MemoryStore) Save(ctx context.Context, r *StoredReplay) error {
	if err := prepare(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replays[r.ID]; ok {
		return nil
	}
	m.replays[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*StoredReplay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.replays[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) List(ctx context.Context) ([]*StoredReplay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StoredReplay, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.replays[id])
	}
	return out, nil
}

func (m *MemoryStore) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays = make(map[string]*StoredReplay)
	m.order = nil
	return nil
}

func (m *MemoryStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	replays, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, r := range replays {
		if res, ok := resultOf(r); ok {
			results = append(results, res)
		}
	}
	return rankResults(results, limit), nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// rankResults orders players by wins, then win rate, then name
func rankResults(results []Result, limit int) []LeaderboardEntry {
	if limit <= 0 {
		limit = defaultLimit
	}
	byName := make(map[string]*LeaderboardEntry)
	var entries []*LeaderboardEntry
	for _, res := range results {
		e, ok := byName[res.Player]
		if !ok {
			e = &LeaderboardEntry{Username: res.Player}
			byName[res.Player] = e
			entries = append(entries, e)
		}
		e.Games++
		switch res.Outcome {
		case replay.OutcomeWon:
			e.Wins++
		case replay.OutcomeResigned:
			e.Losses++
		case replay.OutcomeDraw:
			e.Draws++
		}
	}
	for _, e := range entries {
		e.WinRate = winRate(e.Wins, e.Games)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		return a.Username < b.Username
	})

	out := make([]LeaderboardEntry, 0, min(limit, len(entries)))
	for i, e := range entries {
		if i == limit {
			break
		}
		e.Rank = i + 1
		out = append(out, *e)
	}
	return out
}

func winRate(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(games)*1000) / 10
}
