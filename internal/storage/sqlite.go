package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/word-battle/internal/replay"
)

// SQLiteStore persists replays in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cleanPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info().Str("component", "storage").Str("path", cleanPath).Msg("sqlite store ready")
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS replays (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL DEFAULT '',
			game_number INTEGER NOT NULL,
			board_length INTEGER NOT NULL,
			game_duration REAL NOT NULL,
			game_mode TEXT NOT NULL,
			record TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_replays_created_at ON replays(created_at);

		CREATE TABLE IF NOT EXISTS replay_results (
			replay_id TEXT PRIMARY KEY REFERENCES replays(id) ON DELETE CASCADE,
			player_name TEXT NOT NULL,
			outcome TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_replay_results_player ON replay_results(player_name);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, r *StoredReplay) error {
	if err := prepare(r); err != nil {
		return err
	}
	data, err := json.Marshal(r.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO replays (id, file_name, game_number, board_length, game_duration, game_mode, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.FileName, r.Record.GameNumber, r.Record.BoardLength, r.Record.GameDuration,
		r.Record.GameMode(), string(data), r.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert replay: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if result, ok := resultOf(r); ok {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO replay_results (replay_id, player_name, outcome) VALUES (?, ?, ?)`,
			result.ReplayID, result.Player, string(result.Outcome),
		); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*StoredReplay, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, file_name, record, created_at FROM replays WHERE id = ?`, id)
	r, err := scanReplay(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*StoredReplay, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, file_name, record, created_at FROM replays ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredReplay
	for rows.Next() {
		r, err := scanReplay(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReplay(scan func(dest ...any) error) (*StoredReplay, error) {
	var r StoredReplay
	var data string
	var createdAt int64
	if err := scan(&r.ID, &r.FileName, &data, &createdAt); err != nil {
		return nil, err
	}
	r.Record = &replay.Record{}
	if err := json.Unmarshal([]byte(data), r.Record); err != nil {
		return nil, fmt.Errorf("decode stored record %s: %w", r.ID, err)
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &r, nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM replay_results; DELETE FROM replays;`)
	return err
}

func (s *SQLiteStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			player_name,
			COUNT(*) FILTER (WHERE outcome = 'WON') AS wins,
			COUNT(*) FILTER (WHERE outcome = 'RESIGNED') AS losses,
			COUNT(*) FILTER (WHERE outcome = 'DRAW') AS draws,
			COUNT(*) AS games
		FROM replay_results
		GROUP BY player_name
		ORDER BY wins DESC, CAST(wins AS REAL) / COUNT(*) DESC, player_name
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Wins, &e.Losses, &e.Draws, &e.Games); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		e.WinRate = winRate(e.Wins, e.Games)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
