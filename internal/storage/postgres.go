package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/replay"
)

// PostgresStore handles database operations
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, errors.New("database URL is empty")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info().Str("component", "storage").Msg("connected to PostgreSQL database")
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS replays (
			id UUID PRIMARY KEY,
			file_name VARCHAR(255) NOT NULL DEFAULT '',
			game_number INTEGER NOT NULL,
			board_length INTEGER NOT NULL,
			game_duration DOUBLE PRECISION NOT NULL,
			game_mode VARCHAR(32) NOT NULL,
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_replays_created_at ON replays(created_at);
		CREATE INDEX IF NOT EXISTS idx_replays_board_length ON replays(board_length);

		CREATE TABLE IF NOT EXISTS replay_results (
			replay_id UUID PRIMARY KEY REFERENCES replays(id) ON DELETE CASCADE,
			player_name VARCHAR(100) NOT NULL,
			outcome VARCHAR(16) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_replay_results_player ON replay_results(player_name);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Save stores a decoded replay and its result
func (s *PostgresStore) Save(ctx context.Context, r *StoredReplay) error {
	if err := prepare(r); err != nil {
		return err
	}
	recordJSON, err := json.Marshal(r.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO replays (id, file_name, game_number, board_length, game_duration, game_mode, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`,
		r.ID,
		r.FileName,
		r.Record.GameNumber,
		r.Record.BoardLength,
		r.Record.GameDuration,
		r.Record.GameMode(),
		string(recordJSON),
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert replay: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if result, ok := resultOf(r); ok {
		if _, err := tx.Exec(ctx,
			`INSERT INTO replay_results (replay_id, player_name, outcome) VALUES ($1, $2, $3)`,
			result.ReplayID, result.Player, string(result.Outcome),
		); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Get returns one stored replay
func (s *PostgresStore) Get(ctx context.Context, id string) (*StoredReplay, error) {
	row := s.pool.QueryRow(ctx, `SELECT id::text, file_name, record, created_at FROM replays WHERE id::text = $1`, id)
	r, err := scanPgReplay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// List returns every stored replay, oldest first
func (s *PostgresStore) List(ctx context.Context) ([]*StoredReplay, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, file_name, record, created_at FROM replays ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredReplay
	for rows.Next() {
		r, err := scanPgReplay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanPgReplay(row pgx.Row) (*StoredReplay, error) {
	var r StoredReplay
	var data []byte
	if err := row.Scan(&r.ID, &r.FileName, &data, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Record = &replay.Record{}
	if err := json.Unmarshal(data, r.Record); err != nil {
		return nil, fmt.Errorf("decode stored record %s: %w", r.ID, err)
	}
	return &r, nil
}

// ClearAll deletes every stored replay
func (s *PostgresStore) ClearAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE replay_results, replays`)
	return err
}

// GetLeaderboard returns the top players by wins
func (s *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `
		WITH player_stats AS (
			SELECT
				player_name as username,
				COUNT(*) FILTER (WHERE outcome = 'WON') as wins,
				COUNT(*) FILTER (WHERE outcome = 'RESIGNED') as losses,
				COUNT(*) FILTER (WHERE outcome = 'DRAW') as draws,
				COUNT(*) as games
			FROM replay_results
			GROUP BY player_name
		)
		SELECT
			username, wins, losses, draws, games,
			CASE WHEN games > 0 THEN ROUND(wins::numeric / games * 100, 1) ELSE 0 END::float8 as win_rate
		FROM player_stats
		ORDER BY wins DESC, win_rate DESC, username
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var entry LeaderboardEntry
		err := rows.Scan(&entry.Username, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.WinRate)
		if err != nil {
			return nil, err
		}
		entry.Rank = rank
		entries = append(entries, entry)
		rank++
	}

	return entries, rows.Err()
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
