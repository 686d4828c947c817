package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/config"
	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/kafka"
	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/scan"
	"github.com/word-battle/internal/sessions"
	"github.com/word-battle/internal/stats"
	"github.com/word-battle/internal/storage"
)

// maxUploadBytes bounds a replay upload
const maxUploadBytes = 8 << 20

// Handlers holds API handler dependencies
type Handlers struct {
	cfg      config.Config
	store    storage.Store
	registry *sessions.Registry
	producer *kafka.Producer
	consumer *kafka.Consumer
}

// NewHandlers creates a new API handlers instance
func NewHandlers(cfg config.Config, store storage.Store, registry *sessions.Registry, producer *kafka.Producer, consumer *kafka.Consumer) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    store,
		registry: registry,
		producer: producer,
		consumer: consumer,
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/replays", func(r chi.Router) {
		r.Post("/", h.UploadReplay)
		r.Get("/", h.ListReplays)
		r.Delete("/", h.ClearReplays)
		r.Get("/{id}", h.GetReplay)
		r.Get("/{id}/frames", h.GetFrames)
		r.Get("/{id}/encoded", h.GetEncoded)
	})
	r.Get("/scan", h.Scan)
	r.Get("/paths", h.GetPaths)
	r.Route("/stats", func(r chi.Router) {
		r.Get("/players", h.GetPlayerStats)
		r.Get("/letters", h.GetLetterStats)
		r.Get("/word-lengths", h.GetWordLengthStats)
		r.Get("/heatmap", h.GetHeatmap)
	})
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)
}

// ReplaySummary is the listing view of a stored replay
type ReplaySummary struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName,omitempty"`
	GameNumber  int       `json:"gameNumber"`
	BoardLength int       `json:"boardLength"`
	GameMode    string    `json:"gameMode"`
	Players     int       `json:"players"`
	Events      int       `json:"events"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadReplay decodes a raw replay body and stores it
func (h *Handlers) UploadReplay(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusRequestEntityTooLarge)
		return
	}

	rec, err := replay.Parse(data, h.cfg.Limits())
	if err != nil {
		writeError(w, err)
		return
	}
	if rec.Indeterminate() {
		http.Error(w, "Indeterminate replay: "+rec.Reason, http.StatusUnprocessableEntity)
		return
	}
	if err := game.CheckConsistency(rec); err != nil {
		writeError(w, err)
		return
	}

	stored := &storage.StoredReplay{FileName: filepath.Base(r.URL.Query().Get("name")), Record: rec}
	if stored.FileName == "." {
		stored.FileName = ""
	}
	if err := h.store.Save(r.Context(), stored); err != nil {
		log.Error().Str("component", "api").Err(err).Msg("save replay")
		http.Error(w, "Failed to save replay", http.StatusInternalServerError)
		return
	}

	log.Info().Str("component", "api").Str("replay_id", stored.ID).Int("board_length", rec.BoardLength).Msg("replay stored")
	respondJSONStatus(w, http.StatusCreated, map[string]any{"id": stored.ID, "record": rec})
}

// ListReplays returns every stored replay, oldest first
func (h *Handlers) ListReplays(w http.ResponseWriter, r *http.Request) {
	replays, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list replays", http.StatusInternalServerError)
		return
	}

	out := make([]ReplaySummary, 0, len(replays))
	for _, sr := range replays {
		out = append(out, ReplaySummary{
			ID:          sr.ID,
			FileName:    sr.FileName,
			GameNumber:  sr.Record.GameNumber,
			BoardLength: sr.Record.BoardLength,
			GameMode:    sr.Record.GameMode(),
			Players:     len(sr.Record.Players()),
			Events:      len(sr.Record.Events),
			CreatedAt:   sr.CreatedAt,
		})
	}
	respondJSON(w, out)
}

// ClearReplays deletes all stored replays and resets the leaderboard
func (h *Handlers) ClearReplays(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		http.Error(w, "Failed to clear replays", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{"message": "Replays cleared successfully"})
}

func (h *Handlers) loadReplay(w http.ResponseWriter, r *http.Request) (*storage.StoredReplay, bool) {
	sr, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sr, true
}

// GetReplay returns the stored record
func (h *Handlers) GetReplay(w http.ResponseWriter, r *http.Request) {
	sr, ok := h.loadReplay(w, r)
	if !ok {
		return
	}
	respondJSON(w, sr)
}

// GetFrames replays the record and returns every snapshot
func (h *Handlers) GetFrames(w http.ResponseWriter, r *http.Request) {
	sr, ok := h.loadReplay(w, r)
	if !ok {
		return
	}
	frames, err := game.Replay(sr.Record, h.cfg.Limits())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, frames)
}

// GetEncoded returns the replay as a downloadable byte stream
func (h *Handlers) GetEncoded(w http.ResponseWriter, r *http.Request) {
	sr, ok := h.loadReplay(w, r)
	if !ok {
		return
	}
	data, err := replay.Encode(sr.Record)
	if err != nil {
		http.Error(w, "Failed to encode replay", http.StatusInternalServerError)
		return
	}

	name := sr.FileName
	if name == "" {
		name = sr.ID + h.cfg.ReplaySuffix
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

// Scan reports every file of the configured replay directory
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	sum, err := scan.Dir(r.Context(), h.cfg.ReplayDir, h.cfg.ScanOptions())
	if err != nil {
		log.Warn().Str("component", "api").Str("dir", h.cfg.ReplayDir).Err(err).Msg("scan failed")
		http.Error(w, "Failed to scan replay directory", http.StatusInternalServerError)
		return
	}

	reports := sum.Reports
	if raw := r.URL.Query().Get("length"); raw != "" {
		length, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid length", http.StatusBadRequest)
			return
		}
		reports = sum.Matching(length)
	}

	lines := make([]string, len(reports))
	for i, rep := range reports {
		lines[i] = rep.Line()
	}
	records := sum.Records()
	respondJSON(w, map[string]any{
		"reports":         reports,
		"lines":           lines,
		"warning":         sum.Warning,
		"boardSizes":      stats.BoardSizes(records),
		"mixedBoardSizes": stats.MixedBoardSizes(records),
	})
}

// GetPaths returns the paths offered from a boundary cell of an empty board
func (h *Handlers) GetPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	length, err1 := strconv.Atoi(q.Get("length"))
	row, err2 := strconv.Atoi(q.Get("row"))
	col, err3 := strconv.Atoi(q.Get("col"))
	if err := errors.Join(err1, err2, err3); err != nil {
		http.Error(w, "length, row and col must be integers", http.StatusBadRequest)
		return
	}
	if !h.cfg.Limits().Contains(length) {
		http.Error(w, "Invalid length", http.StatusBadRequest)
		return
	}

	paths, err := game.GeneratePaths(length, game.Coord{Row: row, Col: col})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, paths)
}

func (h *Handlers) records(w http.ResponseWriter, r *http.Request) ([]*replay.Record, bool) {
	replays, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to load replays", http.StatusInternalServerError)
		return nil, false
	}
	out := make([]*replay.Record, len(replays))
	for i, sr := range replays {
		out[i] = sr.Record
	}
	return out, true
}

// GetPlayerStats returns statistics for every player of the stored replays
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	records, ok := h.records(w, r)
	if !ok {
		return
	}
	respondJSON(w, stats.Players(records))
}

// GetLetterStats returns the placed letter frequency
func (h *Handlers) GetLetterStats(w http.ResponseWriter, r *http.Request) {
	records, ok := h.records(w, r)
	if !ok {
		return
	}
	respondJSON(w, stats.LetterFrequency(records))
}

// GetWordLengthStats returns the placed word length frequency
func (h *Handlers) GetWordLengthStats(w http.ResponseWriter, r *http.Request) {
	records, ok := h.records(w, r)
	if !ok {
		return
	}
	respondJSON(w, stats.WordLengthFrequency(records))
}

// GetHeatmap returns square usage for one board length. Without a length the
// stored replays must agree on a single size.
func (h *Handlers) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	records, ok := h.records(w, r)
	if !ok {
		return
	}

	var length int
	if raw := r.URL.Query().Get("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !h.cfg.Limits().Contains(n) {
			http.Error(w, "Invalid length", http.StatusBadRequest)
			return
		}
		length = n
	} else {
		sizes := stats.BoardSizes(records)
		switch len(sizes) {
		case 0:
			http.Error(w, "No replays stored", http.StatusNotFound)
			return
		case 1:
			length = sizes[0]
		default:
			http.Error(w, "Replays have mixed board sizes, length required", http.StatusBadRequest)
			return
		}
	}
	respondJSON(w, stats.SquareUsage(records, length))
}

// GetLeaderboard returns the top players
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.store.GetLeaderboard(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}

	respondJSON(w, entries)
}

// GetAnalytics returns playback analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"realtime": map[string]any{
			"activeSessions": h.registry.ActiveCount(),
			"kafkaEnabled":   h.producer.IsEnabled(),
		},
	}

	// Add Kafka metrics if available
	if h.consumer != nil {
		response["kafka"] = map[string]any{
			"avgGameDuration":    h.consumer.GetAverageDuration(),
			"mostFrequentWinner": h.consumer.GetMostFrequentWinner(),
			"metrics":            h.consumer.GetMetrics(),
		}
	}

	respondJSON(w, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":         "ok",
		"activeSessions": h.registry.ActiveCount(),
		"kafkaEnabled":   h.producer.IsEnabled(),
		"boardLimits":    h.cfg.Limits(),
	})
}

// writeError maps domain errors onto status codes
func writeError(w http.ResponseWriter, err error) {
	var (
		decodeErr *replay.DecodeError
		schemaErr *replay.SchemaError
		geoErr    *game.GeometryPreconditionError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Replay not found", http.StatusNotFound)
	case errors.As(err, &decodeErr), errors.As(err, &schemaErr), errors.As(err, &geoErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case game.IsConsistency(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error().Str("component", "api").Err(err).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data any) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Str("component", "api").Err(err).Msg("encode response")
	}
}
