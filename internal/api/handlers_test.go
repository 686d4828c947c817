package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/word-battle/internal/config"
	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/sessions"
	"github.com/word-battle/internal/stats"
	"github.com/word-battle/internal/storage"
)

func word(s string) *string { return &s }

func catRecord(length int) *replay.Record {
	return &replay.Record{
		Header: replay.Header{GameNumber: 1, BoardLength: length, GameDuration: 30},
		Events: []replay.TurnEvent{
			{PlayerName: "Alice", PlayerKind: replay.KindHuman, Outcome: replay.OutcomePlaying, Word: word("CAT"), SelectedPath: []replay.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}},
			{PlayerName: "Bob", PlayerKind: replay.KindHuman, Outcome: replay.OutcomePlaying, Word: word("DOG"), SelectedPath: []replay.Coord{{Row: 2, Col: 0}, {Row: 2, Col: 1}, {Row: 2, Col: 2}}},
			{PlayerName: "Alice", PlayerKind: replay.KindHuman, Outcome: replay.OutcomeWon},
		},
		Status: replay.StatusValid,
	}
}

func encode(t *testing.T, rec *replay.Record) []byte {
	t.Helper()
	data, err := replay.Encode(rec)
	require.NoError(t, err)
	return data
}

func newRouter(t *testing.T, replayDir string) http.Handler {
	t.Helper()
	cfg := config.Config{
		ReplayDir:    replayDir,
		ReplaySuffix: ".wbr",
		BoardMin:     3,
		BoardMax:     15,
		ScanWorkers:  2,
	}
	h := NewHandlers(cfg, storage.NewMemoryStore(), sessions.NewRegistry(cfg.Limits()), nil, nil)

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func upload(t *testing.T, h http.Handler, rec *replay.Record) string {
	t.Helper()
	res := do(t, h, http.MethodPost, "/api/replays?name=cat.wbr", encode(t, rec))
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
	body := decodeBody[struct {
		ID     string         `json:"id"`
		Record *replay.Record `json:"record"`
	}](t, res)
	require.NotEmpty(t, body.ID)
	assert.Equal(t, []string{"CAT", "DOG"}, body.Record.Words())
	return body.ID
}

func TestUploadAndFetchReplay(t *testing.T) {
	h := newRouter(t, t.TempDir())
	id := upload(t, h, catRecord(4))

	res := do(t, h, http.MethodGet, "/api/replays/"+id, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stored := decodeBody[storage.StoredReplay](t, res)
	assert.Equal(t, "cat.wbr", stored.FileName)
	assert.Equal(t, 4, stored.Record.BoardLength)

	res = do(t, h, http.MethodGet, "/api/replays", nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := decodeBody[[]ReplaySummary](t, res)
	require.Len(t, list, 1)
	assert.Equal(t, ReplaySummary{
		ID: id, FileName: "cat.wbr", GameNumber: 1, BoardLength: 4,
		GameMode: replay.ModeHumanVsHuman, Players: 2, Events: 3, CreatedAt: list[0].CreatedAt,
	}, list[0])
}

func TestFramesFollowTheLog(t *testing.T) {
	h := newRouter(t, t.TempDir())
	id := upload(t, h, catRecord(4))

	res := do(t, h, http.MethodGet, "/api/replays/"+id+"/frames", nil)
	require.Equal(t, http.StatusOK, res.Code)
	frames := decodeBody[[]game.Snapshot](t, res)
	require.Len(t, frames, 4)
	assert.Equal(t, game.StateAwaitingFirstTurn, frames[0].State)
	assert.Equal(t, "C A T _", frames[3].Row(0))
	assert.Equal(t, "D O G _", frames[3].Row(2))
	assert.Equal(t, game.StateWon, frames[3].State)
	assert.Equal(t, "Alice", frames[3].Winner)
}

func TestEncodedDownloadRoundTrips(t *testing.T) {
	h := newRouter(t, t.TempDir())
	id := upload(t, h, catRecord(4))

	res := do(t, h, http.MethodGet, "/api/replays/"+id+"/encoded", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Disposition"), `filename="cat.wbr"`)

	rec, err := replay.Parse(res.Body.Bytes(), replay.DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, []string{"CAT", "DOG"}, rec.Words())
}

func TestUploadRejections(t *testing.T) {
	h := newRouter(t, t.TempDir())

	unfinished := catRecord(4)
	unfinished.Events = unfinished.Events[:2]

	tests := []struct {
		name string
		body []byte
		code int
	}{
		{name: "empty", body: nil, code: http.StatusBadRequest},
		{name: "not code points", body: []byte("hello\n"), code: http.StatusBadRequest},
		{name: "not a replay", body: replay.EncodeText(`{"a": 1}`), code: http.StatusBadRequest},
		{name: "no terminal event", body: encode(t, unfinished), code: http.StatusUnprocessableEntity},
		{name: "board length out of range", body: encode(t, catRecord(0)), code: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(t, h, http.MethodPost, "/api/replays", tt.body)
			assert.Equal(t, tt.code, res.Code, res.Body.String())
		})
	}

	res := do(t, h, http.MethodGet, "/api/replays", nil)
	assert.Empty(t, decodeBody[[]ReplaySummary](t, res))
}

func TestUnknownReplay(t *testing.T) {
	h := newRouter(t, t.TempDir())
	for _, target := range []string{"/api/replays/nope", "/api/replays/nope/frames", "/api/replays/nope/encoded"} {
		res := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, res.Code, target)
	}
}

func TestGetPaths(t *testing.T) {
	h := newRouter(t, t.TempDir())

	res := do(t, h, http.MethodGet, "/api/paths?length=5&row=0&col=2", nil)
	require.Equal(t, http.StatusOK, res.Code)
	paths := decodeBody[[]game.Path](t, res)
	require.Len(t, paths, 3)
	assert.Equal(t, game.Coord{Row: 4, Col: 2}, paths[0].End())
	assert.Equal(t, game.Coord{Row: 4, Col: 0}, paths[1].End())
	assert.Equal(t, game.Coord{Row: 4, Col: 4}, paths[2].End())

	res = do(t, h, http.MethodGet, "/api/paths?length=5&row=2&col=2", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, h, http.MethodGet, "/api/paths?length=five&row=0&col=0", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	for _, length := range []string{"1", "16", "3000000", "1125899906842624"} {
		res = do(t, h, http.MethodGet, "/api/paths?length="+length+"&row=0&col=0", nil)
		assert.Equal(t, http.StatusBadRequest, res.Code, "length=%s", length)
		assert.Less(t, res.Body.Len(), 64, "length=%s", length)
	}
}

func TestStatsEndpoints(t *testing.T) {
	h := newRouter(t, t.TempDir())
	upload(t, h, catRecord(4))

	res := do(t, h, http.MethodGet, "/api/stats/players", nil)
	require.Equal(t, http.StatusOK, res.Code)
	players := decodeBody[[]stats.PlayerStats](t, res)
	require.Len(t, players, 2)
	assert.Equal(t, "Alice", players[0].Name)
	assert.Equal(t, 1, players[0].Wins)

	res = do(t, h, http.MethodGet, "/api/stats/letters", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decodeBody[[]stats.LetterCount](t, res), 26)

	res = do(t, h, http.MethodGet, "/api/stats/word-lengths", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []stats.LengthCount{{Length: 3, Count: 2}}, decodeBody[[]stats.LengthCount](t, res))

	res = do(t, h, http.MethodGet, "/api/stats/heatmap", nil)
	require.Equal(t, http.StatusOK, res.Code)
	heat := decodeBody[stats.Heatmap](t, res)
	assert.Equal(t, 4, heat.Length)
	assert.Equal(t, 6, heat.Samples)

	upload(t, h, catRecord(5))
	res = do(t, h, http.MethodGet, "/api/stats/heatmap", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, h, http.MethodGet, "/api/stats/heatmap?length=5", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 5, decodeBody[stats.Heatmap](t, res).Length)

	res = do(t, h, http.MethodGet, "/api/stats/heatmap?length=99", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHeatmapWithoutReplays(t *testing.T) {
	h := newRouter(t, t.TempDir())
	res := do(t, h, http.MethodGet, "/api/stats/heatmap", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestLeaderboardAndClear(t *testing.T) {
	h := newRouter(t, t.TempDir())
	upload(t, h, catRecord(4))

	res := do(t, h, http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, res.Code)
	board := decodeBody[[]storage.LeaderboardEntry](t, res)
	require.Len(t, board, 1)
	assert.Equal(t, storage.LeaderboardEntry{Rank: 1, Username: "Alice", Wins: 1, Games: 1, WinRate: 100}, board[0])

	res = do(t, h, http.MethodGet, "/api/leaderboard?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, h, http.MethodDelete, "/api/replays", nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = do(t, h, http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, res.Body.String())
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_game.wbr"), encode(t, catRecord(4)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.wbr"), encode(t, catRecord(0)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_notes.txt"), []byte("hi"), 0o644))
	h := newRouter(t, dir)

	res := do(t, h, http.MethodGet, "/api/scan", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[struct {
		Reports         []map[string]any `json:"reports"`
		Lines           []string         `json:"lines"`
		Warning         bool             `json:"warning"`
		BoardSizes      []int            `json:"boardSizes"`
		MixedBoardSizes bool             `json:"mixedBoardSizes"`
	}](t, res)

	require.Len(t, body.Reports, 3)
	assert.True(t, body.Warning)
	assert.False(t, body.MixedBoardSizes)
	assert.Equal(t, []int{4}, body.BoardSizes)
	assert.Equal(t, "a_game.wbr | Board Size: 4 | Number of Players: 2 | Game Mode: Human Vs Human | Game Duration: 30", body.Lines[0])
	assert.Equal(t, "b_broken.wbr | Board Size: Indeterminate | Number of Players: Indeterminate | Game Mode: Indeterminate | Game Duration: Indeterminate", body.Lines[1])

	res = do(t, h, http.MethodGet, "/api/scan?length=4", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decodeBody[struct {
		Reports []map[string]any `json:"reports"`
	}](t, res).Reports, 1)
}

func TestScanMissingDirectory(t *testing.T) {
	h := newRouter(t, filepath.Join(t.TempDir(), "missing"))
	res := do(t, h, http.MethodGet, "/api/scan", nil)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestStatusAndAnalytics(t *testing.T) {
	h := newRouter(t, t.TempDir())

	res := do(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, res.Code)
	status := decodeBody[map[string]any](t, res)
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, false, status["kafkaEnabled"])

	res = do(t, h, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, res.Code)
	analytics := decodeBody[map[string]any](t, res)
	assert.Contains(t, analytics, "realtime")
	assert.NotContains(t, analytics, "kafka")
}
