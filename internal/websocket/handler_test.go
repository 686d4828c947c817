package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/sessions"
	"github.com/word-battle/internal/storage"
)

func word(s string) *string { return &s }

func catRecord() *replay.Record {
	return &replay.Record{
		Header: replay.Header{GameNumber: 1, BoardLength: 4, GameDuration: 30},
		Events: []replay.TurnEvent{
			{PlayerName: "Alice", PlayerKind: replay.KindHuman, Outcome: replay.OutcomePlaying, Word: word("CAT"), SelectedPath: []replay.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}},
			{PlayerName: "Bob", PlayerKind: replay.KindHuman, Outcome: replay.OutcomePlaying, Word: word("DOG"), SelectedPath: []replay.Coord{{Row: 3, Col: 0}, {Row: 3, Col: 1}, {Row: 3, Col: 2}}},
			{PlayerName: "Alice", PlayerKind: replay.KindHuman, Outcome: replay.OutcomeWon},
		},
		Status: replay.StatusValid,
	}
}

type testServer struct {
	url      string
	store    *storage.MemoryStore
	registry *sessions.Registry
	handler  *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryStore()
	registry := sessions.NewRegistry(replay.DefaultLimits)
	hub := NewHub(registry)
	handler := NewHandler(registry, store, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, handler, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		store:    store,
		registry: registry,
		handler:  handler,
	}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatchStreamsEveryFrame(t *testing.T) {
	s := newTestServer(t)
	stored := &storage.StoredReplay{FileName: "cat.wbr", Record: catRecord()}
	require.NoError(t, s.store.Save(context.Background(), stored))

	var turns, finished atomic.Int32
	s.handler.SetOnTurn(func(*sessions.Entry, int, replay.TurnEvent) { turns.Add(1) })
	s.handler.SetOnFinished(func(*sessions.Entry) { finished.Add(1) })

	conn := s.dial(t)
	zero := 0
	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeWatch, ReplayID: stored.ID, DelayMs: &zero}))

	started := readMessage(t, conn)
	require.Equal(t, TypeStarted, started.Type)
	assert.Equal(t, stored.ID, started.ReplayID)
	require.NotEmpty(t, started.SessionID)

	for step := 0; step <= 3; step++ {
		msg := readMessage(t, conn)
		require.Equal(t, TypeFrame, msg.Type)
		require.NotNil(t, msg.Frame)
		assert.Equal(t, step, msg.Frame.Step)
		assert.Equal(t, started.SessionID, msg.SessionID)
	}

	done := readMessage(t, conn)
	assert.Equal(t, TypeFinished, done.Type)
	assert.Equal(t, game.StateWon, done.State)
	assert.Equal(t, "Alice", done.Winner)
	assert.EqualValues(t, 3, turns.Load())
	assert.EqualValues(t, 1, finished.Load())

	assert.Eventually(t, func() bool { return s.registry.ActiveCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWatchUnknownReplay(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeWatch, ReplayID: "nope"}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "Replay not found", msg.Message)
}

func TestWatchInconsistentReplay(t *testing.T) {
	s := newTestServer(t)
	rec := catRecord()
	rec.Events = rec.Events[:2]
	stored := &storage.StoredReplay{Record: rec}
	require.NoError(t, s.store.Save(context.Background(), stored))

	conn := s.dial(t)
	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeWatch, ReplayID: stored.ID}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, 2, msg.Index)
	assert.Zero(t, s.registry.ActiveCount())
}

func TestStopCancelsPlayback(t *testing.T) {
	s := newTestServer(t)
	stored := &storage.StoredReplay{Record: catRecord()}
	require.NoError(t, s.store.Save(context.Background(), stored))

	conn := s.dial(t)
	slow := int(maxDelay / time.Millisecond)
	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeWatch, ReplayID: stored.ID, DelayMs: &slow}))
	require.Equal(t, TypeStarted, readMessage(t, conn).Type)
	require.Equal(t, TypeFrame, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeStop}))
	assert.Equal(t, TypeStopped, readMessage(t, conn).Type)
	assert.Eventually(t, func() bool { return s.registry.ActiveCount() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeStop}))
	assert.Equal(t, TypeError, readMessage(t, conn).Type)
}

func TestInvalidMessages(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "Invalid message format", readMessage(t, conn).Message)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: "dance"}))
	assert.Equal(t, "Unknown message type", readMessage(t, conn).Message)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: TypeWatch}))
	assert.Equal(t, "replayId is required", readMessage(t, conn).Message)
}

func TestDelayIsClamped(t *testing.T) {
	h := NewHandler(nil, nil, 250*time.Millisecond)
	neg, huge := -5, 1_000_000
	assert.Equal(t, 250*time.Millisecond, h.delay(IncomingMessage{}))
	assert.Equal(t, time.Duration(0), h.delay(IncomingMessage{DelayMs: &neg}))
	assert.Equal(t, maxDelay, h.delay(IncomingMessage{DelayMs: &huge}))
}
