package kafka

import (
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/replay"
)

func word(s string) *string { return &s }

func wonRecord() *replay.Record {
	return &replay.Record{
		Header: replay.Header{GameNumber: 4, BoardLength: 3, GameDuration: 40},
		Events: []replay.TurnEvent{
			{PlayerName: "Ann", PlayerKind: replay.KindHuman, Outcome: replay.OutcomePlaying, Word: word("CAT"), SelectedPath: []replay.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}},
			{PlayerName: "Computer", PlayerKind: replay.KindComputer, Difficulty: word("Hard"), Outcome: replay.OutcomePlaying, Word: word("DOG"), SelectedPath: []replay.Coord{{Row: 2, Col: 0}, {Row: 2, Col: 1}, {Row: 2, Col: 2}}},
			{PlayerName: "Ann", PlayerKind: replay.KindHuman, Outcome: replay.OutcomeWon},
		},
		Status: replay.StatusValid,
	}
}

// publish runs rec through a producer backed by a mock and returns the payloads
func publish(t *testing.T, replayID string, rec *replay.Record) [][]byte {
	t.Helper()
	mock := mocks.NewSyncProducer(t, nil)
	var sent [][]byte
	collect := func(val []byte) error {
		sent = append(sent, append([]byte(nil), val...))
		return nil
	}
	for i := 0; i < len(rec.Events)+2; i++ {
		mock.ExpectSendMessageWithCheckerFunctionAndSucceed(collect)
	}

	p := newProducerWith(mock)
	s, err := game.NewSession(rec, replay.DefaultLimits)
	require.NoError(t, err)

	p.EmitReplayLoaded(replayID, s, rec)
	for i, e := range rec.Events {
		require.NoError(t, s.Apply(e))
		p.EmitTurn(replayID, s, i+1, e)
	}
	p.EmitFinished(replayID, s)
	require.NoError(t, p.Close())
	return sent
}

func TestProducerAndConsumerAggregate(t *testing.T) {
	sent := publish(t, "replay-1", wonRecord())
	require.Len(t, sent, 5)

	c := newConsumer()
	for _, v := range sent {
		c.processMessage(v)
	}

	m := c.GetMetrics()
	assert.EqualValues(t, 1, m.ReplaysLoaded)
	assert.EqualValues(t, 1, m.ReplaysFinished)
	assert.EqualValues(t, 3, m.TurnsApplied)
	assert.EqualValues(t, 2, m.WordsPlaced)
	assert.Equal(t, map[string]int{"won": 1}, m.FinishedByState)
	assert.Equal(t, map[string]int{replay.ModeHumanVsComputer: 1}, m.GamesByMode)
	assert.Equal(t, map[int]int{3: 1}, m.BoardLengthUsage)

	require.Contains(t, m.PlayerStats, "Ann")
	assert.Equal(t, PlayerMetrics{Wins: 1, Playbacks: 1, WordsPlaced: 1}, *m.PlayerStats["Ann"])
	assert.Equal(t, PlayerMetrics{Playbacks: 1, WordsPlaced: 1}, *m.PlayerStats["Computer"])

	assert.Equal(t, "Ann", c.GetMostFrequentWinner())
	assert.InDelta(t, 40.0, c.GetAverageDuration(), 1e-9)
}

func TestConsumerCountsDrawsForEveryPlayer(t *testing.T) {
	rec := wonRecord()
	rec.Events[2] = replay.TurnEvent{PlayerName: "Ann", PlayerKind: replay.KindHuman, Outcome: replay.OutcomeDraw}

	c := newConsumer()
	for _, v := range publish(t, "replay-2", rec) {
		c.processMessage(v)
	}

	m := c.GetMetrics()
	assert.Equal(t, 1, m.PlayerStats["Ann"].Draws)
	assert.Equal(t, 1, m.PlayerStats["Computer"].Draws)
	assert.Equal(t, "", c.GetMostFrequentWinner())
}

func TestConsumerIgnoresMalformedMessages(t *testing.T) {
	c := newConsumer()
	c.processMessage([]byte("not json"))
	c.processMessage([]byte(`{"type":"turn_applied","data":"oops"}`))
	c.processMessage([]byte(`{"type":"unknown","data":{}}`))

	m := c.GetMetrics()
	assert.Zero(t, m.TurnsApplied)
	assert.Empty(t, m.PlayerStats)
}

func TestGetMetricsReturnsCopy(t *testing.T) {
	c := newConsumer()
	for _, v := range publish(t, "replay-3", wonRecord()) {
		c.processMessage(v)
	}

	m := c.GetMetrics()
	m.PlayerStats["Ann"].Wins = 99
	m.FinishedByState["won"] = 99

	again := c.GetMetrics()
	assert.Equal(t, 1, again.PlayerStats["Ann"].Wins)
	assert.Equal(t, 1, again.FinishedByState["won"])
}

func TestDisabledProducerIsNoop(t *testing.T) {
	var nilProducer *Producer
	assert.False(t, nilProducer.IsEnabled())
	assert.NoError(t, nilProducer.Close())

	p, err := NewProducer("")
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())

	unreachable, err := NewProducer("127.0.0.1:1")
	assert.Error(t, err)
	require.NotNil(t, unreachable)
	assert.False(t, unreachable.IsEnabled())

	s, err := game.NewSession(wonRecord(), replay.DefaultLimits)
	require.NoError(t, err)
	p.EmitReplayLoaded("x", s, wonRecord())
	p.EmitFinished("x", s)
	nilProducer.EmitFinished("x", s)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, splitBrokers(""))
}
