package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/replay"
)

const (
	TopicReplayEvents = "replay-events"
)

// EventType represents the type of playback event
type EventType string

const (
	EventReplayLoaded   EventType = "replay_loaded"
	EventTurnApplied    EventType = "turn_applied"
	EventReplayFinished EventType = "replay_finished"
)

// ReplayEvent is the envelope published for every playback event
type ReplayEvent struct {
	Type      EventType       `json:"type"`
	ReplayID  string          `json:"replayId"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// LoadedData is carried by replay_loaded
type LoadedData struct {
	GameNumber  int             `json:"gameNumber"`
	BoardLength int             `json:"boardLength"`
	GameMode    string          `json:"gameMode"`
	Players     []replay.Player `json:"players"`
	Events      int             `json:"events"`
}

// TurnData is carried by turn_applied
type TurnData struct {
	Index   int            `json:"index"`
	Player  string         `json:"player"`
	Outcome replay.Outcome `json:"outcome"`
	Word    string         `json:"word,omitempty"`
	Turn    int            `json:"turn"`
}

// FinishedData is carried by replay_finished
type FinishedData struct {
	State           game.State `json:"state"`
	Winner          string     `json:"winner,omitempty"`
	Resigned        string     `json:"resigned,omitempty"`
	Players         []string   `json:"players"`
	TotalTurns      int        `json:"totalTurns"`
	DurationSeconds float64    `json:"durationSeconds"`
}

// Producer publishes playback events. A disabled producer drops them.
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer connects to the comma separated broker list. When no broker is
// reachable the producer is returned disabled along with the connection error.
func NewProducer(brokers string) (*Producer, error) {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		log.Warn().Str("component", "kafka").Msg("no brokers configured, analytics disabled")
		return &Producer{enabled: false}, nil
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(addrs, config)
	if err != nil {
		return &Producer{enabled: false}, fmt.Errorf("connect producer: %w", err)
	}

	log.Info().Str("component", "kafka").Strs("brokers", addrs).Msg("producer connected")
	return &Producer{producer: producer, enabled: true}, nil
}

func newProducerWith(sp sarama.SyncProducer) *Producer {
	return &Producer{producer: sp, enabled: true}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// EmitReplayLoaded announces a playback about to start
func (p *Producer) EmitReplayLoaded(replayID string, s *game.Session, rec *replay.Record) {
	if !p.IsEnabled() {
		return
	}
	snap := s.Snapshot()
	p.send(EventReplayLoaded, replayID, snap.SessionID, LoadedData{
		GameNumber:  rec.GameNumber,
		BoardLength: rec.BoardLength,
		GameMode:    rec.GameMode(),
		Players:     rec.Players(),
		Events:      len(rec.Events),
	})
}

// EmitTurn publishes one applied event
func (p *Producer) EmitTurn(replayID string, s *game.Session, index int, e replay.TurnEvent) {
	if !p.IsEnabled() {
		return
	}
	snap := s.Snapshot()
	data := TurnData{
		Index:   index,
		Player:  e.PlayerName,
		Outcome: e.Outcome,
		Turn:    snap.TurnCounter,
	}
	if e.Word != nil {
		data.Word = *e.Word
	}
	p.send(EventTurnApplied, replayID, snap.SessionID, data)
}

// EmitFinished publishes the terminal state of a playback
func (p *Producer) EmitFinished(replayID string, s *game.Session) {
	if !p.IsEnabled() {
		return
	}
	snap := s.Snapshot()
	names := make([]string, len(snap.Players))
	for i, pl := range snap.Players {
		names[i] = pl.Name
	}
	p.send(EventReplayFinished, replayID, snap.SessionID, FinishedData{
		State:           snap.State,
		Winner:          snap.Winner,
		Resigned:        snap.Resigned,
		Players:         names,
		TotalTurns:      snap.TurnCounter,
		DurationSeconds: s.Duration,
	})
}

func (p *Producer) send(kind EventType, replayID, sessionID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Str("component", "kafka").Err(err).Msg("marshal event data")
		return
	}
	event := ReplayEvent{
		Type:      kind,
		ReplayID:  replayID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Str("component", "kafka").Err(err).Msg("marshal event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicReplayEvents,
		Key:   sarama.StringEncoder(replayID),
		Value: sarama.ByteEncoder(body),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Warn().Str("component", "kafka").Str("replay_id", replayID).Err(err).Msg("send event")
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether events are published. Safe on a nil producer.
func (p *Producer) IsEnabled() bool {
	return p != nil && p.enabled
}
