package kafka

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/game"
)

// AnalyticsMetrics holds aggregated playback data
type AnalyticsMetrics struct {
	ReplaysLoaded    int64                     `json:"replaysLoaded"`
	ReplaysFinished  int64                     `json:"replaysFinished"`
	TurnsApplied     int64                     `json:"turnsApplied"`
	WordsPlaced      int64                     `json:"wordsPlaced"`
	TotalDuration    float64                   `json:"totalDuration"`
	FinishedByState  map[string]int            `json:"finishedByState"`
	GamesByMode      map[string]int            `json:"gamesByMode"`
	GamesPerDay      map[string]int            `json:"gamesPerDay"`
	BoardLengthUsage map[int]int               `json:"boardLengthUsage"`
	PlayerStats      map[string]*PlayerMetrics `json:"playerStats"`
	mu               sync.RWMutex
}

// PlayerMetrics holds per-player analytics
type PlayerMetrics struct {
	Wins         int   `json:"wins"`
	Resignations int   `json:"resignations"`
	Draws        int   `json:"draws"`
	Playbacks    int   `json:"playbacks"`
	WordsPlaced  int64 `json:"wordsPlaced"`
}

func newMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		FinishedByState:  make(map[string]int),
		GamesByMode:      make(map[string]int),
		GamesPerDay:      make(map[string]int),
		BoardLengthUsage: make(map[int]int),
		PlayerStats:      make(map[string]*PlayerMetrics),
	}
}

// Consumer aggregates playback events for the analytics endpoint
type Consumer struct {
	consumer sarama.ConsumerGroup
	metrics  *AnalyticsMetrics
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer joins the analytics consumer group on the given brokers
func NewConsumer(brokers string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(splitBrokers(brokers), "replay-analytics", config)
	if err != nil {
		return nil, err
	}

	c := newConsumer()
	c.consumer = group
	return c, nil
}

func newConsumer() *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{metrics: newMetrics(), ctx: ctx, cancel: cancel}
}

// Start begins consuming events
func (c *Consumer) Start() {
	go func() {
		for {
			if err := c.consumer.Consume(c.ctx, []string{TopicReplayEvents}, c); err != nil {
				log.Warn().Str("component", "kafka").Err(err).Msg("consumer error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	log.Info().Str("component", "kafka").Msg("consumer started")
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage folds one encoded event into the metrics
func (c *Consumer) processMessage(value []byte) {
	var event ReplayEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Warn().Str("component", "kafka").Err(err).Msg("unmarshal event")
		return
	}

	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	var err error
	switch event.Type {
	case EventReplayLoaded:
		err = c.handleLoaded(event)
	case EventTurnApplied:
		err = c.handleTurn(event)
	case EventReplayFinished:
		err = c.handleFinished(event)
	default:
		log.Debug().Str("component", "kafka").Str("type", string(event.Type)).Msg("ignoring event")
	}
	if err != nil {
		log.Warn().Str("component", "kafka").Str("replay_id", event.ReplayID).Err(err).Msg("bad event data")
	}
}

func (c *Consumer) player(name string) *PlayerMetrics {
	pm := c.metrics.PlayerStats[name]
	if pm == nil {
		pm = &PlayerMetrics{}
		c.metrics.PlayerStats[name] = pm
	}
	return pm
}

func (c *Consumer) handleLoaded(event ReplayEvent) error {
	var data LoadedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}
	c.metrics.ReplaysLoaded++
	c.metrics.GamesByMode[data.GameMode]++
	c.metrics.BoardLengthUsage[data.BoardLength]++
	c.metrics.GamesPerDay[event.Timestamp.Format("2006-01-02")]++
	for _, p := range data.Players {
		c.player(p.Name).Playbacks++
	}
	return nil
}

func (c *Consumer) handleTurn(event ReplayEvent) error {
	var data TurnData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}
	c.metrics.TurnsApplied++
	if data.Word != "" {
		c.metrics.WordsPlaced++
		c.player(data.Player).WordsPlaced++
	}
	return nil
}

func (c *Consumer) handleFinished(event ReplayEvent) error {
	var data FinishedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}
	c.metrics.ReplaysFinished++
	c.metrics.FinishedByState[string(data.State)]++
	c.metrics.TotalDuration += data.DurationSeconds

	switch data.State {
	case game.StateWon:
		c.player(data.Winner).Wins++
	case game.StateResigned:
		c.player(data.Resigned).Resignations++
	case game.StateDrawn:
		for _, name := range data.Players {
			c.player(name).Draws++
		}
	}
	return nil
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	out := newMetrics()
	out.ReplaysLoaded = c.metrics.ReplaysLoaded
	out.ReplaysFinished = c.metrics.ReplaysFinished
	out.TurnsApplied = c.metrics.TurnsApplied
	out.WordsPlaced = c.metrics.WordsPlaced
	out.TotalDuration = c.metrics.TotalDuration

	for k, v := range c.metrics.FinishedByState {
		out.FinishedByState[k] = v
	}
	for k, v := range c.metrics.GamesByMode {
		out.GamesByMode[k] = v
	}
	for k, v := range c.metrics.GamesPerDay {
		out.GamesPerDay[k] = v
	}
	for k, v := range c.metrics.BoardLengthUsage {
		out.BoardLengthUsage[k] = v
	}
	for k, v := range c.metrics.PlayerStats {
		pm := *v
		out.PlayerStats[k] = &pm
	}
	return out
}

// GetAverageDuration returns the mean recorded game duration of finished playbacks
func (c *Consumer) GetAverageDuration() float64 {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	if c.metrics.ReplaysFinished == 0 {
		return 0
	}
	return c.metrics.TotalDuration / float64(c.metrics.ReplaysFinished)
}

// GetMostFrequentWinner returns the player with most wins, alphabetical on ties
func (c *Consumer) GetMostFrequentWinner() string {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	names := make([]string, 0, len(c.metrics.PlayerStats))
	for name := range c.metrics.PlayerStats {
		names = append(names, name)
	}
	sort.Strings(names)

	maxWins := 0
	winner := ""
	for _, name := range names {
		if wins := c.metrics.PlayerStats[name].Wins; wins > maxWins {
			maxWins = wins
			winner = name
		}
	}
	return winner
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			log.Warn().Str("component", "kafka").Err(err).Msg("close consumer")
		}
	}
}
