// Package playback steps a replay session through its events at a caller-chosen pace.
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/replay"
)

// Observer receives every snapshot in order, starting with the empty board.
// Returning an error stops the playback.
type Observer func(game.Snapshot) error

// Hooks are optional callbacks around the playback
type Hooks struct {
	OnTurn     func(s *game.Session, index int, e replay.TurnEvent)
	OnFinished func(s *game.Session)
}

// Options configures one playback
type Options struct {
	// Delay is the pause before each event is applied
	Delay time.Duration
	Hooks Hooks
}

// Run applies events to s one at a time, waiting opts.Delay before each.
// Cancelling ctx stops the loop between steps; the session keeps the state
// reached so far. The final snapshot is returned.
func Run(ctx context.Context, s *game.Session, events []replay.TurnEvent, opts Options, observe Observer) (game.Snapshot, error) {
	snap := s.Snapshot()
	if err := emit(observe, snap); err != nil {
		return snap, err
	}

	var timer *time.Timer
	if opts.Delay > 0 {
		timer = time.NewTimer(opts.Delay)
		defer timer.Stop()
	}

	for i, e := range events {
		if err := wait(ctx, timer, opts.Delay, i > 0); err != nil {
			log.Debug().Str("component", "playback").Str("session_id", s.ID).Int("step", i).Msg("playback cancelled")
			return snap, err
		}

		if err := s.Apply(e); err != nil {
			log.Warn().Str("component", "playback").Str("session_id", s.ID).Err(err).Msg("playback aborted")
			return snap, err
		}
		if opts.Hooks.OnTurn != nil {
			opts.Hooks.OnTurn(s, i+1, e)
		}

		snap = s.Snapshot()
		if err := emit(observe, snap); err != nil {
			return snap, err
		}
	}

	if opts.Hooks.OnFinished != nil {
		opts.Hooks.OnFinished(s)
	}
	return snap, nil
}

// Play checks rec, opens a fresh session for it and runs the playback
func Play(ctx context.Context, rec *replay.Record, limits replay.Limits, opts Options, observe Observer) (game.Snapshot, error) {
	if err := game.CheckConsistency(rec); err != nil {
		return game.Snapshot{}, err
	}
	s, err := game.NewSession(rec, limits)
	if err != nil {
		return game.Snapshot{}, err
	}
	return Run(ctx, s, rec.Events, opts, observe)
}

func wait(ctx context.Context, timer *time.Timer, delay time.Duration, reset bool) error {
	if timer == nil {
		return ctx.Err()
	}
	if reset {
		timer.Reset(delay)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func emit(observe Observer, snap game.Snapshot) error {
	if observe == nil {
		return nil
	}
	if err := observe(snap); err != nil {
		return fmt.Errorf("observer at step %d: %w", snap.Step, err)
	}
	return nil
}
