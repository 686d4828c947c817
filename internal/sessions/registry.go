// Package sessions tracks the replay sessions currently being watched.
// Every observer gets its own session; sessions are never shared.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/replay"
)

// Entry is one observer's playback of one replay
type Entry struct {
	Session   *game.Session
	ReplayID  string
	Observer  string
	Record    *replay.Record
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled when the entry is stopped or replaced
func (e *Entry) Context() context.Context {
	return e.ctx
}

// Registry handles observer sessions
type Registry struct {
	sessions  map[string]*Entry // sessionID -> entry
	observers map[string]string // observer -> sessionID
	limits    replay.Limits
	mu        sync.Mutex
	onStart   func(e *Entry)
}

// NewRegistry creates a new registry validating boards against limits
func NewRegistry(limits replay.Limits) *Registry {
	return &Registry{
		sessions:  make(map[string]*Entry),
		observers: make(map[string]string),
		limits:    limits,
	}
}

// SetOnStart sets the callback for when a session starts
func (r *Registry) SetOnStart(callback func(e *Entry)) {
	r.onStart = callback
}

// Start opens a fresh session of rec for observer. A session the observer
// already had is cancelled and replaced.
func (r *Registry) Start(parent context.Context, observer, replayID string, rec *replay.Record) (*Entry, error) {
	if err := game.CheckConsistency(rec); err != nil {
		return nil, err
	}
	s, err := game.NewSession(rec, r.limits)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	e := &Entry{
		Session:   s,
		ReplayID:  replayID,
		Observer:  observer,
		Record:    rec,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	r.mu.Lock()
	if id, ok := r.observers[observer]; ok {
		if old, ok := r.sessions[id]; ok {
			old.cancel()
			delete(r.sessions, id)
			log.Debug().Str("component", "sessions").Str("session_id", id).Str("observer", observer).Msg("replaced session")
		}
	}
	r.sessions[s.ID] = e
	r.observers[observer] = s.ID
	r.mu.Unlock()

	if r.onStart != nil {
		r.onStart(e)
	}
	return e, nil
}

// Get returns a session by ID
func (r *Registry) Get(sessionID string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// GetByObserver returns the session an observer is watching
func (r *Registry) GetByObserver(observer string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.observers[observer]; exists {
		return r.sessions[id]
	}
	return nil
}

// Stop cancels the observer's session and forgets it
func (r *Registry) Stop(observer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.observers[observer]
	if !ok {
		return game.ErrSessionNotFound
	}
	delete(r.observers, observer)
	if e, ok := r.sessions[id]; ok {
		e.cancel()
		delete(r.sessions, id)
	}
	return nil
}

// Remove forgets a finished session. A newer session of the same observer is kept.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.sessions[sessionID]
	if !exists {
		return
	}
	e.cancel()
	delete(r.sessions, sessionID)
	if r.observers[e.Observer] == sessionID {
		delete(r.observers, e.Observer)
	}
}

// ActiveCount returns the number of running sessions
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
