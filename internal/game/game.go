package game

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/word-battle/internal/replay"
)

// State represents where a session is in its lifecycle
type State string

const (
	StateAwaitingFirstTurn State = "awaiting_first_turn"
	StateInProgress        State = "in_progress"
	StateWon               State = "won"
	StateDrawn             State = "drawn"
	StateResigned          State = "resigned"
)

// Terminal reports whether no further events may be applied
func (s State) Terminal() bool {
	return s == StateWon || s == StateDrawn || s == StateResigned
}

// Session replays one record onto its own board
type Session struct {
	ID             string
	Board          *Board
	Players        []replay.Player
	TurnCounter    int
	GameCounter    int
	CurrentPlayer  string
	PreviousPlayer string
	PreviousPath   Path
	Winner         string
	Resigned       string
	IsDraw         bool
	State          State
	Duration       float64

	step int
	last *replay.TurnEvent
	mu   sync.RWMutex
}

// NewSession creates an empty board for rec and registers its roster
func NewSession(rec *replay.Record, limits replay.Limits) (*Session, error) {
	if rec == nil {
		return nil, ErrNoRecord
	}
	if rec.Indeterminate() {
		return nil, &ConsistencyError{Index: 0, Reason: "indeterminate record: " + rec.Reason}
	}
	if !limits.Contains(rec.BoardLength) {
		return nil, &ConsistencyError{Index: 0, Reason: fmt.Sprintf("board length %d outside [%d, %d]", rec.BoardLength, limits.Min, limits.Max)}
	}

	s := &Session{
		ID:          uuid.New().String(),
		Board:       NewBoard(rec.BoardLength),
		Players:     rec.Players(),
		GameCounter: rec.GameNumber,
		State:       StateAwaitingFirstTurn,
		Duration:    rec.GameDuration,
	}
	if len(s.Players) > 0 {
		s.CurrentPlayer = s.Players[0].Name
	}
	return s, nil
}

// Apply consumes the next event. A *ConsistencyError leaves the session
// unchanged and means the playback must stop.
func (s *Session) Apply(e replay.TurnEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.step + 1
	if s.State.Terminal() {
		return &ConsistencyError{Index: index, Reason: fmt.Sprintf("event %s after the game ended (%s)", e.Outcome, s.State)}
	}

	switch e.Outcome {
	case replay.OutcomePlaying:
		if e.Word == nil || e.SelectedPath == nil {
			return &ConsistencyError{Index: index, Reason: "PLAYING event without word and path"}
		}
		if err := s.Board.Place(*e.Word, e.SelectedPath); err != nil {
			return &ConsistencyError{Index: index, Reason: "place word", Err: err}
		}
		s.TurnCounter++
		s.register(e)
		s.PreviousPlayer = e.PlayerName
		s.PreviousPath = append(Path(nil), e.SelectedPath...)
		s.CurrentPlayer = s.nextPlayer(e.PlayerName)
		s.IsDraw = s.Board.IsFull()
		s.State = StateInProgress
	case replay.OutcomeWon:
		s.Winner = e.PlayerName
		s.State = StateWon
	case replay.OutcomeDraw:
		s.IsDraw = true
		s.State = StateDrawn
	case replay.OutcomeResigned:
		s.Resigned = e.PlayerName
		s.State = StateResigned
	default:
		return &ConsistencyError{Index: index, Reason: fmt.Sprintf("unknown event %q", e.Outcome)}
	}

	s.step = index
	ev := e
	s.last = &ev
	return nil
}

// register adds a player the roster has not seen yet
func (s *Session) register(e replay.TurnEvent) {
	for _, p := range s.Players {
		if p.Name == e.PlayerName {
			return
		}
	}
	s.Players = append(s.Players, replay.Player{Name: e.PlayerName, Kind: e.PlayerKind, Difficulty: e.Difficulty})
}

// nextPlayer returns the roster entry after name, wrapping around
func (s *Session) nextPlayer(name string) string {
	for i, p := range s.Players {
		if p.Name == name {
			return s.Players[(i+1)%len(s.Players)].Name
		}
	}
	return name
}

// Terminal reports whether the session has reached an end state
func (s *Session) Terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State.Terminal()
}

// Snapshot returns a deep copy of the session for consumers
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID:      s.ID,
		Step:           s.step,
		State:          s.State,
		Length:         s.Board.Length(),
		Cells:          s.Board.ToSlice(),
		Annotations:    s.Board.AnnotationSlice(),
		TurnCounter:    s.TurnCounter,
		GameCounter:    s.GameCounter,
		CurrentPlayer:  s.CurrentPlayer,
		PreviousPlayer: s.PreviousPlayer,
		PreviousPath:   append(Path(nil), s.PreviousPath...),
		Players:        append([]replay.Player(nil), s.Players...),
		Winner:         s.Winner,
		Resigned:       s.Resigned,
		IsDraw:         s.IsDraw,
	}
	if s.last != nil {
		ev := *s.last
		ev.SelectedPath = append([]Coord(nil), s.last.SelectedPath...)
		snap.Event = &ev
	}
	return snap
}

// Snapshot is the serializable board state after a step
type Snapshot struct {
	SessionID      string            `json:"sessionId"`
	Step           int               `json:"step"`
	State          State             `json:"state"`
	Length         int               `json:"length"`
	Cells          [][]string        `json:"cells"`
	Annotations    [][]Annotation    `json:"annotations"`
	TurnCounter    int               `json:"turnCounter"`
	GameCounter    int               `json:"gameCounter"`
	CurrentPlayer  string            `json:"currentPlayer"`
	PreviousPlayer string            `json:"previousPlayer,omitempty"`
	PreviousPath   Path              `json:"previousPath,omitempty"`
	Players        []replay.Player   `json:"players"`
	Winner         string            `json:"winner,omitempty"`
	Resigned       string            `json:"resigned,omitempty"`
	IsDraw         bool              `json:"isDraw"`
	Event          *replay.TurnEvent `json:"event,omitempty"`
}

// Row renders one grid row with blanks as '_'
func (s Snapshot) Row(r int) string {
	out := make([]byte, 0, 2*s.Length)
	for c, cell := range s.Cells[r] {
		if c > 0 {
			out = append(out, ' ')
		}
		if cell == "" {
			out = append(out, '_')
		} else {
			out = append(out, cell...)
		}
	}
	return string(out)
}

// CheckConsistency verifies that exactly one terminal event closes the log
// and that every event pairs its word and path correctly
func CheckConsistency(rec *replay.Record) error {
	if rec == nil {
		return ErrNoRecord
	}
	if len(rec.Events) == 0 {
		return &ConsistencyError{Index: 0, Reason: "no events"}
	}

	last := len(rec.Events) - 1
	for i, e := range rec.Events {
		index := i + 1
		if e.Outcome.Terminal() && i != last {
			return &ConsistencyError{Index: index, Reason: fmt.Sprintf("terminal event %s before the end of the log", e.Outcome)}
		}
		if i == last && !e.Outcome.Terminal() {
			return &ConsistencyError{Index: index, Reason: "log does not end with a terminal event"}
		}

		if e.Outcome != replay.OutcomePlaying {
			if e.Word != nil || e.SelectedPath != nil {
				return &ConsistencyError{Index: index, Reason: fmt.Sprintf("%s event carries a word or path", e.Outcome)}
			}
			continue
		}
		if e.Word == nil || e.SelectedPath == nil {
			return &ConsistencyError{Index: index, Reason: "PLAYING event without word and path"}
		}
		if e.WordLength() != len(e.SelectedPath) {
			return &ConsistencyError{Index: index, Reason: "place word", Err: fmt.Errorf("%w: %d characters, %d cells", errWordPathMismatch, e.WordLength(), len(e.SelectedPath))}
		}
		for _, c := range e.SelectedPath {
			if c.Row < 0 || c.Col < 0 || c.Row >= rec.BoardLength || c.Col >= rec.BoardLength {
				return &ConsistencyError{Index: index, Reason: "place word", Err: fmt.Errorf("%w: %s", errOutOfBounds, c)}
			}
		}
	}
	return nil
}

// Replay applies every event of rec and returns the initial snapshot
// followed by one snapshot per event. On error the frames built so far are
// returned with it.
func Replay(rec *replay.Record, limits replay.Limits) ([]Snapshot, error) {
	if err := CheckConsistency(rec); err != nil {
		return nil, err
	}
	s, err := NewSession(rec, limits)
	if err != nil {
		return nil, err
	}

	frames := make([]Snapshot, 0, len(rec.Events)+1)
	frames = append(frames, s.Snapshot())
	for _, e := range rec.Events {
		if err := s.Apply(e); err != nil {
			return frames, err
		}
		frames = append(frames, s.Snapshot())
	}
	return frames, nil
}

// Errors
var (
	ErrNoRecord        = &GameError{"no replay record"}
	ErrSessionNotFound = &GameError{"session not found"}
)

type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}

// ConsistencyError reports an event that cannot follow the ones before it.
// Index counts events from 1; 0 refers to the record as a whole.
type ConsistencyError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("replay event %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// IsConsistency reports whether err is a *ConsistencyError
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
