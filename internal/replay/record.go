package replay

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// PlayerKind distinguishes human players from computer opponents
type PlayerKind string

const (
	KindHuman    PlayerKind = "human"
	KindComputer PlayerKind = "computer"
)

// Outcome is the event tag carried by every turn
type Outcome string

const (
	OutcomePlaying  Outcome = "PLAYING"
	OutcomeWon      Outcome = "WON"
	OutcomeDraw     Outcome = "DRAW"
	OutcomeResigned Outcome = "RESIGNED"
)

// Terminal reports whether the outcome ends the game
func (o Outcome) Terminal() bool {
	return o == OutcomeWon || o == OutcomeDraw || o == OutcomeResigned
}

func (o Outcome) valid() bool {
	return o == OutcomePlaying || o.Terminal()
}

// Status classifies a decoded record
type Status string

const (
	StatusValid         Status = "valid"
	StatusIndeterminate Status = "indeterminate"
)

// Game modes reported for a replay, derived from the player kinds
const (
	ModeHumanVsHuman       = "Human Vs Human"
	ModeHumanVsComputer    = "Human Vs Computer"
	ModeComputerVsComputer = "Computer Vs Computer"
)

// Coord is a (row, column) grid coordinate. It is encoded as a two-element array.
type Coord struct {
	Row int
	Col int
}

// MarshalJSON encodes the coordinate as [row, col]
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON decodes a [row, col] pair
func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// Header is the first element of a replay file
type Header struct {
	GameNumber   int     `json:"game_number"`
	BoardLength  int     `json:"board_length"`
	GameDuration float64 `json:"game_duration"`
}

// TurnEvent is one player action or terminal notification
type TurnEvent struct {
	PlayerName   string     `json:"player_name"`
	PlayerKind   PlayerKind `json:"type"`
	Difficulty   *string    `json:"difficulty"`
	Outcome      Outcome    `json:"event"`
	Word         *string    `json:"word"`
	SelectedPath []Coord    `json:"selected_path"`
}

// WordLength returns the number of characters in the word, or 0 when absent
func (e TurnEvent) WordLength() int {
	if e.Word == nil {
		return 0
	}
	return utf8.RuneCountInString(*e.Word)
}

// Player is a roster entry
type Player struct {
	Name       string     `json:"name"`
	Kind       PlayerKind `json:"kind"`
	Difficulty *string    `json:"difficulty,omitempty"`
}

// Record is a decoded replay: header plus ordered turn events
type Record struct {
	Header
	Events []TurnEvent `json:"events"`
	Status Status      `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// Indeterminate reports whether the header data is out of the valid range
func (r *Record) Indeterminate() bool {
	return r.Status == StatusIndeterminate
}

// Players returns the unique players in order of first appearance
func (r *Record) Players() []Player {
	seen := make(map[string]bool)
	players := make([]Player, 0, 2)
	for _, e := range r.Events {
		if seen[e.PlayerName] {
			continue
		}
		seen[e.PlayerName] = true
		players = append(players, Player{
			Name:       e.PlayerName,
			Kind:       e.PlayerKind,
			Difficulty: e.Difficulty,
		})
	}
	return players
}

// GameMode describes who played: humans, computers, or both
func (r *Record) GameMode() string {
	var humans, computers int
	for _, p := range r.Players() {
		switch p.Kind {
		case KindHuman:
			humans++
		case KindComputer:
			computers++
		}
	}
	switch {
	case humans == 0:
		return ModeComputerVsComputer
	case computers == 0:
		return ModeHumanVsHuman
	default:
		return ModeHumanVsComputer
	}
}

// Final returns the last event, or nil for an empty log
func (r *Record) Final() *TurnEvent {
	if len(r.Events) == 0 {
		return nil
	}
	return &r.Events[len(r.Events)-1]
}

// Words returns every placed word in turn order
func (r *Record) Words() []string {
	var words []string
	for _, e := range r.Events {
		if e.Word != nil {
			words = append(words, *e.Word)
		}
	}
	return words
}
