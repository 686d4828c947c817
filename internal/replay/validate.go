package replay

import (
	"fmt"
	"math"
)

// Limits bounds the accepted board length
type Limits struct {
	Min int
	Max int
}

// DefaultLimits matches the board sizes the game offers
var DefaultLimits = Limits{Min: 3, Max: 15}

// Contains reports whether length is a playable board length. A zero Limits
// only requires a positive length.
func (l Limits) Contains(length int) bool {
	if length <= 0 {
		return false
	}
	if l.Min > 0 && length < l.Min {
		return false
	}
	if l.Max > 0 && length > l.Max {
		return false
	}
	return true
}

// Validate maps a decoded array onto a typed Record. Missing or mistyped
// fields are a *SchemaError. A header whose numbers are out of range is not
// an error: the record comes back marked Indeterminate.
func Validate(values []any, limits Limits) (*Record, error) {
	if len(values) == 0 {
		return nil, &SchemaError{Index: 0, Reason: "missing header"}
	}

	header, err := validateHeader(values[0])
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Header: header,
		Events: make([]TurnEvent, 0, len(values)-1),
		Status: StatusValid,
	}
	for i := 1; i < len(values); i++ {
		e, err := validateEvent(i, values[i])
		if err != nil {
			return nil, err
		}
		rec.Events = append(rec.Events, e)
	}

	switch {
	case header.GameNumber <= 0:
		rec.Status, rec.Reason = StatusIndeterminate, fmt.Sprintf("game number %d is not positive", header.GameNumber)
	case !limits.Contains(header.BoardLength):
		rec.Status, rec.Reason = StatusIndeterminate, fmt.Sprintf("board length %d outside [%d, %d]", header.BoardLength, limits.Min, limits.Max)
	}
	return rec, nil
}

func validateHeader(v any) (Header, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Header{}, &SchemaError{Index: 0, Reason: fmt.Sprintf("header is %s, want map", typeName(v))}
	}
	f := fields{index: 0, m: m}

	var h Header
	var err error
	if h.GameNumber, err = f.integer("game_number"); err != nil {
		return Header{}, err
	}
	if h.BoardLength, err = f.integer("board_length"); err != nil {
		return Header{}, err
	}
	if h.GameDuration, err = f.number("game_duration"); err != nil {
		return Header{}, err
	}
	return h, nil
}

func validateEvent(index int, v any) (TurnEvent, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return TurnEvent{}, &SchemaError{Index: index, Reason: fmt.Sprintf("event is %s, want map", typeName(v))}
	}
	f := fields{index: index, m: m}

	var e TurnEvent
	var err error
	if e.PlayerName, err = f.str("player_name"); err != nil {
		return TurnEvent{}, err
	}

	kind, err := f.str("type")
	if err != nil {
		return TurnEvent{}, err
	}
	e.PlayerKind = PlayerKind(kind)
	if e.PlayerKind != KindHuman && e.PlayerKind != KindComputer {
		return TurnEvent{}, f.fail("type", fmt.Sprintf("unknown player type %q", kind))
	}

	if e.Difficulty, err = f.optionalStr("difficulty"); err != nil {
		return TurnEvent{}, err
	}
	if e.Difficulty != nil && e.PlayerKind == KindHuman {
		return TurnEvent{}, f.fail("difficulty", "human players have no difficulty")
	}

	tag, err := f.str("event")
	if err != nil {
		return TurnEvent{}, err
	}
	e.Outcome = Outcome(tag)
	if !e.Outcome.valid() {
		return TurnEvent{}, f.fail("event", fmt.Sprintf("unknown event %q", tag))
	}

	if e.Word, err = f.optionalStr("word"); err != nil {
		return TurnEvent{}, err
	}
	if e.SelectedPath, err = f.path("selected_path"); err != nil {
		return TurnEvent{}, err
	}
	return e, nil
}

// fields reads typed values out of one decoded map
type fields struct {
	index int
	m     map[string]any
}

func (f fields) fail(field, reason string) error {
	return &SchemaError{Index: f.index, Field: field, Reason: reason}
}

func (f fields) get(key string) (any, error) {
	v, ok := f.m[key]
	if !ok {
		return nil, f.fail(key, "missing")
	}
	return v, nil
}

func (f fields) integer(key string) (int, error) {
	v, err := f.get(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, f.fail(key, fmt.Sprintf("got %s, want integer", typeName(v)))
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, f.fail(key, fmt.Sprintf("integer %d out of range", n))
	}
	return int(n), nil
}

func (f fields) number(key string) (float64, error) {
	v, err := f.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, f.fail(key, fmt.Sprintf("got %s, want number", typeName(v)))
	}
}

func (f fields) str(key string) (string, error) {
	v, err := f.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", f.fail(key, fmt.Sprintf("got %s, want string", typeName(v)))
	}
	return s, nil
}

func (f fields) optionalStr(key string) (*string, error) {
	v, err := f.get(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, f.fail(key, fmt.Sprintf("got %s, want string or null", typeName(v)))
	}
	return &s, nil
}

func (f fields) path(key string) ([]Coord, error) {
	v, err := f.get(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, f.fail(key, fmt.Sprintf("got %s, want array or null", typeName(v)))
	}
	path := make([]Coord, 0, len(items))
	for i, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, f.fail(key, fmt.Sprintf("entry %d is not a [row, column] pair", i))
		}
		row, rowOK := pair[0].(int64)
		col, colOK := pair[1].(int64)
		if !rowOK || !colOK {
			return nil, f.fail(key, fmt.Sprintf("entry %d has non-integer coordinates", i))
		}
		if row > math.MaxInt32 || col > math.MaxInt32 || row < math.MinInt32 || col < math.MinInt32 {
			return nil, f.fail(key, fmt.Sprintf("entry %d out of range", i))
		}
		path = append(path, Coord{Row: int(row), Col: int(col)})
	}
	return path, nil
}
