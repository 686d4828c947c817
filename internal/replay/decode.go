package replay

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrEmptyInput is wrapped by the DecodeError returned for an empty stream
var ErrEmptyInput = errors.New("empty input")

// DecodeText reassembles the line-oriented code points of a replay file into
// the literal text they encode. Each line holds one decimal code point.
func DecodeText(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", &DecodeError{Offset: -1, Msg: ErrEmptyInput.Error(), Err: ErrEmptyInput}
	}

	var b strings.Builder
	b.Grow(len(data) / 3)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		field := strings.TrimSpace(scanner.Text())
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return "", &DecodeError{Line: line, Msg: fmt.Sprintf("not a code point: %q", field), Err: err}
		}
		r := rune(n)
		if n > utf8.MaxRune || !utf8.ValidRune(r) {
			return "", &DecodeError{Line: line, Msg: fmt.Sprintf("code point %d out of range", n)}
		}
		b.WriteRune(r)
	}
	if err := scanner.Err(); err != nil {
		return "", &DecodeError{Line: line + 1, Msg: "read stream", Err: err}
	}
	return b.String(), nil
}

// Decode turns the raw content of a replay file into the generic array of
// records it encodes.
func Decode(data []byte) ([]any, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return DecodeLiteral(text)
}

// DecodeLiteral parses already reassembled literal text
func DecodeLiteral(text string) ([]any, error) {
	v, err := parseLiteral(text)
	if err != nil {
		return nil, err
	}
	values, ok := v.([]any)
	if !ok {
		return nil, &DecodeError{Offset: -1, Msg: fmt.Sprintf("top-level value is %s, want array", typeName(v))}
	}
	return values, nil
}

// Parse decodes and validates a replay file in one step
func Parse(data []byte, limits Limits) (*Record, error) {
	values, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Validate(values, limits)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "map"
	case []any:
		return "array"
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
