package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeLiteral renders a record as the literal text a replay file carries
func EncodeLiteral(r *Record) (string, error) {
	values := make([]any, 0, len(r.Events)+1)
	values = append(values, r.Header)
	for _, e := range r.Events {
		values = append(values, e)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("encode replay: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// EncodeText writes one decimal code point per line
func EncodeText(text string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(text) * 4)
	for _, r := range text {
		buf.WriteString(strconv.Itoa(int(r)))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Encode produces the byte stream of a replay file for r
func Encode(r *Record) ([]byte, error) {
	text, err := EncodeLiteral(r)
	if err != nil {
		return nil, err
	}
	return EncodeText(text), nil
}
