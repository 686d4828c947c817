package replay

import "fmt"

// DecodeError reports a malformed byte stream or literal syntax.
// No partial result is ever returned alongside it.
type DecodeError struct {
	Line   int // 1-based line of the code-point stream, 0 when not line specific
	Offset int // byte offset into the decoded text, -1 when not applicable
	Msg    string
	Err    error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("decode replay: line %d: %s", e.Line, e.Msg)
	case e.Offset >= 0:
		return fmt.Sprintf("decode replay: offset %d: %s", e.Offset, e.Msg)
	default:
		return "decode replay: " + e.Msg
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SchemaError reports a decoded value with missing or mistyped fields
type SchemaError struct {
	Index  int // element of the top-level array; 0 is the header
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("replay schema: element %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("replay schema: element %d: field %q: %s", e.Index, e.Field, e.Reason)
}
