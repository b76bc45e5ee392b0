package store

import (
	"encoding/json"
	"strings"
)

// Kind tags the shape of a persisted response body.
type Kind int

const (
	Null Kind = iota
	Object
	Text
)

// Value is the tagged variant threaded through store encode/decode so the
// engine never needs ad hoc type inspection of raw rows.
type Value struct {
	Kind   Kind
	Object map[string]any
	Text   string
}

func ObjectValue(m map[string]any) Value { return Value{Kind: Object, Object: m} }
func TextValue(s string) Value           { return Value{Kind: Text, Text: s} }

// Encode renders the value for a sqlite column: structured bodies as JSON
// text, everything else as UTF-8 text, null stays null.
func (v Value) Encode() []byte {
	switch v.Kind {
	case Object:
		data, err := json.Marshal(v.Object)
		if err != nil {
			return []byte(v.Text)
		}
		return data
	case Text:
		return []byte(v.Text)
	default:
		return nil
	}
}

// Decode best-effort parses a raw column. JSON objects round-trip to Object;
// the literal JSON string "None" decodes to null; anything else falls back
// to UTF-8 text with replacement of invalid bytes.
func Decode(raw []byte) Value {
	if len(raw) == 0 {
		return Value{Kind: Null}
	}

	var any1 any
	if err := json.Unmarshal(raw, &any1); err == nil {
		switch t := any1.(type) {
		case map[string]any:
			return Value{Kind: Object, Object: t}
		case string:
			if t == "None" {
				return Value{Kind: Null}
			}
		case nil:
			return Value{Kind: Null}
		}
	}

	return Value{Kind: Text, Text: strings.ToValidUTF8(string(raw), "�")}
}

// String coerces the value for plain-text framing and audit rows.
func (v Value) String() string {
	switch v.Kind {
	case Object:
		return string(v.Encode())
	case Text:
		return v.Text
	default:
		return ""
	}
}
