package protocol

import (
	"encoding/json"
	"strconv"
)

// ID is the canonical string form of a JSON-RPC request id. Peers may send
// the same id as a number or a string; canonicalizing at parse time keeps
// the correlation table keyed on one representation.
type ID string

// ParseID canonicalizes a raw wire id. Numeric ids are formatted without a
// fractional part when they are whole, so 7, 7.0 and "7" all map to "7".
// Returns false for absent, null, or structurally invalid ids.
func ParseID(raw json.RawMessage) (ID, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch v := v.(type) {
	case string:
		return ID(v), true
	case float64:
		return ID(strconv.FormatFloat(v, 'f', -1, 64)), true
	default:
		return "", false
	}
}

// NumberID encodes a locally allocated sequence number as a wire id.
// Locally allocated ids are always emitted as JSON numbers.
func NumberID(n int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(n, 10))
}

// StringID encodes a string id for the wire.
func StringID(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}
