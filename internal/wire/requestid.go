package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestID correlates an ACTION with its ACTION_RESULT. Clients may use a
// string or a number; it is echoed back in the form it was sent. Numbers
// keep their literal text, so large integers survive unchanged.
type RequestID struct {
	value any
}

// String returns the string representation of the ID.
func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	switch v := id.value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return fmt.Sprintf("%v", id.value)
}

// IsNil returns true if the ID is nil/empty.
func (id *RequestID) IsNil() bool {
	return id == nil || id.value == nil
}

func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id.IsNil() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("requestId must be a string or number, got: %s", string(data))
	}
	switch v := v.(type) {
	case nil:
		id.value = nil
	case string, json.Number:
		id.value = v
	default:
		return fmt.Errorf("requestId must be a string or number, got: %s", string(data))
	}
	return nil
}
