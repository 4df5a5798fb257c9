package attribution

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotRecord is returned when stored data decodes to something other than
// a JSON object (for example the literal null).
var ErrNotRecord = errors.New("stored value is not an attribution record")

// Record is a visitor's persisted attribution state.
type Record struct {
	FirstTouch   Touch `json:"first_touch"`
	LastTouch    Touch `json:"last_touch"`
	SessionCount int   `json:"session_count"`
}

// Clone returns a copy that shares no mutable state with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		FirstTouch:   NewTouch(r.FirstTouch.Fields()),
		LastTouch:    NewTouch(r.LastTouch.Fields()),
		SessionCount: r.SessionCount,
	}
}

// Equal compares two records field by field. Two nil records are equal.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.SessionCount == other.SessionCount &&
		r.FirstTouch.Equal(other.FirstTouch) &&
		r.LastTouch.Equal(other.LastTouch)
}

// Encode serialises the record in its canonical JSON form.
func Encode(r *Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored record.
func Decode(raw string) (*Record, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotRecord
	}
	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}
