package reba

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a score that was either computed or could not be, because an
// input it depends on was unavailable. The zero value is unscored.
type Value struct {
	n  int
	ok bool
}

// Scored returns a computed score.
func Scored(n int) Value { return Value{n: n, ok: true} }

// Unscored returns a score that could not be computed.
func Unscored() Value { return Value{} }

// Get returns the score and whether it was computed.
func (v Value) Get() (int, bool) { return v.n, v.ok }

// IsScored reports whether the score was computed.
func (v Value) IsScored() bool { return v.ok }

// Or returns the score, or def when unscored.
func (v Value) Or(def int) int {
	if !v.ok {
		return def
	}
	return v.n
}

func (v Value) String() string {
	if !v.ok {
		return "N/A"
	}
	return strconv.Itoa(v.n)
}

// MarshalJSON encodes an unscored value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.n)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = Value{}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode score: %w", err)
	}
	*v = Scored(n)
	return nil
}
