// Package snapshot holds point-in-time audit copies embedded in settlement records.
//
// A Snapshot can be written and displayed but exposes no typed accessors, so
// aggregation code cannot read totals back out of it.
package snapshot

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Snapshot is an opaque JSON document.
type Snapshot struct {
	raw json.RawMessage
}

// Of encodes v into a snapshot.
func Of(v any) (Snapshot, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Snapshot{raw: b}, nil
}

// MustOf is Of for values that are known to encode.
func MustOf(v any) Snapshot {
	s, err := Of(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Append returns a copy of an array snapshot with v encoded as its last element. A zero
// snapshot is treated as an empty array.
func (s Snapshot) Append(v any) (Snapshot, error) {
	elem, err := json.Marshal(v)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot element: %w", err)
	}
	var items []json.RawMessage
	if !s.IsZero() {
		if err := json.Unmarshal(s.raw, &items); err != nil {
			return Snapshot{}, fmt.Errorf("snapshot is not an array: %w", err)
		}
	}
	items = append(items, elem)
	b, err := json.Marshal(items)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Snapshot{raw: b}, nil
}

// Len returns the element count of an array snapshot; zero for empty or non-array documents.
func (s Snapshot) Len() int {
	var items []json.RawMessage
	if s.IsZero() || json.Unmarshal(s.raw, &items) != nil {
		return 0
	}
	return len(items)
}

// IsZero reports whether nothing has been captured.
func (s Snapshot) IsZero() bool {
	return len(s.raw) == 0 || bytes.Equal(s.raw, []byte("null"))
}

// Bytes returns a copy of the encoded document.
func (s Snapshot) Bytes() []byte {
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out
}

// Equal compares the canonical encodings.
func (s Snapshot) Equal(other Snapshot) bool {
	var a, b bytes.Buffer
	if err := json.Compact(&a, s.raw); err != nil {
		return false
	}
	if err := json.Compact(&b, other.raw); err != nil {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return s.raw, nil
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	if !json.Valid(b) {
		return fmt.Errorf("snapshot: invalid json")
	}
	s.raw = append(s.raw[:0], b...)
	return nil
}

// Value implements driver.Valuer.
func (s Snapshot) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	return string(s.raw), nil
}

// Scan implements sql.Scanner.
func (s *Snapshot) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		s.raw = nil
		return nil
	case []byte:
		s.raw = append(json.RawMessage(nil), v...)
		return nil
	case string:
		s.raw = json.RawMessage(v)
		return nil
	default:
		return fmt.Errorf("snapshot: unsupported Scan type %T", src)
	}
}

// GormDataType maps the column to json (jsonb on Postgres via migrations).
func (Snapshot) GormDataType() string {
	return "json"
}
