package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a generic database/sql Scanner/Valuer for columns declared JSONB.
// sitewatch stores every slice and map field this way rather than through
// native Postgres array types, since those require pgtype-aware scanning
// that the plain database/sql interface sqlx rides on doesn't provide out
// of the box. Dynamic-shape payloads (§9 design note) already call for
// opaque JSON on ingress; this makes every other slice/map field consistent
// with that choice.
type JSON[T any] struct {
	Val T
}

// Scan implements sql.Scanner.
func (j *JSON[T]) Scan(value any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("store.JSON: unsupported scan source %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &j.Val)
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Val)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MarshalJSON flattens the wrapper so API responses serialize the
// underlying value directly instead of nesting it under "Val".
func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Val)
}

// UnmarshalJSON is the mirror of MarshalJSON, used when decoding request
// bodies that embed a JSON-typed field.
func (j *JSON[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Val)
}
