package dbtypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON holds raw JSON bytes for jsonb (postgres) and TEXT (sqlite) columns.
// Bytes round-trip unchanged; nil maps to SQL NULL.
type JSON []byte

func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("JSON: unsupported Scan type %T", src)
	}
	return nil
}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON embeds the raw bytes; an empty value encodes as null.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[:0], data...)
	return nil
}

// IsNull reports whether the value is absent or the JSON literal null.
func (j JSON) IsNull() bool {
	return len(bytes.TrimSpace(j)) == 0 || bytes.Equal(bytes.TrimSpace(j), []byte("null"))
}

// Valid reports whether the bytes are well-formed JSON.
func (j JSON) Valid() bool {
	return json.Valid(j)
}
