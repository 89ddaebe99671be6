package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray stores an ordered string list as a JSON text column.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	b, err := scanBytes(value, "StringArray")
	if err != nil || b == nil {
		*a = StringArray{}
		return err
	}
	return json.Unmarshal(b, a)
}

// RawRow stores one source row (column -> raw cell) as a JSON text column.
type RawRow map[string]string

// Value implements the driver.Valuer interface.
func (r RawRow) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (r *RawRow) Scan(value interface{}) error {
	b, err := scanBytes(value, "RawRow")
	if err != nil || b == nil {
		*r = RawRow{}
		return err
	}
	return json.Unmarshal(b, r)
}

func scanBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("failed to scan " + typeName)
	}
}
