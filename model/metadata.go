package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/codegraphio/codegraph/helper"
)

// Metadata holds the free-form entity properties (line ranges, modifiers,
// return types) persisted as a JSONB column.
type Metadata map[string]interface{}

// Value marshals the metadata for storage, satisfying driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan restores metadata from a stored column value, satisfying sql.Scanner
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal encodes the metadata as JSON
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes JSON bytes, another Metadata or a NULL column into m
func (m *Metadata) Unmarshal(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	if s, ok := value.(Metadata); ok {
		*m = Metadata(s)
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, m)
}
