package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Meta stores an open string-keyed bag of scalar values inside a JSONB column.
// Audit and sorting records keep these schema-less for forward compatibility.
type Meta map[string]any

// Value implements driver.Valuer.
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Meta) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported meta column type %T", value)
	}
	var decoded Meta
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode meta column: %w", err)
	}
	*m = decoded
	return nil
}
