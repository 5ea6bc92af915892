package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONValue is a raw JSON document column. Scalars are valid documents, so
// the column is JSONB on Postgres and TEXT on SQLite, where a JSON column
// gets numeric affinity and 42 would come back as an integer.
type JSONValue json.RawMessage

func (JSONValue) GormDataType() string {
	return "json"
}

func (JSONValue) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}

// Value implements driver.Valuer.
func (j JSONValue) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner. Numeric driver values are accepted for rows
// written before the column was TEXT.
func (j *JSONValue) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	case int64:
		raw = strconv.FormatInt(v, 10)
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		raw = strconv.FormatBool(v)
	default:
		return fmt.Errorf("JSONValue.Scan: unsupported type %T", src)
	}
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("JSONValue.Scan: invalid JSON %q", raw)
	}
	*j = JSONValue(raw)
	return nil
}

func (j JSONValue) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONValue) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}

func (j JSONValue) String() string {
	return string(j)
}
