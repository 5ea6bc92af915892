package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only accepted calendar date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// DateOnly wraps time.Time so JSON and SQL both carry a plain calendar date.
type DateOnly time.Time

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (DateOnly, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return DateOnly{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return DateOnly(t), nil
}

func (d DateOnly) Time() time.Time { return time.Time(d) }

func (d DateOnly) String() string { return time.Time(d).Format(DateLayout) }

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("DateOnly.UnmarshalJSON: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Value implements driver.Valuer.
func (d DateOnly) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. Drivers hand dates back either as time.Time
// or as text with an optional time part.
func (d *DateOnly) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = DateOnly{}
		return nil
	case time.Time:
		*d = DateOnly(time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC))
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("DateOnly.Scan: unsupported type %T", src)
	}
}

func (d *DateOnly) scanString(s string) error {
	if len(s) < len(DateLayout) {
		return fmt.Errorf("DateOnly.Scan: parse %q", s)
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return fmt.Errorf("DateOnly.Scan: parse %q: %w", s, err)
	}
	*d = DateOnly(t)
	return nil
}
