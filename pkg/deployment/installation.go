package deployment

import (
	"bytes"
	"encoding/json"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

// Installation is the typed view of the installation section.
type Installation struct {
	DeploymentEngineer string
	StartDate          *time.Time
	TargetDate         *time.Time
	Progress           *float64
}

// ValidateInstallation checks the installation section. fields maps field
// name to its JSON value; callers pass stored values merged with the
// incoming write so the date ordering is checked against the final state.
// Empty values are treated as unset.
func ValidateInstallation(fields map[string]json.RawMessage) (Installation, error) {
	var inst Installation

	if v, ok := decodeField(fields, DeploymentEngineerField); ok {
		s, isString := v.(string)
		if !isString {
			return inst, invalid(DeploymentEngineerField, "must be a string")
		}
		if utf8.RuneCountInString(s) > 255 {
			return inst, invalid(DeploymentEngineerField, "cannot exceed 255 characters")
		}
		inst.DeploymentEngineer = s
	}

	for _, f := range []struct {
		name string
		dst  **time.Time
	}{
		{StartDateField, &inst.StartDate},
		{TargetDateField, &inst.TargetDate},
	} {
		v, ok := decodeField(fields, f.name)
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString {
			return inst, invalid(f.name, "must be a string")
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return inst, invalid(f.name, "must be in YYYY-MM-DD format")
		}
		*f.dst = &t
	}

	if inst.StartDate != nil && inst.TargetDate != nil && inst.TargetDate.Before(*inst.StartDate) {
		return inst, invalid(TargetDateField, "must not be before start_date")
	}

	if v, ok := decodeField(fields, ProgressField); ok {
		p, isNumber := toNumber(v)
		if !isNumber {
			return inst, invalid(ProgressField, "must be a valid number")
		}
		if p < 0 || p > 100 {
			return inst, invalid(ProgressField, "must be between 0 and 100")
		}
		inst.Progress = &p
	}

	return inst, nil
}

// decodeField returns the decoded value of name, or false when the field
// is absent, null or an empty string.
func decodeField(fields map[string]json.RawMessage, name string) (any, bool) {
	raw, ok := fields[name]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	v, err := decodeJSON(raw)
	if err != nil {
		// undecodable values fail every type check
		return []byte(raw), true
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}
