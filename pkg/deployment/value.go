package deployment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags which variant a FieldValue holds.
type Kind int

const (
	KindScalar Kind = iota
	KindSteps
	KindNotes
)

func (k Kind) String() string {
	switch k {
	case KindSteps:
		return "steps"
	case KindNotes:
		return "notes"
	default:
		return "scalar"
	}
}

// FieldValue is the typed form of a deployment page field. Steps and Notes
// are validated structures; every other field passes through as raw JSON.
type FieldValue struct {
	Kind   Kind
	Steps  []Step
	Notes  []Note
	Scalar json.RawMessage
}

func StepsValue(steps []Step) FieldValue { return FieldValue{Kind: KindSteps, Steps: steps} }

func NotesValue(notes []Note) FieldValue { return FieldValue{Kind: KindNotes, Notes: notes} }

func ScalarValue(raw json.RawMessage) FieldValue { return FieldValue{Kind: KindScalar, Scalar: raw} }

// DecodeFieldValue turns the stored or incoming JSON of a deployment page
// field into its typed variant, validating steps and notes on the way.
func DecodeFieldValue(section, field string, raw json.RawMessage) (FieldValue, error) {
	switch {
	case section == ChecklistSection && field == StepsField:
		steps, err := ValidateSteps(raw)
		if err != nil {
			return FieldValue{}, err
		}
		return StepsValue(steps), nil
	case section == TestingSection && field == NotesField:
		notes, err := ParseNotes(raw)
		if err != nil {
			return FieldValue{}, err
		}
		return NotesValue(notes), nil
	default:
		return ScalarValue(raw), nil
	}
}

// Encode renders the value in the shape the field store persists.
func (v FieldValue) Encode() (json.RawMessage, error) {
	switch v.Kind {
	case KindSteps:
		steps := v.Steps
		if steps == nil {
			steps = []Step{}
		}
		return json.Marshal(steps)
	case KindNotes:
		notes := v.Notes
		if notes == nil {
			notes = []Note{}
		}
		return json.Marshal(notes)
	case KindScalar:
		raw := bytes.TrimSpace(v.Scalar)
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(raw) {
			// plain text from form posts is stored as a JSON string
			return json.Marshal(string(raw))
		}
		return json.RawMessage(raw), nil
	default:
		return nil, fmt.Errorf("unknown field value kind %d", v.Kind)
	}
}
