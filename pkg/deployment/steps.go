// Package deployment holds the deployment checklist rules: step validation,
// canonical ordering, progress aggregation and the typed values stored in
// the deployment page's fields. Nothing here touches storage.
package deployment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Page, section and field names the deployment workflow reacts to.
const (
	Page                    = "deployment"
	ChecklistSection        = "deployment_checklist"
	StepsField              = "steps"
	InstallationSection     = "installation"
	ProgressField           = "progress"
	TestingSection          = "testing"
	NotesField              = "notes"
	DeploymentEngineerField = "deployment_engineer"
	StartDateField          = "start_date"
	TargetDateField         = "target_date"
)

type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusBlocked    StepStatus = "blocked"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Canonical step ids.
const (
	HardwareDelivery     = "hardware_delivery"
	SoftwareInstallation = "software_installation"
	NetworkSetup         = "network_setup"
	SystemTesting        = "system_testing"
)

// CanonicalOrder is the order in which checklist steps must be completed.
var CanonicalOrder = []string{HardwareDelivery, SoftwareInstallation, NetworkSetup, SystemTesting}

// Step is one item of the deployment checklist.
type Step struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Status          StepStatus `json:"status"`
	EstimatedHours  float64    `json:"estimatedHours"`
	ActualHours     *float64   `json:"actualHours,omitempty"`
	CompletedAt     string     `json:"completedAt,omitempty"`
	DeliveryReceipt string     `json:"deliveryReceipt,omitempty"`

	// Extra keeps keys the checklist does not interpret, so clients can
	// attach their own metadata to a step.
	Extra map[string]any `json:"-"`
}

var stepKeys = map[string]bool{
	"id": true, "name": true, "status": true, "estimatedHours": true,
	"actualHours": true, "completedAt": true, "deliveryReceipt": true,
}

// MarshalJSON writes the typed fields over any extra keys.
func (s Step) MarshalJSON() ([]byte, error) {
	type plain Step
	known, err := json.Marshal(plain(s))
	if err != nil || len(s.Extra) == 0 {
		return known, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(s.Extra)+len(fields))
	for k, v := range s.Extra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Error is a validation failure on a deployment field. Field is the
// offending field name; Reason is safe to show to clients.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DefaultSteps returns a fresh copy of the checklist a new deployment page starts with.
func DefaultSteps() []Step {
	return []Step{
		{ID: HardwareDelivery, Name: "Hardware Delivery", Status: StatusPending, EstimatedHours: 4},
		{ID: SoftwareInstallation, Name: "Software Installation", Status: StatusPending, EstimatedHours: 8},
		{ID: NetworkSetup, Name: "Network Setup", Status: StatusPending, EstimatedHours: 6},
		{ID: SystemTesting, Name: "System Testing", Status: StatusPending, EstimatedHours: 4},
	}
}

// ParseSteps accepts a JSON array of step objects, a single object, an
// empty value, or a JSON string wrapping any of those.
func ParseSteps(raw []byte) ([]map[string]any, error) {
	return parseObjects(raw, StepsField, true)
}

func parseObjects(raw []byte, field string, allowWrapped bool) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []map[string]any{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, invalid(field, "must be valid JSON")
		}
		if !allowWrapped {
			return nil, invalid(field, "must be a JSON array")
		}
		return parseObjects([]byte(s), field, false)
	}

	v, err := decodeJSON(raw)
	if err != nil {
		return nil, invalid(field, "must be valid JSON")
	}

	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, invalid(field, "item %d must be an object", i)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, invalid(field, "must be a JSON array")
	}
}

// decodeJSON decodes a single JSON document, keeping numbers as json.Number.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// ValidateStep checks one raw step and returns its typed form.
func ValidateStep(raw map[string]any) (Step, error) {
	var step Step

	for _, key := range []string{"id", "name", "status", "estimatedHours"} {
		if _, ok := raw[key]; !ok {
			return step, invalid(StepsField, "step missing required field: %s", key)
		}
	}

	id, ok := raw["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return step, invalid(StepsField, "step id must be a non-empty string")
	}
	step.ID = id

	name, ok := raw["name"].(string)
	if !ok {
		return step, invalid(StepsField, "step '%s': name must be a string", id)
	}
	step.Name = name

	status, _ := raw["status"].(string)
	step.Status = StepStatus(status)
	if !step.Status.Valid() {
		return step, invalid(StepsField, "step '%s': invalid status %v, must be one of pending, in_progress, completed, blocked", id, raw["status"])
	}

	hours, ok := toNumber(raw["estimatedHours"])
	if !ok {
		return step, invalid(StepsField, "step '%s': estimatedHours must be a valid number", id)
	}
	if hours < 0 {
		return step, invalid(StepsField, "step '%s': estimatedHours must not be negative", id)
	}
	step.EstimatedHours = hours

	if v, present := raw["actualHours"]; present && v != nil {
		actual, ok := toNumber(v)
		if !ok {
			return step, invalid(StepsField, "step '%s': actualHours must be a valid number", id)
		}
		if actual < 0 {
			return step, invalid(StepsField, "step '%s': actualHours must not be negative", id)
		}
		step.ActualHours = &actual
	}

	completedAt, err := optionalString(raw, "completedAt")
	if err != nil {
		return step, invalid(StepsField, "step '%s': completedAt must be an ISO date string", id)
	}
	step.CompletedAt = completedAt

	receipt, err := optionalString(raw, "deliveryReceipt")
	if err != nil {
		return step, invalid(StepsField, "step '%s': deliveryReceipt must be a URL string", id)
	}
	step.DeliveryReceipt = receipt

	for k, v := range raw {
		if stepKeys[k] {
			continue
		}
		if step.Extra == nil {
			step.Extra = make(map[string]any)
		}
		step.Extra[k] = v
	}

	if step.ID == HardwareDelivery && step.Status == StatusCompleted && strings.TrimSpace(step.DeliveryReceipt) == "" {
		return step, invalid(StepsField, "step '%s': deliveryReceipt is required when status is 'completed'", id)
	}
	return step, nil
}

// optionalString returns the string under key. Absent, null, empty and
// false values count as unset.
func optionalString(raw map[string]any, key string) (string, error) {
	switch v := raw[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		if !v {
			return "", nil
		}
	}
	return "", fmt.Errorf("%s must be a string", key)
}

// toNumber accepts JSON numbers and numeric strings. Booleans are rejected.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ValidateSteps parses raw and validates every step and then the ordering.
// The first failure is returned.
func ValidateSteps(raw []byte) ([]Step, error) {
	objs, err := ParseSteps(raw)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(objs))
	for _, obj := range objs {
		step, err := ValidateStep(obj)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := ValidateProgression(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// ValidateProgression enforces canonical ordering. A step may be completed
// only after every earlier canonical step present is completed, and may be
// in progress only once the step right before it (when present) is
// completed. Ids outside the canonical list are ignored here.
func ValidateProgression(steps []Step) error {
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	for i, id := range CanonicalOrder {
		step, ok := byID[id]
		if !ok {
			continue
		}

		switch step.Status {
		case StatusCompleted:
			for _, prevID := range CanonicalOrder[:i] {
				prev, ok := byID[prevID]
				if ok && prev.Status != StatusCompleted {
					return invalid(StepsField, "cannot complete '%s' before '%s' is completed", step.Name, prev.Name)
				}
			}
		case StatusInProgress:
			if i == 0 {
				continue
			}
			prev, ok := byID[CanonicalOrder[i-1]]
			if ok && prev.Status != StatusCompleted {
				return invalid(StepsField, "cannot start '%s' before '%s' is completed", step.Name, prev.Name)
			}
		}
	}
	return nil
}

// CalculateProgress returns floor(100*completed/total), 0 for no steps.
func CalculateProgress(steps []Step) int {
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range steps {
		if s.Status == StatusCompleted {
			completed++
		}
	}
	progress := completed * 100 / len(steps)
	return min(100, max(0, progress))
}

// AllCompleted is true when there is at least one step and every step is completed.
func AllCompleted(steps []Step) bool {
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if s.Status != StatusCompleted {
			return false
		}
	}
	return true
}
