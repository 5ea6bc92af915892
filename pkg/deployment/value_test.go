package deployment

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{"empty", ``, 0, ""},
		{"array", `[{"id":1,"author":"ana","content":"ok","timestamp":"2025-01-02T10:00:00Z"}]`, 1, ""},
		{"single object", `{"id":"n1","author":"ana","content":"ok","timestamp":"2025-01-02T10:00:00Z"}`, 1, ""},
		{"encoded", `"[{\"id\":\"n1\",\"author\":\"a\",\"content\":\"c\",\"timestamp\":\"t\"}]"`, 1, ""},
		{"missing author", `[{"id":1,"content":"ok","timestamp":"t"}]`, 0, "missing required field: author"},
		{"numeric timestamp", `[{"id":1,"author":"a","content":"c","timestamp":1700000000}]`, 0, "timestamp"},
		{"not an object", `["hello"]`, 0, "must be an object"},
		{"malformed", `[{`, 0, "valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := ParseNotes([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, notes, tt.want)
		})
	}
}

func TestParseNotes_KeepsIDVerbatim(t *testing.T) {
	notes, err := ParseNotes([]byte(`[{"id":1712345,"author":"a","content":"c","timestamp":"t"}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `1712345`, string(notes[0].ID))
}

func TestValidateInstallation(t *testing.T) {
	raw := func(kv ...string) map[string]json.RawMessage {
		m := map[string]json.RawMessage{}
		for i := 0; i < len(kv); i += 2 {
			m[kv[i]] = json.RawMessage(kv[i+1])
		}
		return m
	}
	long := `"` + strings.Repeat("x", 256) + `"`

	tests := []struct {
		name    string
		fields  map[string]json.RawMessage
		wantErr string
	}{
		{"empty", raw(), ""},
		{"all valid", raw(DeploymentEngineerField, `"Ana"`, StartDateField, `"2025-01-01"`, TargetDateField, `"2025-02-01"`, ProgressField, `50`), ""},
		{"same day", raw(StartDateField, `"2025-01-01"`, TargetDateField, `"2025-01-01"`), ""},
		{"engineer too long", raw(DeploymentEngineerField, long), "255"},
		{"bad date", raw(StartDateField, `"01/02/2025"`), "YYYY-MM-DD"},
		{"target before start", raw(StartDateField, `"2025-03-01"`, TargetDateField, `"2025-02-01"`), "start_date"},
		{"progress over", raw(ProgressField, `101`), "between 0 and 100"},
		{"progress string", raw(ProgressField, `"75"`), ""},
		{"progress text", raw(ProgressField, `"half"`), "valid number"},
		{"empty values skipped", raw(StartDateField, `""`, ProgressField, `null`), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateInstallation(tt.fields)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeFieldValue(t *testing.T) {
	v, err := DecodeFieldValue(ChecklistSection, StepsField, nil)
	require.NoError(t, err)
	assert.Equal(t, KindSteps, v.Kind)
	assert.Empty(t, v.Steps)

	v, err = DecodeFieldValue(TestingSection, NotesField, json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Equal(t, KindNotes, v.Kind)

	v, err = DecodeFieldValue(InstallationSection, DeploymentEngineerField, json.RawMessage(`"Ana"`))
	require.NoError(t, err)
	assert.Equal(t, KindScalar, v.Kind)

	_, err = DecodeFieldValue(ChecklistSection, StepsField, json.RawMessage(`[{"id":"x"}]`))
	assert.Error(t, err)
}

func TestFieldValueEncode(t *testing.T) {
	out, err := StepsValue(DefaultSteps()[:1]).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"hardware_delivery","name":"Hardware Delivery","status":"pending","estimatedHours":4}]`, string(out))

	out, err = StepsValue(nil).Encode()
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(out))

	out, err = ScalarValue(nil).Encode()
	require.NoError(t, err)
	assert.Equal(t, `null`, string(out))

	out, err = ScalarValue(json.RawMessage(`plain text`)).Encode()
	require.NoError(t, err)
	assert.Equal(t, `"plain text"`, string(out))
}

func TestStepsRoundTripThroughStore(t *testing.T) {
	steps := DefaultSteps()
	steps[0].Status = StatusCompleted
	steps[0].DeliveryReceipt = "https://files.example.com/r.pdf"
	steps[1].Status = StatusInProgress

	encoded, err := StepsValue(steps).Encode()
	require.NoError(t, err)

	decoded, err := DecodeFieldValue(ChecklistSection, StepsField, encoded)
	require.NoError(t, err)
	assert.Equal(t, steps, decoded.Steps)
}

func TestStepsKeepUnknownKeys(t *testing.T) {
	raw := json.RawMessage(`[{"id":"hardware_delivery","name":"Hardware Delivery","status":"pending",
		"estimatedHours":4,"assignee":"Dana","meta":{"crates":3}}]`)

	decoded, err := DecodeFieldValue(ChecklistSection, StepsField, raw)
	require.NoError(t, err)
	require.Len(t, decoded.Steps, 1)
	assert.Equal(t, "Dana", decoded.Steps[0].Extra["assignee"])

	encoded, err := decoded.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"hardware_delivery","name":"Hardware Delivery","status":"pending",
		"estimatedHours":4,"assignee":"Dana","meta":{"crates":3}}]`, string(encoded))

	// typed fields win over a colliding extra key
	decoded.Steps[0].Extra["status"] = "bogus"
	encoded, err = decoded.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"status":"pending"`)
}
