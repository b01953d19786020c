package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

// TestHAREntrySerialization verifies that optional fields serialize as JSON
// null (not omitted, not zero) and that the in-memory step number never leaks
// into the canonical form.
func TestHAREntrySerialization(t *testing.T) {
	t.Parallel()

	entry := schemas.HAREntry{
		FileID:         "12",
		URL:            "https://payments.example.com/add",
		Method:         "GET",
		StatusCode:     200,
		ResponseTime:   nil,
		ResponseSize:   512,
		RequestHeaders: map[string]string{"accept": "application/json"},
		ErrorMessage:   nil,
		StepNumber:     7,
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "null", string(raw["response_time"]), "absent response_time must serialize as null")
	assert.Equal(t, "null", string(raw["error_message"]), "absent error_message must serialize as null")
	assert.NotContains(t, raw, "step_number")
	assert.NotContains(t, raw, "StepNumber")

	// Round-trip drops the ordering hint.
	var decoded schemas.HAREntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Zero(t, decoded.StepNumber)
	assert.Equal(t, entry.FileID, decoded.FileID)
	assert.Equal(t, entry.RequestHeaders, decoded.RequestHeaders)
}

// TestLogEntrySerialization pins down the success-entry shape: empty steps
// serialize as [] and the error fields as null.
func TestLogEntrySerialization(t *testing.T) {
	t.Parallel()

	entry := schemas.LogEntry{
		FileID:  "3",
		Service: "uber_eats",
		Steps:   []string{},
		Status:  schemas.RunSuccess,
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "[]", string(raw["steps"]), "empty steps must serialize as [], not null")
	assert.Equal(t, "null", string(raw["task_url"]))
	assert.Equal(t, "null", string(raw["error_message"]))
	assert.Equal(t, "null", string(raw["error_details"]))
	assert.Equal(t, `"success"`, string(raw["status"]))
}
