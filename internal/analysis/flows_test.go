package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

func strPtr(s string) *string { return &s }

func TestCorrelateFlowsJoinsOnFileID(t *testing.T) {
	har := []schemas.HAREntry{
		{FileID: "100", URL: "https://pay.example.com/api/v1/charge", StatusCode: 200, ResponseSize: 512, StepNumber: 0},
		{FileID: "100", URL: "https://pay.example.com/api/v1/verify", StatusCode: 500, ResponseSize: 128, StepNumber: 1},
		{FileID: "999", URL: "https://pay.example.com/orphan", StatusCode: 200, StepNumber: 0},
	}
	logs := []schemas.LogEntry{
		{
			FileID:       "100",
			Service:      "checkout-bot",
			Status:       schemas.RunFailed,
			ErrorMessage: strPtr("Exception: verify failed"),
			Steps:        []string{"Opened session", "Submitted card"},
		},
	}

	flows := CorrelateFlows(har, logs)
	require.Len(t, flows, 1, "HAR-only file_ids must not produce rows")

	want := schemas.FlowSummary{
		FileID:            "100",
		Status:            schemas.RunFailed,
		ErrorMessage:      strPtr("Exception: verify failed"),
		APICalls:          2,
		TotalResponseSize: 640,
		StepsCompleted:    2,
		FlowSequence:      "api -> api",
		DetailedFlow:      "api/v1/charge -> api/v1/verify",
		FlowStatus:        "api(200) -> api(500)",
	}
	if diff := cmp.Diff(want, flows[0]); diff != "" {
		t.Errorf("flow mismatch (-want +got):\n%s", diff)
	}
}

func TestCorrelateFlowsOrdersByStepNumber(t *testing.T) {
	har := []schemas.HAREntry{
		{FileID: "7", URL: "https://x.test/second", StatusCode: 200, StepNumber: 1},
		{FileID: "7", URL: "https://x.test/first", StatusCode: 200, StepNumber: 0},
	}
	logs := []schemas.LogEntry{{FileID: "7", Status: schemas.RunSuccess}}

	flows := CorrelateFlows(har, logs)
	require.Len(t, flows, 1)
	assert.Equal(t, "first -> second", flows[0].FlowSequence)
}

func TestCorrelateFlowsNoMatchingHAR(t *testing.T) {
	logs := []schemas.LogEntry{{
		FileID: "42",
		Status: schemas.RunSuccess,
		Steps:  []string{"one step"},
	}}

	flows := CorrelateFlows(nil, logs)
	require.Len(t, flows, 1)
	assert.Equal(t, 0, flows[0].APICalls)
	assert.Equal(t, int64(0), flows[0].TotalResponseSize)
	assert.Equal(t, 1, flows[0].StepsCompleted)
	assert.Empty(t, flows[0].FlowSequence)
	assert.Empty(t, flows[0].DetailedFlow)
	assert.Empty(t, flows[0].FlowStatus)
}

func TestCorrelateFlowsClampsStatus(t *testing.T) {
	logs := []schemas.LogEntry{
		{FileID: "1", Status: schemas.RunStatus("weird")},
		{FileID: "2", Status: schemas.RunFailed},
	}

	flows := CorrelateFlows(nil, logs)
	require.Len(t, flows, 2)
	assert.Equal(t, schemas.RunUnknown, flows[0].Status)
	assert.Equal(t, schemas.RunFailed, flows[1].Status)
}

func TestCorrelateFlowsPreservesLogOrder(t *testing.T) {
	logs := []schemas.LogEntry{
		{FileID: "b", Status: schemas.RunSuccess},
		{FileID: "a", Status: schemas.RunSuccess},
		{FileID: "c", Status: schemas.RunSuccess},
	}

	flows := CorrelateFlows(nil, logs)
	require.Len(t, flows, 3)
	assert.Equal(t, "b", flows[0].FileID)
	assert.Equal(t, "a", flows[1].FileID)
	assert.Equal(t, "c", flows[2].FileID)
}

func TestRouteParts(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		wantBase string
		wantPath string
	}{
		{"nested path", "https://x.test/api/v2/cards/verify", "api", "api/v2/cards/verify"},
		{"single segment", "https://x.test/checkout", "checkout", "checkout"},
		{"bare host", "https://x.test", "root", ""},
		{"trailing slash only", "https://x.test/", "root", ""},
		{"double slashes collapse", "https://x.test//api//charge", "api", "api/charge"},
		{"unparseable", "https://x.test/%zz\x7f", "unknown", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base, path := routeParts(tc.url)
			assert.Equal(t, tc.wantBase, base)
			assert.Equal(t, tc.wantPath, path)
		})
	}
}

func TestStats(t *testing.T) {
	flows := []schemas.FlowSummary{
		{Status: schemas.RunSuccess, APICalls: 4, TotalResponseSize: 100},
		{Status: schemas.RunFailed, APICalls: 2, TotalResponseSize: 50},
		{Status: schemas.RunSuccess, APICalls: 0, TotalResponseSize: 0},
		{Status: schemas.RunUnknown, APICalls: 6, TotalResponseSize: 250},
	}

	stats := Stats(flows)
	assert.Equal(t, 4, stats.TotalFlows)
	assert.Equal(t, map[string]int{"success": 2, "failed": 1, "unknown": 1}, stats.StatusCounts)
	assert.InEpsilon(t, 0.5, stats.SuccessRate, 1e-9)
	assert.InEpsilon(t, 3.0, stats.AvgAPICalls, 1e-9)
	assert.Equal(t, int64(400), stats.TotalResponseSize)
}

func TestStatsEmpty(t *testing.T) {
	stats := Stats(nil)
	assert.Equal(t, 0, stats.TotalFlows)
	assert.NotNil(t, stats.StatusCounts)
	assert.Zero(t, stats.SuccessRate)
	assert.Zero(t, stats.AvgAPICalls)
}
