package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

func failedLog(fileID string, errMsg *string, steps ...string) schemas.LogEntry {
	return schemas.LogEntry{
		FileID:       fileID,
		Status:       schemas.RunFailed,
		ErrorMessage: errMsg,
		Steps:        steps,
	}
}

func TestDetectPatternsEmptyInputs(t *testing.T) {
	report := DetectPatterns(nil, nil)
	assert.Equal(t, 0, report.TotalFailures)
	assert.Empty(t, report.Patterns)
	assert.Equal(t, map[schemas.PatternCategory]int{
		schemas.CategoryAuthentication: 0,
		schemas.CategoryAPI:            0,
		schemas.CategoryVerification:   0,
		schemas.CategoryCustom:         0,
	}, report.PatternDistribution)
}

func TestDetectPatternsIgnoresSuccessfulRuns(t *testing.T) {
	logs := []schemas.LogEntry{
		{FileID: "1", Status: schemas.RunSuccess, Steps: []string{"Valid cookies found"}},
	}
	har := []schemas.HAREntry{
		{FileID: "1", URL: "https://x.test/a", StatusCode: 500},
	}

	report := DetectPatterns(har, logs)
	assert.Equal(t, 0, report.TotalFailures)
	assert.Empty(t, report.Patterns, "evidence from successful runs must not classify")
}

func TestDetectPatternsRestrictsHARToFailedFiles(t *testing.T) {
	logs := []schemas.LogEntry{
		failedLog("1", nil, "step"),
		{FileID: "2", Status: schemas.RunSuccess},
	}
	har := []schemas.HAREntry{
		{FileID: "1", StatusCode: 404, ErrorMessage: strPtr("HTTP 404: Not Found")},
		{FileID: "2", StatusCode: 404, ErrorMessage: strPtr("HTTP 404: Not Found")},
		{FileID: "3", StatusCode: 500},
	}

	report := DetectPatterns(har, logs)
	require.Len(t, report.Patterns, 1)
	p := report.Patterns[0]
	assert.Equal(t, schemas.PatternEndpointNotFound, p.Type)
	assert.Equal(t, 1, p.Frequency)
	assert.Equal(t, []string{"1"}, p.AffectedFiles)
}

func TestDetectPatternsAuthIndicators(t *testing.T) {
	logs := []schemas.LogEntry{
		failedLog("10", strPtr("Exception: no session"), "Valid cookies not found"),
		failedLog("11", strPtr("Exception: no session"), "session expired mid run"),
		failedLog("12", nil, "Cookies sanitized before submit"),
		failedLog("13", nil, "nothing auth related"),
	}

	report := DetectPatterns(nil, logs)
	require.Len(t, report.Patterns, 1)
	p := report.Patterns[0]
	assert.Equal(t, schemas.PatternCookieSessionFailure, p.Type)
	assert.Equal(t, schemas.CategoryAuthentication, p.Category)
	assert.Equal(t, schemas.SeverityHigh, p.Severity)
	assert.Equal(t, 3, p.Frequency)
	assert.Equal(t, []string{"10", "11", "12"}, p.AffectedFiles)
	assert.Equal(t, []string{"Exception: no session"}, p.ErrorMessages, "duplicate messages collapse to first seen")
	assert.Equal(t, 1, report.PatternDistribution[schemas.CategoryAuthentication])
}

func TestDetectPatternsVerificationIndicators(t *testing.T) {
	logs := []schemas.LogEntry{
		failedLog("20", strPtr("Exception: card rejected"), "Card is not reflected on portal"),
		failedLog("21", nil, "Update card error after retry"),
	}

	report := DetectPatterns(nil, logs)
	require.Len(t, report.Patterns, 1)
	p := report.Patterns[0]
	assert.Equal(t, schemas.PatternCardVerificationFailure, p.Type)
	assert.Equal(t, schemas.CategoryVerification, p.Category)
	assert.Equal(t, 2, p.Frequency)
	assert.Equal(t, []string{"20", "21"}, p.AffectedFiles)
}

func TestDetectPatternsAPIOrdering(t *testing.T) {
	logs := []schemas.LogEntry{failedLog("30", nil, "step")}
	har := []schemas.HAREntry{
		{FileID: "30", StatusCode: 500, ErrorMessage: strPtr("HTTP 500: Error")},
		{FileID: "30", StatusCode: 404, ErrorMessage: strPtr("HTTP 404: Not Found")},
		{FileID: "30", StatusCode: 500, ErrorMessage: strPtr("HTTP 500: Error")},
	}

	report := DetectPatterns(har, logs)
	require.Len(t, report.Patterns, 2)
	assert.Equal(t, schemas.PatternEndpointNotFound, report.Patterns[0].Type)
	assert.Equal(t, schemas.PatternServerError, report.Patterns[1].Type)
	assert.Equal(t, 2, report.Patterns[1].Frequency)
	assert.Equal(t, []string{"HTTP 500: Error"}, report.Patterns[1].ErrorMessages)
	assert.Equal(t, 2, report.PatternDistribution[schemas.CategoryAPI])
}

func TestDetectPatternsUnclassifiedCodesIgnoredByBuiltins(t *testing.T) {
	logs := []schemas.LogEntry{failedLog("40", nil, "step")}
	har := []schemas.HAREntry{
		{FileID: "40", StatusCode: 403},
		{FileID: "40", StatusCode: 503},
	}

	report := DetectPatterns(har, logs)
	assert.Empty(t, report.Patterns)
}

func TestDetectPatternsReportOrdering(t *testing.T) {
	logs := []schemas.LogEntry{
		failedLog("50", nil, "session expired", "Card verification failed"),
	}
	har := []schemas.HAREntry{
		{FileID: "50", StatusCode: 404},
	}
	rule := Rule{
		Name:       "forbidden",
		Kind:       KindStatusCode,
		StatusCode: 404,
		Type:       "custom_not_found",
		Category:   schemas.CategoryCustom,
		Severity:   schemas.SeverityMedium,
	}

	report := DetectPatterns(har, logs, rule)
	require.Len(t, report.Patterns, 4)
	assert.Equal(t, schemas.CategoryAuthentication, report.Patterns[0].Category)
	assert.Equal(t, schemas.CategoryAPI, report.Patterns[1].Category)
	assert.Equal(t, schemas.CategoryVerification, report.Patterns[2].Category)
	assert.Equal(t, schemas.CategoryCustom, report.Patterns[3].Category)
	assert.Equal(t, 1, report.TotalFailures)
}

func TestDetectPatternsAffectedFilesDedupSorted(t *testing.T) {
	logs := []schemas.LogEntry{
		failedLog("9", nil, "session"),
		failedLog("10", nil, "session"),
		failedLog("9", nil, "session again"),
	}

	report := DetectPatterns(nil, logs)
	require.Len(t, report.Patterns, 1)
	assert.Equal(t, []string{"10", "9"}, report.Patterns[0].AffectedFiles)
}
