package analysis

import (
	"sort"
	"strings"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

var authIndicators = []string{
	"cookies required",
	"Valid cookies",
	"Cookies sanitized",
	"session",
}

var verificationIndicators = []string{
	"Card is not reflected",
	"card is not reflected",
	"Card verification failed",
	"Update card error",
}

// DetectPatterns classifies the failed transactions of a batch into recurring
// failure patterns. Only log entries with status failed are considered, and
// HAR entries are restricted to the file_ids of those failures. Custom rules,
// if any, run after the built-in detectors in the order given.
func DetectPatterns(har []schemas.HAREntry, logs []schemas.LogEntry, rules ...Rule) schemas.PatternReport {
	failed := make([]schemas.LogEntry, 0, len(logs))
	failedIDs := make(map[string]struct{})
	for _, entry := range logs {
		if entry.Status == schemas.RunFailed {
			failed = append(failed, entry)
			failedIDs[entry.FileID] = struct{}{}
		}
	}
	failedHAR := make([]schemas.HAREntry, 0, len(har))
	for _, entry := range har {
		if _, ok := failedIDs[entry.FileID]; ok {
			failedHAR = append(failedHAR, entry)
		}
	}

	report := schemas.PatternReport{
		TotalFailures: len(failed),
		PatternDistribution: map[schemas.PatternCategory]int{
			schemas.CategoryAuthentication: 0,
			schemas.CategoryAPI:            0,
			schemas.CategoryVerification:   0,
			schemas.CategoryCustom:         0,
		},
		Patterns: []schemas.FailurePattern{},
	}

	add := func(p *schemas.FailurePattern) {
		if p == nil {
			return
		}
		report.PatternDistribution[p.Category]++
		report.Patterns = append(report.Patterns, *p)
	}

	add(detectSteps(failed, authIndicators, schemas.FailurePattern{
		Type:           schemas.PatternCookieSessionFailure,
		Category:       schemas.CategoryAuthentication,
		Description:    "Authentication failures due to cookie/session issues",
		Severity:       schemas.SeverityHigh,
		Recommendation: "Review session management and cookie handling process",
	}))
	for _, p := range detectStatusCodes(failedHAR) {
		add(&p)
	}
	add(detectSteps(failed, verificationIndicators, schemas.FailurePattern{
		Type:           schemas.PatternCardVerificationFailure,
		Category:       schemas.CategoryVerification,
		Description:    "Card verification or reflection failures",
		Severity:       schemas.SeverityHigh,
		Recommendation: "Implement robust card verification checks and retry mechanism",
	}))
	for _, rule := range rules {
		add(rule.apply(failed, failedHAR))
	}

	return report
}

// detectSteps matches log entries whose joined step text contains any of the
// given indicators, filling the template's evidence fields. Returns nil when
// nothing matches.
func detectSteps(failed []schemas.LogEntry, indicators []string, template schemas.FailurePattern) *schemas.FailurePattern {
	var files []string
	var messages []string
	seen := make(map[string]struct{})
	count := 0

	for _, entry := range failed {
		joined := strings.Join(entry.Steps, " ")
		if !containsAny(joined, indicators) {
			continue
		}
		count++
		files = append(files, entry.FileID)
		if entry.ErrorMessage != nil {
			if _, dup := seen[*entry.ErrorMessage]; !dup {
				seen[*entry.ErrorMessage] = struct{}{}
				messages = append(messages, *entry.ErrorMessage)
			}
		}
	}
	if count == 0 {
		return nil
	}

	template.Frequency = count
	template.AffectedFiles = dedupSorted(files)
	template.ErrorMessages = messages
	return &template
}

// detectStatusCodes groups failing HAR entries by status code and reports the
// codes with a built-in classification, ascending.
func detectStatusCodes(har []schemas.HAREntry) []schemas.FailurePattern {
	byCode := make(map[int][]schemas.HAREntry)
	for _, entry := range har {
		if entry.StatusCode >= 400 {
			byCode[entry.StatusCode] = append(byCode[entry.StatusCode], entry)
		}
	}

	classified := []struct {
		code           int
		patternType    schemas.PatternType
		description    string
		recommendation string
	}{
		{404, schemas.PatternEndpointNotFound,
			"API endpoints returning 404 errors",
			"Verify API endpoint URLs and routing configuration"},
		{500, schemas.PatternServerError,
			"Internal server errors in API responses",
			"Investigate server-side error logs and exception handling"},
	}

	var patterns []schemas.FailurePattern
	for _, c := range classified {
		group := byCode[c.code]
		if len(group) == 0 {
			continue
		}
		patterns = append(patterns, statusCodePattern(group, schemas.FailurePattern{
			Type:           c.patternType,
			Category:       schemas.CategoryAPI,
			Description:    c.description,
			Severity:       schemas.SeverityHigh,
			Recommendation: c.recommendation,
		}))
	}
	return patterns
}

func statusCodePattern(group []schemas.HAREntry, template schemas.FailurePattern) schemas.FailurePattern {
	var files []string
	var messages []string
	seen := make(map[string]struct{})
	for _, entry := range group {
		files = append(files, entry.FileID)
		if entry.ErrorMessage != nil {
			if _, dup := seen[*entry.ErrorMessage]; !dup {
				seen[*entry.ErrorMessage] = struct{}{}
				messages = append(messages, *entry.ErrorMessage)
			}
		}
	}
	template.Frequency = len(group)
	template.AffectedFiles = dedupSorted(files)
	template.ErrorMessages = messages
	return template
}

func containsAny(s string, indicators []string) bool {
	for _, indicator := range indicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

func dedupSorted(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
