// Package analysis correlates normalized capture records into per-transaction
// flow summaries and classifies failed transactions into failure patterns.
// Everything here is pure: slices in, values out, no I/O.
package analysis

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

// flowSeparator joins the per-call elements of the rendered sequences.
const flowSeparator = " -> "

// CorrelateFlows joins log entries with the HAR entries sharing their
// file_id, producing one FlowSummary per log entry, in log order. A log entry
// with no matching HAR entries still yields a summary with zero counts and
// empty sequence strings. HAR-only file_ids produce no row.
func CorrelateFlows(har []schemas.HAREntry, logs []schemas.LogEntry) []schemas.FlowSummary {
	byFile := make(map[string][]schemas.HAREntry, len(har))
	for _, entry := range har {
		byFile[entry.FileID] = append(byFile[entry.FileID], entry)
	}
	// Order calls within a transaction by their capture position. Reloaded
	// records default to step 0; the stable sort keeps their load order.
	for _, group := range byFile {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].StepNumber < group[j].StepNumber
		})
	}

	flows := make([]schemas.FlowSummary, 0, len(logs))
	for _, logEntry := range logs {
		group := byFile[logEntry.FileID]

		var totalSize int64
		bases := make([]string, 0, len(group))
		paths := make([]string, 0, len(group))
		statuses := make([]string, 0, len(group))
		for _, call := range group {
			base, fullPath := routeParts(call.URL)
			bases = append(bases, base)
			paths = append(paths, fullPath)
			statuses = append(statuses, fmt.Sprintf("%s(%d)", base, call.StatusCode))
			totalSize += call.ResponseSize
		}

		flows = append(flows, schemas.FlowSummary{
			FileID:            logEntry.FileID,
			Status:            clampStatus(logEntry.Status),
			ErrorMessage:      logEntry.ErrorMessage,
			APICalls:          len(group),
			TotalResponseSize: totalSize,
			StepsCompleted:    len(logEntry.Steps),
			FlowSequence:      strings.Join(bases, flowSeparator),
			DetailedFlow:      strings.Join(paths, flowSeparator),
			FlowStatus:        strings.Join(statuses, flowSeparator),
		})
	}
	return flows
}

// Stats aggregates a set of flow summaries for the report header.
func Stats(flows []schemas.FlowSummary) schemas.FlowStats {
	stats := schemas.FlowStats{
		TotalFlows:   len(flows),
		StatusCounts: make(map[string]int),
	}
	if len(flows) == 0 {
		return stats
	}

	var totalCalls int
	for _, flow := range flows {
		stats.StatusCounts[string(flow.Status)]++
		stats.TotalResponseSize += flow.TotalResponseSize
		totalCalls += flow.APICalls
	}
	stats.SuccessRate = float64(stats.StatusCounts[string(schemas.RunSuccess)]) / float64(len(flows))
	stats.AvgAPICalls = float64(totalCalls) / float64(len(flows))
	return stats
}

// clampStatus folds anything outside the known set into unknown, so stale or
// hand-edited persisted records cannot smuggle arbitrary status strings into
// the report.
func clampStatus(status schemas.RunStatus) schemas.RunStatus {
	switch status {
	case schemas.RunSuccess, schemas.RunFailed:
		return status
	default:
		return schemas.RunUnknown
	}
}

// routeParts decomposes a request URL's path: segments split on "/" with
// empties dropped, base = first segment ("root" when the path is empty),
// full path = segments rejoined. Unparseable URLs map to "unknown".
func routeParts(rawURL string) (base, fullPath string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unknown", "unknown"
	}

	segments := make([]string, 0, 8)
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	if len(segments) == 0 {
		return "root", ""
	}
	return segments[0], strings.Join(segments, "/")
}
