package schemas

// -- Canonical Capture Records --
//
// HAREntry and LogEntry are the flat, sanitized records every downstream
// stage (correlation, pattern detection, diagnosis) consumes. Their JSON key
// sets are a persistence contract shared with the dashboards that read the
// processed files; changing a key is a breaking change and is pinned by tests.

// RunStatus is the terminal outcome of a single bot run, as reconstructed
// from its service log. Values are lowercase to match the persisted records.
type RunStatus string

const (
	// RunSuccess marks a run whose log reached its end marker without a
	// terminated traceback.
	RunSuccess RunStatus = "success"
	// RunFailed marks a run whose log contained a traceback.
	RunFailed RunStatus = "failed"
	// RunUnknown is used when no log evidence exists for a transaction, or
	// when a persisted record carries an unrecognized status.
	RunUnknown RunStatus = "unknown"
)

// HAREntry is one normalized request/response pair extracted from a HAR
// capture. Sensitive header values are already redacted by the time one of
// these exists; no component downstream of the normalizer ever sees a raw
// credential.
type HAREntry struct {
	// FileID ties the entry to its source capture: the filename up to the
	// first dot. Log records from the same transaction share it.
	FileID string `json:"file_id"`

	URL    string `json:"url"`    // Full request URL.
	Method string `json:"method"` // HTTP method, verbatim from the capture.

	// StatusCode is the HTTP response status; 0 when the capture omitted it.
	StatusCode int `json:"status_code"`

	// ResponseTime is timings.total in milliseconds, nil when the capture
	// carried no numeric total.
	ResponseTime *float64 `json:"response_time"`

	// ResponseSize is response.bodySize; 0 when absent. Capture tools use -1
	// for unknown sizes and that value passes through unchanged.
	ResponseSize int64 `json:"response_size"`

	// RequestHeaders maps header name to value, with values of sensitive
	// headers (cookie, authorization, x-csrf-token) replaced by [REDACTED].
	RequestHeaders map[string]string `json:"request_headers"`

	// ErrorMessage summarizes HTTP-level trouble: "HTTP <code>: <text>" for
	// 4xx/5xx, "Redirect to: <url>" for 302, nil otherwise.
	ErrorMessage *string `json:"error_message"`

	// StepNumber orders entries within their source file. It is an in-memory
	// hint only: freshly parsed entries carry their array index, reloaded
	// ones default to 0 and keep file order under a stable sort.
	StepNumber int `json:"-"`
}

// LogEntry is one bot run reconstructed from a service log stream, bounded by
// the logging start/end markers.
type LogEntry struct {
	// FileID is the source filename up to the first dot, matching the
	// file_id of HAR entries captured for the same transaction.
	FileID string `json:"file_id"`

	// Service is the name announced by the start marker line.
	Service string `json:"service"`

	// TaskURL is the transaction's task link when the log announced one.
	TaskURL *string `json:"task_url"`

	// Steps holds every plain progress line between the markers, in order.
	// Never nil; an entry with no steps serializes as [].
	Steps []string `json:"steps"`

	Status RunStatus `json:"status"`

	// ErrorMessage is the exception line that terminated a traceback, nil for
	// successful runs and for tracebacks cut short by the end marker.
	ErrorMessage *string `json:"error_message"`

	// ErrorDetails carries the parsed traceback when the run failed.
	ErrorDetails *ErrorDetails `json:"error_details"`
}

// ErrorDetails is the structured view of a captured traceback.
type ErrorDetails struct {
	// Type is the last line of the trace, conventionally the exception type
	// and text.
	Type string `json:"type"`

	// Message is the last trace line mentioning Error: or Exception:, nil
	// when no line matches.
	Message *string `json:"message"`

	// Location is the first trace line mentioning File, which in Python-style
	// tracebacks names the outermost frame. Nil when no line matches.
	Location *string `json:"location"`

	// FullTrace is every buffered trace line, including the Traceback header.
	FullTrace []string `json:"full_trace"`
}
