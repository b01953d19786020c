package schemas

// -- Flow Correlation Schemas --

// FlowSummary is the correlated view of a single transaction: one log entry
// joined with every HAR entry sharing its file_id. The three sequence strings
// render the API journey at increasing levels of detail and are what the
// triage prompt and the text report show.
type FlowSummary struct {
	FileID string    `json:"file_id"`
	Status RunStatus `json:"status"`

	// ErrorMessage is carried over from the log side of the join.
	ErrorMessage *string `json:"error_message"`

	APICalls          int   `json:"api_calls"`           // Number of HAR entries in the flow.
	TotalResponseSize int64 `json:"total_response_size"` // Sum of response_size across the flow.
	StepsCompleted    int   `json:"steps_completed"`     // Number of log step lines.

	// FlowSequence joins the base route segment of each call with " -> ".
	FlowSequence string `json:"flow_sequence"`

	// DetailedFlow joins each call's full path with " -> ".
	DetailedFlow string `json:"detailed_flow"`

	// FlowStatus joins "base(status_code)" pairs with " -> ".
	FlowStatus string `json:"flow_status"`
}

// FlowStats aggregates a set of flow summaries for the report header.
type FlowStats struct {
	TotalFlows        int            `json:"total_flows"`
	StatusCounts      map[string]int `json:"status_counts"`
	SuccessRate       float64        `json:"success_rate"` // Fraction in [0,1]; 0 when no flows.
	AvgAPICalls       float64        `json:"avg_api_calls"`
	TotalResponseSize int64          `json:"total_response_size"`
}
