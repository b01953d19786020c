package schemas

// -- Failure Pattern Schemas --

// Severity represents the assessed severity of a detected failure pattern.
// The values are lowercase to match the persisted reports.
type Severity string

// Constants defining the standard severity levels for failure patterns.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// PatternCategory groups failure patterns by the stage of the payment flow
// they implicate.
type PatternCategory string

const (
	// CategoryAuthentication covers cookie and session trouble.
	CategoryAuthentication PatternCategory = "authentication"
	// CategoryAPI covers HTTP-level failures observed in the captures.
	CategoryAPI PatternCategory = "api"
	// CategoryVerification covers card verification and reflection failures.
	CategoryVerification PatternCategory = "verification"
	// CategoryCustom marks patterns produced by user-supplied rules.
	CategoryCustom PatternCategory = "custom"
)

// PatternType identifies a specific, recurring failure mode. Custom rules may
// introduce further values; the constants below are the built-in taxonomy.
type PatternType string

const (
	PatternCookieSessionFailure    PatternType = "cookie_session_failure"
	PatternEndpointNotFound        PatternType = "endpoint_not_found"
	PatternServerError             PatternType = "server_error"
	PatternCardVerificationFailure PatternType = "card_verification_failure"
)

// FailurePattern describes one recurring failure mode detected across the
// failed transactions of a batch.
type FailurePattern struct {
	Type        PatternType     `json:"type"`
	Category    PatternCategory `json:"category"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`

	// Frequency counts the matching evidence items: log entries for step
	// driven rules, HAR entries for status-code rules.
	Frequency int `json:"frequency"`

	// AffectedFiles lists the file_ids involved, deduplicated and sorted.
	AffectedFiles []string `json:"affected_files"`

	// ErrorMessages lists the distinct non-null error messages seen on the
	// matching evidence, in first-seen order.
	ErrorMessages []string `json:"error_messages"`

	Recommendation string `json:"recommendation"`
}

// PatternReport is the full output of a pattern detection pass.
type PatternReport struct {
	// TotalFailures is the number of failed log entries considered.
	TotalFailures int `json:"total_failures"`

	// PatternDistribution maps each category to the number of patterns
	// detected in it, including categories with zero hits.
	PatternDistribution map[PatternCategory]int `json:"pattern_distribution"`

	// Patterns is ordered authentication, api (ascending status code),
	// verification, then custom rules in rule order.
	Patterns []FailurePattern `json:"patterns"`
}
