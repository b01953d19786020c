package schemas

import "context"

// -- Collaborator Interfaces --
//
// The interfaces live here, next to the types they exchange, so pipeline
// packages can depend on the contract without importing each other.

// RecordStore persists and reloads the canonical normalized records. A Save
// call replaces the whole persisted set; there is no incremental merge.
// Loading a set that was never saved yields empty slices, not an error.
type RecordStore interface {
	SaveHAREntries(ctx context.Context, entries []HAREntry) error
	LoadHAREntries(ctx context.Context) ([]HAREntry, error)
	SaveLogEntries(ctx context.Context, entries []LogEntry) error
	LoadLogEntries(ctx context.Context) ([]LogEntry, error)
}

// LLMClient is the text-generation collaborator. Implementations own retries
// and provider-specific wire formats; callers see one request/result pair.
type LLMClient interface {
	// Generate produces a completion for the request. A result may carry
	// text, tool calls, or both, depending on provider capabilities.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// Mailer is the email-delivery collaborator. Delivery failures come back in
// the DeliveryResult, not as an error; the error return is reserved for
// context cancellation.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) (DeliveryResult, error)
}
