package schemas

import "encoding/json"

// -- LLM + Email Collaborator Schemas --
//
// The diagnosis layer treats text generation and email delivery as opaque
// collaborators. These are the request/response shapes both sides agree on;
// which provider fulfils a generation request is a configuration detail.

// GenerationRequest is a single prompt sent to a text-generation backend.
type GenerationRequest struct {
	// System is the system/instruction prompt. Providers that have no native
	// system channel prepend it to the user prompt.
	System string `json:"system,omitempty"`

	// Prompt is the user-facing content of the request.
	Prompt string `json:"prompt"`

	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Tools the model may invoke instead of answering in text. Only some
	// providers support these; the rest ignore them.
	Tools []ToolDefinition `json:"tools,omitempty"`
}

// ToolDefinition describes one function the model is allowed to call.
// Parameters is a JSON-schema object, passed through to the provider verbatim.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a structured function invocation returned by the model.
// Arguments is the raw JSON argument object, decoded by the dispatcher.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// TokenUsage reports token accounting for a single generation, when the
// provider supplies it. Zero values mean the provider did not report usage.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResult is the model's answer: free text, zero or more tool calls,
// or both.
type GenerationResult struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

// DeliveryStatus is the outcome of an email delivery attempt.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryError   DeliveryStatus = "error"
)

// DeliveryResult is the email collaborator's response envelope. Transport
// failures are reported here rather than as Go errors so the tool-dispatch
// loop can hand the outcome back to the model as data.
type DeliveryResult struct {
	Status  DeliveryStatus `json:"status"`
	Message string         `json:"message"`
}
