package diagnose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

// merchantPlaceholder is substituted with the merchant's display name before
// the prompt is sent.
const merchantPlaceholder = "{{merchant_name}}"

const systemPromptTemplate = `### Role
You are an expert API troubleshooting assistant responsible for diagnosing and
categorizing payment automation issues by analyzing HAR captures, bot service
logs, and API responses. Your primary goal is to determine whether an issue
originates from our backend or the merchant's system, classify its severity,
and provide actionable resolutions.

### Tone
- Technical and precise: deliver structured, data-driven insights with no
  unnecessary detail.
- Impact-focused: clearly identify whether the issue is in our backend or the
  merchant system, weighting the "status" field of the logs.
- Action-oriented: always provide next steps for debugging or escalation.

### Email Instructions
- Only ask for an email address if the user explicitly requests to send
  information via email.
- When the user mentions "email" or "send me an email", ask: "Please provide
  your email address to send the analysis."
- Use the send_email function only after receiving a valid email address.

## Issue Classification
- **Merchant:** ` + "`" + merchantPlaceholder + "`" + `
- **Status:** the transaction outcome
- **Severity:** CRITICAL | HIGH | MEDIUM | WARNING | SUCCESS
  - CRITICAL: system-wide impact or core functionality failure
  - HIGH: transaction failure with clear root cause
  - MEDIUM: partial failure with workaround available
  - WARNING: success with anomalies
  - SUCCESS: complete success
- **Source of Issue:** Our Backend | Merchant System | Network | Unknown

## Required Output Sections
Produce, in order: Issue Classification, Issue Summary (observed behavior,
expected behavior, impact), Log Analysis (key observations), Root Cause
Analysis (backend/merchant/network verdicts with confidence levels),
Recommended Fix (immediate actions, engineering steps, merchant steps), and
Next Steps (escalation needed, recommended follow-up).

> Note:
> 1. CRITICAL issues require immediate attention and an alert to the on-call
>    engineering team.
> 2. Backend issues should name specific file locations and error types.
> 3. Prioritize actionable insights over general observations.`

// flowSystemPrompt is the short instruction sent on the system channel; the
// full template travels in the user prompt alongside the evidence.
const flowSystemPrompt = "You are a payment flow analysis expert. Always include the merchant name in your analysis. Only suggest email functionality if users explicitly request it."

const chatSystemPrompt = "You are a payment flow analysis expert. Always begin responses by mentioning the merchant name. Only suggest email functionality if users explicitly request it."

type fewShotExample struct {
	apiSequence    string
	logSummary     string
	expectedOutput string
}

// Two worked examples, one clean run and one backend failure, so the model
// sees both the evidence shape and the expected answer shape.
var fewShotExamples = []fewShotExample{
	{
		apiSequence: "add -> payment-profiles -> paymentProfileCreate -> payment-profiles (all 200)",
		logSummary: `service: uber_eats, status: success, error: none
steps include: "Importing session", "Cookies sanitized", "Valid cookies.",
"Running Card Switcher", "Uber bug, API Returned success but card is not reflected",
"Running Card Verifier", "Bot finished"`,
		expectedOutput: `## Issue Classification
- **Status:** Success
- **Severity:** WARNING
- **Source of Issue:** Merchant System

## Issue Summary
- **Observed Behavior:** transaction completed but the merchant API reported
  success while the card was not reflected on the first attempt.
- **Impact:** none on this run; repeated occurrences suggest a merchant-side
  consistency bug worth monitoring.`,
	},
	{
		apiSequence: "add (302) -> auth (302) -> add (200) -> paymentProfileCreate (404) -> add (200) -> add (200) -> paymentProfileCreate (200)",
		logSummary: `service: uber_eats, status: failed,
error: commons.exceptions.exceptions.CardErrorException
steps include: "Importing session", "Valid cookies.", "Running Card Switcher",
"Some of the cookies required to update the card are not present to continue with the process.",
"Update card error", "mark_as_failed"`,
		expectedOutput: `## Issue Classification
- **Status:** Failed
- **Severity:** CRITICAL
- **Source of Issue:** Our Backend

## Issue Summary
- **Observed Behavior:** card update failed with CardErrorException despite
  successful authentication; the first paymentProfileCreate attempt returned 404.
- **Impact:** card updates blocked for this merchant.

## Root Cause Analysis
- **Backend Issue:** Yes (High confidence) - session cookies required for the
  update were missing after import.

## Next Steps
- **Escalation Needed?** Yes - alert the on-call engineering team.`,
	},
}

// TransactionContext is the per-transaction evidence bundle handed to the
// model: the log side of the join plus every HAR call sharing the file_id.
type TransactionContext struct {
	FileID string
	Log    schemas.LogEntry
	Calls  []schemas.HAREntry
}

// transactionCall is the trimmed call view serialized into the prompt.
type transactionCall struct {
	Method string  `json:"method"`
	URL    string  `json:"url"`
	Status int     `json:"status"`
	Error  *string `json:"error"`
}

// buildFlowPrompt renders the full triage prompt for one transaction: the
// merchant-substituted system template, the few-shot examples, then the new
// request with the transaction's evidence.
func buildFlowPrompt(tx TransactionContext, merchant string) string {
	calls := make([]transactionCall, len(tx.Calls))
	segments := make([]string, len(tx.Calls))
	for i, call := range tx.Calls {
		calls[i] = transactionCall{
			Method: call.Method,
			URL:    call.URL,
			Status: call.StatusCode,
			Error:  call.ErrorMessage,
		}
		segments[i] = lastURLSegment(call.URL)
	}

	callsJSON, _ := json.MarshalIndent(calls, "", "  ")
	stepsJSON, _ := json.MarshalIndent(tx.Log.Steps, "", "  ")

	var b strings.Builder
	b.WriteString(strings.ReplaceAll(systemPromptTemplate, merchantPlaceholder, merchant))
	b.WriteString("\n\n### Few-Shot Examples ###\n")
	for i, ex := range fewShotExamples {
		fmt.Fprintf(&b, "\n### Example %d ###\n", i+1)
		fmt.Fprintf(&b, "- API Sequence: %s\n", ex.apiSequence)
		fmt.Fprintf(&b, "- Logs: %s\n", ex.logSummary)
		fmt.Fprintf(&b, "- Expected Output:\n%s\n", ex.expectedOutput)
	}

	b.WriteString("\n### New Analysis Request ###\n")
	fmt.Fprintf(&b, "- **API Sequence:** %s\n", strings.Join(segments, " -> "))
	fmt.Fprintf(&b, "- **Transaction Data:** %s\n", callsJSON)
	fmt.Fprintf(&b, "- **Log Steps:** %s\n", stepsJSON)
	fmt.Fprintf(&b, "- **Status:** %s\n", tx.Log.Status)
	fmt.Fprintf(&b, "- **Error:** %s\n", stringOrNone(tx.Log.ErrorMessage))
	return b.String()
}

// buildChatPrompt renders the freeform Q&A prompt over prior analyses.
func buildChatPrompt(question string, analyses []Diagnosis, merchant string) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(systemPromptTemplate, merchantPlaceholder, merchant))
	fmt.Fprintf(&b, "\n\nMerchant: %s\n", merchant)

	b.WriteString("\nPrevious Transaction Analyses:\n")
	for _, a := range analyses {
		fmt.Fprintf(&b, "\nTransaction %s:\n------------------------\n%s\n", a.FileID, a.Analysis)
	}

	fmt.Fprintf(&b, "\nUser Question/Prompt:\n%s\n", question)
	b.WriteString(`
Instructions:
- Always begin your response by mentioning the merchant name
- Analyze the transactions and provide insights
- Keep the response focused and avoid duplicating information
`)
	return b.String()
}

// merchantDisplayName turns a service identifier like "uber_eats" into
// "Uber Eats". An explicit override wins; an empty service yields "Unknown".
func merchantDisplayName(override, service string) string {
	if override != "" {
		return override
	}
	if service == "" {
		return "Unknown"
	}
	words := strings.Fields(strings.ReplaceAll(service, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func lastURLSegment(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func stringOrNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}
