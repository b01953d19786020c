package diagnose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
)

func strPtr(s string) *string { return &s }

type fakeLLM struct {
	mu       sync.Mutex
	requests []schemas.GenerationRequest
	respond  func(schemas.GenerationRequest) (*schemas.GenerationResult, error)
}

func (f *fakeLLM) Generate(_ context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	return &schemas.GenerationResult{Text: "analysis text"}, nil
}

type fakeMailer struct {
	sent   []sendEmailArgs
	result schemas.DeliveryResult
}

func (f *fakeMailer) Send(_ context.Context, recipient, subject, body string) (schemas.DeliveryResult, error) {
	f.sent = append(f.sent, sendEmailArgs{Recipient: recipient, Subject: subject, Body: body})
	return f.result, nil
}

func newTestAnalyzer(t *testing.T, llm *fakeLLM, mailer *fakeMailer) *Analyzer {
	t.Helper()
	if mailer == nil {
		mailer = &fakeMailer{result: schemas.DeliveryResult{Status: schemas.DeliverySuccess, Message: "Email sent successfully"}}
	}
	return New(llm, mailer,
		config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o", Temperature: 0.3},
		config.DiagnoseConfig{RateLimit: 1000, Concurrency: 4},
		zaptest.NewLogger(t))
}

func sampleContext() TransactionContext {
	return TransactionContext{
		FileID: "1",
		Log: schemas.LogEntry{
			FileID:       "1",
			Service:      "uber_eats",
			Status:       schemas.RunFailed,
			ErrorMessage: strPtr("commons.exceptions.exceptions.CardErrorException"),
			Steps:        []string{"Importing session", "Update card error"},
		},
		Calls: []schemas.HAREntry{
			{FileID: "1", URL: "https://payments.example.com/add", Method: "GET", StatusCode: 302},
			{FileID: "1", URL: "https://payments.example.com/api/paymentProfileCreate", Method: "POST", StatusCode: 404,
				ErrorMessage: strPtr("HTTP 404: Not Found")},
		},
	}
}

func TestAnalyzeFlowPromptContents(t *testing.T) {
	llm := &fakeLLM{}
	a := newTestAnalyzer(t, llm, nil)

	d, err := a.AnalyzeFlow(context.Background(), sampleContext())
	require.NoError(t, err)
	assert.Equal(t, "1", d.FileID)
	assert.Equal(t, "analysis text", d.Analysis)
	assert.Equal(t, 2, d.CallCount)
	assert.False(t, d.Timestamp.IsZero())

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, flowSystemPrompt, req.System)
	assert.Equal(t, float32(0.3), req.Temperature)
	assert.Empty(t, req.Tools, "flow analysis never registers tools")

	assert.Contains(t, req.Prompt, "**Merchant:** `Uber Eats`")
	assert.NotContains(t, req.Prompt, merchantPlaceholder)
	assert.Contains(t, req.Prompt, "add -> paymentProfileCreate")
	assert.Contains(t, req.Prompt, `"status": 404`)
	assert.Contains(t, req.Prompt, "Update card error")
	assert.Contains(t, req.Prompt, "- **Status:** failed")
	assert.Contains(t, req.Prompt, "commons.exceptions.exceptions.CardErrorException")
	assert.Contains(t, req.Prompt, "### Few-Shot Examples ###")
}

func TestAnalyzeFlowMerchantOverride(t *testing.T) {
	llm := &fakeLLM{}
	a := newTestAnalyzer(t, llm, nil)
	a.cfg.Merchant = "DoorDash"

	_, err := a.AnalyzeFlow(context.Background(), sampleContext())
	require.NoError(t, err)
	assert.Contains(t, llm.requests[0].Prompt, "**Merchant:** `DoorDash`")
}

func TestAnalyzeFlowClientError(t *testing.T) {
	llm := &fakeLLM{respond: func(schemas.GenerationRequest) (*schemas.GenerationResult, error) {
		return nil, errors.New("quota exhausted")
	}}
	a := newTestAnalyzer(t, llm, nil)

	_, err := a.AnalyzeFlow(context.Background(), sampleContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestAnalyzeBatchOrderStable(t *testing.T) {
	llm := &fakeLLM{respond: func(req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
		// Echo the file id back so results can be traced to inputs.
		start := strings.Index(req.Prompt, "Transaction Data")
		return &schemas.GenerationResult{Text: fmt.Sprintf("analysis-at-%d", start)}, nil
	}}
	a := newTestAnalyzer(t, llm, nil)

	logs := []schemas.LogEntry{
		{FileID: "c", Service: "svc", Status: schemas.RunFailed},
		{FileID: "a", Service: "svc", Status: schemas.RunSuccess},
		{FileID: "b", Service: "svc", Status: schemas.RunFailed},
	}
	har := []schemas.HAREntry{
		{FileID: "a", URL: "https://x.test/one", StatusCode: 200},
		{FileID: "c", URL: "https://x.test/two", StatusCode: 500},
	}

	diagnoses, err := a.AnalyzeBatch(context.Background(), har, logs)
	require.NoError(t, err)
	require.Len(t, diagnoses, 3)
	assert.Equal(t, "c", diagnoses[0].FileID)
	assert.Equal(t, "a", diagnoses[1].FileID)
	assert.Equal(t, "b", diagnoses[2].FileID)
	assert.Equal(t, 1, diagnoses[0].CallCount)
	assert.Equal(t, 0, diagnoses[2].CallCount, "log-only transactions still get a diagnosis")
}

func TestAnalyzeBatchPropagatesFailure(t *testing.T) {
	llm := &fakeLLM{respond: func(schemas.GenerationRequest) (*schemas.GenerationResult, error) {
		return nil, errors.New("backend down")
	}}
	a := newTestAnalyzer(t, llm, nil)

	_, err := a.AnalyzeBatch(context.Background(), nil, []schemas.LogEntry{{FileID: "1", Service: "svc"}})
	require.Error(t, err)
}

func TestChatDispatchesEmailTool(t *testing.T) {
	llm := &fakeLLM{respond: func(req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
		return &schemas.GenerationResult{
			Text: "Summary of failures.",
			ToolCalls: []schemas.ToolCall{{
				Name:      sendEmailToolName,
				Arguments: json.RawMessage(`{"recipient":"ops@example.com","subject":"Failures","body":"3 failed"}`),
			}},
		}, nil
	}}
	mailer := &fakeMailer{result: schemas.DeliveryResult{Status: schemas.DeliverySuccess, Message: "Email sent successfully"}}
	a := newTestAnalyzer(t, llm, mailer)

	chat, err := a.Chat(context.Background(), "email the summary to ops@example.com", []Diagnosis{
		{FileID: "1", Analysis: "cookie expiry"},
	})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ops@example.com", mailer.sent[0].Recipient)
	assert.Equal(t, "Failures", mailer.sent[0].Subject)

	require.Len(t, chat.ToolResults, 1)
	assert.Equal(t, sendEmailToolName, chat.ToolResults[0].Function)
	assert.Equal(t, schemas.DeliverySuccess, chat.ToolResults[0].Result.Status)
	assert.Contains(t, chat.Response, "Summary of failures.")
	assert.Contains(t, chat.Response, "Email sent successfully")

	require.Len(t, llm.requests, 1)
	require.Len(t, llm.requests[0].Tools, 1)
	assert.Equal(t, sendEmailToolName, llm.requests[0].Tools[0].Name)
	assert.Contains(t, llm.requests[0].Prompt, "cookie expiry")
	assert.Contains(t, llm.requests[0].Prompt, "email the summary")
}

func TestChatUnknownTool(t *testing.T) {
	llm := &fakeLLM{respond: func(schemas.GenerationRequest) (*schemas.GenerationResult, error) {
		return &schemas.GenerationResult{
			Text:      "ok",
			ToolCalls: []schemas.ToolCall{{Name: "delete_everything", Arguments: json.RawMessage(`{}`)}},
		}, nil
	}}
	mailer := &fakeMailer{}
	a := newTestAnalyzer(t, llm, mailer)

	chat, err := a.Chat(context.Background(), "q", nil)
	require.NoError(t, err)
	require.Len(t, chat.ToolResults, 1)
	assert.Equal(t, schemas.DeliveryError, chat.ToolResults[0].Result.Status)
	assert.Empty(t, mailer.sent)
}

func TestChatMalformedToolArguments(t *testing.T) {
	llm := &fakeLLM{respond: func(schemas.GenerationRequest) (*schemas.GenerationResult, error) {
		return &schemas.GenerationResult{
			Text:      "ok",
			ToolCalls: []schemas.ToolCall{{Name: sendEmailToolName, Arguments: json.RawMessage(`{broken`)}},
		}, nil
	}}
	mailer := &fakeMailer{}
	a := newTestAnalyzer(t, llm, mailer)

	chat, err := a.Chat(context.Background(), "q", nil)
	require.NoError(t, err)
	require.Len(t, chat.ToolResults, 1)
	assert.Equal(t, schemas.DeliveryError, chat.ToolResults[0].Result.Status)
	assert.Contains(t, chat.ToolResults[0].Result.Message, "invalid arguments")
	assert.Empty(t, mailer.sent)
}

func TestMerchantDisplayName(t *testing.T) {
	assert.Equal(t, "Uber Eats", merchantDisplayName("", "uber_eats"))
	assert.Equal(t, "Doordash", merchantDisplayName("", "doordash"))
	assert.Equal(t, "Unknown", merchantDisplayName("", ""))
	assert.Equal(t, "Instacart", merchantDisplayName("Instacart", "uber_eats"))
}

func TestBuildContexts(t *testing.T) {
	har := []schemas.HAREntry{
		{FileID: "1", URL: "https://x.test/a"},
		{FileID: "2", URL: "https://x.test/b"},
		{FileID: "1", URL: "https://x.test/c"},
	}
	logs := []schemas.LogEntry{
		{FileID: "2"},
		{FileID: "1"},
	}

	contexts := BuildContexts(har, logs)
	require.Len(t, contexts, 2)
	assert.Equal(t, "2", contexts[0].FileID)
	assert.Len(t, contexts[0].Calls, 1)
	assert.Equal(t, "1", contexts[1].FileID)
	assert.Len(t, contexts[1].Calls, 2)
}
