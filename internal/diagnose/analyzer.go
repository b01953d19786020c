// Package diagnose runs LLM-backed triage over correlated transactions: a
// per-transaction analysis pass and an interactive chat loop that can email
// its findings.
package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
)

// Diagnosis is the model's verdict on a single transaction.
type Diagnosis struct {
	Timestamp time.Time `json:"timestamp"`
	FileID    string    `json:"file_id"`
	Analysis  string    `json:"analysis"`
	CallCount int       `json:"call_count"`
}

// ToolResult records one dispatched tool call and its outcome.
type ToolResult struct {
	Function string                 `json:"function"`
	Result   schemas.DeliveryResult `json:"result"`
}

// ChatResult is the outcome of one interactive question.
type ChatResult struct {
	Timestamp   time.Time    `json:"timestamp"`
	Response    string       `json:"response"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// Analyzer drives the triage prompts through an LLM client. All LLM traffic,
// batch or interactive, shares one rate limiter.
type Analyzer struct {
	client  schemas.LLMClient
	mailer  schemas.Mailer
	llmCfg  config.LLMConfig
	cfg     config.DiagnoseConfig
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func New(client schemas.LLMClient, mailer schemas.Mailer, llmCfg config.LLMConfig, cfg config.DiagnoseConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		mailer:  mailer,
		llmCfg:  llmCfg,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:     logger.Named("diagnose"),
		now:     time.Now,
	}
}

// AnalyzeFlow diagnoses a single transaction.
func (a *Analyzer) AnalyzeFlow(ctx context.Context, tx TransactionContext) (*Diagnosis, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	merchant := merchantDisplayName(a.cfg.Merchant, tx.Log.Service)
	result, err := a.client.Generate(ctx, schemas.GenerationRequest{
		System:      flowSystemPrompt,
		Prompt:      buildFlowPrompt(tx, merchant),
		Temperature: a.llmCfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing transaction %s: %w", tx.FileID, err)
	}

	a.log.Info("transaction analyzed",
		zap.String("file_id", tx.FileID),
		zap.Int("api_calls", len(tx.Calls)),
		zap.Int("total_tokens", result.Usage.TotalTokens))

	return &Diagnosis{
		Timestamp: a.now(),
		FileID:    tx.FileID,
		Analysis:  result.Text,
		CallCount: len(tx.Calls),
	}, nil
}

// AnalyzeBatch diagnoses every transaction with a log entry, in log order.
// Calls run concurrently under the shared rate limiter; the result slice is
// index-addressed so ordering is input-stable.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, har []schemas.HAREntry, logs []schemas.LogEntry) ([]Diagnosis, error) {
	contexts := BuildContexts(har, logs)
	diagnoses := make([]Diagnosis, len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, tx := range contexts {
		g.Go(func() error {
			d, err := a.AnalyzeFlow(gctx, tx)
			if err != nil {
				return err
			}
			diagnoses[i] = *d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return diagnoses, nil
}

// Chat answers a freeform question over prior analyses. The send_email tool
// is registered; any tool call the model returns is dispatched to the mailer
// and its outcome folded into the response text.
func (a *Analyzer) Chat(ctx context.Context, question string, analyses []Diagnosis) (*ChatResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	merchant := merchantDisplayName(a.cfg.Merchant, "")
	result, err := a.client.Generate(ctx, schemas.GenerationRequest{
		System:      chatSystemPrompt,
		Prompt:      buildChatPrompt(question, analyses, merchant),
		Temperature: a.llmCfg.Temperature,
		Tools:       []schemas.ToolDefinition{sendEmailTool},
	})
	if err != nil {
		return nil, fmt.Errorf("chat analysis: %w", err)
	}

	chat := &ChatResult{
		Timestamp: a.now(),
		Response:  result.Text,
	}
	for _, call := range result.ToolCalls {
		outcome := a.dispatchToolCall(ctx, call)
		chat.ToolResults = append(chat.ToolResults, outcome)
		chat.Response += fmt.Sprintf("\n\n[%s: %s - %s]", outcome.Function, outcome.Result.Status, outcome.Result.Message)
	}
	return chat, nil
}

func (a *Analyzer) dispatchToolCall(ctx context.Context, call schemas.ToolCall) ToolResult {
	if call.Name != sendEmailToolName {
		a.log.Warn("model requested unknown tool", zap.String("tool", call.Name))
		return ToolResult{
			Function: call.Name,
			Result:   schemas.DeliveryResult{Status: schemas.DeliveryError, Message: fmt.Sprintf("unknown tool %q", call.Name)},
		}
	}

	var args sendEmailArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		a.log.Error("failed to decode tool arguments", zap.Error(err))
		return ToolResult{
			Function: sendEmailToolName,
			Result:   schemas.DeliveryResult{Status: schemas.DeliveryError, Message: fmt.Sprintf("invalid arguments: %v", err)},
		}
	}

	delivery, err := a.mailer.Send(ctx, args.Recipient, args.Subject, args.Body)
	if err != nil {
		delivery = schemas.DeliveryResult{Status: schemas.DeliveryError, Message: err.Error()}
	}
	a.log.Info("tool call processed",
		zap.String("tool", sendEmailToolName),
		zap.String("recipient", args.Recipient),
		zap.String("status", string(delivery.Status)))
	return ToolResult{Function: sendEmailToolName, Result: delivery}
}

// BuildContexts groups HAR entries by file_id and pairs each log entry with
// its calls, preserving log order.
func BuildContexts(har []schemas.HAREntry, logs []schemas.LogEntry) []TransactionContext {
	byFile := make(map[string][]schemas.HAREntry, len(har))
	for _, entry := range har {
		byFile[entry.FileID] = append(byFile[entry.FileID], entry)
	}

	contexts := make([]TransactionContext, 0, len(logs))
	for _, logEntry := range logs {
		contexts = append(contexts, TransactionContext{
			FileID: logEntry.FileID,
			Log:    logEntry,
			Calls:  byFile[logEntry.FileID],
		})
	}
	return contexts
}
