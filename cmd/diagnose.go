package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/internal/diagnose"
	"github.com/flowlens/flowlens-cli/internal/llmclient"
	"github.com/flowlens/flowlens-cli/internal/mailer"
	"github.com/flowlens/flowlens-cli/internal/observability"
	"github.com/flowlens/flowlens-cli/internal/reporting"
)

// newDiagnoseCmd creates and configures the `diagnose` command.
func newDiagnoseCmd() *cobra.Command {
	var (
		format     string
		outputPath string
	)

	diagnoseCmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Runs LLM triage over every persisted transaction",
		Long: `Diagnose loads the persisted records, builds one transaction context per
log entry and asks the configured LLM provider for a root-cause analysis of
each, rate limited and bounded in concurrency.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			diagnoses, err := runBatchDiagnosis(ctx, logger)
			if err != nil {
				return err
			}

			reporter, err := reporting.New(format, outputPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := reporter.Close(); err != nil {
					logger.Error("Failed to close reporter", zap.Error(err))
				}
			}()

			if err := reporter.WriteDiagnoses(diagnoses); err != nil {
				return fmt.Errorf("failed to write diagnosis report: %w", err)
			}

			logger.Info("Diagnosis complete", zap.Int("transactions", len(diagnoses)))
			return nil
		},
	}

	diagnoseCmd.Flags().StringVarP(&format, "format", "f", "text", "Report format ('text' or 'json').")
	diagnoseCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report output path. Defaults to stdout.")
	diagnoseCmd.Flags().String("merchant", "", "Merchant name substituted into the triage prompt. (Overrides config/env)")

	return diagnoseCmd
}

// newChatCmd creates and configures the `chat` command.
func newChatCmd() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Asks a follow-up question over the batch diagnosis",
		Long: `Chat runs the batch diagnosis and then asks the LLM a free-form question
with every per-transaction analysis as context. The model may invoke the
send_email tool; deliveries are dispatched through the configured SMTP
account and their outcomes folded into the printed response.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			analyzer, cleanup, err := newAnalyzer(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			st, storeCleanup, err := newRecordStore(ctx, appConfig, logger)
			if err != nil {
				return err
			}
			defer storeCleanup()

			har, logs, err := loadRecords(ctx, st)
			if err != nil {
				return err
			}

			diagnoses, err := analyzer.AnalyzeBatch(ctx, har, logs)
			if err != nil {
				return fmt.Errorf("batch diagnosis failed: %w", err)
			}

			result, err := analyzer.Chat(ctx, args[0], diagnoses)
			if err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Response)
			for _, tr := range result.ToolResults {
				logger.Info("Tool dispatched",
					zap.String("function", tr.Function),
					zap.String("status", string(tr.Result.Status)),
					zap.String("message", tr.Result.Message),
				)
			}
			return nil
		},
	}

	chatCmd.Flags().String("merchant", "", "Merchant name substituted into the triage prompt. (Overrides config/env)")

	return chatCmd
}

// newAnalyzer wires the LLM client and the mailer into a diagnosis analyzer.
func newAnalyzer(ctx context.Context, logger *zap.Logger) (*diagnose.Analyzer, func(), error) {
	client, err := llmclient.NewClient(ctx, appConfig.LLM(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	m := mailer.New(appConfig.Email(), logger)
	analyzer := diagnose.New(client, m, appConfig.LLM(), appConfig.Diagnose(), logger)
	return analyzer, func() {}, nil
}

// runBatchDiagnosis loads the persisted records and diagnoses every
// transaction.
func runBatchDiagnosis(ctx context.Context, logger *zap.Logger) ([]diagnose.Diagnosis, error) {
	analyzer, cleanup, err := newAnalyzer(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	st, storeCleanup, err := newRecordStore(ctx, appConfig, logger)
	if err != nil {
		return nil, err
	}
	defer storeCleanup()

	har, logs, err := loadRecords(ctx, st)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("no log records in store; run `flowlens ingest` first")
	}

	diagnoses, err := analyzer.AnalyzeBatch(ctx, har, logs)
	if err != nil {
		return nil, fmt.Errorf("batch diagnosis failed: %w", err)
	}
	return diagnoses, nil
}
