package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/internal/ingest"
	"github.com/flowlens/flowlens-cli/internal/observability"
)

// newIngestCmd creates and configures the `ingest` command.
func newIngestCmd() *cobra.Command {
	var harFiles, logFiles []string

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Normalizes HAR captures and bot logs into the record store",
		Long: `Ingest discovers capture files in the configured directories (or takes
explicit file lists), parses them concurrently into canonical records and
replaces the persisted record sets with the new batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			st, cleanup, err := newRecordStore(ctx, appConfig, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			orch := ingest.New(appConfig.Ingest(), st, logger)
			result, err := orch.Run(ctx, harFiles, logFiles)
			if err != nil {
				return fmt.Errorf("ingest batch failed: %w", err)
			}

			logger.Info("Ingest batch complete",
				zap.String("batch_id", result.BatchID),
				zap.Int("har_entries", len(result.HAREntries)),
				zap.Int("log_entries", len(result.LogEntries)),
				zap.Int("har_skipped", result.HARCounts.Skipped),
				zap.Int("har_errored", result.HARCounts.Errored),
				zap.Int("log_skipped", result.LogCounts.Skipped),
				zap.Int("log_errored", result.LogCounts.Errored),
			)

			fmt.Fprintf(cmd.OutOrStdout(),
				"Batch %s: %d HAR entries from %d files, %d log entries from %d files (%d skipped, %d errored)\n",
				result.BatchID,
				len(result.HAREntries), result.HARCounts.Processed,
				len(result.LogEntries), result.LogCounts.Processed,
				result.HARCounts.Skipped+result.LogCounts.Skipped,
				result.HARCounts.Errored+result.LogCounts.Errored,
			)
			return nil
		},
	}

	ingestCmd.Flags().StringSliceVar(&harFiles, "har", nil, "Explicit HAR files to ingest. Overrides directory discovery.")
	ingestCmd.Flags().StringSliceVar(&logFiles, "log", nil, "Explicit log files to ingest. Overrides directory discovery.")
	ingestCmd.Flags().String("har-dir", "", "Directory to discover HAR captures in. (Overrides config/env)")
	ingestCmd.Flags().String("log-dir", "", "Directory to discover bot logs in. (Overrides config/env)")
	ingestCmd.Flags().IntP("concurrency", "j", 0, "Number of concurrent parser workers. (Overrides config/env)")

	return ingestCmd
}
