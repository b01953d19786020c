package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/observability"
	"github.com/flowlens/flowlens-cli/internal/watch"
)

// newWatchCmd creates and configures the `watch` command.
func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch <logfile>",
		Short: "Follows a live bot log and emits finalized runs as JSON lines",
		Long: `Watch tails the given service log, reconstructs each bot run as its end
marker arrives and prints the finalized record as one JSON line. With
--persist, the finalized records are appended to the record store when the
watch stops.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			watchCfg := appConfig.Watch()

			entries := make(chan schemas.LogEntry, 16)
			watcher, err := watch.NewWatcher(args[0], watchCfg.FromStart, entries, logger)
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watching %s: %w", args[0], err)
			}

			logger.Info("Watching log file",
				zap.String("path", args[0]),
				zap.Bool("from_start", watchCfg.FromStart),
				zap.Bool("persist", watchCfg.Persist),
			)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			var collected []schemas.LogEntry
			for entry := range entries {
				if err := encoder.Encode(entry); err != nil {
					return fmt.Errorf("failed to emit entry: %w", err)
				}
				if watchCfg.Persist {
					collected = append(collected, entry)
				}
			}

			if watchCfg.Persist && len(collected) > 0 {
				if err := persistWatched(collected, logger); err != nil {
					return err
				}
			}
			return nil
		},
	}

	watchCmd.Flags().Bool("from-start", false, "Read the log from the beginning instead of only new lines. (Overrides config/env)")
	watchCmd.Flags().Bool("persist", false, "Append finalized runs to the record store on shutdown. (Overrides config/env)")

	return watchCmd
}

// persistWatched appends the collected runs to the stored log set. A fresh
// background context is used so a Ctrl+C that ended the watch does not also
// cancel the save.
func persistWatched(collected []schemas.LogEntry, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, cleanup, err := newRecordStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	existing, err := st.LoadLogEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored log entries: %w", err)
	}
	if err := st.SaveLogEntries(ctx, append(existing, collected...)); err != nil {
		return fmt.Errorf("failed to persist watched entries: %w", err)
	}

	logger.Info("Persisted watched runs", zap.Int("entries", len(collected)))
	return nil
}
