package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/internal/analysis"
	"github.com/flowlens/flowlens-cli/internal/observability"
	"github.com/flowlens/flowlens-cli/internal/reporting"
)

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd() *cobra.Command {
	var (
		format     string
		outputPath string
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Correlates persisted records into flows and detects failure patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			st, cleanup, err := newRecordStore(ctx, appConfig, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			har, logs, err := loadRecords(ctx, st)
			if err != nil {
				return err
			}
			if len(har) == 0 && len(logs) == 0 {
				return fmt.Errorf("no records in store; run `flowlens ingest` first")
			}

			var rules []analysis.Rule
			if rulesFile := appConfig.Detector().RulesFile; rulesFile != "" {
				rules, err = analysis.LoadRules(rulesFile)
				if err != nil {
					return fmt.Errorf("failed to load custom rules: %w", err)
				}
				logger.Info("Loaded custom detection rules",
					zap.String("file", rulesFile), zap.Int("rules", len(rules)))
			}

			flows := analysis.CorrelateFlows(har, logs)
			report := &reporting.AnalysisReport{
				Stats:    analysis.Stats(flows),
				Flows:    flows,
				Patterns: analysis.DetectPatterns(har, logs, rules...),
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

			if err := reporter.WriteAnalysis(report); err != nil {
				return fmt.Errorf("failed to write analysis report: %w", err)
			}

			logger.Info("Analysis complete",
				zap.Int("flows", len(flows)),
				zap.Int("patterns", len(report.Patterns.Patterns)),
			)
			return nil
		},
	}

	analyzeCmd.Flags().StringVarP(&format, "format", "f", "text", "Report format ('text' or 'json').")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report output path. Defaults to stdout.")
	analyzeCmd.Flags().String("rules", "", "Path to a custom detection rules file. (Overrides config/env)")

	return analyzeCmd
}
