// Package ingest runs the normalization batch: it discovers capture files,
// parses them concurrently into canonical records and persists the results
// through the configured record store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
	"github.com/flowlens/flowlens-cli/internal/harparse"
	"github.com/flowlens/flowlens-cli/internal/logparse"
)

// ErrMissingInput marks an input directory that does not exist. Callers treat
// it as an empty file set rather than a failure.
var ErrMissingInput = errors.New("missing input")

var defaultLogPatterns = []string{"*.log", "*.json", "*.txt"}

// Counts is the per-kind outcome tally of a batch.
type Counts struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
}

// BatchResult is the outcome of one ingest run. Entry ordering follows the
// discovered (sorted) file order regardless of parse scheduling.
type BatchResult struct {
	BatchID    string             `json:"batch_id"`
	HAREntries []schemas.HAREntry `json:"har_entries"`
	LogEntries []schemas.LogEntry `json:"log_entries"`
	HARCounts  Counts             `json:"har_counts"`
	LogCounts  Counts             `json:"log_counts"`
}

// Orchestrator wires the two parsers to a record store and runs batches.
type Orchestrator struct {
	cfg       config.IngestConfig
	log       *zap.Logger
	harParser *harparse.Parser
	logParser *logparse.Parser
	store     schemas.RecordStore
}

func New(cfg config.IngestConfig, store schemas.RecordStore, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		log:       logger.Named("ingest"),
		harParser: harparse.New(logger),
		logParser: logparse.New(logger),
		store:     store,
	}
}

// fileOutcome is the parse result for a single input file, addressed by its
// index in the discovered list.
type fileOutcome struct {
	har     []schemas.HAREntry
	logs    []schemas.LogEntry
	skipped bool
	errored bool
}

// Run executes one batch. Explicit file lists override directory discovery
// for their kind; nil means discover from the configured directories. A
// malformed or unreadable file is counted and logged, never fatal; store and
// context failures abort the batch.
func (o *Orchestrator) Run(ctx context.Context, harFiles, logFiles []string) (*BatchResult, error) {
	var err error
	if harFiles == nil {
		harFiles, err = o.discover(o.cfg.HARDir, o.cfg.HARPatterns, []string{"*.har"})
		if err != nil {
			return nil, err
		}
	}
	if logFiles == nil {
		logFiles, err = o.discover(o.cfg.LogDir, o.cfg.LogPatterns, defaultLogPatterns)
		if err != nil {
			return nil, err
		}
	}

	result := &BatchResult{BatchID: uuid.NewString()}
	o.log.Info("starting ingest batch",
		zap.String("batch_id", result.BatchID),
		zap.Int("har_files", len(harFiles)),
		zap.Int("log_files", len(logFiles)))

	harOutcomes := make([]fileOutcome, len(harFiles))
	logOutcomes := make([]fileOutcome, len(logFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, path := range harFiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			harOutcomes[i] = o.parseHAR(path)
			return nil
		})
	}
	for i, path := range logFiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logOutcomes[i] = o.parseLog(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest batch aborted: %w", err)
	}

	for _, out := range harOutcomes {
		result.HAREntries = append(result.HAREntries, out.har...)
		result.HARCounts.tally(out)
	}
	for _, out := range logOutcomes {
		result.LogEntries = append(result.LogEntries, out.logs...)
		result.LogCounts.tally(out)
	}

	if err := o.persist(ctx, result); err != nil {
		return nil, err
	}

	o.log.Info("ingest batch complete",
		zap.String("batch_id", result.BatchID),
		zap.Int("har_entries", len(result.HAREntries)),
		zap.Int("log_entries", len(result.LogEntries)))
	return result, nil
}

func (c *Counts) tally(out fileOutcome) {
	switch {
	case out.skipped:
		c.Skipped++
	case out.errored:
		c.Errored++
	default:
		c.Processed++
	}
}

func (o *Orchestrator) parseHAR(path string) fileOutcome {
	entries, err := o.harParser.ParseFile(path)
	switch {
	case errors.Is(err, harparse.ErrMalformedInput):
		o.log.Warn("skipping malformed HAR file", zap.String("path", path), zap.Error(err))
		return fileOutcome{skipped: true}
	case err != nil:
		o.log.Warn("failed to read HAR file", zap.String("path", path), zap.Error(err))
		return fileOutcome{errored: true}
	}
	return fileOutcome{har: entries}
}

func (o *Orchestrator) parseLog(path string) fileOutcome {
	entries, err := o.logParser.ParseFile(path)
	if err != nil {
		o.log.Warn("failed to read log file", zap.String("path", path), zap.Error(err))
		return fileOutcome{errored: true}
	}
	return fileOutcome{logs: entries}
}

// persist writes the batch through the store. The HAR side is only written
// when the batch produced entries; the log side is always written, so an
// empty run still truncates stale log records.
func (o *Orchestrator) persist(ctx context.Context, result *BatchResult) error {
	if o.store == nil {
		return nil
	}
	if len(result.HAREntries) > 0 {
		if err := o.store.SaveHAREntries(ctx, result.HAREntries); err != nil {
			return fmt.Errorf("persisting HAR entries: %w", err)
		}
	}
	if err := o.store.SaveLogEntries(ctx, result.LogEntries); err != nil {
		return fmt.Errorf("persisting log entries: %w", err)
	}
	return nil
}

// discover expands the patterns under dir, deduplicates and sorts the result.
// A missing directory is downgraded to an empty file set.
func (o *Orchestrator) discover(dir string, patterns, fallback []string) ([]string, error) {
	files, err := DiscoverFiles(dir, patterns, fallback)
	if errors.Is(err, ErrMissingInput) {
		o.log.Warn("input directory missing, nothing to ingest", zap.String("dir", dir))
		return nil, nil
	}
	return files, err
}

// DiscoverFiles lists the files under dir matching any of the glob patterns
// (fallback patterns apply when none are configured), deduplicated and
// sorted. A missing directory fails with ErrMissingInput.
func DiscoverFiles(dir string, patterns, fallback []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = fallback
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %q", ErrMissingInput, dir)
		}
		return nil, fmt.Errorf("stat %q: %w", dir, err)
	}

	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return files, nil
}
