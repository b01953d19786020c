// Package watch follows a growing bot service log and emits run entries as
// they complete, using the same state machine the batch parser runs over
// static files.
package watch

import (
	"context"
	"fmt"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/harparse"
	"github.com/flowlens/flowlens-cli/internal/logparse"
)

// Watcher tails one log file and sends each finalized entry on its channel.
type Watcher struct {
	logger    *zap.Logger
	path      string
	fromStart bool
	entryChan chan<- schemas.LogEntry
}

// NewWatcher prepares a watcher for the given log file. Entries are sent on
// entryChan; the channel is closed when the watcher stops.
func NewWatcher(path string, fromStart bool, entryChan chan<- schemas.LogEntry, logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("a log file path is required")
	}
	return &Watcher{
		logger:    logger.Named("watch"),
		path:      path,
		fromStart: fromStart,
		entryChan: entryChan,
	}, nil
}

// Start begins tailing the file in its own goroutine. The watcher follows
// rotations (ReOpen) and, unless fromStart is set, seeks to the current end
// so only new runs are reported. Cancel the context to stop.
func (w *Watcher) Start(ctx context.Context) error {
	cfg := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	}
	if !w.fromStart {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: 2}
	}

	t, err := tail.TailFile(w.path, cfg)
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}

	w.logger.Info("Following log file",
		zap.String("path", w.path),
		zap.Bool("from_start", w.fromStart))

	go w.monitorLoop(ctx, t)
	return nil
}

// monitorLoop reads lines into the run state machine and forwards each entry
// the scanner finalizes. Runs still open at shutdown are dropped, matching
// the batch parser's end-of-stream behavior.
func (w *Watcher) monitorLoop(ctx context.Context, t *tail.Tail) {
	defer func() {
		t.Stop()
		t.Cleanup()
		close(w.entryChan)
	}()

	scanner := logparse.NewScanner(harparse.FileIDFromPath(w.path), w.logger)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping log watcher.")
			return

		case line, ok := <-t.Lines:
			if !ok {
				w.logger.Info("Log file tailer channel closed.")
				return
			}
			if line.Err != nil {
				w.logger.Warn("Error reading from log file", zap.Error(line.Err))
				continue
			}

			scanner.Feed(line.Text)
			for _, entry := range scanner.Drain() {
				select {
				case w.entryChan <- entry:
				case <-ctx.Done():
					w.logger.Warn("Context cancelled while emitting log entry",
						zap.String("service", entry.Service))
					return
				}
			}
		}
	}
}
