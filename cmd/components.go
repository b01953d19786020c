package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
	"github.com/flowlens/flowlens-cli/internal/store"
)

// newRecordStore builds the configured record store backend. The returned
// cleanup func releases backend resources and must be called when done; it is
// a no-op for the file backend.
func newRecordStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.RecordStore, func(), error) {
	switch cfg.Store().Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store().DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		return st, pool.Close, nil
	default:
		st, err := store.NewFileStore(cfg.Ingest().ProcessedDir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		return st, func() {}, nil
	}
}

// loadRecords reads both canonical record sets from the store.
func loadRecords(ctx context.Context, st schemas.RecordStore) ([]schemas.HAREntry, []schemas.LogEntry, error) {
	har, err := st.LoadHAREntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HAR entries: %w", err)
	}
	logs, err := st.LoadLogEntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load log entries: %w", err)
	}
	return har, logs, nil
}
