package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be tested against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var (
	harColumns = []string{"seq", "file_id", "url", "method", "status_code", "response_time", "response_size", "request_headers", "error_message"}
	logColumns = []string{"seq", "file_id", "service", "task_url", "steps", "status", "error_message", "error_details"}
)

// PostgresStore keeps the canonical records in two tables, har_entries and
// log_entries. A save truncates the table and bulk-copies the new set inside
// one transaction, matching the file store's replace semantics. The seq
// column preserves batch order across reloads.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresStore verifies the connection and returns the store.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("store")}, nil
}

func (s *PostgresStore) SaveHAREntries(ctx context.Context, entries []schemas.HAREntry) error {
	rows := make([][]interface{}, len(entries))
	for i, e := range entries {
		headers, err := json.Marshal(e.RequestHeaders)
		if err != nil {
			return fmt.Errorf("encoding request headers for %s: %w", e.FileID, err)
		}
		rows[i] = []interface{}{
			i, e.FileID, e.URL, e.Method, e.StatusCode,
			e.ResponseTime, e.ResponseSize, headers, e.ErrorMessage,
		}
	}
	return s.replace(ctx, "har_entries", harColumns, rows)
}

func (s *PostgresStore) LoadHAREntries(ctx context.Context) ([]schemas.HAREntry, error) {
	query := `
        SELECT file_id, url, method, status_code, response_time, response_size, request_headers, error_message
        FROM har_entries
        ORDER BY seq ASC;
    `
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query har_entries: %w", err)
	}
	defer rows.Close()

	var entries []schemas.HAREntry
	for rows.Next() {
		var e schemas.HAREntry
		var headers []byte
		if err := rows.Scan(&e.FileID, &e.URL, &e.Method, &e.StatusCode,
			&e.ResponseTime, &e.ResponseSize, &headers, &e.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan har_entries row: %w", err)
		}
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &e.RequestHeaders); err != nil {
				return nil, fmt.Errorf("decoding request headers for %s: %w", e.FileID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during har_entries iteration: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) SaveLogEntries(ctx context.Context, entries []schemas.LogEntry) error {
	rows := make([][]interface{}, len(entries))
	for i, e := range entries {
		steps, err := json.Marshal(e.Steps)
		if err != nil {
			return fmt.Errorf("encoding steps for %s: %w", e.FileID, err)
		}
		var details []byte
		if e.ErrorDetails != nil {
			details, err = json.Marshal(e.ErrorDetails)
			if err != nil {
				return fmt.Errorf("encoding error details for %s: %w", e.FileID, err)
			}
		}
		rows[i] = []interface{}{
			i, e.FileID, e.Service, e.TaskURL, steps,
			string(e.Status), e.ErrorMessage, details,
		}
	}
	return s.replace(ctx, "log_entries", logColumns, rows)
}

func (s *PostgresStore) LoadLogEntries(ctx context.Context) ([]schemas.LogEntry, error) {
	query := `
        SELECT file_id, service, task_url, steps, status, error_message, error_details
        FROM log_entries
        ORDER BY seq ASC;
    `
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query log_entries: %w", err)
	}
	defer rows.Close()

	var entries []schemas.LogEntry
	for rows.Next() {
		var e schemas.LogEntry
		var status string
		var steps, details []byte
		if err := rows.Scan(&e.FileID, &e.Service, &e.TaskURL, &steps,
			&status, &e.ErrorMessage, &details); err != nil {
			return nil, fmt.Errorf("failed to scan log_entries row: %w", err)
		}
		e.Status = schemas.RunStatus(status)
		if len(steps) > 0 {
			if err := json.Unmarshal(steps, &e.Steps); err != nil {
				return nil, fmt.Errorf("decoding steps for %s: %w", e.FileID, err)
			}
		}
		if e.Steps == nil {
			e.Steps = []string{}
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.ErrorDetails); err != nil {
				return nil, fmt.Errorf("decoding error details for %s: %w", e.FileID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during log_entries iteration: %w", err)
	}
	return entries, nil
}

// replace swaps the full contents of a table for the given rows in a single
// transaction.
func (s *PostgresStore) replace(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}

	if len(rows) > 0 {
		copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy into %s: %w", table, err)
		}
		if int(copyCount) != len(rows) {
			return fmt.Errorf("mismatch in copied %s count: expected %d, got %d", table, len(rows), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("records replaced", zap.String("table", table), zap.Int("count", len(rows)))
	return nil
}
