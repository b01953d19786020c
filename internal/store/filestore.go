// Package store provides the canonical record stores: a JSON file backend for
// the default single-machine workflow and a PostgreSQL backend for shared
// deployments. Both implement schemas.RecordStore with replace-on-save
// semantics.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

const (
	harFileName = "parsed_har.json"
	logFileName = "parsed_logs.json"
)

var jsonDecode = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore persists records as pretty-printed JSON arrays under a processed
// directory. Saves replace the whole file atomically; loading a file that was
// never written yields an empty slice.
type FileStore struct {
	dir string
	log *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating processed dir %q: %w", dir, err)
	}
	return &FileStore{dir: dir, log: logger.Named("store")}, nil
}

func (s *FileStore) SaveHAREntries(ctx context.Context, entries []schemas.HAREntry) error {
	return s.save(ctx, harFileName, entries, len(entries))
}

func (s *FileStore) LoadHAREntries(ctx context.Context) ([]schemas.HAREntry, error) {
	var entries []schemas.HAREntry
	if err := s.load(ctx, harFileName, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) SaveLogEntries(ctx context.Context, entries []schemas.LogEntry) error {
	return s.save(ctx, logFileName, entries, len(entries))
}

func (s *FileStore) LoadLogEntries(ctx context.Context) ([]schemas.LogEntry, error) {
	var entries []schemas.LogEntry
	if err := s.load(ctx, logFileName, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// save writes v to name via a temp file in the same directory followed by a
// rename, so readers never observe a partially written file.
func (s *FileStore) save(ctx context.Context, name string, v any, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", name, err)
	}

	s.log.Debug("records saved", zap.String("file", name), zap.Int("count", count))
	return nil
}

func (s *FileStore) load(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := jsonDecode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
