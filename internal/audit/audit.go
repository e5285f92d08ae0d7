// Package audit persists append-only records of executed statements.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

// New creates an audit sink from configuration: "file" appends NDJSON
// lines, "sqlite" writes to a local database, "none" discards records.
func New(cfg domain.AuditConfig) (domain.AuditSink, error) {
	switch cfg.Driver {
	case "file":
		return NewFileSink(cfg.FilePath)
	case "sqlite":
		return NewSQLiteSink(cfg.SQLitePath)
	case "none":
		return NopSink{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported audit driver %q", domain.ErrInvalidConfiguration, cfg.Driver)
	}
}

// FileSink appends one JSON object per line to a log file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the audit log, creating parent
// directories as needed.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: audit file path must be provided", domain.ErrInvalidConfiguration)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{file: file}, nil
}

// Write appends one record as a JSON line.
func (s *FileSink) Write(ctx context.Context, rec domain.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(data, '\n'))
	return err
}

// Close closes the log file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) Write(ctx context.Context, rec domain.AuditRecord) error { return nil }
func (NopSink) Close() error                                            { return nil }
