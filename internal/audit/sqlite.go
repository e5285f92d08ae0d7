package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

const auditDDL = `
CREATE TABLE IF NOT EXISTS audit_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ts           TEXT NOT NULL,
    domain       TEXT NOT NULL,
    schema_name  TEXT NOT NULL,
    sql_text     TEXT NOT NULL,
    executed_sql TEXT NOT NULL,
    params       TEXT,
    row_count    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
CREATE INDEX IF NOT EXISTS idx_audit_log_domain ON audit_log(domain);`

// SQLiteSink writes audit records to a local SQLite database so they can
// be queried after the fact.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens the audit database and ensures the schema exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: audit sqlite path must be provided", domain.ErrInvalidConfiguration)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(auditDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Write inserts one audit record.
func (s *SQLiteSink) Write(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (ts, domain, schema_name, sql_text, executed_sql, params, row_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		rec.Domain,
		rec.Schema,
		rec.SQL,
		rec.ExecutedSQL,
		rec.Params,
		rec.RowCount,
	)
	return err
}

// Close closes the audit database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
