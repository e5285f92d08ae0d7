// Package executor runs validated read-only queries against resolved domains.
package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/registry"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/sqlguard"
)

// Executor resolves, validates and executes query requests. It is safe for
// concurrent use; each request borrows its own connection for the duration
// of one statement.
type Executor struct {
	registry     *registry.Registry
	audit        domain.AuditSink
	bus          domain.EventBus
	defaultLimit int
	driver       string

	mu    sync.Mutex
	pools map[string]*sql.DB
}

// Option configures an Executor.
type Option func(*Executor)

// WithAudit attaches an audit sink. Writes are best-effort.
func WithAudit(sink domain.AuditSink) Option {
	return func(e *Executor) { e.audit = sink }
}

// WithEventBus attaches an event bus for query-executed events.
func WithEventBus(bus domain.EventBus) Option {
	return func(e *Executor) { e.bus = bus }
}

// WithDriver overrides the database driver. The default is "postgres";
// tests run against "sqlite".
func WithDriver(name string) Option {
	return func(e *Executor) { e.driver = name }
}

// New creates an executor backed by the given registry.
func New(reg *registry.Registry, defaultLimit int, opts ...Option) *Executor {
	e := &Executor{
		registry:     reg,
		defaultLimit: defaultLimit,
		driver:       "postgres",
		pools:        make(map[string]*sql.DB),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one read-only statement and returns the serialized result.
//
// The request flows registry resolution → schema override → safety gate →
// limit injection → parameter binding → execution. Driver errors surface as
// ErrExecutionFailed carrying only the database message and SQLSTATE code.
func (e *Executor) Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	start := time.Now()

	desc, err := e.registry.Resolve(req.Domain)
	if err != nil {
		return nil, err
	}

	schema := desc.Schema
	if req.Schema != "" {
		schema = req.Schema
	}

	cleaned, err := sqlguard.Sanitize(req.SQL)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}

	executed := cleaned
	limitApplied := false
	if !sqlguard.HasLimit(cleaned) {
		executed = fmt.Sprintf("%s LIMIT %d", cleaned, limit)
		limitApplied = true
	}

	bound, args, err := bindNamed(executed, req.Params, e.driver)
	if err != nil {
		return nil, err
	}

	columns, rows, err := e.run(ctx, desc.ConnectionURI, schema, bound, args)
	if err != nil {
		// Failed attempts are audited too, with a zero row count.
		e.recordAudit(ctx, req, &domain.QueryResult{
			Domain:      desc.Name,
			Schema:      schema,
			ExecutedSQL: executed,
		})
		return nil, err
	}

	result := &domain.QueryResult{
		Domain:       desc.Name,
		Schema:       schema,
		ExecutedSQL:  executed,
		Columns:      columns,
		Rows:         rows,
		RowCount:     len(rows),
		LimitApplied: limitApplied,
	}

	e.recordAudit(ctx, req, result)
	e.publishEvent(ctx, result, time.Since(start))

	return result, nil
}

// Ping verifies connectivity for the default domain.
func (e *Executor) Ping(ctx context.Context) error {
	desc, err := e.registry.Resolve("")
	if err != nil {
		return err
	}
	db, err := e.pool(desc.ConnectionURI)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes all connection pools.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for uri, db := range e.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.pools, uri)
	}
	return firstErr
}

// run borrows a single connection, pins the search path to the effective
// schema and executes the bound statement.
func (e *Executor) run(ctx context.Context, connURI, schema, query string, args []any) ([]string, []map[string]any, error) {
	db, err := e.pool(connURI)
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, translateError(err)
	}
	defer conn.Close()

	// search_path isolates identical table names across domains. SQLite
	// (used in tests) has no schema search path.
	if e.driver == "postgres" && schema != "" {
		if _, err := conn.ExecContext(ctx, "SET search_path TO "+pq.QuoteIdentifier(schema)); err != nil {
			return nil, nil, translateError(err)
		}
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, translateError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, translateError(err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, translateError(err)
	}
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = t.DatabaseTypeName()
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, translateError(err)
		}

		entry := make(map[string]any, len(columns))
		for i, col := range columns {
			entry[col] = serializeValue(values[i], typeNames[i])
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, translateError(err)
	}

	return columns, out, nil
}

// pool returns the shared *sql.DB for a connection string, opening it on
// first use. Statements never hold a connection beyond their own lifetime.
func (e *Executor) pool(connURI string) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.pools[connURI]; ok {
		return db, nil
	}

	db, err := sql.Open(e.driver, connURI)
	if err != nil {
		return nil, translateError(err)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	e.pools[connURI] = db
	return db, nil
}

func (e *Executor) recordAudit(ctx context.Context, req domain.QueryRequest, res *domain.QueryResult) {
	if e.audit == nil {
		return
	}

	var params string
	if len(req.Params) > 0 {
		if data, err := json.Marshal(req.Params); err == nil {
			params = string(data)
		}
	}

	rec := domain.AuditRecord{
		Timestamp:   time.Now().UTC(),
		Domain:      res.Domain,
		Schema:      res.Schema,
		SQL:         req.SQL,
		ExecutedSQL: res.ExecutedSQL,
		Params:      params,
		RowCount:    res.RowCount,
	}

	if err := e.audit.Write(ctx, rec); err != nil {
		slog.Warn("audit write failed", "domain", res.Domain, "error", err)
	}
}

func (e *Executor) publishEvent(ctx context.Context, res *domain.QueryResult, elapsed time.Duration) {
	if e.bus == nil {
		return
	}

	event := domain.QueryEvent{
		ID:         uuid.New().String(),
		Domain:     res.Domain,
		Schema:     res.Schema,
		SQL:        res.ExecutedSQL,
		RowCount:   res.RowCount,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, domain.TopicQueryExecuted, payload); err != nil {
		slog.Warn("query event publish failed", "domain", res.Domain, "error", err)
	}
}

// translateError maps driver errors onto ErrExecutionFailed, keeping the
// database-reported message and SQLSTATE code but hiding the driver type.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w: %s (SQLSTATE %s)", domain.ErrExecutionFailed, pqErr.Message, pqErr.Code)
	}
	return fmt.Errorf("%w: %v", domain.ErrExecutionFailed, err)
}
