// Package introspect produces compact schema summaries for prompt text.
package introspect

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/singleflight"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

const catalogQuery = `
SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    c.is_nullable,
    t.table_type
FROM information_schema.columns AS c
JOIN information_schema.tables AS t
    ON c.table_name = t.table_name
    AND c.table_schema = t.table_schema
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`

// Column is one catalog row: a column with its table's kind.
type Column struct {
	Table    string
	Name     string
	DataType string
	Nullable bool
	Kind     string // "BASE TABLE" or "VIEW"
}

// Options bound the summary size.
type Options struct {
	MaxTables    int
	MaxColumns   int
	IncludeViews bool
}

// FetchFunc loads catalog metadata for a (connection, schema) pair.
type FetchFunc func(ctx context.Context, connURI, schema string) ([]Column, error)

// Introspector memoizes schema summaries in a bounded cache. Summaries are
// never invalidated; schema drift is an accepted staleness tradeoff since
// they feed prompt text, not transactional logic.
type Introspector struct {
	cache domain.Cache
	fetch FetchFunc
	group singleflight.Group
}

// Option configures an Introspector.
type Option func(*Introspector)

// WithFetch overrides the catalog loader (used by tests).
func WithFetch(fetch FetchFunc) Option {
	return func(i *Introspector) { i.fetch = fetch }
}

// New creates an introspector backed by the given cache.
func New(cache domain.Cache, opts ...Option) *Introspector {
	i := &Introspector{
		cache: cache,
		fetch: fetchCatalog,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Summarize returns the multi-line schema summary for a connection and
// schema, truncated per opts. Limits are validated before any database
// access; results are memoized per distinct (connection, schema, limits)
// tuple with at most one computation per missing key.
func (i *Introspector) Summarize(ctx context.Context, connURI, schema string, opts Options) (string, error) {
	if connURI == "" {
		return "", fmt.Errorf("%w: connection string must be provided", domain.ErrInvalidConfiguration)
	}
	if opts.MaxTables <= 0 || opts.MaxColumns <= 0 {
		return "", fmt.Errorf("%w: max tables and max columns must be positive", domain.ErrInvalidConfiguration)
	}

	key := cacheKey(connURI, schema, opts)
	if cached, err := i.cache.Get(ctx, key); err == nil && cached != nil {
		return string(cached), nil
	}

	value, err, _ := i.group.Do(key, func() (any, error) {
		columns, err := i.fetch(ctx, connURI, schema)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrExecutionFailed, err)
		}
		summary := buildSummary(schema, columns, opts)
		// Summaries live for the process lifetime.
		_ = i.cache.Set(ctx, key, []byte(summary), 0)
		return summary, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// buildSummary renders catalog rows as one line per table, truncating to
// the first MaxTables tables in catalog order and MaxColumns columns per
// table. A "?" suffix marks nullable columns.
func buildSummary(schema string, columns []Column, opts Options) string {
	type tableInfo struct {
		kind    string
		columns []Column
	}

	var order []string
	tables := make(map[string]*tableInfo)
	capped := false

	for _, col := range columns {
		if col.Kind == "VIEW" && !opts.IncludeViews {
			continue
		}
		if col.Kind != "BASE TABLE" && col.Kind != "VIEW" {
			continue
		}
		info, ok := tables[col.Table]
		if !ok {
			if len(order) >= opts.MaxTables {
				capped = true
				continue
			}
			info = &tableInfo{kind: col.Kind}
			tables[col.Table] = info
			order = append(order, col.Table)
		}
		info.columns = append(info.columns, col)
	}

	if len(order) == 0 {
		return ""
	}

	var lines []string
	for _, name := range order {
		info := tables[name]

		parts := make([]string, 0, opts.MaxColumns+1)
		shown := info.columns
		if len(shown) > opts.MaxColumns {
			shown = shown[:opts.MaxColumns]
		}
		for _, col := range shown {
			suffix := ""
			if col.Nullable {
				suffix = "?"
			}
			parts = append(parts, fmt.Sprintf("%s %s%s", col.Name, col.DataType, suffix))
		}
		if extra := len(info.columns) - opts.MaxColumns; extra > 0 {
			parts = append(parts, fmt.Sprintf("… (+%d more columns)", extra))
		}

		kind := "table"
		if info.kind == "VIEW" {
			kind = "view"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", name, kind, strings.Join(parts, ", ")))
	}

	if capped || len(order) >= opts.MaxTables {
		lines = append(lines, "- … (additional tables omitted)")
	}

	return fmt.Sprintf("Schema `%s` summary\n%s", schema, strings.Join(lines, "\n"))
}

// fetchCatalog queries information_schema over a short-lived connection.
func fetchCatalog(ctx context.Context, connURI, schema string) ([]Column, error) {
	db, err := sql.Open("postgres", connURI)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	db.SetConnMaxLifetime(time.Minute)

	rows, err := db.QueryContext(ctx, catalogQuery, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Table, &col.Name, &col.DataType, &nullable, &col.Kind); err != nil {
			return nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "yes")
		out = append(out, col)
	}
	return out, rows.Err()
}

func cacheKey(connURI, schema string, opts Options) string {
	sum := sha256.Sum256([]byte(connURI))
	return fmt.Sprintf("schema:%s:%s:%d:%d:%t",
		hex.EncodeToString(sum[:8]), schema, opts.MaxTables, opts.MaxColumns, opts.IncludeViews)
}
