package introspect

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/cache"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

func testCatalog() []Column {
	return []Column{
		{Table: "accounts", Name: "id", DataType: "bigint", Nullable: false, Kind: "BASE TABLE"},
		{Table: "accounts", Name: "email", DataType: "text", Nullable: true, Kind: "BASE TABLE"},
		{Table: "accounts", Name: "created_at", DataType: "timestamp", Nullable: false, Kind: "BASE TABLE"},
		{Table: "events", Name: "id", DataType: "bigint", Nullable: false, Kind: "BASE TABLE"},
		{Table: "events", Name: "status", DataType: "text", Nullable: true, Kind: "BASE TABLE"},
		{Table: "recent_events", Name: "id", DataType: "bigint", Nullable: false, Kind: "VIEW"},
	}
}

func newTestIntrospector(columns []Column, calls *int32) *Introspector {
	fetch := func(ctx context.Context, connURI, schema string) ([]Column, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return columns, nil
	}
	return New(cache.NewLRUCache(8), WithFetch(fetch))
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	opts := Options{MaxTables: 20, MaxColumns: 15}

	t.Run("Format", func(t *testing.T) {
		intro := newTestIntrospector(testCatalog(), nil)
		got, err := intro.Summarize(ctx, "postgres://db/app", "public", opts)
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}

		lines := strings.Split(got, "\n")
		if lines[0] != "Schema `public` summary" {
			t.Errorf("unexpected header: %q", lines[0])
		}
		if lines[1] != "- accounts (table): id bigint, email text?, created_at timestamp" {
			t.Errorf("unexpected accounts line: %q", lines[1])
		}
		if lines[2] != "- events (table): id bigint, status text?" {
			t.Errorf("unexpected events line: %q", lines[2])
		}
		if strings.Contains(got, "recent_events") {
			t.Errorf("views should be excluded by default: %q", got)
		}
	})

	t.Run("IncludesViewsWhenAsked", func(t *testing.T) {
		intro := newTestIntrospector(testCatalog(), nil)
		got, err := intro.Summarize(ctx, "postgres://db/app", "public",
			Options{MaxTables: 20, MaxColumns: 15, IncludeViews: true})
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if !strings.Contains(got, "- recent_events (view): id bigint") {
			t.Errorf("expected view line, got %q", got)
		}
	})

	t.Run("TableCap", func(t *testing.T) {
		intro := newTestIntrospector(testCatalog(), nil)
		got, err := intro.Summarize(ctx, "postgres://db/app", "public",
			Options{MaxTables: 1, MaxColumns: 15})
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}

		tableLines := 0
		for _, line := range strings.Split(got, "\n") {
			if strings.Contains(line, "(table)") {
				tableLines++
			}
		}
		if tableLines != 1 {
			t.Errorf("expected exactly 1 table line, got %d:\n%s", tableLines, got)
		}
		if !strings.Contains(got, "additional tables omitted") {
			t.Errorf("expected truncation marker, got %q", got)
		}
	})

	t.Run("ColumnCap", func(t *testing.T) {
		intro := newTestIntrospector(testCatalog(), nil)
		got, err := intro.Summarize(ctx, "postgres://db/app", "public",
			Options{MaxTables: 20, MaxColumns: 2})
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if !strings.Contains(got, "- accounts (table): id bigint, email text?, … (+1 more columns)") {
			t.Errorf("expected column truncation marker, got %q", got)
		}
	})

	t.Run("EmptySchema", func(t *testing.T) {
		intro := newTestIntrospector(nil, nil)
		got, err := intro.Summarize(ctx, "postgres://db/app", "public", opts)
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty summary, got %q", got)
		}
	})

	t.Run("ValidatesBeforeFetch", func(t *testing.T) {
		var calls int32
		intro := newTestIntrospector(testCatalog(), &calls)

		_, err := intro.Summarize(ctx, "", "public", opts)
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration for empty connection, got %v", err)
		}
		_, err = intro.Summarize(ctx, "postgres://db/app", "public", Options{MaxTables: 0, MaxColumns: 15})
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration for zero max tables, got %v", err)
		}
		if atomic.LoadInt32(&calls) != 0 {
			t.Errorf("fetch ran despite invalid input: %d calls", calls)
		}
	})

	t.Run("Memoizes", func(t *testing.T) {
		var calls int32
		intro := newTestIntrospector(testCatalog(), &calls)

		for i := 0; i < 3; i++ {
			if _, err := intro.Summarize(ctx, "postgres://db/app", "public", opts); err != nil {
				t.Fatalf("Summarize failed: %v", err)
			}
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("expected 1 fetch across repeat calls, got %d", got)
		}

		// Distinct limits form a distinct cache entry.
		if _, err := intro.Summarize(ctx, "postgres://db/app", "public",
			Options{MaxTables: 5, MaxColumns: 5}); err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if got := atomic.LoadInt32(&calls); got != 2 {
			t.Errorf("expected refetch for different options, got %d calls", got)
		}
	})

	t.Run("FetchErrorSurfacesAsExecutionFailure", func(t *testing.T) {
		intro := New(cache.NewLRUCache(8), WithFetch(
			func(ctx context.Context, connURI, schema string) ([]Column, error) {
				return nil, errors.New("connection refused")
			}))
		_, err := intro.Summarize(ctx, "postgres://db/app", "public", opts)
		if !errors.Is(err, domain.ErrExecutionFailed) {
			t.Fatalf("expected ErrExecutionFailed, got %v", err)
		}
	})
}
