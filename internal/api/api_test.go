package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/introspect"
)

type fakeExecutor struct {
	result  *domain.QueryResult
	err     error
	pingErr error
}

func (f *fakeExecutor) Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeExecutor) Ping(ctx context.Context) error { return f.pingErr }

type fakeCatalog struct {
	desc domain.DomainDescriptor
	err  error
}

func (f *fakeCatalog) Resolve(name string) (domain.DomainDescriptor, error) {
	if f.err != nil {
		return domain.DomainDescriptor{}, f.err
	}
	return f.desc, nil
}

func (f *fakeCatalog) Describe() string { return "Available query domains\n- orders: schema `public`" }
func (f *fakeCatalog) Len() int         { return 1 }

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, connURI, schema string, opts introspect.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeKnowledge struct {
	enabled bool
	content string
	found   bool
}

func (f *fakeKnowledge) FetchTopicBlock(ctx context.Context, topic, hint string, limit int) (string, bool) {
	return f.content, f.found
}

func (f *fakeKnowledge) Enabled() bool { return f.enabled }

func newTestServer(exec QueryExecutor, catalog DomainCatalog, schemas SchemaSummarizer, knowledge KnowledgeSource) *Server {
	handler := NewHandler(exec, catalog, schemas, knowledge,
		introspect.Options{MaxTables: 20, MaxColumns: 15}, "test")
	return NewServer(domain.ServerConfig{}, handler)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestQueryEndpoint(t *testing.T) {
	catalog := &fakeCatalog{desc: domain.DomainDescriptor{Name: "orders", Schema: "public"}}

	t.Run("Success", func(t *testing.T) {
		exec := &fakeExecutor{result: &domain.QueryResult{
			Domain:       "orders",
			Schema:       "public",
			ExecutedSQL:  "select 1 LIMIT 100",
			Columns:      []string{"n"},
			Rows:         []map[string]any{{"n": float64(1)}},
			RowCount:     1,
			LimitApplied: true,
		}}
		srv := newTestServer(exec, catalog, &fakeSummarizer{}, nil)

		rec := doRequest(t, srv, http.MethodPost, "/query", `{"sql":"select 1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		body := decodeBody(t, rec)
		if body["row_count"] != float64(1) || body["limit_applied"] != true {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodPost, "/query", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("ErrorMapping", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{fmt.Errorf("%w: delete is not allowed", domain.ErrUnsafeStatement), http.StatusBadRequest},
			{fmt.Errorf("%w: billing", domain.ErrUnknownDomain), http.StatusNotFound},
			{domain.ErrNoDefaultDomain, http.StatusBadRequest},
			{fmt.Errorf("%w: syntax error (SQLSTATE 42601)", domain.ErrExecutionFailed), http.StatusUnprocessableEntity},
			{fmt.Errorf("%w: bad limits", domain.ErrInvalidConfiguration), http.StatusBadRequest},
			{errors.New("boom"), http.StatusInternalServerError},
		}

		for _, tc := range cases {
			srv := newTestServer(&fakeExecutor{err: tc.err}, catalog, &fakeSummarizer{}, nil)
			rec := doRequest(t, srv, http.MethodPost, "/query", `{"sql":"select 1"}`)
			if rec.Code != tc.want {
				t.Errorf("error %v: expected %d, got %d", tc.err, tc.want, rec.Code)
			}
			if body := decodeBody(t, rec); body["error"] == "" {
				t.Errorf("error %v: expected error message in body", tc.err)
			}
		}
	})
}

func TestDomainsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeExecutor{},
		&fakeCatalog{desc: domain.DomainDescriptor{Name: "orders"}}, &fakeSummarizer{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/domains", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("unexpected count: %v", body["count"])
	}
	if !strings.Contains(body["description"].(string), "orders") {
		t.Errorf("unexpected description: %v", body["description"])
	}
}

func TestSchemaEndpoint(t *testing.T) {
	catalog := &fakeCatalog{desc: domain.DomainDescriptor{
		Name:          "orders",
		Schema:        "public",
		ConnectionURI: "postgres://db/app",
	}}

	t.Run("Success", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog,
			&fakeSummarizer{summary: "Schema `public` summary\n- events (table): id bigint"}, nil)

		rec := doRequest(t, srv, http.MethodGet, "/schema?domain=orders", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["domain"] != "orders" || body["schema"] != "public" {
			t.Errorf("unexpected body: %v", body)
		}
		if !strings.Contains(body["summary"].(string), "events") {
			t.Errorf("unexpected summary: %v", body["summary"])
		}
	})

	t.Run("SchemaOverride", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{summary: "x"}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/schema?domain=orders&schema=audit", "")
		if body := decodeBody(t, rec); body["schema"] != "audit" {
			t.Errorf("expected schema override, got %v", body["schema"])
		}
	})

	t.Run("UnknownDomain", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{},
			&fakeCatalog{err: fmt.Errorf("%w: billing", domain.ErrUnknownDomain)},
			&fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/schema?domain=billing", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestKnowledgeEndpoint(t *testing.T) {
	catalog := &fakeCatalog{desc: domain.DomainDescriptor{Name: "orders"}}

	t.Run("Found", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{},
			&fakeKnowledge{enabled: true, content: "[severity=high]\nPrefer the newest record.", found: true})

		rec := doRequest(t, srv, http.MethodGet, "/knowledge?topic=dedup", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["found"] != true || body["topic"] != "dedup" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("NotFoundTopicStillOK", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{},
			&fakeKnowledge{enabled: true})
		rec := doRequest(t, srv, http.MethodGet, "/knowledge?topic=absent", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["found"] != false {
			t.Errorf("expected found=false, got %v", body)
		}
	})

	t.Run("HintOnly", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{},
			&fakeKnowledge{enabled: true, content: "Dates are ISO-8601.", found: true})
		rec := doRequest(t, srv, http.MethodGet, "/knowledge?hint=how+are+dates+stored", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for hint-only lookup, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["found"] != true {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("MissingTopicAndHint", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{},
			&fakeKnowledge{enabled: true})
		rec := doRequest(t, srv, http.MethodGet, "/knowledge", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("NotConfigured", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/knowledge?topic=dedup", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	catalog := &fakeCatalog{desc: domain.DomainDescriptor{Name: "orders"}}

	t.Run("Health", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["status"] != "healthy" || body["version"] != "test" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("Ready", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/ready", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("NotReady", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{pingErr: errors.New("connection refused")}, catalog, &fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/ready", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("RequestIDHeader", func(t *testing.T) {
		srv := newTestServer(&fakeExecutor{}, catalog, &fakeSummarizer{}, nil)
		rec := doRequest(t, srv, http.MethodGet, "/health", "")
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected generated request ID header")
		}
	})
}
