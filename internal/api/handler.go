package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/introspect"
)

// QueryExecutor runs validated read-only statements.
type QueryExecutor interface {
	Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
	Ping(ctx context.Context) error
}

// DomainCatalog resolves and describes the configured domains.
type DomainCatalog interface {
	Resolve(name string) (domain.DomainDescriptor, error)
	Describe() string
	Len() int
}

// SchemaSummarizer renders schema summaries for a connection.
type SchemaSummarizer interface {
	Summarize(ctx context.Context, connURI, schema string, opts introspect.Options) (string, error)
}

// KnowledgeSource looks up reference documents by topic or hint.
type KnowledgeSource interface {
	FetchTopicBlock(ctx context.Context, topic, hint string, limit int) (string, bool)
	Enabled() bool
}

// Handler contains the HTTP request handlers.
type Handler struct {
	executor  QueryExecutor
	catalog   DomainCatalog
	schemas   SchemaSummarizer
	knowledge KnowledgeSource
	intrOpts  introspect.Options
	version   string
}

// NewHandler creates a handler with all dependencies.
func NewHandler(exec QueryExecutor, catalog DomainCatalog, schemas SchemaSummarizer, knowledge KnowledgeSource, intrOpts introspect.Options, version string) *Handler {
	return &Handler{
		executor:  exec,
		catalog:   catalog,
		schemas:   schemas,
		knowledge: knowledge,
		intrOpts:  intrOpts,
		version:   version,
	}
}

// Query handles POST /query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.executor.Execute(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Domains handles GET /domains.
func (h *Handler) Domains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       h.catalog.Len(),
		"description": h.catalog.Describe(),
	})
}

// Schema handles GET /schema.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	desc, err := h.catalog.Resolve(r.URL.Query().Get("domain"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	schema := desc.Schema
	if s := r.URL.Query().Get("schema"); s != "" {
		schema = s
	}

	opts := h.intrOpts
	if v := r.URL.Query().Get("max_tables"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxTables = n
		}
	}

	summary, err := h.schemas.Summarize(r.Context(), desc.ConnectionURI, schema, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":  desc.Name,
		"schema":  schema,
		"summary": summary,
	})
}

// Knowledge handles GET /knowledge.
func (h *Handler) Knowledge(w http.ResponseWriter, r *http.Request) {
	if h.knowledge == nil || !h.knowledge.Enabled() {
		writeError(w, http.StatusNotFound, "knowledge retrieval is not configured")
		return
	}

	topic := r.URL.Query().Get("topic")
	hint := r.URL.Query().Get("hint")
	if topic == "" && hint == "" {
		writeError(w, http.StatusBadRequest, "topic or hint query parameter is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	content, found := h.knowledge.FetchTopicBlock(r.Context(), topic, hint, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":   topic,
		"content": content,
		"found":   found,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": h.version,
	})
}

// Ready handles GET /ready. Readiness requires a reachable default domain.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.executor.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// writeDomainError maps sentinel errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsafeStatement):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownDomain):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoDefaultDomain):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrExecutionFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
