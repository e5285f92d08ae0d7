package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/registry"
)

// Retriever loads reference documents for a topic from the configured
// knowledge table, preferring vector similarity when an embedder and an
// embedding column are both available.
//
// Retrieval is strictly best-effort: a missing table, a failed embedding
// call or a database error degrades to "no knowledge found" rather than
// failing the caller.
type Retriever struct {
	cfg      domain.KnowledgeConfig
	registry *registry.Registry
	embedder Embedder
	driver   string

	mu sync.Mutex
	db *sql.DB
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithEmbedder attaches an embedder for vector ordering. A nil embedder
// leaves only exact topic matching.
func WithEmbedder(e Embedder) Option {
	return func(r *Retriever) { r.embedder = e }
}

// WithDriver overrides the database driver. The default is "postgres";
// tests run against "sqlite".
func WithDriver(name string) Option {
	return func(r *Retriever) { r.driver = name }
}

// New creates a retriever. A config without a table name yields a disabled
// retriever whose lookups always report not found.
func New(cfg domain.KnowledgeConfig, reg *registry.Registry, opts ...Option) *Retriever {
	r := &Retriever{
		cfg:      cfg,
		registry: reg,
		driver:   "postgres",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether a knowledge table is configured.
func (r *Retriever) Enabled() bool {
	return r.cfg.Table != ""
}

// FetchTopicBlock returns the formatted knowledge block for a topic and
// whether any documents were found. The topic, when non-empty, restricts
// results to exact matches; with an embedder available, the hint (or the
// topic when no hint is given) orders results by vector distance. A
// non-positive limit falls back to the configured top-K.
func (r *Retriever) FetchTopicBlock(ctx context.Context, topic, hint string, limit int) (string, bool) {
	if !r.Enabled() {
		return "", false
	}

	docs, err := r.fetch(ctx, topic, hint, limit)
	if err != nil {
		slog.Warn("knowledge retrieval failed", "topic", topic, "error", err)
		return "", false
	}
	if len(docs) == 0 {
		return "", false
	}

	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		blocks = append(blocks, formatDocument(doc))
	}
	return strings.Join(blocks, "\n\n"), true
}

// Close releases the retriever's database handle.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Retriever) fetch(ctx context.Context, topic, hint string, limit int) ([]domain.KnowledgeDocument, error) {
	db, err := r.open()
	if err != nil {
		return nil, err
	}

	// The hint carries the caller's actual question; the topic stands in
	// for it when no hint is given.
	embedInput := hint
	if embedInput == "" {
		embedInput = topic
	}

	var vector []float32
	if r.embedder != nil && r.cfg.EmbeddingColumn != "" && embedInput != "" {
		vector, err = r.embedder.Embed(ctx, embedInput)
		if err != nil {
			// Fall back to exact matching; the topic filter still applies.
			slog.Warn("embedding failed, falling back to exact match", "topic", topic, "error", err)
			vector = nil
		}
	}

	query, args := r.buildQuery(topic, vector, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.KnowledgeDocument
	for rows.Next() {
		var (
			docTopic string
			content  string
			metadata sql.NullString
		)
		targets := []any{&docTopic, &content}
		if r.cfg.MetadataColumn != "" {
			targets = append(targets, &metadata)
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		doc := domain.KnowledgeDocument{Topic: docTopic, Content: content}
		if metadata.Valid {
			doc.Metadata = metadata.String
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// buildQuery assembles the selection with quoted identifiers from
// configuration. A non-empty topic adds an exact-match filter; a vector
// adds distance ordering on the embedding column, covering the whole
// table when no topic restricts it.
func (r *Retriever) buildQuery(topic string, vector []float32, limit int) (string, []any) {
	cols := []string{r.quote(r.cfg.TopicColumn), r.quote(r.cfg.ContentColumn)}
	if r.cfg.MetadataColumn != "" {
		cols = append(cols, r.quote(r.cfg.MetadataColumn))
	}

	topK := limit
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	if topK <= 0 {
		topK = 3
	}

	var b strings.Builder
	var args []any

	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), r.tableRef())

	if topic != "" {
		args = append(args, topic)
		fmt.Fprintf(&b, " WHERE %s = %s", r.quote(r.cfg.TopicColumn), r.placeholder(len(args)))
	}

	if vector != nil {
		args = append(args, vectorLiteral(vector))
		fmt.Fprintf(&b, " ORDER BY %s <-> %s::vector", r.quote(r.cfg.EmbeddingColumn), r.placeholder(len(args)))
	} else {
		fmt.Fprintf(&b, " ORDER BY %s ASC", r.quote(r.cfg.TopicColumn))
	}

	fmt.Fprintf(&b, " LIMIT %d", topK)
	return b.String(), args
}

func (r *Retriever) tableRef() string {
	table := r.quote(r.cfg.Table)
	if r.driver == "postgres" && r.cfg.Schema != "" {
		return r.quote(r.cfg.Schema) + "." + table
	}
	return table
}

func (r *Retriever) quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (r *Retriever) placeholder(n int) string {
	if r.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// open resolves the knowledge domain's connection lazily and keeps the
// handle for subsequent lookups.
func (r *Retriever) open() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	desc, err := r.registry.Resolve(r.cfg.Domain)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(r.driver, desc.ConnectionURI)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	r.db = db
	return db, nil
}

// vectorLiteral renders a pgvector input literal like [0.1,0.2,0.3].
func vectorLiteral(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// formatDocument renders one document as a metadata header line followed by
// the content. Documents without metadata are content only.
func formatDocument(doc domain.KnowledgeDocument) string {
	meta := formatMetadata(doc.Metadata)
	if meta == "" {
		return doc.Content
	}
	return fmt.Sprintf("[%s]\n%s", meta, doc.Content)
}

// formatMetadata flattens metadata into "k=v, k=v" with sorted keys. String
// metadata that parses as a JSON object is expanded the same way.
func formatMetadata(meta any) string {
	switch m := meta.(type) {
	case nil:
		return ""
	case map[string]any:
		if len(m) == 0 {
			return ""
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
		}
		return strings.Join(parts, ", ")
	case string:
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			return ""
		}
		if strings.HasPrefix(trimmed, "{") {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return formatMetadata(parsed)
			}
		}
		return trimmed
	default:
		return fmt.Sprint(m)
	}
}
