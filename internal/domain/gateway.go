// Package domain defines the core types and interfaces for the query gateway.
package domain

import "time"

// DomainDescriptor maps a business domain name to a schema and connection.
// Descriptors are built once from configuration at startup and are immutable
// afterwards; every request shares the same read-only set.
type DomainDescriptor struct {
	// Name is the unique, case-insensitive domain identifier (e.g. "billing").
	Name string `json:"domain"`

	// Schema is the default schema for this domain. Required.
	Schema string `json:"schema"`

	// ConnectionURI is the domain-specific connection string. When empty,
	// the global default connection is used.
	ConnectionURI string `json:"connection_uri,omitempty"`

	// Description is a short human-readable note used in prompt text.
	Description string `json:"description,omitempty"`
}

// QueryRequest describes one read-only query invocation.
type QueryRequest struct {
	// SQL is the raw statement text. Must be non-empty.
	SQL string `json:"sql"`

	// Params holds named parameters referenced as :name in the statement.
	Params map[string]any `json:"params,omitempty"`

	// Limit overrides the configured default row limit when positive.
	Limit int `json:"limit,omitempty"`

	// Domain selects the target domain; empty means the default domain.
	Domain string `json:"domain,omitempty"`

	// Schema overrides the resolved domain's schema when set.
	Schema string `json:"schema,omitempty"`
}

// QueryResult is the serialized outcome of a successful execution.
type QueryResult struct {
	Domain       string           `json:"domain"`
	Schema       string           `json:"schema"`
	ExecutedSQL  string           `json:"executed_sql"`
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowCount     int              `json:"row_count"`
	LimitApplied bool             `json:"limit_applied"`
}

// KnowledgeDocument is one row retrieved from the knowledge table.
// The gateway consumes the table; it does not own or maintain it.
type KnowledgeDocument struct {
	Topic    string
	Content  string
	Metadata any
}

// AuditRecord is one append-only log entry for an executed statement.
type AuditRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Domain      string    `json:"domain"`
	Schema      string    `json:"schema"`
	SQL         string    `json:"sql"`
	ExecutedSQL string    `json:"executed_sql"`
	Params      string    `json:"params,omitempty"`
	RowCount    int       `json:"row_count"`
}

// QueryEvent is published on the event bus after each successful execution.
type QueryEvent struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	Schema     string    `json:"schema"`
	SQL        string    `json:"sql"`
	RowCount   int       `json:"rowCount"`
	DurationMs int64     `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
}

// TopicQueryExecuted is the bus topic for QueryEvent payloads.
const TopicQueryExecuted = "query.executed"
