// Package config loads gateway configuration from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

// FromEnv builds the configuration from environment variables on top of
// domain.DefaultConfig. Malformed values fail fast so operator mistakes
// surface at startup, not at query time.
func FromEnv() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	env := &envReader{}

	cfg.Server.Host = getString("GATEWAY_HOST", cfg.Server.Host)
	cfg.Server.Port = env.Int("GATEWAY_PORT", cfg.Server.Port)

	cfg.Gateway.DefaultConnectionURI = getString("GATEWAY_DB_URL", "")
	cfg.Gateway.DefaultSchema = getString("GATEWAY_SCHEMA_NAME", cfg.Gateway.DefaultSchema)
	cfg.Gateway.DefaultLimit = env.Int("GATEWAY_DEFAULT_LIMIT", cfg.Gateway.DefaultLimit)

	if raw := os.Getenv("GATEWAY_DOMAIN_CONFIG"); raw != "" {
		domains, err := ParseDomainConfig(raw)
		if err != nil {
			return nil, err
		}
		cfg.Domains = domains
	}

	cfg.Introspection.Autoload = env.Bool("GATEWAY_SCHEMA_AUTOLOAD", false)
	cfg.Introspection.MaxTables = env.Int("GATEWAY_SCHEMA_MAX_TABLES", cfg.Introspection.MaxTables)
	cfg.Introspection.MaxColumns = env.Int("GATEWAY_SCHEMA_MAX_COLUMNS", cfg.Introspection.MaxColumns)
	cfg.Introspection.IncludeViews = env.Bool("GATEWAY_SCHEMA_INCLUDE_VIEWS", false)

	cfg.Knowledge.Domain = getString("GATEWAY_KNOWLEDGE_DOMAIN", "")
	cfg.Knowledge.Schema = getString("GATEWAY_KNOWLEDGE_SCHEMA", "")
	cfg.Knowledge.Table = getString("GATEWAY_KNOWLEDGE_TABLE", "")
	cfg.Knowledge.TopicColumn = getString("GATEWAY_KNOWLEDGE_TOPIC_COLUMN", cfg.Knowledge.TopicColumn)
	cfg.Knowledge.ContentColumn = getString("GATEWAY_KNOWLEDGE_CONTENT_COLUMN", cfg.Knowledge.ContentColumn)
	cfg.Knowledge.EmbeddingColumn = getString("GATEWAY_KNOWLEDGE_EMBEDDING_COLUMN", cfg.Knowledge.EmbeddingColumn)
	cfg.Knowledge.MetadataColumn = getString("GATEWAY_KNOWLEDGE_METADATA_COLUMN", "")
	cfg.Knowledge.TopK = env.Int("GATEWAY_KNOWLEDGE_TOP_K", cfg.Knowledge.TopK)

	cfg.Embedding.APIKey = getString("OPENAI_API_KEY", "")
	cfg.Embedding.BaseURL = getString("OPENAI_API_BASE", cfg.Embedding.BaseURL)
	cfg.Embedding.Model = getString("OPENAI_EMBEDDING_MODEL", cfg.Embedding.Model)
	if secs := env.Int("OPENAI_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.Embedding.Timeout = time.Duration(secs) * time.Second
	}

	cfg.Cache.Type = getString("GATEWAY_CACHE_TYPE", cfg.Cache.Type)
	cfg.Cache.MaxEntries = env.Int("GATEWAY_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.RedisAddr = getString("GATEWAY_REDIS_ADDR", "")
	cfg.Cache.RedisPassword = getString("GATEWAY_REDIS_PASSWORD", "")
	cfg.Cache.RedisDB = env.Int("GATEWAY_REDIS_DB", 0)

	cfg.EventBus.Type = getString("GATEWAY_BUS_TYPE", cfg.EventBus.Type)
	cfg.EventBus.ChannelBufferSize = env.Int("GATEWAY_BUS_BUFFER_SIZE", cfg.EventBus.ChannelBufferSize)
	cfg.EventBus.NATSUrl = getString("GATEWAY_NATS_URL", "")
	cfg.EventBus.NATSToken = getString("GATEWAY_NATS_TOKEN", "")
	cfg.EventBus.NATSMaxReconnects = env.Int("GATEWAY_NATS_MAX_RECONNECTS", 0)
	cfg.EventBus.NATSReconnectWait = env.Int("GATEWAY_NATS_RECONNECT_WAIT", 0)

	cfg.Audit.Driver = getString("GATEWAY_AUDIT_DRIVER", cfg.Audit.Driver)
	cfg.Audit.FilePath = getString("GATEWAY_AUDIT_LOG_FILE", cfg.Audit.FilePath)
	cfg.Audit.SQLitePath = getString("GATEWAY_AUDIT_SQLITE_PATH", "")

	if env.err != nil {
		return nil, env.err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseDomainConfig decodes the JSON domain list:
// [{"domain": "billing", "schema": "billing", "connection_uri": "...", "description": "..."}].
func ParseDomainConfig(raw string) ([]domain.DomainDescriptor, error) {
	var domains []domain.DomainDescriptor
	if err := json.Unmarshal([]byte(raw), &domains); err != nil {
		return nil, fmt.Errorf("%w: GATEWAY_DOMAIN_CONFIG must be a JSON array of domain objects: %v",
			domain.ErrInvalidConfiguration, err)
	}
	return domains, nil
}

// Validate checks the limits and the presence of a usable connection source.
func Validate(cfg *domain.Config) error {
	if cfg.Gateway.DefaultLimit <= 0 {
		return fmt.Errorf("%w: GATEWAY_DEFAULT_LIMIT must be positive", domain.ErrInvalidConfiguration)
	}
	if cfg.Introspection.MaxTables <= 0 {
		return fmt.Errorf("%w: GATEWAY_SCHEMA_MAX_TABLES must be positive", domain.ErrInvalidConfiguration)
	}
	if cfg.Introspection.MaxColumns <= 0 {
		return fmt.Errorf("%w: GATEWAY_SCHEMA_MAX_COLUMNS must be positive", domain.ErrInvalidConfiguration)
	}
	if cfg.Knowledge.TopK <= 0 {
		return fmt.Errorf("%w: GATEWAY_KNOWLEDGE_TOP_K must be positive", domain.ErrInvalidConfiguration)
	}
	if cfg.Gateway.DefaultConnectionURI == "" && len(cfg.Domains) == 0 {
		return fmt.Errorf("%w: either GATEWAY_DB_URL or GATEWAY_DOMAIN_CONFIG must be set",
			domain.ErrInvalidConfiguration)
	}
	return nil
}

// envReader parses typed environment variables and records the first
// malformed value so FromEnv can reject the whole configuration.
type envReader struct {
	err error
}

func (r *envReader) Int(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(name, raw, "an integer")
		return fallback
	}
	return n
}

func (r *envReader) Bool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		r.fail(name, raw, "a boolean")
		return fallback
	}
}

func (r *envReader) fail(name, raw, kind string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s must be %s, got %q", domain.ErrInvalidConfiguration, name, kind, raw)
	}
}

func getString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
