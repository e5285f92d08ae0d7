package domain

import "time"

// Config holds the complete gateway configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Gateway holds the query-routing defaults.
	Gateway GatewayConfig `json:"gateway"`

	// Domains is the named-domain list parsed from GATEWAY_DOMAIN_CONFIG.
	Domains []DomainDescriptor `json:"domains,omitempty"`

	// Component configurations
	Introspection IntrospectionConfig `json:"introspection"`
	Knowledge     KnowledgeConfig     `json:"knowledge"`
	Embedding     EmbeddingConfig     `json:"embedding"`
	Cache         CacheConfig         `json:"cache"`
	EventBus      EventBusConfig      `json:"eventBus"`
	Audit         AuditConfig         `json:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// GatewayConfig holds the domain-routing defaults.
type GatewayConfig struct {
	// DefaultConnectionURI is the global fallback connection string.
	DefaultConnectionURI string `json:"defaultConnectionUri"`

	// DefaultSchema is the schema used by the synthetic default domain.
	DefaultSchema string `json:"defaultSchema"`

	// DefaultLimit caps result rows when a request carries no limit.
	DefaultLimit int `json:"defaultLimit"`
}

// IntrospectionConfig holds schema-summary settings.
type IntrospectionConfig struct {
	Autoload     bool `json:"autoload"`
	MaxTables    int  `json:"maxTables"`
	MaxColumns   int  `json:"maxColumns"`
	IncludeViews bool `json:"includeViews"`
}

// KnowledgeConfig describes the externally maintained knowledge table.
// An empty Table disables knowledge retrieval entirely.
type KnowledgeConfig struct {
	Domain          string `json:"domain,omitempty"`
	Schema          string `json:"schema,omitempty"`
	Table           string `json:"table,omitempty"`
	TopicColumn     string `json:"topicColumn"`
	ContentColumn   string `json:"contentColumn"`
	EmbeddingColumn string `json:"embeddingColumn"`
	MetadataColumn  string `json:"metadataColumn,omitempty"`
	TopK            int    `json:"topK"`
}

// EmbeddingConfig holds the embedding-service client settings.
type EmbeddingConfig struct {
	APIKey  string        `json:"-"`
	BaseURL string        `json:"baseUrl"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// CacheConfig holds schema-summary cache settings.
type CacheConfig struct {
	// Type is "memory" or "redis". Redis enables the two-phase cache
	// (local LRU in front of a shared Redis tier).
	Type string `json:"type"`

	// MaxEntries bounds the local LRU. Schema summaries are few and
	// long-lived, so the default is small.
	MaxEntries int `json:"maxEntries"`

	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redisDb,omitempty"`
}

// EventBusConfig holds query-event bus settings.
type EventBusConfig struct {
	// Type is "channel" or "nats".
	Type string `json:"type"`

	ChannelBufferSize int `json:"channelBufferSize,omitempty"`

	NATSUrl           string `json:"natsUrl,omitempty"`
	NATSToken         string `json:"-"`
	NATSMaxReconnects int    `json:"natsMaxReconnects,omitempty"`
	NATSReconnectWait int    `json:"natsReconnectWait,omitempty"` // seconds
}

// AuditConfig holds audit-log settings.
type AuditConfig struct {
	// Driver is "file", "sqlite" or "none".
	Driver string `json:"driver"`

	// FilePath is the NDJSON log location for the file driver.
	FilePath string `json:"filePath,omitempty"`

	// SQLitePath is the database location for the sqlite driver.
	SQLitePath string `json:"sqlitePath,omitempty"`
}

// DefaultConfig returns the baseline configuration: in-process cache and
// bus, NDJSON audit log, conservative introspection limits.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Gateway: GatewayConfig{
			DefaultSchema: "public",
			DefaultLimit:  100,
		},
		Introspection: IntrospectionConfig{
			MaxTables:  20,
			MaxColumns: 15,
		},
		Knowledge: KnowledgeConfig{
			TopicColumn:     "topic",
			ContentColumn:   "content",
			EmbeddingColumn: "embedding",
			TopK:            3,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Type:       "memory",
			MaxEntries: 8,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Audit: AuditConfig{
			Driver:   "file",
			FilePath: "logs/queries.log",
		},
	}
}
