package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/api"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/audit"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/bus"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/cache"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/config"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/executor"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/introspect"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/knowledge"
	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/registry"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("GATEWAY_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting query gateway",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"domains", len(cfg.Domains),
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"audit", cfg.Audit.Driver,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg, err := registry.New(cfg.Gateway, cfg.Domains)
	if err != nil {
		slog.Error("failed to build domain registry", "error", err)
		os.Exit(1)
	}
	slog.Info("domain registry initialized", "domains", reg.Len())

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Local consumer for query events: surfaces executed statements in the
	// debug log even when no external subscriber is attached.
	if _, err := busImpl.Subscribe(ctx, domain.TopicQueryExecuted, logQueryEvent); err != nil {
		slog.Warn("query event subscription failed", "error", err)
	}

	auditSink, err := audit.New(cfg.Audit)
	if err != nil {
		slog.Error("failed to initialize audit sink", "error", err)
		os.Exit(1)
	}
	defer auditSink.Close()
	slog.Info("audit sink initialized", "driver", cfg.Audit.Driver)

	exec := executor.New(reg, cfg.Gateway.DefaultLimit,
		executor.WithAudit(auditSink),
		executor.WithEventBus(busImpl),
	)
	defer exec.Close()

	intro := introspect.New(cacheImpl)
	intrOpts := introspect.Options{
		MaxTables:    cfg.Introspection.MaxTables,
		MaxColumns:   cfg.Introspection.MaxColumns,
		IncludeViews: cfg.Introspection.IncludeViews,
	}

	if cfg.Introspection.Autoload {
		warmSchemaCache(ctx, reg, intro, intrOpts)
	}

	var knowledgeSource api.KnowledgeSource
	if cfg.Knowledge.Table != "" {
		var opts []knowledge.Option
		if embedder := knowledge.NewOpenAIEmbedder(cfg.Embedding); embedder != nil {
			opts = append(opts, knowledge.WithEmbedder(embedder))
			slog.Info("embedding client initialized", "model", cfg.Embedding.Model)
		}
		retriever := knowledge.New(cfg.Knowledge, reg, opts...)
		defer retriever.Close()
		knowledgeSource = retriever
		slog.Info("knowledge retriever initialized", "table", cfg.Knowledge.Table)
	}

	handler := api.NewHandler(exec, reg, intro, knowledgeSource, intrOpts, Version)
	srv := api.NewServer(cfg.Server, handler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("query gateway is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("query gateway shutdown complete")
}

// logQueryEvent is the built-in query-event consumer.
func logQueryEvent(ctx context.Context, msg *domain.Message) error {
	var event domain.QueryEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Warn("malformed query event", "message_id", msg.ID, "error", err)
		return nil
	}

	slog.Debug("query executed",
		"domain", event.Domain,
		"schema", event.Schema,
		"row_count", event.RowCount,
		"duration_ms", event.DurationMs,
	)
	return nil
}

// warmSchemaCache summarizes every configured domain up front so the first
// query does not pay the introspection cost. Failures are logged and
// skipped; a cold cache entry is not fatal.
func warmSchemaCache(ctx context.Context, reg *registry.Registry, intro *introspect.Introspector, opts introspect.Options) {
	names := reg.Names()
	if len(names) == 0 {
		// Only the default connection is configured.
		names = []string{""}
	}

	for _, name := range names {
		desc, err := reg.Resolve(name)
		if err != nil {
			continue
		}
		if _, err := intro.Summarize(ctx, desc.ConnectionURI, desc.Schema, opts); err != nil {
			slog.Warn("schema warm-up failed", "domain", desc.Name, "error", err)
			continue
		}
		slog.Info("schema summary cached", "domain", desc.Name, "schema", desc.Schema)
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Query Gateway - domain-routed read-only SQL")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /query      - Execute a read-only statement")
	fmt.Println("    GET  /domains    - Describe configured domains")
	fmt.Println("    GET  /schema     - Schema summary for a domain")
	fmt.Println("    GET  /knowledge  - Look up reference documents")
	fmt.Println("    GET  /health     - Health check")
	fmt.Println("    GET  /ready      - Readiness check")
	fmt.Println()
}
