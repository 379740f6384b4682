// Command openpaper runs the document-reading backend: import, storage,
// selection translation and the optional MCP tool surface.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Zemacs/openpaper/config"
	"github.com/Zemacs/openpaper/docstore"
	"github.com/Zemacs/openpaper/ingest"
	"github.com/Zemacs/openpaper/llm"
	"github.com/Zemacs/openpaper/server"
	"github.com/Zemacs/openpaper/telemetry"
)

func main() {
	cfg := loadConfig()

	logger := telemetry.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	secretInput := cfg.JWTSecret
	if secretInput == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	// Derive a fixed 32-byte signing key regardless of input length.
	secretHash := sha256.Sum256([]byte(secretInput))
	jwtSecret := secretHash[:]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := docstore.Open(cfg.DBPath, docstore.WithMkdirAll())
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	tracker, err := telemetry.NewTracker(store.DB(), 256, logger)
	if err != nil {
		slog.Error("telemetry", "error", err)
		os.Exit(1)
	}
	defer tracker.Close()

	client := llm.NewClient(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
	})
	opts := append(server.StoreAdapters(store), llm.WithEventTracker(tracker))
	ops := llm.NewOperations(client, server.DocumentSource(store), logger, opts...)

	fetcher := ingest.NewFetcher(ingest.FetchConfig{})

	srv := server.New(server.Config{
		JWTSecret:        jwtSecret,
		DailyQuotaChars:  cfg.DailyQuotaChars,
		TranslateTimeout: cfg.TranslateTimeout,
		Logger:           logger,
	}, store, ops, fetcher, tracker)

	// Optional MCP over stdio, for editor and agent integrations.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "openpaper",
			Version: "1.0.0",
		}, nil)
		srv.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// loadConfig reads the optional YAML config file, then applies environment
// overrides on top.
func loadConfig() *config.Server {
	cfg := config.DefaultServer()
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := config.LoadServer(path)
		if err != nil {
			slog.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.DBPath = env("DB_PATH", cfg.DBPath)
	cfg.JWTSecret = env("JWT_SECRET", cfg.JWTSecret)
	cfg.LLM.Endpoint = env("LLM_ENDPOINT", cfg.LLM.Endpoint)
	cfg.LLM.APIKey = env("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = env("LLM_MODEL", cfg.LLM.Model)
	cfg.MCPTransport = env("MCP_TRANSPORT", cfg.MCPTransport)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	return cfg
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
