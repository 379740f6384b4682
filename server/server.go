// Package server exposes the reader backend over HTTP: account management,
// document import, document retrieval and selection translation, plus an
// MCP tool surface mirroring the same operations.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Zemacs/openpaper/auth"
	"github.com/Zemacs/openpaper/docstore"
	"github.com/Zemacs/openpaper/ingest"
	"github.com/Zemacs/openpaper/llm"
	"github.com/Zemacs/openpaper/telemetry"
)

const (
	// maxSelectedChars caps selected text; longer selections are truncated
	// rather than rejected so a sloppy drag still translates.
	maxSelectedChars = 5000
	// maxContextChars caps each client-provided context window. Before
	// keeps its tail, after keeps its head.
	maxContextChars = 300
	// maxImportBytes bounds uploaded PDFs and import request bodies.
	maxImportBytes = 20 * 1024 * 1024
)

// Config configures the HTTP server.
type Config struct {
	// JWTSecret signs session tokens. Must be at least auth.MinSecretLen
	// bytes.
	JWTSecret []byte
	// TokenTTL is the session token lifetime. Default: 30 days.
	TokenTTL time.Duration
	// DailyQuotaChars is the per-user translated-character budget over a
	// rolling 24h window. 0 disables the quota. Default: 200000.
	DailyQuotaChars int
	// TranslateTimeout bounds one selection translation end to end.
	// Default: 12s.
	TranslateTimeout time.Duration
	Logger           *slog.Logger
}

func (c *Config) defaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = 30 * 24 * time.Hour
	}
	if c.DailyQuotaChars == 0 {
		c.DailyQuotaChars = 200_000
	}
	if c.TranslateTimeout <= 0 {
		c.TranslateTimeout = 12 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server wires the store, translation operations and fetcher behind the
// HTTP API.
type Server struct {
	cfg     Config
	store   *docstore.Store
	ops     *llm.Operations
	fetcher *ingest.Fetcher
	tracker *telemetry.Tracker
	logger  *slog.Logger
}

// New creates a Server. The fetcher and tracker may be nil; URL import and
// telemetry are then disabled.
func New(cfg Config, store *docstore.Store, ops *llm.Operations, fetcher *ingest.Fetcher, tracker *telemetry.Tracker) *Server {
	cfg.defaults()
	return &Server{
		cfg:     cfg,
		store:   store,
		ops:     ops,
		fetcher: fetcher,
		tracker: tracker,
		logger:  cfg.Logger,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(securityHeaders())
	r.Use(auth.Middleware(s.cfg.JWTSecret))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(auth.Require)
		r.Get("/api/auth/me", s.handleMe)
		r.Post("/api/documents/import", s.handleImport)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{documentID}", s.handleGetDocument)
		r.Post("/api/translation/selection", s.handleTranslateSelection)
	})

	return r
}
