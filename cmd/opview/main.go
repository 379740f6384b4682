// Command opview drives a document reading session in a real browser:
// it opens the page, captures text selections, and prints translations
// from the backend as they arrive.
//
// Usage:
//
//	opview -doc doc_abc123 -url http://localhost:8085/read/doc_abc123
//	opview -config opview.yaml -doc doc_abc123 -url https://example.com/paper
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zemacs/openpaper/config"
	"github.com/Zemacs/openpaper/docview"
	"github.com/Zemacs/openpaper/selection"
	"github.com/Zemacs/openpaper/shortcut"
	"github.com/Zemacs/openpaper/telemetry"
	"github.com/Zemacs/openpaper/translate"
)

func main() {
	configPath := flag.String("config", "", "path to opview.yaml config file")
	docID := flag.String("doc", "", "document ID on the backend")
	pageURL := flag.String("url", "", "page URL to open")
	container := flag.String("container", "", "CSS selector scoping selection capture")
	lang := flag.String("lang", "", "target language override")
	flag.Parse()

	if *docID == "" || *pageURL == "" {
		fmt.Fprintln(os.Stderr, "usage: opview -doc <id> -url <url> [-config <file>]")
		os.Exit(1)
	}

	cfg := config.DefaultViewer()
	if *configPath != "" {
		loaded, err := config.LoadViewer(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ServerURL = env("OPVIEW_SERVER", cfg.ServerURL)
	cfg.AuthToken = env("OPVIEW_TOKEN", cfg.AuthToken)
	if *lang != "" {
		cfg.TargetLanguage = *lang
	}

	logger := telemetry.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *docID, *pageURL, *container); err != nil {
		logger.Error("opview: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Viewer, docID, pageURL, container string) error {
	browser := docview.NewBrowser(docview.BrowserConfig{
		RemoteURL: cfg.BrowserRemote,
		Headful:   true,
		Logger:    logger,
	})
	b, err := browser.Start()
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer browser.Close()

	backend := &translate.HTTPBackend{
		BaseURL:   cfg.ServerURL,
		AuthToken: cfg.AuthToken,
	}

	session, err := docview.OpenSession(ctx, b, docview.SessionConfig{
		DocumentID:        docID,
		URL:               pageURL,
		ContainerSelector: container,
		TargetLanguage:    cfg.TargetLanguage,
		Backend:           backend,
		Selection: selection.Config{
			SettleTimeout: cfg.Tuning.SettleTimeout,
			DragThreshold: cfg.Tuning.DragThresholdPx,
			ContextWindow: cfg.Tuning.ContextChars,
			CharBudget:    cfg.Tuning.CharBudget,
		},
		Translate: translate.Config{
			Timeout: cfg.Tuning.RequestTimeout,
		},
		OnTranslation: printState,
		OnAction: func(a shortcut.Action) {
			logger.Info("shortcut action", "action", a.String())
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer session.Close()

	logger.Info("session open", "doc", docID, "url", pageURL)
	fmt.Fprintln(os.Stderr, "select text in the page to translate; ctrl+c to quit")

	<-ctx.Done()
	return nil
}

// printState renders coordinator transitions for the terminal. Loading and
// error states go to stderr; completed translations are printed as indented
// JSON on stdout so they can be piped.
func printState(st translate.State) {
	switch st.Status {
	case translate.StatusLoading:
		fmt.Fprintln(os.Stderr, "translating...")
	case translate.StatusError:
		fmt.Fprintln(os.Stderr, "translation failed:", st.Err)
	case translate.StatusDone:
		if st.Response == nil {
			return
		}
		fmt.Printf("%s %q -> %s\n", st.Response.Mode, st.Response.SourceText, st.Response.TargetLanguage)
		var pretty map[string]any
		if err := json.Unmarshal(st.Response.Result, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(st.Response.Result))
		}
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
