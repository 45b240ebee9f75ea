// Command docveille monitors documentation sites for changes.
//
// Usage:
//
//	docveille -config docveille.yaml -once            # one pass, then exit
//	docveille -config docveille.yaml                  # daemon, periodic passes
//	docveille -config docveille.yaml -target deribit  # one target only
//	docveille -config docveille.yaml -mcp             # serve MCP tools on stdio
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docveille/config"
	"github.com/hazyhaar/docveille/fetch"
	"github.com/hazyhaar/docveille/monitor"
	"github.com/hazyhaar/docveille/notify"
	"github.com/hazyhaar/docveille/snapshot"
	"github.com/hazyhaar/docveille/sources"
	"github.com/hazyhaar/docveille/status"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "docveille.yaml", "path to YAML config file")
	once := flag.Bool("once", false, "run one pass and exit")
	target := flag.String("target", "", "run only this target")
	saveContent := flag.Bool("save-content", false, "retain section content in snapshots")
	noNotify := flag.Bool("no-notify", false, "disable Telegram and webhook notifications")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio instead of running checks")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docveille: %v\n", err)
		os.Exit(1)
	}
	if *saveContent {
		cfg.SaveContent = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, logger, *noNotify)
	if err != nil {
		logger.Error("docveille: setup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case *mcpMode:
		err = app.serveMCP(ctx)
	case *once:
		err = app.runPass(ctx, *target)
	default:
		err = app.daemon(ctx, *target)
	}
	if err != nil {
		logger.Error("docveille: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// app binds the configured targets to their engines and notifiers.
type app struct {
	config   *config.Config
	logger   *slog.Logger
	tracker  *status.Tracker
	engines  map[string]*monitor.Engine
	notify   map[string]notify.Notifier
	order    []string
	db       *sql.DB
	renderer *fetch.Renderer
}

func newApp(cfg *config.Config, logger *slog.Logger, noNotify bool) (*app, error) {
	a := &app{
		config:  cfg,
		logger:  logger,
		tracker: status.NewTracker(),
		engines: map[string]*monitor.Engine{},
		notify:  map[string]notify.Notifier{},
	}

	client := fetch.NewClient(fetch.Config{
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	})

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	if cfg.StateBackend == "sqlite" {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := snapshot.Schema(context.Background(), db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
		a.db = db
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]

		getter := fetch.Getter(client)
		if t.Render {
			if a.renderer == nil {
				a.renderer = fetch.NewRenderer(fetch.RenderConfig{
					RemoteURL: cfg.BrowserRemote,
					Logger:    logger,
				})
			}
			getter = a.renderer
		}

		src, err := buildSource(t, getter, cfg, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}

		var store snapshot.Store
		if a.db != nil {
			store = snapshot.NewSQLiteStore(a.db, t.Name)
		} else {
			store = snapshot.NewFileStore(cfg.SnapshotPath(t.Name), logger)
		}

		a.engines[t.Name] = monitor.New(src, store, monitor.Config{
			Delay:       cfg.PolitenessDelay,
			SaveContent: cfg.SaveContent,
		}, logger)
		a.notify[t.Name] = buildNotifiers(t, cfg, logger, noNotify)
		a.order = append(a.order, t.Name)
	}

	return a, nil
}

func buildSource(t *config.TargetConfig, getter fetch.Getter, cfg *config.Config, logger *slog.Logger) (monitor.Source, error) {
	patterns, err := t.CompilePatterns()
	if err != nil {
		return nil, err
	}

	switch t.Kind {
	case "static":
		pages := make([]sources.Page, 0, len(t.Pages))
		for _, p := range t.Pages {
			pages = append(pages, sources.Page{URL: p.URL, Title: p.Title})
		}
		return sources.NewStatic(sources.StaticConfig{
			Name: t.Name, Pages: pages, Getter: getter, StripPatterns: patterns,
		}), nil
	case "anchors":
		return sources.NewAnchors(sources.AnchorsConfig{
			Name: t.Name, Docs: t.Docs, Getter: getter, StripPatterns: patterns,
		}), nil
	case "crawl":
		return sources.NewCrawl(sources.CrawlConfig{
			Name: t.Name, Seed: t.Seed, PathPrefixes: t.PathPrefixes,
			MaxPages: t.MaxPages, Delay: cfg.PolitenessDelay,
			Getter: getter, StripPatterns: patterns, Logger: logger,
		}), nil
	case "feed":
		return sources.NewFeed(sources.FeedConfig{
			Name: t.Name, FeedURL: t.FeedURL, Keywords: t.Keywords, Getter: getter,
		}), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", t.Kind)
	}
}

func buildNotifiers(t *config.TargetConfig, cfg *config.Config, logger *slog.Logger, noNotify bool) notify.Notifier {
	sinks := notify.Multi{notify.NewLog(logger)}
	if noNotify {
		return sinks
	}

	var gates notify.Gates
	if t.Notify != nil {
		gates = notify.Gates{
			Additions:     t.Notify.Additions,
			Modifications: t.Notify.Modifications,
			Deletions:     t.Notify.Deletions,
		}
	}

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		sinks = append(sinks, notify.NewTelegram(notify.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Gates:    gates,
		}))
	}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhook(notify.WebhookConfig{
			URL:    cfg.Webhook.URL,
			Secret: cfg.Webhook.Secret,
		}))
	}
	return sinks
}

// Targets implements monitor.Runner.
func (a *app) Targets() []string { return append([]string(nil), a.order...) }

// Run implements monitor.Runner: one target's check plus notification.
func (a *app) Run(ctx context.Context, target string) (*monitor.Report, error) {
	engine, ok := a.engines[target]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target)
	}

	report, err := engine.Check(ctx)
	a.tracker.Record(target, report, err)
	if report != nil {
		if nerr := a.notify[target].Notify(ctx, report); nerr != nil {
			a.logger.Warn("notify: delivery failed", "target", target, "error", nerr)
		}
	}
	return report, err
}

// runPass checks every configured target (or just one) sequentially. A
// target's failure never stops the pass; the pass fails if any target did.
func (a *app) runPass(ctx context.Context, only string) error {
	failures := 0
	for _, name := range a.order {
		if only != "" && name != only {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.Run(ctx, name); err != nil {
			a.logger.Error("run: target failed", "target", name, "error", err)
			failures++
		}
	}
	if only != "" && a.engines[only] == nil {
		return fmt.Errorf("unknown target %q", only)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d targets failed", failures, len(a.order))
	}
	return nil
}

// daemon loops runPass on the configured interval and serves the status
// endpoints until the context ends.
func (a *app) daemon(ctx context.Context, only string) error {
	if a.config.StatusAddr != "" {
		srv := &http.Server{
			Addr:              a.config.StatusAddr,
			Handler:           status.Handler(a.tracker),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.logger.Info("status: listening", "addr", a.config.StatusAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("status: server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(a.config.CheckInterval)
	defer ticker.Stop()

	for {
		if err := a.runPass(ctx, only); err != nil && ctx.Err() == nil {
			a.logger.Warn("daemon: pass completed with failures", "error", err)
		}
		select {
		case <-ctx.Done():
			a.logger.Info("daemon: shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// serveMCP exposes the runner as MCP tools on stdio.
func (a *app) serveMCP(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "docveille",
		Version: version,
	}, nil)
	monitor.RegisterMCP(srv, a)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (a *app) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
