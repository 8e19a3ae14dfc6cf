// Command roiconfd is the Config Gateway: an MCP server over stdio exposing
// read, research, apply, and status tools for the ROI calculator pricing
// configuration document.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwaldrop/roiconf/internal/config"
	"github.com/mwaldrop/roiconf/internal/configdoc"
	"github.com/mwaldrop/roiconf/internal/gateway"
	"github.com/mwaldrop/roiconf/internal/health"
	"github.com/mwaldrop/roiconf/internal/observe"
)

// version is the server version reported in the MCP initialize handshake.
// Overridable at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	// A missing file at the default path is fine: the gateway runs on defaults
	// plus the ROI_CONFIG_PATH environment variable.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !isFlagSet("config") {
			cfg = &config.Config{}
		} else {
			fmt.Fprintf(os.Stderr, "roiconfd: %v\n", err)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the MCP stdio transport; all logging goes to stderr.
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	documentPath, err := cfg.ResolveDocumentPath()
	if err != nil {
		slog.Error("failed to resolve document path", "err", err)
		return 1
	}

	slog.Info("roiconfd starting",
		"version", version,
		"document", documentPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "roiconfd",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	store := configdoc.NewStore(documentPath)

	if cfg.Server.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.Server.MetricsAddr, store)
	}

	// ── MCP server ────────────────────────────────────────────────────────────
	g := gateway.New(store, observe.DefaultMetrics())
	srv := g.NewServer(version)

	slog.Info("serving MCP over stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// startMetricsServer serves Prometheus metrics and health endpoints on addr
// in a background goroutine, shutting down when ctx is cancelled. Readiness
// tracks the guarded document's existence.
func startMetricsServer(ctx context.Context, addr string, store *configdoc.Store) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.Checker{
		Name: "document",
		Check: func(context.Context) error {
			if !store.Exists() {
				return fmt.Errorf("config file not found: %s", store.Path())
			}
			return nil
		},
	}).Register(mux)

	httpSrv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("metrics listener started", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
}

// isFlagSet reports whether the named flag was passed explicitly.
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
