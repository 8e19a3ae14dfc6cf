// Command roiconf-update runs one batch update cycle: it asks an LLM backend
// for current GPU, model, and storage pricing and applies the resulting
// version bump to the configuration document.
//
// The document path follows the same resolution as the gateway: the
// ROI_CONFIG_PATH environment variable, falling back to ./roi-config.json.
// The backend is selected with ROI_UPDATE_PROVIDER and ROI_UPDATE_MODEL; the
// provider's usual API key environment variable (ANTHROPIC_API_KEY, ...) must
// be set. Exits 0 on success, 1 on any failure.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mwaldrop/roiconf/internal/config"
	"github.com/mwaldrop/roiconf/internal/configdoc"
	"github.com/mwaldrop/roiconf/internal/updater"
	"github.com/mwaldrop/roiconf/pkg/provider/llm/anyllm"
)

const (
	// defaultProvider is the completion backend used when ROI_UPDATE_PROVIDER
	// is unset.
	defaultProvider = "anthropic"

	// defaultModel is the model used when ROI_UPDATE_MODEL is unset.
	defaultModel = "claude-sonnet-4-20250514"

	envProvider = "ROI_UPDATE_PROVIDER"
	envModel    = "ROI_UPDATE_MODEL"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	documentPath, err := resolveDocumentPath()
	if err != nil {
		slog.Error("failed to resolve document path", "err", err)
		return 1
	}

	providerName := envOr(envProvider, defaultProvider)
	model := envOr(envModel, defaultModel)

	provider, err := anyllm.New(providerName, model)
	if err != nil {
		slog.Error("failed to create llm provider", "provider", providerName, "err", err)
		return 1
	}

	u := &updater.Updater{
		Store:        configdoc.NewStore(documentPath),
		Provider:     provider,
		ProviderName: providerName,
		Logger:       logger,
	}

	slog.Info("roiconf-update starting", "document", documentPath, "provider", providerName, "model", model)
	if err := u.Run(ctx); err != nil {
		slog.Error("update run failed", "err", err)
		return 1
	}
	return 0
}

// resolveDocumentPath applies the env var > default precedence used by the
// gateway, without requiring a YAML config file.
func resolveDocumentPath() (string, error) {
	path := os.Getenv(config.EnvDocumentPath)
	if path == "" {
		path = config.DefaultDocumentPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
