// Package updater implements the batch updater: a single-shot job that asks
// an LLM backend for current GPU, model, and storage pricing and applies the
// resulting version bump to the configuration document.
//
// One run makes exactly one completion call. The response must contain a JSON
// object with a "version_increment" field; without it the run logs "no
// changes needed" and leaves the file untouched. Unlike the gateway's apply
// tool, batch writes take no backup and need no confirmation; the job is
// already gated by whoever scheduled it.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mwaldrop/roiconf/internal/configdoc"
	"github.com/mwaldrop/roiconf/internal/observe"
	"github.com/mwaldrop/roiconf/pkg/provider/llm"
)

// maxCompletionTokens caps the model's response. Pricing proposals are small;
// anything larger is the model rambling.
const maxCompletionTokens = 4096

// Updater runs one batch update cycle against a single config document.
type Updater struct {
	// Store guards the config document on disk.
	Store *configdoc.Store

	// Provider is the completion backend used for the research call.
	Provider llm.Provider

	// ProviderName labels LLM metrics ("anthropic", "openai", ...).
	ProviderName string

	// Metrics may be nil when observability is disabled.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger

	// Now is the clock for the prompt date and the lastUpdated stamp.
	// Defaults to time.Now when nil.
	Now func() time.Time
}

func (u *Updater) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

func (u *Updater) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

// Run executes one update cycle: read the document, request a pricing
// proposal from the provider, and write the version bump back if the model
// proposed one. Returns an error when the file is missing, the completion
// fails, or the response carries no parseable JSON object.
func (u *Updater) Run(ctx context.Context) error {
	log := u.logger()

	raw, err := u.Store.Raw()
	if err != nil {
		return fmt.Errorf("updater: %w", err)
	}
	version := configdoc.Version(raw)
	log.Info("starting update run", "path", u.Store.Path(), "version", version)

	resp, err := u.complete(ctx, buildPrompt(version, u.now()))
	if err != nil {
		return fmt.Errorf("updater: completion: %w", err)
	}
	log.Info("completion received",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	payload, err := extractJSON(resp.Content)
	if err != nil {
		return fmt.Errorf("updater: %w", err)
	}
	proposal := gjson.ParseBytes(payload)

	if notes := proposal.Get("notes"); notes.Exists() {
		log.Info("research notes", "notes", notes.String())
	}

	inc := proposal.Get("version_increment")
	if !inc.Exists() || inc.String() == "" {
		log.Info("no changes needed", "version", version)
		return nil
	}

	newVersion, err := configdoc.BumpVersion(version, inc.String())
	if err != nil {
		return fmt.Errorf("updater: %w", err)
	}
	updated, err := sjson.SetBytes(raw, "version", newVersion)
	if err != nil {
		return fmt.Errorf("updater: set version: %w", err)
	}
	updated, err = sjson.SetBytes(updated, "lastUpdated", configdoc.FormatTimestamp(u.now()))
	if err != nil {
		return fmt.Errorf("updater: set lastUpdated: %w", err)
	}

	if _, err := u.Store.Write(updated, false); err != nil {
		return fmt.Errorf("updater: %w", err)
	}
	log.Info("update applied", "old_version", version, "new_version", newVersion)
	return nil
}

// complete makes the single research completion call, recording its latency
// and outcome.
func (u *Updater) complete(ctx context.Context, prompt string) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := u.Provider.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: maxCompletionTokens,
	})
	if u.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		u.Metrics.RecordLLMRequest(ctx, u.ProviderName, status, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Content == "" {
		return nil, fmt.Errorf("empty completion response")
	}
	return resp, nil
}

// extractJSON pulls the first JSON object out of a model response, tolerating
// surrounding prose and markdown code fences.
func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	payload := []byte(content[start : end+1])
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("response JSON does not parse")
	}
	return payload, nil
}
