package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/sjson"

	"github.com/mwaldrop/roiconf/internal/configdoc"
)

const (
	// markdownDigestLimit caps the pretty-printed JSON embedded in markdown
	// responses.
	markdownDigestLimit = 3000

	// maxReportedChanges caps the change entries listed in an apply result.
	maxReportedChanges = 20

	// confirmationRequired is the literal result returned by roi_config_apply
	// when user_confirmed is false. The file is not touched in that case.
	confirmationRequired = "Error: confirmation required: set user_confirmed=true to apply updates"
)

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_read
// ─────────────────────────────────────────────────────────────────────────────

// readArgs is the input for the "roi_config_read" tool.
type readArgs struct {
	Section        string `json:"section,omitempty" jsonschema:"optional section to read: metadata, gpuTypes, hardware, models or storage; omit for the whole document"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"output format: markdown (default) or json"`
}

func (g *Gateway) handleRead(ctx context.Context, _ *mcp.CallToolRequest, args readArgs) (*mcp.CallToolResult, any, error) {
	start := g.now()
	out, err := g.read(args)
	g.finish(ctx, "roi_config_read", start, err != nil)
	if err != nil {
		return errorText(err.Error()), nil, nil
	}
	return textResult(out), nil, nil
}

func (g *Gateway) read(args readArgs) (string, error) {
	raw, err := g.store.Raw()
	if err != nil {
		return "", err
	}

	data, err := configdoc.Section(raw, args.Section)
	if err != nil {
		return "", err
	}

	if args.ResponseFormat == "json" {
		envelope := []byte(`{}`)
		envelope, err = sjson.SetBytes(envelope, "fingerprint", configdoc.Fingerprint(raw))
		if err != nil {
			return "", fmt.Errorf("gateway: build envelope: %w", err)
		}
		envelope, err = sjson.SetRawBytes(envelope, "data", data)
		if err != nil {
			return "", fmt.Errorf("gateway: build envelope: %w", err)
		}
		return string(configdoc.Pretty(envelope)), nil
	}

	digest := string(configdoc.Pretty(data))
	if len(digest) > markdownDigestLimit {
		digest = digest[:markdownDigestLimit]
	}
	return fmt.Sprintf("# ROI Config\nVersion: %s\n\n%s", configdoc.Version(raw), digest), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_research
// ─────────────────────────────────────────────────────────────────────────────

// researchArgs is the input for the "roi_config_research" tool.
type researchArgs struct {
	Categories string `json:"categories,omitempty" jsonschema:"category filter for the research request; defaults to all"`
}

func (g *Gateway) handleResearch(ctx context.Context, _ *mcp.CallToolRequest, args researchArgs) (*mcp.CallToolResult, any, error) {
	start := g.now()
	out, err := g.research(args)
	g.finish(ctx, "roi_config_research", start, err != nil)
	if err != nil {
		return errorText(err.Error()), nil, nil
	}
	return textResult(out), nil, nil
}

func (g *Gateway) research(args researchArgs) (string, error) {
	raw, err := g.store.Raw()
	if err != nil {
		return "", err
	}

	categories := args.Categories
	if categories == "" {
		categories = "all"
	}

	return fmt.Sprintf(`# Research Request
Version: %s
Date: %s
Categories: %s

Research needed:
- GPU pricing (H100, H200, B200, B300)
- New AI models (Llama, Mistral, DeepSeek)
- Storage pricing updates
- NVLink configurations

Return a JSON object with "version_increment" ("minor" or "patch"), per-category
update maps ("gpuTypes_updates", "modelArchitectures_updates", ...) keyed by
existing entry names, and "notes" summarising the changes.`,
		configdoc.Version(raw), g.now().UTC().Format("2006-01-02"), categories), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_apply
// ─────────────────────────────────────────────────────────────────────────────

// applyArgs is the input for the "roi_config_apply" tool.
type applyArgs struct {
	UpdatesJSON   string `json:"updates_json" jsonschema:"JSON-encoded update proposal: version_increment plus per-category _updates maps"`
	UserConfirmed bool   `json:"user_confirmed" jsonschema:"must be true; the write is refused otherwise"`
	CreateBackup  *bool  `json:"create_backup,omitempty" jsonschema:"snapshot the file before writing (default true)"`
}

func (g *Gateway) handleApply(ctx context.Context, _ *mcp.CallToolRequest, args applyArgs) (*mcp.CallToolResult, any, error) {
	start := g.now()

	// Refuse before any file access; the payload is not even parsed.
	if !args.UserConfirmed {
		g.finish(ctx, "roi_config_apply", start, true)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: confirmationRequired}},
			IsError: true,
		}, nil, nil
	}

	out, err := g.apply(ctx, args)
	g.finish(ctx, "roi_config_apply", start, err != nil)
	if err != nil {
		return errorText(err.Error()), nil, nil
	}
	return textResult(out), nil, nil
}

func (g *Gateway) apply(ctx context.Context, args applyArgs) (string, error) {
	raw, err := g.store.Raw()
	if err != nil {
		return "", err
	}

	updated, changes, err := configdoc.ApplyProposal(raw, []byte(args.UpdatesJSON), g.now())
	if err != nil {
		return "", err
	}

	backup := true
	if args.CreateBackup != nil {
		backup = *args.CreateBackup
	}
	backupPath, err := g.store.Write(updated, backup)
	if err != nil {
		return "", err
	}
	if g.metrics != nil {
		g.metrics.RecordWrite(ctx, backupPath != "")
	}

	backupMsg := backupPath
	if backupMsg == "" {
		backupMsg = "None"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Update Applied\nChanges: %d\nConfig saved. Backup: %s\n", len(changes), backupMsg)
	for i, c := range changes {
		if i == maxReportedChanges {
			break
		}
		sb.WriteString("\n- " + c)
	}
	return sb.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_status
// ─────────────────────────────────────────────────────────────────────────────

// statusArgs is the (empty) input for the "roi_config_status" tool.
type statusArgs struct{}

func (g *Gateway) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ statusArgs) (*mcp.CallToolResult, any, error) {
	start := g.now()
	out := g.status()
	g.finish(ctx, "roi_config_status", start, false)
	return textResult(out), nil, nil
}

func (g *Gateway) status() string {
	exists := g.store.Exists()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# ROI Config Status\nFile: %s\nExists: %t\n", g.store.Path(), exists)

	// Version and entry counts are reported only for a present file.
	if exists {
		if raw, err := g.store.Raw(); err == nil {
			fmt.Fprintf(&sb, "Version: %s\nGPUs: %d\nModels: %d\n",
				configdoc.Version(raw),
				configdoc.CategoryCount(raw, "gpuTypes"),
				configdoc.CategoryCount(raw, "modelArchitectures"))
		}
	}

	sb.WriteString("Security: single file access only; writes require confirmation")
	return sb.String()
}
