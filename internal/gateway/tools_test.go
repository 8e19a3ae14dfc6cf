package gateway

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwaldrop/roiconf/internal/configdoc"
)

const testDoc = `{
  "version": "2.1.0",
  "lastUpdated": "2024-01-01T00:00:00Z",
  "gpuTypes": {
    "H100": {"pricePerHour": 2.49},
    "H200": {"pricePerHour": 3.19}
  },
  "modelArchitectures": {},
  "storageOptions": {},
  "hardware": {}
}`

// newTestGateway writes testDoc to a temp file and returns a Gateway over it
// with a fixed clock.
func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roi-config.json")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	g := New(configdoc.NewStore(path), nil)
	g.now = func() time.Time { return time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC) }
	return g
}

// newMissingFileGateway returns a Gateway whose guarded file does not exist.
func newMissingFileGateway(t *testing.T) *Gateway {
	t.Helper()
	g := New(configdoc.NewStore(filepath.Join(t.TempDir(), "absent.json")), nil)
	g.now = func() time.Time { return time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC) }
	return g
}

// resultText extracts the single text content of a tool result.
func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("result has %d content blocks, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_read
// ─────────────────────────────────────────────────────────────────────────────

func TestRead_MarkdownDefault(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, err := g.handleRead(context.Background(), nil, readArgs{})
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text)
	}
	if !strings.HasPrefix(text, "# ROI Config\nVersion: 2.1.0\n") {
		t.Errorf("markdown header missing:\n%s", text)
	}
	if !strings.Contains(text, "H100") {
		t.Errorf("document content missing from markdown digest:\n%s", text)
	}
}

func TestRead_JSONEnvelope(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, _ := g.handleRead(context.Background(), nil, readArgs{Section: "gpuTypes", ResponseFormat: "json"})
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text)
	}

	var envelope struct {
		Fingerprint string         `json:"fingerprint"`
		Data        map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\noutput: %s", err, text)
	}
	if len(envelope.Fingerprint) != 12 {
		t.Errorf("fingerprint = %q, want 12 hex chars", envelope.Fingerprint)
	}
	if _, ok := envelope.Data["H100"]; !ok {
		t.Errorf("data missing gpuTypes entry: %v", envelope.Data)
	}
}

func TestRead_MetadataSection(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, _ := g.handleRead(context.Background(), nil, readArgs{Section: "metadata", ResponseFormat: "json"})
	text := resultText(t, res)

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope.Data) != 2 {
		t.Errorf("metadata has %d keys, want exactly version and lastUpdated: %v", len(envelope.Data), envelope.Data)
	}
	if envelope.Data["version"] != "2.1.0" || envelope.Data["lastUpdated"] != "2024-01-01T00:00:00Z" {
		t.Errorf("metadata = %v", envelope.Data)
	}
}

func TestRead_UnknownSection(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, err := g.handleRead(context.Background(), nil, readArgs{Section: "nonsense"})
	if err != nil {
		t.Fatalf("unknown section must not fault the tool call: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result for unknown section")
	}
	text := resultText(t, res)
	if !strings.HasPrefix(text, "Error: ") || !strings.Contains(text, "unknown section") {
		t.Errorf("result = %q, want unknown-section error text", text)
	}
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()
	g := newMissingFileGateway(t)

	res, _, _ := g.handleRead(context.Background(), nil, readArgs{})
	if !res.IsError {
		t.Fatal("expected IsError result for missing file")
	}
	text := resultText(t, res)
	if !strings.Contains(text, "config file not found") || !strings.Contains(text, g.store.Path()) {
		t.Errorf("result = %q, want not-found error naming the path", text)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_research
// ─────────────────────────────────────────────────────────────────────────────

func TestResearch(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, _ := g.handleResearch(context.Background(), nil, researchArgs{})
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text)
	}

	for _, want := range []string{
		"# Research Request",
		"Version: 2.1.0",
		"Date: 2026-08-23",
		"Categories: all",
		"version_increment",
		"gpuTypes_updates",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("research prompt missing %q:\n%s", want, text)
		}
	}
}

func TestResearch_CategoryFilter(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, _ := g.handleResearch(context.Background(), nil, researchArgs{Categories: "gpuTypes"})
	if text := resultText(t, res); !strings.Contains(text, "Categories: gpuTypes") {
		t.Errorf("prompt missing category filter:\n%s", text)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_apply
// ─────────────────────────────────────────────────────────────────────────────

func TestApply_RequiresConfirmation(t *testing.T) {
	t.Parallel()
	g := newMissingFileGateway(t)

	// Even with a missing file and a garbage payload, an unconfirmed apply
	// returns the literal confirmation error without touching anything.
	res, _, err := g.handleApply(context.Background(), nil, applyArgs{UpdatesJSON: `{garbage`})
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	if text := resultText(t, res); text != confirmationRequired {
		t.Errorf("result = %q, want the literal confirmation error", text)
	}
}

func TestApply_EmptyPayload(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, _ := g.handleApply(context.Background(), nil, applyArgs{UpdatesJSON: `{}`, UserConfirmed: true})
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text)
	}
	if !strings.Contains(text, "Changes: 0") {
		t.Errorf("result = %q, want zero changes", text)
	}

	// Exactly one backup, and only lastUpdated changed.
	matches, _ := filepath.Glob(g.store.Path() + ".backup-*")
	if len(matches) != 1 {
		t.Fatalf("found %d backups, want 1", len(matches))
	}
	raw, err := g.store.Raw()
	if err != nil {
		t.Fatal(err)
	}
	if configdoc.Version(raw) != "2.1.0" {
		t.Errorf("version changed on empty payload: %s", configdoc.Version(raw))
	}
	if !strings.Contains(string(raw), "2026-08-23T10:00:00Z") {
		t.Errorf("lastUpdated not stamped:\n%s", raw)
	}
}

func TestApply_FullProposal(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	payload := `{
		"version_increment": "minor",
		"gpuTypes_updates": {
			"H100": {"pricePerHour": 2.19},
			"B300": {"pricePerHour": 9.99}
		}
	}`
	res, _, _ := g.handleApply(context.Background(), nil, applyArgs{UpdatesJSON: payload, UserConfirmed: true})
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text)
	}

	// B300 does not exist and must be skipped: version bump + one overwrite.
	if !strings.Contains(text, "Changes: 2") {
		t.Errorf("result = %q, want 2 changes", text)
	}
	if !strings.Contains(text, "- version: 2.1.0 -> 2.2.0") {
		t.Errorf("version change entry missing:\n%s", text)
	}
	if !strings.Contains(text, "- gpuTypes.H100.pricePerHour: 2.19") {
		t.Errorf("overwrite change entry missing:\n%s", text)
	}
	if strings.Contains(text, "B300") {
		t.Errorf("skipped key must not appear in change entries:\n%s", text)
	}

	raw, err := g.store.Raw()
	if err != nil {
		t.Fatal(err)
	}
	if configdoc.Version(raw) != "2.2.0" {
		t.Errorf("version = %s, want 2.2.0", configdoc.Version(raw))
	}
	if configdoc.CategoryCount(raw, "gpuTypes") != 2 {
		t.Errorf("gpuTypes count = %d, want 2 (no insertion)", configdoc.CategoryCount(raw, "gpuTypes"))
	}
}

func TestApply_BackupDisabled(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	off := false
	res, _, _ := g.handleApply(context.Background(), nil, applyArgs{UpdatesJSON: `{}`, UserConfirmed: true, CreateBackup: &off})
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text)
	}
	if !strings.Contains(text, "Backup: None") {
		t.Errorf("result = %q, want Backup: None", text)
	}
	matches, _ := filepath.Glob(g.store.Path() + ".backup-*")
	if len(matches) != 0 {
		t.Errorf("found %d backups, want 0", len(matches))
	}
}

func TestApply_MalformedPayload(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	before, err := g.store.Raw()
	if err != nil {
		t.Fatal(err)
	}

	res, _, _ := g.handleApply(context.Background(), nil, applyArgs{UpdatesJSON: `{not json`, UserConfirmed: true})
	if !res.IsError {
		t.Fatal("expected IsError result for malformed payload")
	}
	if text := resultText(t, res); !strings.HasPrefix(text, "Error: ") {
		t.Errorf("result = %q, want Error: prefix", text)
	}

	after, err := g.store.Raw()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("file modified despite parse failure")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// roi_config_status
// ─────────────────────────────────────────────────────────────────────────────

func TestStatus_Present(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	res, _, _ := g.handleStatus(context.Background(), nil, statusArgs{})
	text := resultText(t, res)
	for _, want := range []string{
		"File: " + g.store.Path(),
		"Exists: true",
		"Version: 2.1.0",
		"GPUs: 2",
		"Models: 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("status missing %q:\n%s", want, text)
		}
	}
}

func TestStatus_MissingFile(t *testing.T) {
	t.Parallel()
	g := newMissingFileGateway(t)

	res, _, _ := g.handleStatus(context.Background(), nil, statusArgs{})
	text := resultText(t, res)
	if res.IsError {
		t.Fatal("status is informational; missing file is not an error")
	}
	if !strings.Contains(text, "Exists: false") {
		t.Errorf("status missing Exists: false:\n%s", text)
	}
	if strings.Contains(text, "Version:") || strings.Contains(text, "GPUs:") {
		t.Errorf("status must omit version and counts for a missing file:\n%s", text)
	}
}

func TestNewServer_RegistersAllTools(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	srv := g.NewServer("1.0.0")
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}
