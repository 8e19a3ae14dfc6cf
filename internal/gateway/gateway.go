// Package gateway implements the Config Gateway: an MCP server exposing four
// tools that read, preview, and mutate exactly one JSON pricing-configuration
// document.
//
// All file access goes through a [configdoc.Store]; no other filesystem
// location is reachable through this package. Writes require an explicit
// confirmation flag and snapshot the file first unless backups are disabled.
//
// Tool handlers never surface a protocol-level error: every failure is
// formatted at the boundary into an `Error: <message>` text result, so a
// caller always receives a response.
package gateway

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwaldrop/roiconf/internal/configdoc"
	"github.com/mwaldrop/roiconf/internal/observe"
)

// serverName identifies the gateway in the MCP initialize handshake.
const serverName = "roiconf"

// Gateway holds the dependencies shared by the four tool handlers.
type Gateway struct {
	store   *configdoc.Store
	metrics *observe.Metrics

	// now is the clock used for lastUpdated stamps and the research prompt
	// date. Overridable in tests.
	now func() time.Time
}

// New creates a Gateway operating on store. metrics may be nil when
// observability is disabled (tests).
func New(store *configdoc.Store, metrics *observe.Metrics) *Gateway {
	return &Gateway{store: store, metrics: metrics, now: time.Now}
}

// NewServer builds the MCP server with all four tools registered. The caller
// runs it over a transport (the gateway binary uses stdio).
func (g *Gateway) NewServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "roi_config_read",
		Description: "Read the ROI calculator configuration document or one of its " +
			"sections, together with a short content fingerprint for change detection.",
	}, g.handleRead)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "roi_config_research",
		Description: "Build a research-request prompt describing the pricing and model " +
			"updates needed and the exact JSON shape to return. Performs no write.",
	}, g.handleResearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "roi_config_apply",
		Description: "Apply a JSON update proposal to the configuration document. " +
			"REQUIRES user_confirmed=true. Only keys already present in a category are " +
			"updated; unknown keys are skipped. A timestamped backup is written first " +
			"unless create_backup is false.",
	}, g.handleApply)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "roi_config_status",
		Description: "Report the guarded file path, its existence, and the current " +
			"version and category entry counts.",
	}, g.handleStatus)

	return srv
}

// textResult wraps s in a successful text-only tool result.
func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: s}},
	}
}

// errorText wraps an error message in a tool result with IsError set. The
// message is prefixed with "Error: " so callers see a uniform failure shape.
func errorText(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}
}

// finish records the tool-call metric for one handler invocation.
func (g *Gateway) finish(ctx context.Context, tool string, start time.Time, failed bool) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	g.metrics.RecordToolCall(ctx, tool, status, time.Since(start).Seconds())
}
