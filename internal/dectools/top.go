package dectools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusware/decgraph/internal/query"
	"github.com/nodusware/decgraph/internal/store"
)

// TopTool handles the dec_top MCP tool — the entry view of the
// progressive-disclosure ladder.
type TopTool struct {
	engine *query.Engine
}

// NewTopTool creates a TopTool with the given query engine.
func NewTopTool(engine *query.Engine) *TopTool {
	return &TopTool{engine: engine}
}

// Definition returns the MCP tool definition for dec_top.
func (t *TopTool) Definition() mcp.Tool {
	return mcp.NewTool("dec_top",
		mcp.WithDescription(
			"Show the most relevant decisions (at most 3): accepted before proposed, "+
				"most recent first. This is the entry view — use dec_neighborhood on a "+
				"decision ID to explore its network, and dec_context for full detail.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of decisions to return (default and maximum: 3)"),
		),
	)
}

// Handle processes the dec_top tool call.
func (t *TopTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", query.DefaultTopLimit)

	decisions, err := t.engine.TopDecisions(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load top decisions: %v", err)), nil
	}
	if len(decisions) == 0 {
		return mcp.NewToolResultText("No decisions recorded yet. Use dec_record to add one."), nil
	}

	var b strings.Builder
	b.WriteString("# Top Decisions\n\n")
	for _, d := range decisions {
		writeDecisionLine(&b, d)
	}
	b.WriteString("\nUse dec_neighborhood with a decision ID to see its network.\n")
	return mcp.NewToolResultText(b.String()), nil
}

// writeDecisionLine renders one compact decision entry.
func writeDecisionLine(b *strings.Builder, d store.Decision) {
	fmt.Fprintf(b, "- #%d [%s] %s", d.ID, d.Status, d.Summary)
	if len(d.Tags) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(d.Tags, ", "))
	}
	if d.HopDistance != nil {
		fmt.Fprintf(b, " — %d hop(s) away", *d.HopDistance)
	}
	b.WriteString("\n")
}
