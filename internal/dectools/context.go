package dectools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusware/decgraph/internal/query"
	"github.com/nodusware/decgraph/internal/store"
)

// ContextTool handles the dec_context MCP tool — the unlimited-detail
// escape hatch from the two bounded views.
type ContextTool struct {
	engine *query.Engine
}

// NewContextTool creates a ContextTool with the given engine.
func NewContextTool(engine *query.Engine) *ContextTool {
	return &ContextTool{engine: engine}
}

// Definition returns the MCP tool definition for dec_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("dec_context",
		mcp.WithDescription(
			"Show the full context of a decision: complete rationale and implementation "+
				"text, every direct relationship in both directions, all related decisions "+
				"in the network, and a cognitive load classification (low/medium/high). "+
				"This view has no size cap.",
		),
		mcp.WithNumber("decision_id",
			mcp.Required(),
			mcp.Description("The decision ID to expand"),
		),
	)
}

// Handle processes the dec_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "decision_id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'decision_id' is required"), nil
	}

	fc, err := t.engine.FullContext(int64(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("decision %d not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context: %v", err)), nil
	}

	return mcp.NewToolResultText(formatFullContext(fc)), nil
}

// formatFullContext renders a FullContext as readable markdown.
func formatFullContext(fc *query.FullContext) string {
	d := fc.Decision
	var b strings.Builder

	fmt.Fprintf(&b, "# Decision #%d: %s\n\n", d.ID, d.Summary)
	fmt.Fprintf(&b, "**Status:** %s  \n**Cognitive load:** %s  \n**Created:** %s\n\n",
		d.Status, fc.CognitiveLoad, d.CreatedAt)
	if len(d.Tags) > 0 {
		fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(d.Tags, ", "))
	}

	if d.Rationale != nil && *d.Rationale != "" {
		fmt.Fprintf(&b, "## Rationale\n\n%s\n\n", *d.Rationale)
	}
	if d.Implementation != nil && *d.Implementation != "" {
		fmt.Fprintf(&b, "## Implementation\n\n%s\n\n", *d.Implementation)
	}
	if len(d.Alternatives) > 0 {
		b.WriteString("## Alternatives considered\n\n")
		for _, alt := range d.Alternatives {
			fmt.Fprintf(&b, "- **%s**", alt.Name)
			if alt.Reason != "" {
				fmt.Fprintf(&b, ": %s", alt.Reason)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(fc.DirectRelationships) > 0 {
		b.WriteString("## Direct relationships\n\n")
		for _, r := range fc.DirectRelationships {
			arrow := "→"
			other := r.TargetID
			if r.Direction == "incoming" {
				arrow = "←"
				other = r.SourceID
			}
			fmt.Fprintf(&b, "- %s #%d (%s, strength %.2f)\n", arrow, other, r.Type, r.Strength)
		}
		b.WriteString("\n")
	}

	if len(fc.RelatedDecisions) > 0 {
		b.WriteString("## Related decisions\n\n")
		for _, rd := range fc.RelatedDecisions {
			writeDecisionLine(&b, rd)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Total related:** %d decision(s), %d direct relationship(s)\n",
		fc.TotalRelated, len(fc.DirectRelationships))
	return b.String()
}
