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

// NeighborhoodTool handles the dec_neighborhood MCP tool — the bounded
// middle tier of the progressive-disclosure ladder.
type NeighborhoodTool struct {
	engine *query.Engine
}

// NewNeighborhoodTool creates a NeighborhoodTool with the given engine.
func NewNeighborhoodTool(engine *query.Engine) *NeighborhoodTool {
	return &NeighborhoodTool{engine: engine}
}

// Definition returns the MCP tool definition for dec_neighborhood.
func (t *NeighborhoodTool) Definition() mcp.Tool {
	return mcp.NewTool("dec_neighborhood",
		mcp.WithDescription(
			"Show the decisions directly connected to one decision (1 hop), optionally "+
				"expanded to 2 hops. Reports how many more decisions exist in the full "+
				"network beyond the shown radius. Use dec_context for unlimited detail.",
		),
		mcp.WithNumber("decision_id",
			mcp.Required(),
			mcp.Description("The decision ID at the center of the neighborhood"),
		),
		mcp.WithNumber("max_hops",
			mcp.Description("Radius in hops: 1 (default) or 2"),
		),
	)
}

// Handle processes the dec_neighborhood tool call.
func (t *NeighborhoodTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "decision_id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'decision_id' is required"), nil
	}
	maxHops := intArg(req, "max_hops", 1)

	n, err := t.engine.Neighborhood(int64(id), maxHops)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("decision %d not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to build neighborhood: %v", err)), nil
	}

	return mcp.NewToolResultText(formatNeighborhood(n, maxHops)), nil
}

// formatNeighborhood renders a Neighborhood as readable markdown.
func formatNeighborhood(n *query.Neighborhood, maxHops int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Neighborhood of #%d: %q\n\n", n.Center.ID, n.Center.Summary)
	fmt.Fprintf(&b, "**Status:** %s\n\n", n.Center.Status)

	if len(n.Hop1Neighbors) == 0 {
		b.WriteString("No direct connections.\n")
	} else {
		b.WriteString("## Direct neighbors (1 hop)\n\n")
		for _, d := range n.Hop1Neighbors {
			writeDecisionLine(&b, d)
		}
	}

	if maxHops >= 2 && len(n.Hop2Neighbors) > 0 {
		b.WriteString("\n## Extended neighbors (2 hops)\n\n")
		for _, d := range n.Hop2Neighbors {
			writeDecisionLine(&b, d)
		}
	}

	shown := len(n.Hop1Neighbors) + len(n.Hop2Neighbors)
	if more := n.TotalNeighbors - shown; more > 0 {
		fmt.Fprintf(&b, "\n%d more decision(s) in the network. ", more)
		if maxHops < 2 {
			b.WriteString("Re-run with max_hops: 2 to expand, or ")
		}
		fmt.Fprintf(&b, "use dec_context %d for everything.\n", n.Center.ID)
	} else {
		fmt.Fprintf(&b, "\n**Total network:** %d decision(s)\n", n.TotalNeighbors)
	}
	return b.String()
}
