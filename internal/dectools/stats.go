package dectools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusware/decgraph/internal/graph"
	"github.com/nodusware/decgraph/internal/store"
)

// StatsTool handles the dec_stats MCP tool.
type StatsTool struct {
	store *store.Store
	proj  *graph.Projection
}

// NewStatsTool creates a StatsTool with the given store and projection.
func NewStatsTool(st *store.Store, proj *graph.Projection) *StatsTool {
	return &StatsTool{store: st, proj: proj}
}

// Definition returns the MCP tool definition for dec_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("dec_stats",
		mcp.WithDescription(
			"Show decision graph statistics — total decisions, relationships, and the active schema generation.",
		),
	)
}

// Handle processes the dec_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	decisions, err := t.store.CountDecisions()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	relationships, err := t.store.CountRelationships()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	gen, err := t.store.ActiveGeneration()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Decision Graph Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Decisions**: %d\n", decisions))
	sb.WriteString(fmt.Sprintf("- **Relationships**: %d\n", relationships))
	sb.WriteString(fmt.Sprintf("- **Active generation**: %d\n", gen))
	sb.WriteString(fmt.Sprintf("- **Projection version**: %d\n", t.proj.Version()))

	return mcp.NewToolResultText(sb.String()), nil
}
