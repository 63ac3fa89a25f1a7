package dectools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusware/decgraph/internal/store"
)

// RecordTool handles the dec_record MCP tool — the authoring surface for
// creating decisions.
type RecordTool struct {
	store *store.Store
}

// NewRecordTool creates a RecordTool with the given store.
func NewRecordTool(st *store.Store) *RecordTool {
	return &RecordTool{store: st}
}

// Definition returns the MCP tool definition for dec_record.
func (t *RecordTool) Definition() mcp.Tool {
	return mcp.NewTool("dec_record",
		mcp.WithDescription(
			"Record an architectural decision in the knowledge graph. "+
				"Link it to existing decisions afterwards with dec_link.",
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Short description of the decision (required)"),
		),
		mcp.WithString("rationale",
			mcp.Description("Why this decision was made"),
		),
		mcp.WithString("implementation",
			mcp.Description("How the decision is implemented"),
		),
		mcp.WithString("status",
			mcp.Description("Lifecycle status: "+strings.Join(store.StatusValues(), ", ")+" (default: proposed)"),
			mcp.Enum(store.StatusValues()...),
		),
		mcp.WithArray("tags",
			mcp.Description("Ordered tags for the decision"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the dec_record tool call.
func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary := req.GetString("summary", "")
	if strings.TrimSpace(summary) == "" {
		return mcp.NewToolResultError("'summary' is required"), nil
	}

	id, err := t.store.CreateDecision(store.AddDecisionParams{
		Summary:        summary,
		Rationale:      req.GetString("rationale", ""),
		Implementation: req.GetString("implementation", ""),
		Status:         req.GetString("status", ""),
		Tags:           stringListArg(req, "tags"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record decision: %v", err)), nil
	}

	return mcp.NewToolResultText(
		fmt.Sprintf("Decision recorded: #%d %q\nUse dec_link to connect it to related decisions.", id, summary),
	), nil
}
