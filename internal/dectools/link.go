package dectools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusware/decgraph/internal/store"
)

// LinkTool handles the dec_link MCP tool, which connects two existing
// decisions with a typed relationship.
type LinkTool struct {
	store *store.Store
}

// NewLinkTool creates a LinkTool with the given store.
func NewLinkTool(st *store.Store) *LinkTool {
	return &LinkTool{store: st}
}

// Definition returns the MCP tool definition for dec_link.
func (t *LinkTool) Definition() mcp.Tool {
	return mcp.NewTool("dec_link",
		mcp.WithDescription(
			"Link two decisions with a typed relationship. "+
				"Both decisions must already exist (see dec_record).",
		),
		mcp.WithNumber("source_id",
			mcp.Required(),
			mcp.Description("ID of the source decision"),
		),
		mcp.WithNumber("target_id",
			mcp.Required(),
			mcp.Description("ID of the target decision"),
		),
		mcp.WithString("relation_type",
			mcp.Required(),
			mcp.Description("Relationship type: "+strings.Join(store.RelationTypeValues(), ", ")),
			mcp.Enum(store.RelationTypeValues()...),
		),
		mcp.WithNumber("strength",
			mcp.Description("Relationship strength in (0, 1] (default: 1.0)"),
		),
	)
}

// Handle processes the dec_link tool call.
func (t *LinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := int64(intArg(req, "source_id", 0))
	targetID := int64(intArg(req, "target_id", 0))
	relType := req.GetString("relation_type", "")

	if sourceID == 0 || targetID == 0 {
		return mcp.NewToolResultError("'source_id' and 'target_id' are required"), nil
	}
	if relType == "" {
		return mcp.NewToolResultError("'relation_type' is required"), nil
	}

	id, err := t.store.CreateRelationship(store.AddRelationshipParams{
		SourceID: sourceID,
		TargetID: targetID,
		Type:     relType,
		Strength: floatArg(req, "strength", 0),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("cannot link: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to link decisions: %v", err)), nil
	}

	return mcp.NewToolResultText(
		fmt.Sprintf("Relationship #%d created: #%d -[%s]-> #%d", id, sourceID, relType, targetID),
	), nil
}
