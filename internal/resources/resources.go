// Package resources implements MCP resource handlers for the decision
// graph.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (decgraph://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusware/decgraph/internal/graph"
	"github.com/nodusware/decgraph/internal/store"
)

// Handler manages the decision graph resource endpoints.
type Handler struct {
	store *store.Store
	proj  *graph.Projection
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(st *store.Store, proj *graph.Projection) *Handler {
	return &Handler{store: st, proj: proj}
}

// graphStatus is the JSON shape served at decgraph://graph/status.
type graphStatus struct {
	Decisions         int   `json:"decisions"`
	Relationships     int   `json:"relationships"`
	ActiveGeneration  int   `json:"active_generation"`
	Generations       []int `json:"generations"`
	ProjectionVersion int64 `json:"projection_version"`
}

// StatusResource returns the MCP resource definition for graph status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"decgraph://graph/status",
		"Decision Graph Status",
		mcp.WithResourceDescription("Decision and relationship counts, schema generations, and projection state"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current graph status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status := graphStatus{ProjectionVersion: h.proj.Version()}

	var err error
	if status.Decisions, err = h.store.CountDecisions(); err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}
	if status.Relationships, err = h.store.CountRelationships(); err != nil {
		return nil, fmt.Errorf("counting relationships: %w", err)
	}
	if status.ActiveGeneration, err = h.store.ActiveGeneration(); err != nil {
		return nil, fmt.Errorf("resolving active generation: %w", err)
	}
	if status.Generations, err = h.store.Generations(); err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
