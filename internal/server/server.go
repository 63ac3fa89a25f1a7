// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools that depend on abstractions.
// No business logic lives here — only wiring.
package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/nodusware/decgraph/internal/config"
	"github.com/nodusware/decgraph/internal/dectools"
	"github.com/nodusware/decgraph/internal/graph"
	"github.com/nodusware/decgraph/internal/prompts"
	"github.com/nodusware/decgraph/internal/query"
	"github.com/nodusware/decgraph/internal/resources"
	"github.com/nodusware/decgraph/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
// This is the single place where all dependencies are resolved.
//
// The returned cleanup function closes the store's database connection
// and must be called on shutdown (typically via defer). It is always
// non-nil and safe to call.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, noop, fmt.Errorf("opening decision store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Warn("store close", "error", err)
		}
	}

	// The projection caches a frozen view of the active generation.
	// Any store mutation invalidates it; the next query rebuilds.
	// Hop distances computed during rebuild are written back to the
	// decisions table as advisory data.
	proj := graph.New(st, log,
		graph.WithWarnAfter(cfg.WarnAfter()),
		graph.WithPersist(func(origin int64, dist map[int64]int) {
			if err := st.WriteHopDistances(dist); err != nil {
				log.Warn("persisting hop distances", "origin", origin, "error", err)
			}
		}),
	)
	st.OnChange(proj.Invalidate)

	eng := query.New(proj, log)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"decgraph",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register query tools (progressive disclosure ladder) ---

	topTool := dectools.NewTopTool(eng)
	s.AddTool(topTool.Definition(), topTool.Handle)

	neighborhoodTool := dectools.NewNeighborhoodTool(eng)
	s.AddTool(neighborhoodTool.Definition(), neighborhoodTool.Handle)

	contextTool := dectools.NewContextTool(eng)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	// --- Register authoring tools ---

	recordTool := dectools.NewRecordTool(st)
	s.AddTool(recordTool.Definition(), recordTool.Handle)

	linkTool := dectools.NewLinkTool(st)
	s.AddTool(linkTool.Definition(), linkTool.Handle)

	statsTool := dectools.NewStatsTool(st, proj)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	// --- Register prompts ---

	explorePrompt := prompts.NewExplorePrompt()
	s.AddPrompt(explorePrompt.Definition(), explorePrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(st, proj)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used when store initialization failed.
func noop() {}

// serverInstructions returns the system-level guidance sent to MCP clients.
func serverInstructions() string {
	return `decgraph is a decision knowledge graph. Query it in three steps:

1. dec_top — the few most important decisions (start here, cheapest call)
2. dec_neighborhood — a decision plus its 1-2 hop neighbors
3. dec_context — everything about one decision, including full rationale

Only escalate to the next step when the current one is not enough.
Record new decisions with dec_record and connect them with dec_link.
dec_stats shows totals and the active schema generation.`
}
