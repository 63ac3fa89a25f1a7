// decgraph: Decision Knowledge Graph MCP Server
//
// An MCP server that stores architectural decisions in SQLite, projects
// them into an in-memory graph, and answers queries through a
// progressive-disclosure tool ladder.
//
// Usage:
//
//	decgraph serve             # Start MCP server (stdio transport)
//	decgraph migrate export    # Begin a schema migration run
//	decgraph version           # Print version
package main

import (
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nodusware/decgraph/internal/config"
	"github.com/nodusware/decgraph/internal/server"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "decgraph",
		Short:        "Decision knowledge graph MCP server",
		Long:         "decgraph stores architectural decisions in SQLite and serves them to MCP clients through a progressive-disclosure query API.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: <data-dir>/config.yaml)")
	rootCmd.Version = server.Version

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			s, cleanup, err := server.New(cfg)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			// stdout is the MCP transport; everything else goes to stderr.
			fmt.Fprintf(os.Stderr, "decgraph v%s ready (data: %s)\n", server.Version, cfg.DataDir)
			return mcpserver.ServeStdio(s)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the decgraph version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("decgraph v%s\n", server.Version)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config file path and loads it. An empty path
// falls back to the default location; a missing file yields defaults.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
