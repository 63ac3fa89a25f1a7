package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodusware/decgraph/internal/migrate"
	"github.com/nodusware/decgraph/internal/store"
)

// Migration exit codes. Scripts key off these, so they are part of the
// CLI contract: 0 success, 2 validation failed (store untouched),
// 3 switchover failed (manual intervention required).
const (
	exitValidationFailed = 2
	exitSwitchoverFailed = 3
)

// migrateCmd builds the `decgraph migrate` command group. Each step runs
// in its own process invocation; run state is persisted under
// <data-dir>/migrations/<run-id>/ so steps can be inspected and resumed.
func migrateCmd(configPath *string) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema-generation migration steps",
		Long: "Migrate the decision store to a new schema generation:\n" +
			"export -> transform -> reingest -> validate -> switchover.\n" +
			"Each step prints a JSON report. The live store is only touched\n" +
			"at switchover; rollback re-activates the previous generation.",
	}
	cmd.PersistentFlags().StringVar(&runID, "run", "", "Migration run ID (default: latest run)")

	// withRunner opens the store, builds a Runner, and hands it to fn.
	// The store is opened per invocation because each migration step is
	// a separate process.
	withRunner := func(fn func(*migrate.Runner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("opening decision store: %w", err)
			}
			defer st.Close()

			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			return fn(migrate.NewRunner(st, log))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Export the active generation to a snapshot (begins a run)",
			RunE: withRunner(func(r *migrate.Runner) error {
				report, err := r.Export()
				if err != nil {
					return err
				}
				return printJSON(report)
			}),
		},
		&cobra.Command{
			Use:   "transform",
			Short: "Transform the exported snapshot to the new schema",
			RunE: withRunner(func(r *migrate.Runner) error {
				report, err := r.Transform(runID, migrate.DefaultRules())
				if err != nil {
					return err
				}
				return printJSON(report)
			}),
		},
		&cobra.Command{
			Use:   "reingest",
			Short: "Load the transformed snapshot into a new inactive generation",
			RunE: withRunner(func(r *migrate.Runner) error {
				report, err := r.Reingest(runID)
				if err != nil {
					return migrationErr(report, err)
				}
				return printJSON(report)
			}),
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Re-run validation checks against the new generation",
			RunE: withRunner(func(r *migrate.Runner) error {
				report, err := r.Validate(runID)
				if err != nil {
					return migrationErr(report, err)
				}
				return printJSON(report)
			}),
		},
		&cobra.Command{
			Use:   "switchover",
			Short: "Atomically promote the validated generation",
			RunE: withRunner(func(r *migrate.Runner) error {
				report, err := r.Switchover(runID)
				if err != nil {
					return migrationErr(nil, err)
				}
				return printJSON(report)
			}),
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Re-activate the previous generation",
			RunE: withRunner(func(r *migrate.Runner) error {
				report, err := r.Rollback()
				if err != nil {
					return err
				}
				return printJSON(report)
			}),
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Drop generations older than the active one",
			RunE: withRunner(func(r *migrate.Runner) error {
				dropped, err := r.Prune()
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"dropped_generations": dropped})
			}),
		},
	)

	return cmd
}

// migrationErr prints the failure report (when there is one) and maps
// migration error types to their exit codes. Validation failures leave
// the store untouched; switchover failures need manual intervention.
func migrationErr(report *migrate.ValidationReport, err error) error {
	var vErr *migrate.ValidationError
	if errors.As(err, &vErr) {
		_ = printJSON(vErr.Report)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitValidationFailed)
	}
	var sErr *migrate.SwitchoverError
	if errors.As(err, &sErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitSwitchoverFailed)
	}
	if report != nil {
		_ = printJSON(report)
	}
	return err
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
