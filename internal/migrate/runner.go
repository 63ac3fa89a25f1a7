package migrate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nodusware/decgraph/internal/store"
)

// Filenames under <datadir>/migrations/<runID>/.
const (
	RunsDir         = "migrations"
	RunStateFile    = "run.json"
	SnapshotFile    = "snapshot.json"
	TransformedFile = "transformed.json"
	IdentityMapFile = "identity_map.json"
	ValidationFile  = "validation.json"
	SwitchoverFile  = "switchover.json"
)

// RunState tracks one migration run across independently invoked steps.
type RunState struct {
	RunID            string `json:"run_id"`
	StartedAt        string `json:"started_at"`
	SourceGeneration int    `json:"source_generation"`
	TargetGeneration int    `json:"target_generation,omitempty"`
	LastStep         string `json:"last_step"`
}

// ExportReport is the machine-readable result of the export step.
type ExportReport struct {
	RunID         string `json:"run_id"`
	Generation    int    `json:"generation"`
	Decisions     int    `json:"decisions"`
	Relationships int    `json:"relationships"`
	SnapshotPath  string `json:"snapshot_path"`
	ExportedAt    string `json:"exported_at"`
}

// TransformReport is the machine-readable result of the transform step.
type TransformReport struct {
	RunID            string `json:"run_id"`
	DecisionsIn      int    `json:"decisions_in"`
	DecisionsOut     int    `json:"decisions_out"`
	RelationshipsIn  int    `json:"relationships_in"`
	RelationshipsOut int    `json:"relationships_out"`
	IdentityMapSize  int    `json:"identity_map_size"`
	TransformedAt    string `json:"transformed_at"`
}

// SwitchoverReport is the machine-readable result of switchover/rollback.
type SwitchoverReport struct {
	RunID          string `json:"run_id,omitempty"`
	FromGeneration int    `json:"from_generation"`
	ToGeneration   int    `json:"to_generation"`
	SwitchedAt     string `json:"switched_at"`
}

// Runner orchestrates migration steps against one store, persisting the
// intermediate artifacts so each step can run in a separate process
// invocation.
type Runner struct {
	store *store.Store
	log   *slog.Logger
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default.
func NewRunner(st *store.Store, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: st, log: log}
}

func (r *Runner) runsRoot() string {
	return filepath.Join(r.store.DataDir(), RunsDir)
}

func (r *Runner) runDir(runID string) string {
	return filepath.Join(r.runsRoot(), runID)
}

// LatestRun returns the most recently started run ID, or an error when no
// run exists.
func (r *Runner) LatestRun() (string, error) {
	entries, err := os.ReadDir(r.runsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no migration run found; run export first")
		}
		return "", err
	}

	var latestID, latestStart string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var state RunState
		if err := readJSON(filepath.Join(r.runDir(e.Name()), RunStateFile), &state); err != nil {
			continue
		}
		if state.StartedAt > latestStart {
			latestStart = state.StartedAt
			latestID = state.RunID
		}
	}
	if latestID == "" {
		return "", fmt.Errorf("no migration run found; run export first")
	}
	return latestID, nil
}

// resolveRun defaults an empty run ID to the latest run.
func (r *Runner) resolveRun(runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	return r.LatestRun()
}

func (r *Runner) loadState(runID string) (*RunState, error) {
	var state RunState
	if err := readJSON(filepath.Join(r.runDir(runID), RunStateFile), &state); err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return &state, nil
}

func (r *Runner) saveState(state *RunState) error {
	return writeJSON(filepath.Join(r.runDir(state.RunID), RunStateFile), state)
}

// ─── Steps ───────────────────────────────────────────────────────────────────

// Export snapshots the active generation into a new run directory.
func (r *Runner) Export() (*ExportReport, error) {
	snap, err := r.store.ExportSnapshot()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	runID := uuid.NewString()
	dir := r.runDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: creating run directory: %w", err)
	}

	snapPath := filepath.Join(dir, SnapshotFile)
	if err := writeJSON(snapPath, snap); err != nil {
		return nil, fmt.Errorf("export: writing snapshot: %w", err)
	}
	state := &RunState{
		RunID:            runID,
		StartedAt:        store.Now(),
		SourceGeneration: snap.Generation,
		LastStep:         "export",
	}
	if err := r.saveState(state); err != nil {
		return nil, err
	}

	report := &ExportReport{
		RunID:         runID,
		Generation:    snap.Generation,
		Decisions:     len(snap.Decisions),
		Relationships: len(snap.Relationships),
		SnapshotPath:  snapPath,
		ExportedAt:    snap.ExportedAt,
	}
	r.log.Info("snapshot exported", "run", runID, "generation", snap.Generation,
		"decisions", report.Decisions, "relationships", report.Relationships)
	return report, nil
}

// Transform applies the mapping rules to a run's exported snapshot and
// persists the transformed snapshot plus the identity map.
func (r *Runner) Transform(runID string, rules Rules) (*TransformReport, error) {
	runID, err := r.resolveRun(runID)
	if err != nil {
		return nil, err
	}
	dir := r.runDir(runID)

	var snap store.Snapshot
	if err := readJSON(filepath.Join(dir, SnapshotFile), &snap); err != nil {
		return nil, fmt.Errorf("transform: reading snapshot for run %s: %w", runID, err)
	}

	transformed, idMap, err := Transform(&snap, rules, r.log)
	if err != nil {
		return nil, err
	}

	if err := writeJSON(filepath.Join(dir, TransformedFile), transformed); err != nil {
		return nil, fmt.Errorf("transform: writing output: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, IdentityMapFile), idMap); err != nil {
		return nil, fmt.Errorf("transform: writing identity map: %w", err)
	}

	state, err := r.loadState(runID)
	if err != nil {
		return nil, err
	}
	state.LastStep = "transform"
	if err := r.saveState(state); err != nil {
		return nil, err
	}

	return &TransformReport{
		RunID:            runID,
		DecisionsIn:      len(snap.Decisions),
		DecisionsOut:     len(transformed.Decisions),
		RelationshipsIn:  len(snap.Relationships),
		RelationshipsOut: len(transformed.Relationships),
		IdentityMapSize:  len(idMap),
		TransformedAt:    store.Now(),
	}, nil
}

// loadTransformed reads the transformed snapshot and identity map of a run.
func (r *Runner) loadTransformed(runID string) (*store.Snapshot, IdentityMap, error) {
	dir := r.runDir(runID)
	var snap store.Snapshot
	if err := readJSON(filepath.Join(dir, TransformedFile), &snap); err != nil {
		return nil, nil, fmt.Errorf("reading transformed snapshot for run %s: %w", runID, err)
	}
	var idMap IdentityMap
	if err := readJSON(filepath.Join(dir, IdentityMapFile), &idMap); err != nil {
		return nil, nil, fmt.Errorf("reading identity map for run %s: %w", runID, err)
	}
	return &snap, idMap, nil
}

// Reingest writes a run's transformed snapshot into a fresh inactive
// generation and persists the validation report. A *ValidationError is
// returned alongside the report when any integrity check fails.
func (r *Runner) Reingest(runID string) (*ValidationReport, error) {
	runID, err := r.resolveRun(runID)
	if err != nil {
		return nil, err
	}
	snap, idMap, err := r.loadTransformed(runID)
	if err != nil {
		return nil, err
	}

	report, gen, err := Reingest(r.store, snap, idMap, r.log)
	if report != nil {
		report.RunID = runID
		_ = writeJSON(filepath.Join(r.runDir(runID), ValidationFile), report)
	}
	if gen != 0 {
		if state, stateErr := r.loadState(runID); stateErr == nil {
			state.TargetGeneration = gen
			state.LastStep = "reingest"
			_ = r.saveState(state)
		}
	}
	return report, err
}

// Validate re-runs the integrity checks for a run's target generation.
func (r *Runner) Validate(runID string) (*ValidationReport, error) {
	runID, err := r.resolveRun(runID)
	if err != nil {
		return nil, err
	}
	state, err := r.loadState(runID)
	if err != nil {
		return nil, err
	}
	if state.TargetGeneration == 0 {
		return nil, fmt.Errorf("run %s has not been reingested yet", runID)
	}
	snap, idMap, err := r.loadTransformed(runID)
	if err != nil {
		return nil, err
	}

	report, err := Validate(r.store, state.TargetGeneration, snap, idMap)
	if report != nil {
		report.RunID = runID
		_ = writeJSON(filepath.Join(r.runDir(runID), ValidationFile), report)
	}
	return report, err
}

// Switchover promotes a run's validated target generation to active.
// It refuses to run before a passing validation report exists.
func (r *Runner) Switchover(runID string) (*SwitchoverReport, error) {
	runID, err := r.resolveRun(runID)
	if err != nil {
		return nil, err
	}
	state, err := r.loadState(runID)
	if err != nil {
		return nil, err
	}
	if state.TargetGeneration == 0 {
		return nil, fmt.Errorf("run %s has not been reingested yet", runID)
	}

	var validation ValidationReport
	if err := readJSON(filepath.Join(r.runDir(runID), ValidationFile), &validation); err != nil {
		return nil, fmt.Errorf("switchover: no validation report for run %s: %w", runID, err)
	}
	if !validation.Valid {
		return nil, &ValidationError{Report: &validation}
	}

	from := state.SourceGeneration
	if err := Switchover(r.store, state.TargetGeneration); err != nil {
		return nil, err
	}

	report := &SwitchoverReport{
		RunID:          runID,
		FromGeneration: from,
		ToGeneration:   state.TargetGeneration,
		SwitchedAt:     store.Now(),
	}
	_ = writeJSON(filepath.Join(r.runDir(runID), SwitchoverFile), report)

	state.LastStep = "switchover"
	_ = r.saveState(state)

	r.log.Info("switchover complete", "run", runID,
		"from", from, "to", state.TargetGeneration)
	return report, nil
}

// Rollback restores the previous generation as active.
func (r *Runner) Rollback() (*SwitchoverReport, error) {
	active, err := r.store.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	prev, err := Rollback(r.store)
	if err != nil {
		return nil, err
	}
	r.log.Info("rollback complete", "from", active, "to", prev)
	return &SwitchoverReport{
		FromGeneration: active,
		ToGeneration:   prev,
		SwitchedAt:     store.Now(),
	}, nil
}

// Prune drops every generation older than the active one, closing the
// rollback window and reclaiming the grace-period data.
func (r *Runner) Prune() ([]int, error) {
	active, err := r.store.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	gens, err := r.store.Generations()
	if err != nil {
		return nil, err
	}

	var dropped []int
	for _, g := range gens {
		if g >= active {
			continue
		}
		if err := r.store.DropGeneration(g); err != nil {
			return dropped, err
		}
		dropped = append(dropped, g)
		r.log.Info("generation dropped", "generation", g)
	}
	return dropped, nil
}

// ─── File helpers ────────────────────────────────────────────────────────────

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
