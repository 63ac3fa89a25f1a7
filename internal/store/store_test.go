package store_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/nodusware/decgraph/internal/store"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// newTestStore opens a fresh store in a temp directory.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// mustCreate inserts a decision and returns its ID.
func mustCreate(t *testing.T, st *store.Store, summary string, tags ...string) int64 {
	t.Helper()
	id, err := st.CreateDecision(store.AddDecisionParams{Summary: summary, Tags: tags})
	if err != nil {
		t.Fatalf("creating decision %q: %v", summary, err)
	}
	return id
}

// seedLegacyDB creates a database in the pre-generation layout under dir
// and returns dir. The layout uses TEXT slug keys, a semicolon-joined tag
// blob, nullable status, and free-string link kinds.
func seedLegacyDB(t *testing.T, dir string) string {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, store.DBFileName))
	if err != nil {
		t.Fatalf("opening legacy db: %v", err)
	}
	defer db.Close()

	schema := `
		CREATE TABLE decisions (
			key            TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			rationale      TEXT,
			implementation TEXT,
			status         TEXT,
			tags           TEXT,
			superseded_by  TEXT,
			deprecated     INTEGER DEFAULT 0,
			created_at     TEXT NOT NULL,
			updated_at     TEXT
		);
		CREATE TABLE decision_links (
			source_key TEXT NOT NULL,
			target_key TEXT NOT NULL,
			kind       TEXT NOT NULL,
			weight     REAL,
			created_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating legacy schema: %v", err)
	}

	seed := `
		INSERT INTO decisions (key, title, rationale, status, tags, superseded_by, deprecated, created_at) VALUES
			('use-sqlite',  'Use SQLite for storage',  'Zero-ops local persistence', NULL, 'storage;db;storage', '',            0, '2024-01-10 09:00:00'),
			('wal-mode',    'Enable WAL mode',          NULL,                         NULL, 'db',                 '',            0, '2024-01-11 09:00:00'),
			('old-format',  'Custom binary format',     'Seemed fast',                NULL, '',                   'use-sqlite',  0, '2024-01-09 09:00:00'),
			('flat-files',  'Flat file storage',        NULL,                         NULL, 'storage',            '',            1, '2024-01-08 09:00:00');
		INSERT INTO decision_links (source_key, target_key, kind, weight, created_at) VALUES
			('wal-mode',   'use-sqlite', 'depends_on', 0.9,  '2024-01-11 10:00:00'),
			('use-sqlite', 'old-format', 'supersedes', NULL, '2024-01-10 10:00:00');
	`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("seeding legacy data: %v", err)
	}
	return dir
}

// ─── Open & bootstrap ────────────────────────────────────────────────────────

func TestOpen_FreshDatabase(t *testing.T) {
	st := newTestStore(t)

	gen, err := st.ActiveGeneration()
	if err != nil {
		t.Fatalf("ActiveGeneration: %v", err)
	}
	if gen != 1 {
		t.Errorf("fresh database active generation = %d, want 1", gen)
	}

	n, err := st.CountDecisions()
	if err != nil {
		t.Fatalf("CountDecisions: %v", err)
	}
	if n != 0 {
		t.Errorf("fresh database has %d decisions, want 0", n)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	id := mustCreate(t, st, "First decision")
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := store.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	d, err := st2.GetDecision(id)
	if err != nil {
		t.Fatalf("GetDecision after reopen: %v", err)
	}
	if d.Summary != "First decision" {
		t.Errorf("summary = %q, want %q", d.Summary, "First decision")
	}
	gen, _ := st2.ActiveGeneration()
	if gen != 1 {
		t.Errorf("reopened generation = %d, want 1", gen)
	}
}

func TestOpen_LegacyDatabaseRegisteredAsGenerationZero(t *testing.T) {
	dir := seedLegacyDB(t, t.TempDir())

	st, err := store.Open(dir)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer st.Close()

	gen, err := st.ActiveGeneration()
	if err != nil {
		t.Fatalf("ActiveGeneration: %v", err)
	}
	if gen != 0 {
		t.Errorf("legacy database active generation = %d, want 0", gen)
	}

	// Writes are refused until a migration installs the current layout.
	_, err = st.CreateDecision(store.AddDecisionParams{Summary: "should fail"})
	if err == nil {
		t.Error("CreateDecision on legacy generation should fail")
	}
}

// ─── Decision CRUD ───────────────────────────────────────────────────────────

func TestCreateDecision_Defaults(t *testing.T) {
	st := newTestStore(t)
	id := mustCreate(t, st, "Adopt structured logging", "logging", "ops", "logging")

	d, err := st.GetDecision(id)
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if d.Status != store.StatusProposed {
		t.Errorf("default status = %q, want %q", d.Status, store.StatusProposed)
	}
	// Duplicate tag dropped, first-seen order kept.
	if len(d.Tags) != 2 || d.Tags[0] != "logging" || d.Tags[1] != "ops" {
		t.Errorf("tags = %v, want [logging ops]", d.Tags)
	}
	if d.Rationale != nil {
		t.Errorf("empty rationale should be nil, got %q", *d.Rationale)
	}
}

func TestCreateDecision_RequiresSummary(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.CreateDecision(store.AddDecisionParams{Summary: "  "}); err == nil {
		t.Error("blank summary should be rejected")
	}
}

func TestCreateDecision_RejectsUnknownStatus(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateDecision(store.AddDecisionParams{Summary: "x", Status: "draft"})
	if err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestGetDecision_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetDecision(999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDecisions_OrdersByStatusThenRecency(t *testing.T) {
	st := newTestStore(t)
	proposed := mustCreate(t, st, "Proposed thing")
	acceptedID := mustCreate(t, st, "Accepted thing")
	if _, err := st.UpdateStatus(acceptedID, "accepted"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	list, err := st.ListDecisions(0)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d decisions, want 2", len(list))
	}
	if list[0].ID != acceptedID {
		t.Errorf("accepted decision should rank first, got #%d", list[0].ID)
	}
	if list[1].ID != proposed {
		t.Errorf("proposed decision should rank second, got #%d", list[1].ID)
	}
}

// ─── Status transitions ──────────────────────────────────────────────────────

func TestUpdateStatus_LegalPath(t *testing.T) {
	st := newTestStore(t)
	id := mustCreate(t, st, "Lifecycle test")

	for _, next := range []string{"accepted", "superseded"} {
		d, err := st.UpdateStatus(id, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if string(d.Status) != next {
			t.Errorf("status = %q, want %q", d.Status, next)
		}
	}
}

func TestUpdateStatus_IllegalTransitions(t *testing.T) {
	st := newTestStore(t)

	cases := []struct {
		name string
		path []string // legal setup transitions
		next string   // the illegal one
	}{
		{"proposed to superseded", nil, "superseded"},
		{"accepted back to proposed", []string{"accepted"}, "proposed"},
		{"superseded is terminal", []string{"accepted", "superseded"}, "accepted"},
		{"deprecated to accepted", []string{"accepted", "deprecated"}, "accepted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := mustCreate(t, st, "decision for "+tc.name)
			for _, s := range tc.path {
				if _, err := st.UpdateStatus(id, s); err != nil {
					t.Fatalf("setup transition to %s: %v", s, err)
				}
			}
			if _, err := st.UpdateStatus(id, tc.next); err == nil {
				t.Errorf("transition to %s should be illegal", tc.next)
			}
		})
	}
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	st := newTestStore(t)
	id := mustCreate(t, st, "Idempotent status")
	if _, err := st.UpdateStatus(id, "proposed"); err != nil {
		t.Errorf("same-status update should succeed: %v", err)
	}
}

// ─── Relationships ───────────────────────────────────────────────────────────

func TestCreateRelationship(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "Decision A")
	b := mustCreate(t, st, "Decision B")

	id, err := st.CreateRelationship(store.AddRelationshipParams{
		SourceID: a, TargetID: b, Type: "DEPENDS_ON", Strength: 0.8,
	})
	if err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}

	rels, err := st.RelationshipsFor(a)
	if err != nil {
		t.Fatalf("RelationshipsFor: %v", err)
	}
	if len(rels) != 1 || rels[0].ID != id {
		t.Fatalf("rels = %+v, want single relationship #%d", rels, id)
	}
	if rels[0].Strength != 0.8 {
		t.Errorf("strength = %v, want 0.8", rels[0].Strength)
	}
}

func TestCreateRelationship_DefaultStrength(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "A")
	b := mustCreate(t, st, "B")

	st.CreateRelationship(store.AddRelationshipParams{SourceID: a, TargetID: b, Type: "RELATES_TO"})
	rels, _ := st.RelationshipsFor(a)
	if len(rels) != 1 || rels[0].Strength != 1.0 {
		t.Errorf("default strength = %v, want 1.0", rels[0].Strength)
	}
}

func TestCreateRelationship_RejectsUnknownType(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "A")
	b := mustCreate(t, st, "B")

	_, err := st.CreateRelationship(store.AddRelationshipParams{
		SourceID: a, TargetID: b, Type: "BLOCKS",
	})
	if err == nil {
		t.Error("unknown relation type should be rejected")
	}
}

func TestCreateRelationship_SelfLoops(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "Self-referential")

	// Only RELATES_TO may form a self-loop.
	if _, err := st.CreateRelationship(store.AddRelationshipParams{
		SourceID: a, TargetID: a, Type: "RELATES_TO",
	}); err != nil {
		t.Errorf("RELATES_TO self-loop should be allowed: %v", err)
	}
	if _, err := st.CreateRelationship(store.AddRelationshipParams{
		SourceID: a, TargetID: a, Type: "DEPENDS_ON",
	}); err == nil {
		t.Error("DEPENDS_ON self-loop should be rejected")
	}
}

func TestCreateRelationship_OrphanEndpoints(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "Exists")

	_, err := st.CreateRelationship(store.AddRelationshipParams{
		SourceID: a, TargetID: 999, Type: "IMPLEMENTS",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing target err = %v, want ErrNotFound", err)
	}
	_, err = st.CreateRelationship(store.AddRelationshipParams{
		SourceID: 999, TargetID: a, Type: "IMPLEMENTS",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing source err = %v, want ErrNotFound", err)
	}
}

func TestCreateRelationship_DuplicateEdge(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "A")
	b := mustCreate(t, st, "B")

	params := store.AddRelationshipParams{SourceID: a, TargetID: b, Type: "EXTENDS"}
	if _, err := st.CreateRelationship(params); err != nil {
		t.Fatalf("first edge: %v", err)
	}
	_, err := st.CreateRelationship(params)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("duplicate edge err = %v, want 'already exists'", err)
	}

	// Same endpoints with a different type are fine.
	if _, err := st.CreateRelationship(store.AddRelationshipParams{
		SourceID: a, TargetID: b, Type: "RELATES_TO",
	}); err != nil {
		t.Errorf("different-type edge should be allowed: %v", err)
	}
}

func TestDeleteRelationship(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "A")
	b := mustCreate(t, st, "B")
	id, _ := st.CreateRelationship(store.AddRelationshipParams{SourceID: a, TargetID: b, Type: "VALIDATES"})

	if err := st.DeleteRelationship(id); err != nil {
		t.Fatalf("DeleteRelationship: %v", err)
	}
	if err := st.DeleteRelationship(id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

// ─── Change notification ─────────────────────────────────────────────────────

func TestOnChange_FiresOnWrites(t *testing.T) {
	st := newTestStore(t)
	var fired int
	st.OnChange(func() { fired++ })

	a := mustCreate(t, st, "A")
	b := mustCreate(t, st, "B")
	relID, _ := st.CreateRelationship(store.AddRelationshipParams{SourceID: a, TargetID: b, Type: "RELATES_TO"})
	st.UpdateStatus(a, "accepted")
	st.DeleteRelationship(relID)

	if fired != 5 {
		t.Errorf("onChange fired %d times, want 5", fired)
	}
}

func TestWriteHopDistances_DoesNotNotify(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "A")

	var fired int
	st.OnChange(func() { fired++ })

	if err := st.WriteHopDistances(map[int64]int{a: 0}); err != nil {
		t.Fatalf("WriteHopDistances: %v", err)
	}
	if fired != 0 {
		t.Errorf("hop distance persistence fired onChange %d times, want 0", fired)
	}

	d, _ := st.GetDecision(a)
	if d.HopDistance == nil || *d.HopDistance != 0 {
		t.Errorf("hop distance = %v, want 0", d.HopDistance)
	}
}

// ─── Generations ─────────────────────────────────────────────────────────────

func TestGenerationLifecycle(t *testing.T) {
	st := newTestStore(t)
	mustCreate(t, st, "In generation 1")

	gen, err := st.CreateGeneration()
	if err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}
	if gen != 2 {
		t.Errorf("new generation = %d, want 2", gen)
	}

	// Still serving from generation 1.
	if active, _ := st.ActiveGeneration(); active != 1 {
		t.Errorf("active = %d, want 1 before promote", active)
	}

	if err := st.PromoteGeneration(gen); err != nil {
		t.Fatalf("PromoteGeneration: %v", err)
	}
	if active, _ := st.ActiveGeneration(); active != 2 {
		t.Errorf("active = %d, want 2 after promote", active)
	}

	// New generation starts empty; the old data is still on disk.
	if n, _ := st.CountDecisions(); n != 0 {
		t.Errorf("new generation has %d decisions, want 0", n)
	}

	// Rollback target is the previous generation.
	prev, err := st.PreviousGeneration()
	if err != nil {
		t.Fatalf("PreviousGeneration: %v", err)
	}
	if prev != 1 {
		t.Errorf("previous generation = %d, want 1", prev)
	}
	if err := st.PromoteGeneration(prev); err != nil {
		t.Fatalf("rollback promote: %v", err)
	}
	if n, _ := st.CountDecisions(); n != 1 {
		t.Errorf("after rollback, %d decisions, want 1", n)
	}
}

func TestPromoteGeneration_Unknown(t *testing.T) {
	st := newTestStore(t)
	if err := st.PromoteGeneration(7); err == nil {
		t.Error("promoting an unregistered generation should fail")
	}
}

func TestDropGeneration_RefusesActive(t *testing.T) {
	st := newTestStore(t)
	if err := st.DropGeneration(1); err == nil {
		t.Error("dropping the active generation should fail")
	}

	gen, _ := st.CreateGeneration()
	if err := st.DropGeneration(gen); err != nil {
		t.Fatalf("dropping inactive generation: %v", err)
	}
	if ok, _ := st.HasGeneration(gen); ok {
		t.Errorf("generation %d should be gone", gen)
	}
}

// ─── Snapshot export ─────────────────────────────────────────────────────────

func TestExportSnapshot_Legacy(t *testing.T) {
	dir := seedLegacyDB(t, t.TempDir())
	st, err := store.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	snap, err := st.ExportSnapshot()
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if snap.Generation != 0 {
		t.Errorf("snapshot generation = %d, want 0", snap.Generation)
	}
	if len(snap.Decisions) != 4 {
		t.Fatalf("exported %d decisions, want 4", len(snap.Decisions))
	}
	if len(snap.Relationships) != 2 {
		t.Fatalf("exported %d relationships, want 2", len(snap.Relationships))
	}

	// Raw fields come through untouched; interpretation is the
	// transform step's job.
	byKey := map[string]store.SnapshotDecision{}
	for _, d := range snap.Decisions {
		byKey[d.LegacyKey] = d
	}
	if d := byKey["use-sqlite"]; d.TagsRaw != "storage;db;storage" {
		t.Errorf("use-sqlite raw tags = %q", d.TagsRaw)
	}
	if d := byKey["old-format"]; d.SupersededBy != "use-sqlite" {
		t.Errorf("old-format superseded_by = %q", d.SupersededBy)
	}
	if d := byKey["flat-files"]; !d.Deprecated {
		t.Error("flat-files should be flagged deprecated")
	}

	// NULL weight defaults to 1.0 at export.
	for _, r := range snap.Relationships {
		if r.TypeRaw == "supersedes" && r.Strength != 1.0 {
			t.Errorf("supersedes strength = %v, want 1.0", r.Strength)
		}
	}
}

func TestExportSnapshot_Current(t *testing.T) {
	st := newTestStore(t)
	a := mustCreate(t, st, "A", "tag1")
	b := mustCreate(t, st, "B")
	st.CreateRelationship(store.AddRelationshipParams{SourceID: a, TargetID: b, Type: "IMPLEMENTS"})

	snap, err := st.ExportSnapshot()
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if len(snap.Decisions) != 2 || len(snap.Relationships) != 1 {
		t.Fatalf("snapshot = %d decisions / %d relationships, want 2/1",
			len(snap.Decisions), len(snap.Relationships))
	}
	if snap.Decisions[0].LegacyKey == "" {
		t.Error("current-layout export should carry stringified IDs as keys")
	}
	if snap.Relationships[0].TypeRaw != "IMPLEMENTS" {
		t.Errorf("relationship type = %q", snap.Relationships[0].TypeRaw)
	}
}

func TestInsertSnapshot_RefusesActiveGeneration(t *testing.T) {
	st := newTestStore(t)
	if err := st.InsertSnapshot(1, &store.Snapshot{}); err == nil {
		t.Error("inserting into the active generation should fail")
	}
}
