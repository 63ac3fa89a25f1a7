// Package store implements the decision store: a durable record of
// architectural decisions and their typed relationships, kept in SQLite
// with integer surrogate keys.
//
// Storage is generation-aware. Each schema generation owns its own table
// set (decisions_g<N>, relationships_g<N>); a generations meta table holds
// the single active flag that selects which set serves reads and writes.
// Two generations may coexist on disk during a migration window; the
// legacy pre-generation layout (unsuffixed decisions/decision_links
// tables) is registered as generation 0 when detected.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when a referenced decision or relationship does
// not exist in the active generation.
var ErrNotFound = errors.New("not found")

// DBFileName is the SQLite database file created under the data directory.
const DBFileName = "decisions.db"

// Store is the decision store backed by SQLite.
type Store struct {
	db       *sql.DB
	dataDir  string
	hooks    storeHooks
	onChange func()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// storeHooks allow tests to intercept writes and commits, e.g. to exercise
// the switchover failure path without corrupting a real database.
type storeHooks struct {
	exec   func(db execer, query string, args ...any) (sql.Result, error)
	commit func(tx *sql.Tx) error
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// Open creates the data directory if needed, opens SQLite with WAL mode,
// and bootstraps the generation metadata. A database containing the legacy
// unsuffixed layout is registered as generation 0; a fresh database starts
// at generation 1 with the current layout.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dataDir: dataDir}
	if err := s.bootstrap(); err != nil {
		return nil, fmt.Errorf("store: bootstrap: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the directory holding the database file. Migration
// reports and identity maps are persisted alongside it.
func (s *Store) DataDir() string { return s.dataDir }

// OnChange registers a callback invoked after every successful write to
// the active generation (decision or relationship create/update/delete,
// and generation switchover). Used by the graph projection to invalidate
// its caches. Only one callback is held; nil clears it.
func (s *Store) OnChange(fn func()) { s.onChange = fn }

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// ─── Bootstrap ───────────────────────────────────────────────────────────────

func (s *Store) bootstrap() error {
	if _, err := s.execHook(s.db, `
		CREATE TABLE IF NOT EXISTS generations (
			generation INTEGER PRIMARY KEY,
			layout     TEXT    NOT NULL DEFAULT 'current',
			active     INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL DEFAULT (datetime('now'))
		);
	`); err != nil {
		return err
	}

	var registered int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&registered); err != nil {
		return err
	}
	if registered > 0 {
		return nil
	}

	// Empty meta table: either a fresh database or a legacy one predating
	// generation tracking.
	if s.hasLegacyTables() {
		_, err := s.execHook(s.db,
			`INSERT INTO generations (generation, layout, active) VALUES (0, 'legacy', 1)`)
		return err
	}

	if err := s.createGenerationTables(1); err != nil {
		return err
	}
	_, err := s.execHook(s.db,
		`INSERT INTO generations (generation, layout, active) VALUES (1, 'current', 1)`)
	return err
}

// hasLegacyTables reports whether the pre-generation layout is present.
func (s *Store) hasLegacyTables() bool {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='decisions'`,
	).Scan(&name)
	return err == nil
}

// decisionTable and relationshipTable name the table set of a generation.
// Generation 0 is the legacy layout with its original table names.
func decisionTable(gen int) string {
	if gen == 0 {
		return "decisions"
	}
	return fmt.Sprintf("decisions_g%d", gen)
}

func relationshipTable(gen int) string {
	if gen == 0 {
		return "decision_links"
	}
	return fmt.Sprintf("relationships_g%d", gen)
}

// createGenerationTables creates a fresh current-layout table set for gen.
func (s *Store) createGenerationTables(gen int) error {
	dt := decisionTable(gen)
	rt := relationshipTable(gen)
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			summary        TEXT    NOT NULL,
			rationale      TEXT,
			implementation TEXT,
			status         TEXT    NOT NULL DEFAULT 'proposed',
			tags           TEXT    NOT NULL DEFAULT '[]',
			alternatives   TEXT    NOT NULL DEFAULT '[]',
			graph_version  INTEGER NOT NULL,
			hop_distance   INTEGER,
			created_at     TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at     TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_status  ON %[1]s(status);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created ON %[1]s(created_at DESC);

		CREATE TABLE IF NOT EXISTS %[2]s (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id  INTEGER NOT NULL,
			target_id  INTEGER NOT NULL,
			type       TEXT    NOT NULL,
			properties TEXT    NOT NULL DEFAULT '{}',
			strength   REAL    NOT NULL DEFAULT 1.0,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (source_id) REFERENCES %[1]s(id) ON DELETE CASCADE,
			FOREIGN KEY (target_id) REFERENCES %[1]s(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_%[2]s_source ON %[2]s(source_id);
		CREATE INDEX IF NOT EXISTS idx_%[2]s_target ON %[2]s(target_id);
		CREATE INDEX IF NOT EXISTS idx_%[2]s_type   ON %[2]s(type);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_%[2]s_unique ON %[2]s(source_id, target_id, type);
	`, dt, rt)

	_, err := s.execHook(s.db, schema)
	return err
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// marshalJSON encodes tags/alternatives/properties for storage, mapping
// nil to the given empty literal so columns never hold SQL NULL.
func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json column: %w", err)
	}
	if string(raw) == "null" { // typed nil slice or map
		return empty, nil
	}
	return string(raw), nil
}

func unmarshalTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func unmarshalAlternatives(raw string) []Alternative {
	if raw == "" {
		return nil
	}
	var alts []Alternative
	if err := json.Unmarshal([]byte(raw), &alts); err != nil {
		return nil
	}
	return alts
}

func unmarshalProperties(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil
	}
	return props
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
