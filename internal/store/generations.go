package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// ─── Generation metadata ─────────────────────────────────────────────────────

// ActiveGeneration returns the generation whose table set currently serves
// reads and writes.
func (s *Store) ActiveGeneration() (int, error) {
	var gen int
	err := s.db.QueryRow(`SELECT generation FROM generations WHERE active = 1`).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("resolving active generation: %w", err)
	}
	return gen, nil
}

// Generations returns every registered generation in ascending order.
func (s *Store) Generations() ([]int, error) {
	rows, err := s.db.Query(`SELECT generation FROM generations ORDER BY generation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gens []int
	for rows.Next() {
		var g int
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// HasGeneration reports whether a generation is still registered (its
// table set has not been dropped).
func (s *Store) HasGeneration(gen int) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM generations WHERE generation = ?`, gen).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CreateGeneration registers the next schema generation with a freshly
// created, inactive table set and returns its number. Reingest writes
// here; the set never serves reads until switchover.
func (s *Store) CreateGeneration() (int, error) {
	var maxGen int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(generation), 0) FROM generations`).Scan(&maxGen); err != nil {
		return 0, fmt.Errorf("next generation: %w", err)
	}
	gen := maxGen + 1

	if err := s.createGenerationTables(gen); err != nil {
		return 0, fmt.Errorf("creating generation %d tables: %w", gen, err)
	}
	if _, err := s.execHook(s.db,
		`INSERT INTO generations (generation, layout, active) VALUES (?, 'current', 0)`, gen,
	); err != nil {
		return 0, fmt.Errorf("registering generation %d: %w", gen, err)
	}
	return gen, nil
}

// PromoteGeneration atomically makes gen the active generation: a single
// transaction clears the previous flag and sets the new one, so readers
// observe either the old generation or the new one, never a mix. The
// caller is responsible for quiescing writers first (maintenance window).
func (s *Store) PromoteGeneration(gen int) error {
	ok, err := s.HasGeneration(gen)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("generation %d is not registered", gen)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("switchover: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(tx, `UPDATE generations SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("switchover: clearing active flag: %w", err)
	}
	res, err := s.execHook(tx, `UPDATE generations SET active = 1 WHERE generation = ?`, gen)
	if err != nil {
		return fmt.Errorf("switchover: setting active flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("switchover: expected to activate 1 generation, activated %d", n)
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("switchover: commit: %w", err)
	}
	s.notifyChange()
	return nil
}

// PreviousGeneration returns the newest registered generation older than
// the active one, for rollback.
func (s *Store) PreviousGeneration() (int, error) {
	active, err := s.ActiveGeneration()
	if err != nil {
		return 0, err
	}
	var prev int
	err = s.db.QueryRow(
		`SELECT MAX(generation) FROM generations WHERE generation < ?`, active,
	).Scan(&prev)
	if err != nil {
		return 0, fmt.Errorf("no generation older than %d remains: %w", active, err)
	}
	return prev, nil
}

// DropGeneration removes a generation's table set and metadata. The
// active generation can never be dropped; this closes the rollback window
// for anything older.
func (s *Store) DropGeneration(gen int) error {
	active, err := s.ActiveGeneration()
	if err != nil {
		return err
	}
	if gen == active {
		return fmt.Errorf("refusing to drop active generation %d", gen)
	}
	ok, err := s.HasGeneration(gen)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("generation %d is not registered", gen)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("drop generation: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(tx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, relationshipTable(gen))); err != nil {
		return fmt.Errorf("dropping %s: %w", relationshipTable(gen), err)
	}
	if _, err := s.execHook(tx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, decisionTable(gen))); err != nil {
		return fmt.Errorf("dropping %s: %w", decisionTable(gen), err)
	}
	if _, err := s.execHook(tx, `DELETE FROM generations WHERE generation = ?`, gen); err != nil {
		return fmt.Errorf("unregistering generation %d: %w", gen, err)
	}
	return s.commitHook(tx)
}

// ─── Snapshot export ─────────────────────────────────────────────────────────

// ExportSnapshot serializes all decisions and relationships of the active
// generation into an immutable, self-contained snapshot. The single read
// transaction gives snapshot isolation against concurrent readers; it
// fails only on storage I/O errors.
func (s *Store) ExportSnapshot() (*Snapshot, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("export: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &Snapshot{Generation: gen, ExportedAt: Now()}
	if gen == 0 {
		err = s.exportLegacy(tx, snap)
	} else {
		err = s.exportCurrent(tx, gen, snap)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// exportLegacy reads the pre-generation layout: TEXT slug keys, a
// semicolon-joined unordered tag blob, a nullable status with
// superseded_by/deprecated fields to infer from, and free-string link
// kinds.
func (s *Store) exportLegacy(tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.Query(
		`SELECT key, title, COALESCE(rationale, ''), COALESCE(implementation, ''),
		        COALESCE(status, ''), COALESCE(tags, ''), COALESCE(superseded_by, ''),
		        COALESCE(deprecated, 0), created_at, COALESCE(updated_at, created_at)
		 FROM decisions ORDER BY datetime(created_at), key`)
	if err != nil {
		return fmt.Errorf("export: legacy decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d SnapshotDecision
		var deprecated int
		if err := rows.Scan(
			&d.LegacyKey, &d.Summary, &d.Rationale, &d.Implementation,
			&d.StatusRaw, &d.TagsRaw, &d.SupersededBy, &deprecated,
			&d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return fmt.Errorf("export: scanning legacy decision: %w", err)
		}
		d.Deprecated = deprecated != 0
		snap.Decisions = append(snap.Decisions, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	linkRows, err := tx.Query(
		`SELECT source_key, target_key, kind, COALESCE(weight, 1.0), created_at
		 FROM decision_links ORDER BY datetime(created_at), source_key, target_key`)
	if err != nil {
		return fmt.Errorf("export: legacy links: %w", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var r SnapshotRelationship
		if err := linkRows.Scan(&r.SourceKey, &r.TargetKey, &r.TypeRaw, &r.Strength, &r.CreatedAt); err != nil {
			return fmt.Errorf("export: scanning legacy link: %w", err)
		}
		snap.Relationships = append(snap.Relationships, r)
	}
	return linkRows.Err()
}

// exportCurrent reads a current-layout generation. Legacy keys are the
// stringified surrogate keys so re-migration follows the same path.
func (s *Store) exportCurrent(tx *sql.Tx, gen int, snap *Snapshot) error {
	rows, err := tx.Query(fmt.Sprintf(
		`SELECT id, summary, COALESCE(rationale, ''), COALESCE(implementation, ''),
		        status, tags, alternatives, created_at, updated_at
		 FROM %s ORDER BY datetime(created_at), id`, decisionTable(gen)))
	if err != nil {
		return fmt.Errorf("export: decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d SnapshotDecision
		var id int64
		var tags, alts string
		if err := rows.Scan(
			&id, &d.Summary, &d.Rationale, &d.Implementation,
			&d.StatusRaw, &tags, &alts, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return fmt.Errorf("export: scanning decision: %w", err)
		}
		d.LegacyKey = strconv.FormatInt(id, 10)
		d.Tags = unmarshalTags(tags)
		d.Alternatives = unmarshalAlternatives(alts)
		snap.Decisions = append(snap.Decisions, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	relRows, err := tx.Query(fmt.Sprintf(
		`SELECT source_id, target_id, type, properties, strength, created_at
		 FROM %s ORDER BY id`, relationshipTable(gen)))
	if err != nil {
		return fmt.Errorf("export: relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var r SnapshotRelationship
		var src, tgt int64
		var props string
		if err := relRows.Scan(&src, &tgt, &r.TypeRaw, &props, &r.Strength, &r.CreatedAt); err != nil {
			return fmt.Errorf("export: scanning relationship: %w", err)
		}
		r.SourceKey = strconv.FormatInt(src, 10)
		r.TargetKey = strconv.FormatInt(tgt, 10)
		r.Properties = unmarshalProperties(props)
		snap.Relationships = append(snap.Relationships, r)
	}
	return relRows.Err()
}

// ─── Reingest support ────────────────────────────────────────────────────────

// InsertSnapshot writes a transformed snapshot into the (inactive)
// generation's table set with explicit surrogate keys. The whole insert
// is one transaction: a failure leaves the generation empty, never
// half-written.
func (s *Store) InsertSnapshot(gen int, snap *Snapshot) error {
	active, err := s.ActiveGeneration()
	if err != nil {
		return err
	}
	if gen == active {
		return fmt.Errorf("refusing to reingest into active generation %d", gen)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reingest: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dt := decisionTable(gen)
	for _, d := range snap.Decisions {
		tags, err := marshalJSON(d.Tags, "[]")
		if err != nil {
			return err
		}
		alts, err := marshalJSON(d.Alternatives, "[]")
		if err != nil {
			return err
		}
		if _, err := s.execHook(tx, fmt.Sprintf(
			`INSERT INTO %s (id, summary, rationale, implementation, status, tags, alternatives, graph_version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, dt),
			d.NewID, d.Summary, nullableString(d.Rationale), nullableString(d.Implementation),
			string(d.Status), tags, alts, gen, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return fmt.Errorf("reingest: decision %q (id %d): %w", d.LegacyKey, d.NewID, err)
		}
	}

	rt := relationshipTable(gen)
	for _, r := range snap.Relationships {
		props, err := marshalJSON(r.Properties, "{}")
		if err != nil {
			return err
		}
		if _, err := s.execHook(tx, fmt.Sprintf(
			`INSERT INTO %s (source_id, target_id, type, properties, strength, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`, rt),
			r.SourceID, r.TargetID, string(r.Type), props, r.Strength, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("reingest: relationship %s → %s: %w", r.SourceKey, r.TargetKey, err)
		}
	}

	return s.commitHook(tx)
}

// GenerationCounts returns decision and relationship counts for any
// registered generation, active or not.
func (s *Store) GenerationCounts(gen int) (decisions, relationships int, err error) {
	if err = s.db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, decisionTable(gen))).Scan(&decisions); err != nil {
		return 0, 0, fmt.Errorf("counting decisions in generation %d: %w", gen, err)
	}
	if err = s.db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, relationshipTable(gen))).Scan(&relationships); err != nil {
		return 0, 0, fmt.Errorf("counting relationships in generation %d: %w", gen, err)
	}
	return decisions, relationships, nil
}

// CountOrphanEdges returns how many edges in a generation reference a
// missing endpoint. Must be zero after reingest.
func (s *Store) CountOrphanEdges(gen int) (int, error) {
	dt, rt := decisionTable(gen), relationshipTable(gen)
	var n int
	err := s.db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM %[2]s r
		 WHERE NOT EXISTS (SELECT 1 FROM %[1]s d WHERE d.id = r.source_id)
		    OR NOT EXISTS (SELECT 1 FROM %[1]s d WHERE d.id = r.target_id)`, dt, rt)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting orphan edges in generation %d: %w", gen, err)
	}
	return n, nil
}

// CountDuplicateIdentities returns how many surrogate keys appear more
// than once in a generation. The primary key makes this structurally
// impossible for SQLite, but the check is part of the validation contract
// and will catch a corrupted import.
func (s *Store) CountDuplicateIdentities(gen int) (int, error) {
	var n int
	err := s.db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT id FROM %s GROUP BY id HAVING COUNT(*) > 1)`,
		decisionTable(gen))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting duplicate identities in generation %d: %w", gen, err)
	}
	return n, nil
}

// DecisionExistsIn reports whether a surrogate key is present in the
// given generation. Used to verify every identity-map entry resolves.
func (s *Store) DecisionExistsIn(gen int, id int64) (bool, error) {
	var one int
	err := s.db.QueryRow(fmt.Sprintf(
		`SELECT 1 FROM %s WHERE id = ?`, decisionTable(gen)), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
