package store

import (
	"errors"
	"fmt"
)

// CreateRelationship inserts a typed directed edge into the active
// generation. Both endpoints must exist (orphan prevention happens here,
// at ingest, never at query time); self-loops are allowed only for
// RELATES_TO.
func (s *Store) CreateRelationship(p AddRelationshipParams) (int64, error) {
	relType, err := ParseRelationType(p.Type)
	if err != nil {
		return 0, err
	}
	if p.SourceID == p.TargetID && !relType.AllowsSelfLoop() {
		return 0, fmt.Errorf("self-loop not allowed for %s (decision %d)", relType, p.SourceID)
	}

	gen, err := s.ActiveGeneration()
	if err != nil {
		return 0, err
	}
	if gen == 0 {
		return 0, errors.New("active generation uses the legacy layout; run a migration first")
	}

	for _, id := range []int64{p.SourceID, p.TargetID} {
		var one int
		err := s.db.QueryRow(fmt.Sprintf(
			`SELECT 1 FROM %s WHERE id = ?`, decisionTable(gen)), id).Scan(&one)
		if err != nil {
			return 0, fmt.Errorf("relationship endpoint %d: %w", id, ErrNotFound)
		}
	}

	strength := p.Strength
	if strength == 0 {
		strength = 1.0
	}
	props, err := marshalJSON(p.Properties, "{}")
	if err != nil {
		return 0, err
	}

	res, err := s.execHook(s.db, fmt.Sprintf(
		`INSERT INTO %s (source_id, target_id, type, properties, strength)
		 VALUES (?, ?, ?, ?, ?)`, relationshipTable(gen)),
		p.SourceID, p.TargetID, string(relType), props, strength,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("relationship already exists: %d → %d (%s)",
				p.SourceID, p.TargetID, relType)
		}
		return 0, fmt.Errorf("creating relationship: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.notifyChange()
	return id, nil
}

// DeleteRelationship hard-deletes an edge by its ID.
func (s *Store) DeleteRelationship(id int64) error {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return err
	}
	res, err := s.execHook(s.db, fmt.Sprintf(
		`DELETE FROM %s WHERE id = ?`, relationshipTable(gen)), id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("relationship %d: %w", id, ErrNotFound)
	}
	s.notifyChange()
	return nil
}

// RelationshipsFor returns every edge where the decision is source or
// target, in creation order.
func (s *Store) RelationshipsFor(decisionID int64) ([]Relationship, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, source_id, target_id, type, properties, strength, created_at
		 FROM %s
		 WHERE source_id = ? OR target_id = ?
		 ORDER BY id`, relationshipTable(gen)),
		decisionID, decisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// AllRelationships returns every edge of the active generation in
// creation order. Used by the graph projection loader; the stable order
// guarantees deterministic adjacency iteration across runs.
func (s *Store) AllRelationships() ([]Relationship, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, source_id, target_id, type, properties, strength, created_at
		 FROM %s ORDER BY id`, relationshipTable(gen)))
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// CountRelationships returns the number of edges in the active generation.
func (s *Store) CountRelationships() (int, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, relationshipTable(gen))).Scan(&n)
	return n, err
}

type rowsLike interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRelationships(rows rowsLike) ([]Relationship, error) {
	var result []Relationship
	for rows.Next() {
		var r Relationship
		var props string
		if err := rows.Scan(
			&r.ID, &r.SourceID, &r.TargetID, (*string)(&r.Type),
			&props, &r.Strength, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		r.Properties = unmarshalProperties(props)
		result = append(result, r)
	}
	return result, rows.Err()
}
