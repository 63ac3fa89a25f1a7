package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateDecision inserts a new decision into the active generation and
// returns its surrogate key.
func (s *Store) CreateDecision(p AddDecisionParams) (int64, error) {
	if strings.TrimSpace(p.Summary) == "" {
		return 0, errors.New("summary is required")
	}

	status := StatusProposed
	if p.Status != "" {
		parsed, err := ParseStatus(p.Status)
		if err != nil {
			return 0, err
		}
		status = parsed
	}

	tags, err := marshalJSON(dedupeTags(p.Tags), "[]")
	if err != nil {
		return 0, err
	}
	alts, err := marshalJSON(p.Alternatives, "[]")
	if err != nil {
		return 0, err
	}

	gen, err := s.ActiveGeneration()
	if err != nil {
		return 0, err
	}
	if gen == 0 {
		return 0, errors.New("active generation uses the legacy layout; run a migration first")
	}

	res, err := s.execHook(s.db, fmt.Sprintf(
		`INSERT INTO %s (summary, rationale, implementation, status, tags, alternatives, graph_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, decisionTable(gen)),
		p.Summary, nullableString(p.Rationale), nullableString(p.Implementation),
		string(status), tags, alts, gen,
	)
	if err != nil {
		return 0, fmt.Errorf("creating decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.notifyChange()
	return id, nil
}

// GetDecision retrieves a single decision by ID from the active generation.
func (s *Store) GetDecision(id int64) (*Decision, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(fmt.Sprintf(
		`SELECT id, summary, rationale, implementation, status, tags, alternatives,
		        graph_version, hop_distance, created_at, updated_at
		 FROM %s WHERE id = ?`, decisionTable(gen)), id)

	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("decision %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting decision %d: %w", id, err)
	}
	return d, nil
}

// ListDecisions returns decisions from the active generation ordered by
// status rank (accepted first), then recency, ties by ID descending.
// A limit <= 0 returns everything.
func (s *Store) ListDecisions(limit int) ([]Decision, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT id, summary, rationale, implementation, status, tags, alternatives,
		        graph_version, hop_distance, created_at, updated_at
		 FROM %s
		 ORDER BY CASE status
		     WHEN 'accepted' THEN 0
		     WHEN 'proposed' THEN 1
		     WHEN 'deprecated' THEN 2
		     ELSE 3 END,
		   datetime(created_at) DESC, id DESC`, decisionTable(gen))
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	defer rows.Close()

	var results []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *d)
	}
	return results, rows.Err()
}

// AllDecisions returns every decision of the active generation in ID
// order. Used by the graph projection loader.
func (s *Store) AllDecisions() ([]Decision, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, summary, rationale, implementation, status, tags, alternatives,
		        graph_version, hop_distance, created_at, updated_at
		 FROM %s ORDER BY id`, decisionTable(gen)))
	if err != nil {
		return nil, fmt.Errorf("loading decisions: %w", err)
	}
	defer rows.Close()

	var results []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *d)
	}
	return results, rows.Err()
}

// UpdateStatus moves a decision to a new status, enforcing the monotonic
// transition rules. Illegal transitions are rejected before any write.
func (s *Store) UpdateStatus(id int64, next string) (*Decision, error) {
	target, err := ParseStatus(next)
	if err != nil {
		return nil, err
	}

	current, err := s.GetDecision(id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("illegal status transition %s → %s for decision %d",
			current.Status, target, id)
	}
	if current.Status == target {
		return current, nil
	}

	gen, err := s.ActiveGeneration()
	if err != nil {
		return nil, err
	}
	if _, err := s.execHook(s.db, fmt.Sprintf(
		`UPDATE %s SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		decisionTable(gen)), string(target), id,
	); err != nil {
		return nil, fmt.Errorf("updating status of decision %d: %w", id, err)
	}
	s.notifyChange()
	return s.GetDecision(id)
}

// CountDecisions returns the number of decisions in the active generation.
func (s *Store) CountDecisions() (int, error) {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, decisionTable(gen))).Scan(&n)
	return n, err
}

// WriteHopDistances batch-updates the cached hop_distance column for the
// active generation. Vertices absent from dist are reset to NULL (no
// traversal result for them). The values are advisory, never used for
// correctness-critical logic.
func (s *Store) WriteHopDistances(dist map[int64]int) error {
	gen, err := s.ActiveGeneration()
	if err != nil {
		return err
	}
	if gen == 0 {
		return nil // legacy layout has no hop_distance column
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("hop distances: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dt := decisionTable(gen)
	if _, err := s.execHook(tx, fmt.Sprintf(`UPDATE %s SET hop_distance = NULL`, dt)); err != nil {
		return fmt.Errorf("hop distances: reset: %w", err)
	}
	for id, d := range dist {
		if _, err := s.execHook(tx, fmt.Sprintf(
			`UPDATE %s SET hop_distance = ? WHERE id = ?`, dt), d, id); err != nil {
			return fmt.Errorf("hop distances: update %d: %w", id, err)
		}
	}
	return s.commitHook(tx)
}

type rowLike interface {
	Scan(dest ...any) error
}

func scanDecision(row rowLike) (*Decision, error) {
	var d Decision
	var tags, alts string
	if err := row.Scan(
		&d.ID, &d.Summary, &d.Rationale, &d.Implementation, (*string)(&d.Status),
		&tags, &alts, &d.GraphVersion, &d.HopDistance, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Tags = unmarshalTags(tags)
	d.Alternatives = unmarshalAlternatives(alts)
	return &d, nil
}

// dedupeTags keeps the first occurrence of each tag, preserving order.
func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
