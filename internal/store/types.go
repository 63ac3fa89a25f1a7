package store

// Decision is a recorded architectural or implementation choice — the
// primary vertex type of the knowledge graph.
type Decision struct {
	ID             int64         `json:"id"`
	Summary        string        `json:"summary"`
	Rationale      *string       `json:"rationale,omitempty"`
	Implementation *string       `json:"implementation,omitempty"`
	Status         Status        `json:"status"`
	Tags           []string      `json:"tags"`
	Alternatives   []Alternative `json:"alternatives"`
	GraphVersion   int           `json:"graph_version"`
	HopDistance    *int          `json:"hop_distance,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

// Alternative is one option that was considered and not chosen.
type Alternative struct {
	Name   string `json:"name"`
	Reason string `json:"reason,omitempty"`
}

// Relationship is a typed directed edge between two decisions.
type Relationship struct {
	ID         int64             `json:"id"`
	SourceID   int64             `json:"source_id"`
	TargetID   int64             `json:"target_id"`
	Type       RelationType      `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
	Strength   float64           `json:"strength"`
	CreatedAt  string            `json:"created_at"`
}

// AddDecisionParams holds the input for creating a new decision.
type AddDecisionParams struct {
	Summary        string        `json:"summary"`
	Rationale      string        `json:"rationale,omitempty"`
	Implementation string        `json:"implementation,omitempty"`
	Status         string        `json:"status,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
}

// AddRelationshipParams holds the input for creating a new edge.
type AddRelationshipParams struct {
	SourceID   int64             `json:"source_id"`
	TargetID   int64             `json:"target_id"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
	Strength   float64           `json:"strength,omitempty"`
}

// ─── Snapshots ───────────────────────────────────────────────────────────────
//
// A Snapshot is the immutable, self-contained export of one schema
// generation. Raw fields carry legacy shapes (string identities, unordered
// tag blobs, absent statuses) so the migration transform can reshape them
// without touching storage.

// Snapshot is the full export of one generation.
type Snapshot struct {
	Generation    int                    `json:"generation"`
	ExportedAt    string                 `json:"exported_at"`
	Decisions     []SnapshotDecision     `json:"decisions"`
	Relationships []SnapshotRelationship `json:"relationships"`
}

// SnapshotDecision is one exported vertex. LegacyKey is the identity in
// the source generation's key type (slug or stringified integer). The Raw
// fields are populated from legacy columns; the structured fields are
// populated when exporting a modern generation or by the transform.
type SnapshotDecision struct {
	// NewID is the reassigned surrogate key, zero until the transform
	// has run.
	NewID          int64         `json:"new_id,omitempty"`
	LegacyKey      string        `json:"legacy_key"`
	Summary        string        `json:"summary"`
	Rationale      string        `json:"rationale,omitempty"`
	Implementation string        `json:"implementation,omitempty"`
	StatusRaw      string        `json:"status_raw,omitempty"`
	Status         Status        `json:"status,omitempty"`
	TagsRaw        string        `json:"tags_raw,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
	SupersededBy   string        `json:"superseded_by,omitempty"`
	Deprecated     bool          `json:"deprecated,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at,omitempty"`
}

// SnapshotRelationship is one exported edge, endpoints in the source
// generation's key type. TypeRaw is the legacy type string before
// remapping; Type is set once the transform has resolved it.
type SnapshotRelationship struct {
	// SourceID/TargetID are the reassigned endpoint keys, zero until the
	// transform has resolved them through the identity map.
	SourceID   int64             `json:"source_id,omitempty"`
	TargetID   int64             `json:"target_id,omitempty"`
	SourceKey  string            `json:"source_key"`
	TargetKey  string            `json:"target_key"`
	TypeRaw    string            `json:"type_raw,omitempty"`
	Type       RelationType      `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Strength   float64           `json:"strength"`
	CreatedAt  string            `json:"created_at"`
}
