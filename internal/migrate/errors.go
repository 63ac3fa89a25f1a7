// Package migrate implements the migration engine: export → transform →
// reingest → validate → switchover, with rollback. Every step is
// independently invokable and produces a machine-readable report persisted
// under <datadir>/migrations/<runID>/.
//
// Failure semantics are fail-closed throughout: a validation failure
// aborts before switchover and leaves the old generation intact and
// serving; partial writes to a new generation are never promoted.
package migrate

import (
	"fmt"
	"strings"
)

// OrphanEdgeError means the transform produced at least one relationship
// whose endpoint is missing from the identity map. The transform fails
// closed; no partial output is returned.
type OrphanEdgeError struct {
	// Orphans lists "source → target (type)" descriptions of the
	// offending relationships.
	Orphans []string
}

func (e *OrphanEdgeError) Error() string {
	return fmt.Sprintf("transform produced %d orphan edge(s): %s",
		len(e.Orphans), strings.Join(e.Orphans, "; "))
}

// UnmappedTypeError means a legacy relationship type has no entry in the
// remapping table. Unmapped types are an error, never a silent drop.
type UnmappedTypeError struct {
	TypeRaw string
	Source  string
	Target  string
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("no mapping for legacy relationship type %q (%s → %s)",
		e.TypeRaw, e.Source, e.Target)
}

// ValidationError carries the failing report. The migration aborts with
// the old generation untouched.
type ValidationError struct {
	Report *ValidationReport
}

func (e *ValidationError) Error() string {
	r := e.Report
	return fmt.Sprintf(
		"migration validation failed (generation %d → %d): decisions %d→%d, relationships %d→%d, orphans %d, duplicates %d, unresolved identities %d",
		r.FromGeneration, r.ToGeneration,
		r.DecisionsIn, r.DecisionsOut,
		r.RelationshipsIn, r.RelationshipsOut,
		r.OrphanEdges, r.DuplicateIdentities, len(r.UnresolvedIdentities))
}

// SwitchoverError means the atomic active-flag swap did not complete.
// This is the one case requiring operator intervention: the store may
// need a manual rollback before serving resumes.
type SwitchoverError struct {
	Generation int
	Err        error
}

func (e *SwitchoverError) Error() string {
	return fmt.Sprintf("switchover to generation %d failed, manual rollback required: %v",
		e.Generation, e.Err)
}

func (e *SwitchoverError) Unwrap() error { return e.Err }
