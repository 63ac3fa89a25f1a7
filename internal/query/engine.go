// Package query is the read surface of the decision graph: three
// graduated operations — a bounded entry view, a bounded neighborhood
// view, and an unlimited full-context escape hatch — consumed by the
// progressive-disclosure client.
//
// All operations are read-only and side-effect-free. Each one runs
// against a single immutable projection snapshot; if the projection is
// invalidated mid-query the operation is retried internally once and then
// surfaced as a transient error.
package query

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nodusware/decgraph/internal/graph"
	"github.com/nodusware/decgraph/internal/store"
)

// ErrStale is the transient error surfaced when the projection was
// invalidated during a query twice in a row. Callers may simply retry.
var ErrStale = errors.New("projection invalidated mid-query")

// DefaultTopLimit caps the entry view. The client signals "more exist"
// instead of rendering them.
const DefaultTopLimit = 3

// Neighborhood is the bounded-radius view around one decision. Hop tiers
// are disjoint: Hop2Neighbors never repeats a vertex counted at distance
// 1. TotalNeighbors counts the full reachable set regardless of the
// requested radius, so the client can render "N more decisions in the
// network".
type Neighborhood struct {
	Center         store.Decision   `json:"center"`
	Hop1Neighbors  []store.Decision `json:"hop_1_neighbors"`
	Hop2Neighbors  []store.Decision `json:"hop_2_neighbors"`
	TotalNeighbors int              `json:"total_neighbors"`
}

// DirectRelationship is one edge touching the context decision, with its
// direction relative to it.
type DirectRelationship struct {
	ID         int64              `json:"id"`
	Type       store.RelationType `json:"type"`
	SourceID   int64              `json:"source_id"`
	TargetID   int64              `json:"target_id"`
	Direction  string             `json:"direction"` // "outgoing" or "incoming"
	Strength   float64            `json:"strength"`
	Properties map[string]string  `json:"properties,omitempty"`
}

// FullContext is the unlimited-detail view: full rationale and
// implementation text, every direct edge in both directions, and the
// whole reachable network.
type FullContext struct {
	Decision            store.Decision       `json:"decision"`
	DirectRelationships []DirectRelationship `json:"direct_relationships"`
	RelatedDecisions    []store.Decision     `json:"related_decisions"`
	TotalRelated        int                  `json:"total_related"`
	CognitiveLoad       Load                 `json:"cognitive_load"`
}

// Engine serves the three query operations over the graph projection.
type Engine struct {
	proj *graph.Projection
	log  *slog.Logger
}

// New creates an Engine. A nil logger falls back to slog.Default.
func New(proj *graph.Projection, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{proj: proj, log: log}
}

// withSnapshot runs fn against a consistent snapshot, retrying once when
// the projection went stale mid-query. No read is retried more than once.
func (e *Engine) withSnapshot(fn func(*graph.Snapshot) error) error {
	for attempt := 0; attempt < 2; attempt++ {
		snap, err := e.proj.Snapshot()
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
		if e.proj.Current(snap) {
			return nil
		}
		e.log.Debug("projection invalidated mid-query", "attempt", attempt+1)
	}
	return ErrStale
}

// TopDecisions returns the entry view: the most relevant decisions,
// accepted before proposed and deprecated, then by recency, ties by ID
// descending. Never more than DefaultTopLimit items, even when limit asks
// for more.
func (e *Engine) TopDecisions(limit int) ([]store.Decision, error) {
	if limit <= 0 || limit > DefaultTopLimit {
		limit = DefaultTopLimit
	}

	var result []store.Decision
	err := e.withSnapshot(func(snap *graph.Snapshot) error {
		all := snap.Decisions()
		ranked := make([]store.Decision, len(all))
		copy(ranked, all)
		sort.SliceStable(ranked, func(i, j int) bool {
			ri, rj := store.StatusRank(ranked[i].Status), store.StatusRank(ranked[j].Status)
			if ri != rj {
				return ri < rj
			}
			if ranked[i].CreatedAt != ranked[j].CreatedAt {
				return ranked[i].CreatedAt > ranked[j].CreatedAt
			}
			return ranked[i].ID > ranked[j].ID
		})
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		result = ranked
		return nil
	})
	return result, err
}

// Neighborhood returns the bounded-radius view around decisionID.
// maxHops is clamped to {1, 2}.
func (e *Engine) Neighborhood(decisionID int64, maxHops int) (*Neighborhood, error) {
	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > 2 {
		maxHops = 2
	}

	var result *Neighborhood
	err := e.withSnapshot(func(snap *graph.Snapshot) error {
		center, ok := snap.Decision(decisionID)
		if !ok {
			return fmt.Errorf("decision %d: %w", decisionID, store.ErrNotFound)
		}
		dist, _ := snap.HopDistances(decisionID)

		n := &Neighborhood{
			Center:         center,
			TotalNeighbors: len(dist) - 1, // reachable set minus the center
		}
		n.Hop1Neighbors = decisionsAtDistance(snap, dist, 1)
		if maxHops == 2 {
			n.Hop2Neighbors = decisionsAtDistance(snap, dist, 2)
		}
		result = n
		return nil
	})
	return result, err
}

// FullContext returns unlimited detail for one decision: the full text,
// every direct edge in both directions, the whole reachable network, and
// a cognitive-load classification for the progressive-disclosure client.
func (e *Engine) FullContext(decisionID int64) (*FullContext, error) {
	var result *FullContext
	err := e.withSnapshot(func(snap *graph.Snapshot) error {
		center, ok := snap.Decision(decisionID)
		if !ok {
			return fmt.Errorf("decision %d: %w", decisionID, store.ErrNotFound)
		}

		var direct []DirectRelationship
		for _, edge := range snap.EdgesOf(decisionID) {
			direction := "outgoing"
			if edge.TargetID == decisionID && edge.SourceID != decisionID {
				direction = "incoming"
			}
			direct = append(direct, DirectRelationship{
				ID:         edge.ID,
				Type:       edge.Type,
				SourceID:   edge.SourceID,
				TargetID:   edge.TargetID,
				Direction:  direction,
				Strength:   edge.Strength,
				Properties: edge.Properties,
			})
		}

		dist, _ := snap.HopDistances(decisionID)
		related := make([]store.Decision, 0, len(dist))
		spread := 0
		for id, d := range dist {
			if id == decisionID {
				continue
			}
			if d > spread {
				spread = d
			}
			if dec, ok := snap.Decision(id); ok {
				hop := d
				dec.HopDistance = &hop
				related = append(related, dec)
			}
		}
		sort.Slice(related, func(i, j int) bool {
			if *related[i].HopDistance != *related[j].HopDistance {
				return *related[i].HopDistance < *related[j].HopDistance
			}
			return related[i].ID < related[j].ID
		})

		result = &FullContext{
			Decision:            center,
			DirectRelationships: direct,
			RelatedDecisions:    related,
			TotalRelated:        len(dist) - 1,
			CognitiveLoad:       Classify(len(direct), textLength(center), spread),
		}
		return nil
	})
	return result, err
}

// decisionsAtDistance collects vertices at exactly d hops, decorated with
// their computed hop distance, ordered by ID for stable responses.
func decisionsAtDistance(snap *graph.Snapshot, dist map[int64]int, d int) []store.Decision {
	var out []store.Decision
	for id, got := range dist {
		if got != d {
			continue
		}
		if dec, ok := snap.Decision(id); ok {
			hop := d
			dec.HopDistance = &hop
			out = append(out, dec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func textLength(d store.Decision) int {
	return len(d.Summary) + len(derefOrEmpty(d.Rationale)) + len(derefOrEmpty(d.Implementation))
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
