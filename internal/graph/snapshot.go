// Package graph maintains the traversal projection over the decision
// store: a frozen, arena-style snapshot of vertices and edges with
// adjacency indexes and cached hop distances.
//
// Queries always operate on one immutable snapshot, never on live mutable
// structures; writes to the store invalidate the projection and the next
// read rebuilds it wholesale under an exclusive section.
package graph

import (
	"sort"
	"sync"

	"github.com/nodusware/decgraph/internal/store"
)

// Direction selects which adjacency list to consult.
type Direction int

// Adjacency directions.
const (
	Outgoing Direction = iota
	Incoming
)

// Snapshot is one immutable projection of the graph. Vertices and edges
// are addressed by stable integer index into frozen slices; adjacency
// lists are ordered by edge creation so traversal discovery order is
// deterministic across runs.
type Snapshot struct {
	version int64

	decisions []store.Decision
	index     map[int64]int // decision ID → arena index
	edges     []store.Relationship
	out       [][]int // arena index → edge indexes, creation order
	in        [][]int
	byType    map[store.RelationType][]int

	hopMu sync.Mutex
	hops  map[int64]map[int64]int // origin ID → distances
}

// newSnapshot freezes the given vertices and edges into an arena.
// Decisions must be sorted by ID and edges by creation order (the store
// loaders guarantee both).
func newSnapshot(version int64, decisions []store.Decision, edges []store.Relationship) *Snapshot {
	s := &Snapshot{
		version:   version,
		decisions: decisions,
		index:     make(map[int64]int, len(decisions)),
		edges:     edges,
		out:       make([][]int, len(decisions)),
		in:        make([][]int, len(decisions)),
		byType:    make(map[store.RelationType][]int),
		hops:      make(map[int64]map[int64]int),
	}
	for i, d := range decisions {
		s.index[d.ID] = i
	}
	for ei, e := range edges {
		if si, ok := s.index[e.SourceID]; ok {
			s.out[si] = append(s.out[si], ei)
		}
		if ti, ok := s.index[e.TargetID]; ok {
			s.in[ti] = append(s.in[ti], ei)
		}
		s.byType[e.Type] = append(s.byType[e.Type], ei)
	}
	return s
}

// Version is the projection generation counter at build time. Callers
// compare it against the projection's current version to detect
// staleness explicitly.
func (s *Snapshot) Version() int64 { return s.version }

// Len returns the vertex count.
func (s *Snapshot) Len() int { return len(s.decisions) }

// EdgeCount returns the edge count.
func (s *Snapshot) EdgeCount() int { return len(s.edges) }

// Decision looks a vertex up by ID.
func (s *Snapshot) Decision(id int64) (store.Decision, bool) {
	i, ok := s.index[id]
	if !ok {
		return store.Decision{}, false
	}
	return s.decisions[i], true
}

// Decisions returns the frozen vertex arena. Callers must not mutate it.
func (s *Snapshot) Decisions() []store.Decision { return s.decisions }

// EdgesOf returns every edge touching a vertex, in creation order. A
// self-loop appears once.
func (s *Snapshot) EdgesOf(id int64) []store.Relationship {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	seen := make(map[int]bool, len(s.out[i])+len(s.in[i]))
	var result []store.Relationship
	for _, lists := range [][]int{s.out[i], s.in[i]} {
		for _, ei := range lists {
			if seen[ei] {
				continue
			}
			seen[ei] = true
			result = append(result, s.edges[ei])
		}
	}
	sortEdgesByID(result)
	return result
}

// EdgesByType returns every edge of one type, in creation order.
func (s *Snapshot) EdgesByType(rt store.RelationType) []store.Relationship {
	idxs := s.byType[rt]
	result := make([]store.Relationship, len(idxs))
	for i, ei := range idxs {
		result[i] = s.edges[ei]
	}
	return result
}

// Neighbors returns the IDs adjacent to a vertex in the given direction,
// in edge creation order.
func (s *Snapshot) Neighbors(id int64, dir Direction) []int64 {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	var lists []int
	if dir == Outgoing {
		lists = s.out[i]
	} else {
		lists = s.in[i]
	}
	result := make([]int64, 0, len(lists))
	for _, ei := range lists {
		e := s.edges[ei]
		if dir == Outgoing {
			result = append(result, e.TargetID)
		} else {
			result = append(result, e.SourceID)
		}
	}
	return result
}

// HopDistances returns the unweighted shortest-path distance, in edge
// count, from origin to every reachable vertex, treating all edge types
// as undirected. Unreachable vertices are absent from the result. The
// computation runs on demand and is cached per origin for the snapshot's
// lifetime; repeated calls without intervening rebuilds return identical
// maps.
func (s *Snapshot) HopDistances(origin int64) (map[int64]int, bool) {
	if _, ok := s.index[origin]; !ok {
		return nil, false
	}

	s.hopMu.Lock()
	defer s.hopMu.Unlock()
	if cached, ok := s.hops[origin]; ok {
		return cached, true
	}

	dist := s.bfs(origin)
	s.hops[origin] = dist
	return dist, true
}

// bfs walks the undirected adjacency view. Discovery order is stable:
// for each vertex the outgoing list is exhausted before the incoming one,
// each in edge creation order.
func (s *Snapshot) bfs(origin int64) map[int64]int {
	dist := map[int64]int{origin: 0}
	queue := []int64{origin}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		d := dist[current]

		ci := s.index[current]
		for _, lists := range [][]int{s.out[ci], s.in[ci]} {
			for _, ei := range lists {
				e := s.edges[ei]
				other := e.TargetID
				if other == current {
					other = e.SourceID
				}
				if e.SourceID == e.TargetID {
					other = current // self-loop adds no new vertex
				}
				if _, visited := dist[other]; visited {
					continue
				}
				dist[other] = d + 1
				queue = append(queue, other)
			}
		}
	}
	return dist
}

func sortEdgesByID(edges []store.Relationship) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}
