package graph

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nodusware/decgraph/internal/store"
)

// Source supplies the current-generation vertices and edges. The store
// satisfies it.
type Source interface {
	AllDecisions() ([]store.Decision, error)
	AllRelationships() ([]store.Relationship, error)
}

// Option configures a Projection.
type Option func(*Projection)

// WithWarnAfter sets the rebuild duration above which a warning is
// logged. Readers waiting on a rebuild wait at most this long before the
// wait is flagged; the wait itself is bounded by the rebuild, never
// unbounded.
func WithWarnAfter(d time.Duration) Option {
	return func(p *Projection) { p.warnAfter = d }
}

// WithPersist registers a callback that receives the hop distances from
// the designated current decision after every rebuild. The server wires
// this to the store's advisory hop_distance column so the batch recompute
// follows material edge changes rather than running per write.
func WithPersist(fn func(origin int64, dist map[int64]int)) Option {
	return func(p *Projection) { p.persist = fn }
}

// Projection owns the process-wide adjacency/hop-distance cache. It is an
// explicit handle with a generation counter bumped on every rebuild, so
// callers detect staleness by comparing versions rather than observing
// ambient global state.
type Projection struct {
	src       Source
	log       *slog.Logger
	warnAfter time.Duration
	persist   func(origin int64, dist map[int64]int)

	mu      sync.RWMutex
	snap    *Snapshot
	stale   bool
	version int64
}

// New creates a Projection over the given source. The first Snapshot call
// performs the initial load.
func New(src Source, log *slog.Logger, opts ...Option) *Projection {
	if log == nil {
		log = slog.Default()
	}
	p := &Projection{
		src:       src,
		log:       log,
		warnAfter: 500 * time.Millisecond,
		stale:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Invalidate marks the cached snapshot stale. Triggered by any write to
// the underlying store. The stale snapshot keeps serving readers that
// already hold it; new readers rebuild.
func (p *Projection) Invalidate() {
	p.mu.Lock()
	p.stale = true
	p.mu.Unlock()
}

// Version returns the current rebuild counter.
func (p *Projection) Version() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Current reports whether a snapshot is still the live, non-stale
// projection state.
func (p *Projection) Current(s *Snapshot) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.stale && p.snap != nil && p.snap.version == s.version
}

// Snapshot returns a consistent snapshot, rebuilding first when the
// projection is stale. Concurrent callers during a rebuild block until it
// finishes; the wait is bounded by the rebuild itself and logged when it
// exceeds the configured threshold. A query never observes a mix of old
// and new state: it holds exactly one snapshot.
func (p *Projection) Snapshot() (*Snapshot, error) {
	p.mu.RLock()
	if !p.stale && p.snap != nil {
		s := p.snap
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	waitStart := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	// Another caller may have rebuilt while we waited for the lock.
	if !p.stale && p.snap != nil {
		return p.snap, nil
	}

	start := time.Now()
	decisions, err := p.src.AllDecisions()
	if err != nil {
		return nil, fmt.Errorf("projection load: %w", err)
	}
	edges, err := p.src.AllRelationships()
	if err != nil {
		return nil, fmt.Errorf("projection load: %w", err)
	}

	p.version++
	p.snap = newSnapshot(p.version, decisions, edges)
	p.stale = false

	elapsed := time.Since(start)
	if total := time.Since(waitStart); total > p.warnAfter {
		p.log.Warn("projection rebuild wait exceeded threshold",
			"wait", total, "rebuild", elapsed, "threshold", p.warnAfter)
	} else {
		p.log.Debug("projection rebuilt",
			"version", p.version, "vertices", len(decisions), "edges", len(edges), "elapsed", elapsed)
	}

	if p.persist != nil && len(decisions) > 0 {
		origin := chooseOrigin(decisions)
		if dist, ok := p.snap.HopDistances(origin); ok {
			p.persist(origin, dist)
		}
	}

	return p.snap, nil
}

// chooseOrigin picks the designated "current" decision for the persisted
// hop-distance cache: the most recent accepted decision, falling back
// through status rank, ties by ID descending.
func chooseOrigin(decisions []store.Decision) int64 {
	best := decisions[0]
	for _, d := range decisions[1:] {
		br, dr := store.StatusRank(best.Status), store.StatusRank(d.Status)
		switch {
		case dr < br:
			best = d
		case dr == br && d.CreatedAt > best.CreatedAt:
			best = d
		case dr == br && d.CreatedAt == best.CreatedAt && d.ID > best.ID:
			best = d
		}
	}
	return best.ID
}
