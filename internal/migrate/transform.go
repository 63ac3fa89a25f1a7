package migrate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nodusware/decgraph/internal/store"
)

// IdentityMap maps each legacy identity to its reassigned surrogate key.
// It lives for one migration run and is retained on disk beside the run's
// reports until the old generation is dropped.
type IdentityMap map[string]int64

// Transform reshapes an exported snapshot into the current layout. It is
// a pure function: no I/O beyond logging. It applies, in order:
//
//  1. identity reassignment — decisions sorted by original creation time
//     (ties by legacy key) receive surrogate keys 1..N;
//  2. field reshaping — the legacy unordered tag blob becomes an ordered,
//     de-duplicated array; missing statuses are inferred from legacy
//     supersession/deprecation fields;
//  3. relationship-type remapping through rules.TypeMap — an unmapped
//     legacy type is an error, never a silent drop;
//  4. endpoint resolution through the identity map — any relationship
//     with a missing endpoint is logged as an orphan and the whole
//     transform fails closed.
func Transform(snap *store.Snapshot, rules Rules, log *slog.Logger) (*store.Snapshot, IdentityMap, error) {
	if log == nil {
		log = slog.Default()
	}

	decisions := make([]store.SnapshotDecision, len(snap.Decisions))
	copy(decisions, snap.Decisions)
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].CreatedAt != decisions[j].CreatedAt {
			return decisions[i].CreatedAt < decisions[j].CreatedAt
		}
		return decisions[i].LegacyKey < decisions[j].LegacyKey
	})

	idMap := make(IdentityMap, len(decisions))
	for i := range decisions {
		d := &decisions[i]
		if _, dup := idMap[d.LegacyKey]; dup {
			return nil, nil, fmt.Errorf("duplicate legacy identity %q in snapshot", d.LegacyKey)
		}
		d.NewID = int64(i + 1)
		idMap[d.LegacyKey] = d.NewID

		d.Tags = reshapeTags(d)
		d.TagsRaw = ""

		status, err := resolveStatus(d)
		if err != nil {
			return nil, nil, err
		}
		d.Status = status
		d.StatusRaw = ""
		if d.UpdatedAt == "" {
			d.UpdatedAt = d.CreatedAt
		}
	}

	relationships := make([]store.SnapshotRelationship, 0, len(snap.Relationships))
	var orphans []string
	for _, r := range snap.Relationships {
		rt, ok := rules.resolveType(r.TypeRaw)
		if !ok {
			return nil, nil, &UnmappedTypeError{TypeRaw: r.TypeRaw, Source: r.SourceKey, Target: r.TargetKey}
		}

		srcID, srcOK := idMap[r.SourceKey]
		tgtID, tgtOK := idMap[r.TargetKey]
		if !srcOK || !tgtOK {
			desc := fmt.Sprintf("%s → %s (%s)", r.SourceKey, r.TargetKey, r.TypeRaw)
			log.Warn("orphan relationship: endpoint missing from identity map",
				"source", r.SourceKey, "target", r.TargetKey, "type", r.TypeRaw)
			orphans = append(orphans, desc)
			continue
		}
		if srcID == tgtID && !rt.AllowsSelfLoop() {
			return nil, nil, fmt.Errorf("self-loop not allowed for %s (legacy key %s)", rt, r.SourceKey)
		}

		out := r
		out.SourceID = srcID
		out.TargetID = tgtID
		out.Type = rt
		out.TypeRaw = ""
		if out.Strength == 0 {
			out.Strength = 1.0
		}
		relationships = append(relationships, out)
	}
	if len(orphans) > 0 {
		return nil, nil, &OrphanEdgeError{Orphans: orphans}
	}

	return &store.Snapshot{
		Generation:    snap.Generation,
		ExportedAt:    snap.ExportedAt,
		Decisions:     decisions,
		Relationships: relationships,
	}, idMap, nil
}

// reshapeTags turns the legacy semicolon-joined unordered blob into an
// ordered array. The raw set has no meaningful order, so the output is
// sorted for determinism; already-structured tags keep their order and
// are only de-duplicated.
func reshapeTags(d *store.SnapshotDecision) []string {
	if d.TagsRaw != "" {
		seen := make(map[string]bool)
		var tags []string
		for _, t := range strings.Split(d.TagsRaw, ";") {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, t)
		}
		sort.Strings(tags)
		return tags
	}

	seen := make(map[string]bool)
	var tags []string
	for _, t := range d.Tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// resolveStatus parses the raw status, inferring one from the legacy
// supersession and deprecation fields when it is absent.
func resolveStatus(d *store.SnapshotDecision) (store.Status, error) {
	if strings.TrimSpace(d.StatusRaw) != "" {
		status, err := store.ParseStatus(d.StatusRaw)
		if err != nil {
			return "", fmt.Errorf("decision %q: %w", d.LegacyKey, err)
		}
		return status, nil
	}
	if d.SupersededBy != "" {
		return store.StatusSuperseded, nil
	}
	if d.Deprecated {
		return store.StatusDeprecated, nil
	}
	return store.StatusAccepted, nil
}
