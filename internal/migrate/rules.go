package migrate

import (
	"strings"

	"github.com/nodusware/decgraph/internal/store"
)

// Rules configure the transform step. TypeMap translates legacy
// relationship type strings (matched case-insensitively) to the closed
// current enum. A legacy type absent from the map fails the transform.
type Rules struct {
	TypeMap map[string]store.RelationType `json:"type_map" yaml:"type_map"`
}

// DefaultRules maps the legacy free-string link kinds onto the current
// enum. Current-layout exports pass through unchanged because every
// canonical name maps to itself.
func DefaultRules() Rules {
	return Rules{TypeMap: map[string]store.RelationType{
		"implements":  store.RelImplements,
		"related":     store.RelRelatesTo,
		"relates_to":  store.RelRelatesTo,
		"depends":     store.RelDependsOn,
		"depends_on":  store.RelDependsOn,
		"builds_on":   store.RelBuildsUpon,
		"builds_upon": store.RelBuildsUpon,
		"supersedes":  store.RelSupersedes,
		"extends":     store.RelExtends,
		"validates":   store.RelValidates,
		"corrects":    store.RelCorrects,
	}}
}

// resolveType looks up a legacy type through the map, falling back to the
// canonical enum for already-current names.
func (r Rules) resolveType(raw string) (store.RelationType, bool) {
	if rt, ok := r.TypeMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return rt, true
	}
	rt, err := store.ParseRelationType(raw)
	if err != nil {
		return "", false
	}
	return rt, true
}
