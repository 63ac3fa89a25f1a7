package store

import (
	"fmt"
	"strings"
)

// RelationType is the kind of a directed edge between two decisions.
// The set is fixed at schema-design time; migration remapping resolves
// against ParseRelationType so an unmapped legacy type is a validation
// error, not a runtime surprise.
type RelationType string

// Edge types.
const (
	RelImplements RelationType = "IMPLEMENTS"
	RelRelatesTo  RelationType = "RELATES_TO"
	RelDependsOn  RelationType = "DEPENDS_ON"
	RelBuildsUpon RelationType = "BUILDS_UPON"
	RelSupersedes RelationType = "SUPERSEDES"
	RelExtends    RelationType = "EXTENDS"
	RelValidates  RelationType = "VALIDATES"
	RelCorrects   RelationType = "CORRECTS"
)

// relationTypes is the closed set, in declaration order.
var relationTypes = []RelationType{
	RelImplements,
	RelRelatesTo,
	RelDependsOn,
	RelBuildsUpon,
	RelSupersedes,
	RelExtends,
	RelValidates,
	RelCorrects,
}

// RelationTypeValues returns the enum values for tool definitions.
func RelationTypeValues() []string {
	values := make([]string, len(relationTypes))
	for i, rt := range relationTypes {
		values[i] = string(rt)
	}
	return values
}

// ParseRelationType validates and normalizes a relation type string.
func ParseRelationType(s string) (RelationType, error) {
	candidate := RelationType(strings.ToUpper(strings.TrimSpace(s)))
	for _, rt := range relationTypes {
		if candidate == rt {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown relation type %q (want one of: %s)",
		s, strings.Join(RelationTypeValues(), ", "))
}

// AllowsSelfLoop reports whether an edge of this type may connect a
// decision to itself. Only RELATES_TO tolerates self-reference.
func (rt RelationType) AllowsSelfLoop() bool {
	return rt == RelRelatesTo
}
