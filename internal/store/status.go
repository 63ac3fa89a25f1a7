package store

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a decision. The set is closed: anything
// not produced by ParseStatus is rejected at ingest.
type Status string

// Decision lifecycle states.
const (
	StatusProposed   Status = "proposed"
	StatusAccepted   Status = "accepted"
	StatusDeprecated Status = "deprecated"
	StatusSuperseded Status = "superseded"
)

// StatusValues returns the enum values for tool definitions and validation
// messages. Use this to avoid duplicating the list.
func StatusValues() []string {
	return []string{
		string(StatusProposed),
		string(StatusAccepted),
		string(StatusDeprecated),
		string(StatusSuperseded),
	}
}

// ParseStatus validates and normalizes a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(strings.ToLower(s))) {
	case StatusProposed:
		return StatusProposed, nil
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusDeprecated:
		return StatusDeprecated, nil
	case StatusSuperseded:
		return StatusSuperseded, nil
	}
	return "", fmt.Errorf("unknown status %q (want one of: %s)", s, strings.Join(StatusValues(), ", "))
}

// statusTransitions encodes the legal forward moves. Transitions are
// monotonic: once a decision is superseded or deprecated it never returns
// to an earlier state. Supersession is only reachable from accepted.
var statusTransitions = map[Status][]Status{
	StatusProposed:   {StatusAccepted, StatusDeprecated},
	StatusAccepted:   {StatusDeprecated, StatusSuperseded},
	StatusDeprecated: {StatusSuperseded},
	StatusSuperseded: {},
}

// CanTransitionTo reports whether moving from s to next is legal.
// A no-op transition (same status) is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// rank orders statuses for query-time sorting: accepted decisions surface
// before proposed, then deprecated, then superseded.
func (s Status) rank() int {
	switch s {
	case StatusAccepted:
		return 0
	case StatusProposed:
		return 1
	case StatusDeprecated:
		return 2
	case StatusSuperseded:
		return 3
	}
	return 4
}

// StatusRank exposes the sort rank for the query layer.
func StatusRank(s Status) int { return s.rank() }
