// Package hierarchy keeps category placements and their projections
// consistent. Moving a category rewrites its materialized path, recomputes
// the attribute values it inherits from its ancestors, and cascades the
// same reconciliation depth-first over every descendant. Any failure along
// the way aborts the whole cascade.
package hierarchy

import "fmt"

// ConflictPolicy decides which ancestor wins when two levels of the chain
// define the same attribute machine name.
type ConflictPolicy int

const (
	// PolicyMerge inherits the nearest ancestor's value: walking the chain
	// from root to parent, later levels overwrite earlier ones.
	PolicyMerge ConflictPolicy = iota

	// PolicyRootWins inherits the outermost ancestor's value: once a machine
	// name is set, deeper levels never overwrite it.
	PolicyRootWins
)

// String returns the string representation of the policy
func (p ConflictPolicy) String() string {
	switch p {
	case PolicyMerge:
		return "merge"
	case PolicyRootWins:
		return "root_wins"
	default:
		return "unknown"
	}
}

// ParseConflictPolicy parses a policy name from configuration. The empty
// string maps to the default merge policy.
func ParseConflictPolicy(name string) (ConflictPolicy, error) {
	switch name {
	case "", "merge":
		return PolicyMerge, nil
	case "root_wins":
		return PolicyRootWins, nil
	default:
		return PolicyMerge, fmt.Errorf("unknown hierarchy conflict policy %q", name)
	}
}
