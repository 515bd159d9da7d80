package graph

import "fmt"

// Invariant identifiers, matching the documented graph contract.
const (
	InvariantSingleEndpoints  = 1 // at most one source and one destination
	InvariantLinearChain      = 2 // transforms keep exactly one inbound and one outbound edge, no cycles
	InvariantSourceBeforeDest = 3 // a destination cannot exist without a source
	InvariantStableIDs        = 4 // node ids are unique and never reassigned
)

// InvariantViolation reports which graph invariant a rejected mutation
// would have broken. The graph is left untouched when this is returned.
type InvariantViolation struct {
	Invariant int
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("graph invariant %d violated: %s", e.Invariant, e.Detail)
}

func violation(invariant int, format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	}
}
