package solver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRoster = errors.New("invalid roster")
	ErrUnknownTier   = errors.New("unknown constraint tier")
)

// State errors. These indicate a phase tried an operation the assignment
// lifecycle does not allow.
var (
	ErrUnknownStudent  = errors.New("unknown student")
	ErrUnknownProject  = errors.New("unknown project")
	ErrAlreadyAssigned = errors.New("student already assigned")
	ErrOverCapacity    = errors.New("project at capacity")
	ErrNonViable       = errors.New("project is not viable")
	ErrAlreadyEvicted  = errors.New("project already evicted")
	ErrViabilityFrozen = errors.New("viability set is frozen")
	ErrInvariant       = errors.New("assignment invariant violated")
)

// ErrExhausted matches every *ExhaustionError via errors.Is.
var ErrExhausted = errors.New("no feasible project")

// ExhaustionError records a student for whom no viable project passed any
// tier. It is a per-student outcome: Solve lists it in the ledger and keeps
// going unless Params.FailOnExhaustion is set.
type ExhaustionError struct {
	StudentID string
	Evicted   bool
	Tried     []TierName
}

func (e *ExhaustionError) Error() string {
	tried := make([]string, len(e.Tried))
	for i, t := range e.Tried {
		tried[i] = string(t)
	}
	origin := "unplaced"
	if e.Evicted {
		origin = "evicted"
	}
	return fmt.Sprintf("solver: %s student %q: no feasible project after tiers [%s]", origin, e.StudentID, strings.Join(tried, ", "))
}

func (e *ExhaustionError) Is(target error) bool {
	return target == ErrExhausted
}
