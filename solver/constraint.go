package solver

import "fmt"

type CheckName string

const (
	CheckCapacity    CheckName = "capacity"
	CheckNationality CheckName = "nationality"
	CheckBackground  CheckName = "background"
	CheckOverlap     CheckName = "overlap"
	CheckType        CheckName = "type"
)

// ladder orders the checks from the one dropped last to the one dropped first.
var ladder = []CheckName{CheckCapacity, CheckNationality, CheckBackground, CheckOverlap, CheckType}

// Candidate is a prospective placement: the student, the project, and the
// project's current members resolved against the roster.
type Candidate struct {
	Student *Student
	Project *Project
	Members []*Student
}

// Check is one independent feasibility predicate. Implementations must not
// mutate the candidate.
type Check interface {
	Name() CheckName
	Allows(c *Candidate) bool
}

type capacityCheck struct{}

var _ Check = capacityCheck{}

func Capacity() Check { return capacityCheck{} }

func (capacityCheck) Name() CheckName { return CheckCapacity }

func (capacityCheck) Allows(c *Candidate) bool {
	return len(c.Members) < c.Project.Capacity
}

type CapMode string

const (
	CapOff     CapMode = ""
	CapFixed   CapMode = "fixed"
	CapBounded CapMode = "bounded"
	CapHalf    CapMode = "half"
)

// CapRule sizes an attribute cap for a project. Fixed is the constant for
// CapFixed and the upper bound for CapBounded.
type CapRule struct {
	Mode  CapMode
	Fixed int
}

func (r CapRule) Enabled() bool { return r.Mode != CapOff }

func (r CapRule) Limit(capacity int) int {
	switch r.Mode {
	case CapBounded:
		return min(capacity, r.Fixed)
	case CapHalf:
		return max(1, capacity/2)
	default:
		return r.Fixed
	}
}

func (r CapRule) validate() error {
	switch r.Mode {
	case CapOff, CapHalf:
		return nil
	case CapFixed, CapBounded:
		if r.Fixed < 1 {
			return fmt.Errorf("cap %q needs a positive limit, got %d", r.Mode, r.Fixed)
		}
		return nil
	}
	return fmt.Errorf("unknown cap mode %q", r.Mode)
}

type attributeCap struct {
	name CheckName
	rule CapRule
	attr func(*Student) string
}

func NationalityCap(rule CapRule) Check {
	return attributeCap{name: CheckNationality, rule: rule, attr: func(s *Student) string { return s.Nationality }}
}

// BackgroundCap ignores students with no background recorded.
func BackgroundCap(rule CapRule) Check {
	return attributeCap{name: CheckBackground, rule: rule, attr: func(s *Student) string { return s.Background }}
}

func (a attributeCap) Name() CheckName { return a.name }

func (a attributeCap) Allows(c *Candidate) bool {
	v := a.attr(c.Student)
	if v == "" {
		return true
	}
	n := 0
	for _, m := range c.Members {
		if a.attr(m) == v {
			n++
		}
	}
	return n < a.rule.Limit(c.Project.Capacity)
}

type OverlapMode string

const (
	OverlapOff      OverlapMode = ""
	OverlapJoint    OverlapMode = "joint"
	OverlapPairwise OverlapMode = "pairwise"
)

// OverlapRule requires shared availability. Joint intersects every member's
// slots with the candidate's, so it tightens as a team grows; pairwise only
// compares the candidate with each member.
type OverlapRule struct {
	Mode      OverlapMode
	MinShared int
}

func (r OverlapRule) Enabled() bool { return r.Mode != OverlapOff }

func (r OverlapRule) validate() error {
	switch r.Mode {
	case OverlapOff:
		return nil
	case OverlapJoint, OverlapPairwise:
		if r.MinShared < 1 {
			return fmt.Errorf("overlap needs a positive minimum, got %d", r.MinShared)
		}
		return nil
	}
	return fmt.Errorf("unknown overlap mode %q", r.Mode)
}

type overlapCheck struct {
	rule OverlapRule
}

func Overlap(rule OverlapRule) Check { return overlapCheck{rule: rule} }

func (overlapCheck) Name() CheckName { return CheckOverlap }

func (o overlapCheck) Allows(c *Candidate) bool {
	if len(c.Members) == 0 {
		return true
	}
	if o.rule.Mode == OverlapPairwise {
		for _, m := range c.Members {
			if len(intersect(c.Student.Slots, m.Slots)) < o.rule.MinShared {
				return false
			}
		}
		return true
	}
	shared := c.Student.Slots
	for _, m := range c.Members {
		shared = intersect(shared, m.Slots)
		if len(shared) < o.rule.MinShared {
			return false
		}
	}
	return true
}

// intersect merges two sorted, duplicate-free slot lists.
func intersect(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

type typeCheck struct{}

func TypeMatch() Check { return typeCheck{} }

func (typeCheck) Name() CheckName { return CheckType }

func (typeCheck) Allows(c *Candidate) bool {
	return c.Student.CompanyPreference == c.Project.Type
}

type TierName string

const (
	TierStrict       TierName = "strict"
	TierFull         TierName = "full"
	TierNoOverlap    TierName = "no-overlap"
	TierNoBackground TierName = "no-background"
	TierCapacityOnly TierName = "capacity-only"
)

// tierDepth is how many ladder rungs each tier keeps.
var tierDepth = map[TierName]int{
	TierStrict:       5,
	TierFull:         4,
	TierNoOverlap:    3,
	TierNoBackground: 2,
	TierCapacityOnly: 1,
}

// Tier is a named, ordered subset of checks.
type Tier struct {
	Name   TierName
	Checks []Check
}

// Feasible reports whether the student can join the project given the
// current state. It never mutates the state.
func (t Tier) Feasible(st *Student, p *Project, state *State) bool {
	_, ok := t.Reject(st, p, state)
	return !ok
}

// Reject returns the first check that refuses the placement.
func (t Tier) Reject(st *Student, p *Project, state *State) (CheckName, bool) {
	c := state.candidate(st, p)
	for _, chk := range t.Checks {
		if !chk.Allows(c) {
			return chk.Name(), true
		}
	}
	return "", false
}

// Ladder holds the configured checks and derives tiers from them. A tier
// keeps a prefix of the ladder, so relaxing only ever drops checks from the
// strict end.
type Ladder struct {
	checks map[CheckName]Check
}

func NewLadder(checks ...Check) *Ladder {
	l := &Ladder{checks: make(map[CheckName]Check, len(checks))}
	for _, c := range checks {
		l.checks[c.Name()] = c
	}
	return l
}

func (l *Ladder) Tier(name TierName) (Tier, error) {
	depth, ok := tierDepth[name]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	t := Tier{Name: name}
	for _, n := range ladder[:depth] {
		if c, ok := l.checks[n]; ok {
			t.Checks = append(t.Checks, c)
		}
	}
	return t, nil
}

// Looser reports whether tier a keeps fewer ladder rungs than b.
func Looser(a, b TierName) bool {
	return tierDepth[a] < tierDepth[b]
}
