package solver

import "fmt"

// Stage names the step of the pipeline that placed a student.
type Stage string

const (
	StagePreference   Stage = "preference"
	StageRetry        Stage = "retry"
	StageTypeAffinity Stage = "type-affinity"
	StageAnyType      Stage = "any-type"
	StageRelaxed      Stage = "relaxed"
)

type placement struct {
	project string
	stage   Stage
	tier    TierName
}

// State is the single mutable assignment: project members in commit order,
// each student's placement, and the non-viable project set. Phases change it
// only through Commit and Evict.
type State struct {
	roster    *Roster
	members   map[string][]string
	placed    map[string]placement
	nonViable map[string]bool
	frozen    bool
}

func NewState(r *Roster) *State {
	return &State{
		roster:    r,
		members:   make(map[string][]string, len(r.projects)),
		placed:    make(map[string]placement, len(r.students)),
		nonViable: map[string]bool{},
	}
}

// Members returns the project's members in commit order. The slice is shared
// and must not be modified.
func (s *State) Members(projectID string) []string {
	return s.members[projectID]
}

func (s *State) Count(projectID string) int {
	return len(s.members[projectID])
}

func (s *State) ProjectOf(studentID string) (string, bool) {
	p, ok := s.placed[studentID]
	return p.project, ok
}

func (s *State) IsAssigned(studentID string) bool {
	_, ok := s.placed[studentID]
	return ok
}

func (s *State) IsViable(projectID string) bool {
	return !s.nonViable[projectID]
}

// NonViable lists evicted projects in catalog order.
func (s *State) NonViable() []string {
	var out []string
	for _, p := range s.roster.projects {
		if s.nonViable[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

// Unassigned lists students without a project in catalog order.
func (s *State) Unassigned() []string {
	var out []string
	for _, st := range s.roster.students {
		if !s.IsAssigned(st.ID) {
			out = append(out, st.ID)
		}
	}
	return out
}

// Commit appends the student to the project. It refuses anything that would
// break the structural invariants; composition caps are the tier's business.
func (s *State) Commit(studentID, projectID string, stage Stage, tier TierName) error {
	if _, ok := s.roster.studentIx[studentID]; !ok {
		return fmt.Errorf("commit %q: %w", studentID, ErrUnknownStudent)
	}
	p, ok := s.roster.Project(projectID)
	if !ok {
		return fmt.Errorf("commit %q to %q: %w", studentID, projectID, ErrUnknownProject)
	}
	if cur, ok := s.placed[studentID]; ok {
		return fmt.Errorf("commit %q to %q: %w (in %q)", studentID, projectID, ErrAlreadyAssigned, cur.project)
	}
	if s.nonViable[projectID] {
		return fmt.Errorf("commit %q to %q: %w", studentID, projectID, ErrNonViable)
	}
	if len(s.members[projectID]) >= p.Capacity {
		return fmt.Errorf("commit %q to %q: %w", studentID, projectID, ErrOverCapacity)
	}
	s.members[projectID] = append(s.members[projectID], studentID)
	s.placed[studentID] = placement{project: projectID, stage: stage, tier: tier}
	return nil
}

// Evict marks the project non-viable and clears all of its members in one
// step, returning them in commit order. A project can be evicted once, and
// only before the viability set is frozen.
func (s *State) Evict(projectID string) ([]string, error) {
	if _, ok := s.roster.Project(projectID); !ok {
		return nil, fmt.Errorf("evict %q: %w", projectID, ErrUnknownProject)
	}
	if s.frozen {
		return nil, fmt.Errorf("evict %q: %w", projectID, ErrViabilityFrozen)
	}
	if s.nonViable[projectID] {
		return nil, fmt.Errorf("evict %q: %w", projectID, ErrAlreadyEvicted)
	}
	out := s.members[projectID]
	for _, id := range out {
		delete(s.placed, id)
	}
	delete(s.members, projectID)
	s.nonViable[projectID] = true
	return out, nil
}

func (s *State) freeze() {
	s.frozen = true
}

// CheckInvariants verifies the structural invariants that must hold at every
// phase boundary.
func (s *State) CheckInvariants() error {
	seen := make(map[string]string, len(s.placed))
	for _, p := range s.roster.projects {
		members := s.members[p.ID]
		if len(members) > p.Capacity {
			return fmt.Errorf("%w: project %q has %d members, capacity %d", ErrInvariant, p.ID, len(members), p.Capacity)
		}
		if s.nonViable[p.ID] && len(members) > 0 {
			return fmt.Errorf("%w: non-viable project %q has %d members", ErrInvariant, p.ID, len(members))
		}
		for _, id := range members {
			if other, dup := seen[id]; dup {
				return fmt.Errorf("%w: student %q in both %q and %q", ErrInvariant, id, other, p.ID)
			}
			seen[id] = p.ID
			if got := s.placed[id].project; got != p.ID {
				return fmt.Errorf("%w: student %q listed in %q but placed in %q", ErrInvariant, id, p.ID, got)
			}
		}
	}
	if len(seen) != len(s.placed) {
		return fmt.Errorf("%w: %d placements but %d members", ErrInvariant, len(s.placed), len(seen))
	}
	return nil
}

// candidate resolves the project's current members against the roster.
func (s *State) candidate(st *Student, p *Project) *Candidate {
	ids := s.members[p.ID]
	members := make([]*Student, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.roster.Student(id); ok {
			members = append(members, m)
		}
	}
	return &Candidate{Student: st, Project: p, Members: members}
}
