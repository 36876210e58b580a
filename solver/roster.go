package solver

import (
	"fmt"
	"slices"
)

// NumPreferences is the length of every student's ranked project list.
const NumPreferences = 5

type Student struct {
	ID                string
	Nationality       string
	Background        string
	Slots             []string
	CompanyPreference string
	Preferences       [NumPreferences]string
}

// RankOf returns the position of projectID in the student's ranked list, or
// Fallback when the project is not one of their choices.
func (s *Student) RankOf(projectID string) Rank {
	for i, p := range s.Preferences {
		if p != "" && p == projectID {
			return Rank(i + 1)
		}
	}
	return Fallback
}

type Project struct {
	ID       string
	Type     string
	Capacity int
}

// Roster is the immutable student and project catalog the phases read from.
// Catalog order is the order the tables were loaded in.
type Roster struct {
	students  []Student
	projects  []Project
	studentIx map[string]int
	projectIx map[string]int
}

func NewRoster(students []Student, projects []Project) (*Roster, error) {
	r := &Roster{
		students:  make([]Student, len(students)),
		projects:  slices.Clone(projects),
		studentIx: make(map[string]int, len(students)),
		projectIx: make(map[string]int, len(projects)),
	}
	for i, s := range students {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: student at row %d has no id", ErrInvalidRoster, i+1)
		}
		if _, dup := r.studentIx[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate student %q", ErrInvalidRoster, s.ID)
		}
		s.Slots = normalizeSlots(s.Slots)
		r.students[i] = s
		r.studentIx[s.ID] = i
	}
	for i, p := range r.projects {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: project at row %d has no id", ErrInvalidRoster, i+1)
		}
		if p.Capacity < 1 {
			return nil, fmt.Errorf("%w: project %q has capacity %d", ErrInvalidRoster, p.ID, p.Capacity)
		}
		if _, dup := r.projectIx[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate project %q", ErrInvalidRoster, p.ID)
		}
		r.projectIx[p.ID] = i
	}
	return r, nil
}

// Students returns the catalog in load order. The slice is shared and must
// not be modified.
func (r *Roster) Students() []Student { return r.students }

// Projects returns the catalog in load order. The slice is shared and must
// not be modified.
func (r *Roster) Projects() []Project { return r.projects }

func (r *Roster) Student(id string) (*Student, bool) {
	i, ok := r.studentIx[id]
	if !ok {
		return nil, false
	}
	return &r.students[i], true
}

func (r *Roster) Project(id string) (*Project, bool) {
	i, ok := r.projectIx[id]
	if !ok {
		return nil, false
	}
	return &r.projects[i], true
}

func (r *Roster) TotalCapacity() int {
	total := 0
	for _, p := range r.projects {
		total += p.Capacity
	}
	return total
}

func normalizeSlots(slots []string) []string {
	if len(slots) == 0 {
		return nil
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
