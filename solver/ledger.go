package solver

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Rank is a 1-based preference position. The zero value is the fallback
// sentinel for placements outside the student's ranked list.
type Rank int

const Fallback Rank = 0

func (r Rank) IsFallback() bool { return r < 1 || r > NumPreferences }

func (r Rank) String() string {
	if r.IsFallback() {
		return "fallback"
	}
	return strconv.Itoa(int(r))
}

// order sorts the fallback after every numeric rank.
func (r Rank) order() int {
	if r.IsFallback() {
		return NumPreferences + 1
	}
	return int(r)
}

type Row struct {
	ProjectID         string
	ProjectType       string
	Capacity          int
	StudentID         string
	Nationality       string
	Background        string
	Slots             []string
	CompanyPreference string
	Rank              Rank
	TypeMatched       bool
	Stage             Stage
	Tier              TierName
}

type ProjectOutcome struct {
	Project Project
	Members []string
	Viable  bool
}

func (o ProjectOutcome) Remaining() int {
	return o.Project.Capacity - len(o.Members)
}

// Ledger is the read-only result of a run.
type Ledger struct {
	Rows       []Row
	Projects   []ProjectOutcome
	Unassigned []*ExhaustionError

	// HasBackground and HasSlots report whether any student carried the
	// attribute, so writers can omit empty columns.
	HasBackground bool
	HasSlots      bool
}

func (l *Ledger) Total() int { return len(l.Rows) + len(l.Unassigned) }

func (l *Ledger) NonViable() []string {
	var out []string
	for _, p := range l.Projects {
		if !p.Viable {
			out = append(out, p.Project.ID)
		}
	}
	return out
}

func buildLedger(r *Roster, state *State, exhausted []*ExhaustionError) *Ledger {
	l := &Ledger{}
	for i := range r.students {
		st := &r.students[i]
		l.HasBackground = l.HasBackground || st.Background != ""
		l.HasSlots = l.HasSlots || len(st.Slots) > 0
	}

	for _, p := range r.projects {
		members := slices.Clone(state.Members(p.ID))
		l.Projects = append(l.Projects, ProjectOutcome{Project: p, Members: members, Viable: state.IsViable(p.ID)})
		for _, id := range members {
			st, _ := r.Student(id)
			pl := state.placed[id]
			l.Rows = append(l.Rows, Row{
				ProjectID:         p.ID,
				ProjectType:       p.Type,
				Capacity:          p.Capacity,
				StudentID:         st.ID,
				Nationality:       st.Nationality,
				Background:        st.Background,
				Slots:             slices.Clone(st.Slots),
				CompanyPreference: st.CompanyPreference,
				Rank:              st.RankOf(p.ID),
				TypeMatched:       st.CompanyPreference == p.Type,
				Stage:             pl.stage,
				Tier:              pl.tier,
			})
		}
	}

	slices.SortFunc(l.Rows, func(a, b Row) int {
		return cmp.Or(
			strings.Compare(a.ProjectID, b.ProjectID),
			cmp.Compare(a.Rank.order(), b.Rank.order()),
			strings.Compare(a.StudentID, b.StudentID),
		)
	})
	slices.SortFunc(l.Projects, func(a, b ProjectOutcome) int {
		return strings.Compare(a.Project.ID, b.Project.ID)
	})
	l.Unassigned = slices.Clone(exhausted)
	slices.SortFunc(l.Unassigned, func(a, b *ExhaustionError) int {
		return strings.Compare(a.StudentID, b.StudentID)
	})
	return l
}
