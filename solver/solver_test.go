package solver

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rowFor(l *Ledger, studentID string) (Row, bool) {
	for _, r := range l.Rows {
		if r.StudentID == studentID {
			return r, true
		}
	}
	return Row{}, false
}

func membersOf(l *Ledger, projectID string) []string {
	for _, p := range l.Projects {
		if p.Project.ID == projectID {
			return p.Members
		}
	}
	return nil
}

func TestSolve_FirstChoiceSplit(t *testing.T) {
	projects := []Project{
		{ID: "A", Type: "startup", Capacity: 4},
		{ID: "B", Type: "corporate", Capacity: 4},
	}
	students := []Student{
		student("a1", "FR", "A", "B"), student("a2", "FR", "A", "B"),
		student("a3", "DE", "A", "B"), student("a4", "DE", "A", "B"),
		student("b1", "FR", "B", "A"), student("b2", "FR", "B", "A"),
		student("b3", "DE", "B", "A"), student("b4", "DE", "B", "A"),
	}
	r := mustRoster(t, students, projects)

	ledger, err := Solve(r, DefaultParams, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	require.Len(t, membersOf(ledger, "A"), 4)
	require.Len(t, membersOf(ledger, "B"), 4)
	require.Empty(t, ledger.Unassigned)
	require.Empty(t, ledger.NonViable())
	for _, row := range ledger.Rows {
		require.Equal(t, Rank(1), row.Rank, row.StudentID)
		require.Equal(t, StagePreference, row.Stage)
		require.Equal(t, string(row.StudentID[0]), strings.ToLower(row.ProjectID))
	}
}

func TestSolve_UnderfilledProjectIsEvicted(t *testing.T) {
	projects := []Project{
		{ID: "A", Type: "startup", Capacity: 4},
		{ID: "B", Type: "startup", Capacity: 4},
		{ID: "C", Type: "startup", Capacity: 4},
	}
	students := []Student{
		student("a1", "N1", "A"), student("a2", "N2", "A"),
		student("a3", "N3", "A"), student("a4", "N4", "A"),
		student("b1", "N5", "B"), student("b2", "N6", "B"), student("b3", "N7", "B"),
		student("c1", "N8", "C", "A", "B"),
	}
	r := mustRoster(t, students, projects)

	var afterPrune []string
	params := DefaultParams
	params.AfterPhase = func(phase Phase, s *State) {
		if phase == PhasePrune {
			afterPrune = s.NonViable()
			require.Equal(t, []string{"c1"}, s.Unassigned())
		}
	}

	ledger, err := Solve(r, params, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	require.Equal(t, []string{"C"}, afterPrune)
	require.Equal(t, []string{"C"}, ledger.NonViable())
	require.Empty(t, membersOf(ledger, "C"))

	row, ok := rowFor(ledger, "c1")
	require.True(t, ok)
	require.Equal(t, "B", row.ProjectID)
	require.Equal(t, Rank(3), row.Rank)
	require.Equal(t, StageRetry, row.Stage)
}

func TestSolve_Exhaustion(t *testing.T) {
	projects := []Project{{ID: "A", Type: "startup", Capacity: 4}}
	students := []Student{
		student("s1", "FR", "A"), student("s2", "FR", "A"), student("s3", "FR", "A"),
	}
	r := mustRoster(t, students, projects)

	t.Run("recorded and the run completes", func(t *testing.T) {
		ledger, err := Solve(r, DefaultParams, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		require.Len(t, ledger.Rows, 2)
		require.Len(t, ledger.Unassigned, 1)
		require.ErrorIs(t, ledger.Unassigned[0], ErrExhausted)
		require.False(t, ledger.Unassigned[0].Evicted)
		require.Equal(t, 3, ledger.Total())
	})

	t.Run("relaxation tier places the student and marks it", func(t *testing.T) {
		params := DefaultParams
		params.Relaxation = []TierName{TierCapacityOnly}
		ledger, err := Solve(r, params, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		require.Empty(t, ledger.Unassigned)
		require.Len(t, ledger.Rows, 3)

		var relaxed []Row
		for _, row := range ledger.Rows {
			if row.Stage == StageRelaxed {
				relaxed = append(relaxed, row)
			}
		}
		require.Len(t, relaxed, 1)
		require.Equal(t, TierCapacityOnly, relaxed[0].Tier)
	})

	t.Run("fatal when configured", func(t *testing.T) {
		params := DefaultParams
		params.FailOnExhaustion = true
		ledger, err := Solve(r, params, rand.New(rand.NewSource(1)))
		require.ErrorIs(t, err, ErrExhausted)
		require.Nil(t, ledger)
	})
}

func TestSolve_TypeEnforcedPreferences(t *testing.T) {
	projects := []Project{{ID: "A", Type: "startup", Capacity: 2}}
	s1 := student("s1", "FR", "A")
	s1.CompanyPreference = "corporate"
	s2 := student("s2", "DE", "A")
	s2.CompanyPreference = "corporate"
	r := mustRoster(t, []Student{s1, s2}, projects)

	params := DefaultParams
	params.EnforceTypeInPreferences = true
	params.Viability = ViabilityRule{Policy: ViabilityNone}
	params.AfterPhase = func(phase Phase, s *State) {
		if phase == PhaseMatch {
			require.Zero(t, s.Count("A"))
		}
	}

	ledger, err := Solve(r, params, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 2)
	for _, row := range ledger.Rows {
		require.Equal(t, StageRetry, row.Stage)
		require.Equal(t, Rank(1), row.Rank)
		require.False(t, row.TypeMatched)
	}
}

func TestSolve_RandomFallbacks(t *testing.T) {
	projects := []Project{
		{ID: "A", Type: "ngo", Capacity: 2},
		{ID: "B", Type: "startup", Capacity: 2},
	}
	s1 := student("s1", "FR", "Z")
	s1.CompanyPreference = "startup"
	s2 := student("s2", "DE", "Z")
	s2.CompanyPreference = "corporate"
	r := mustRoster(t, []Student{s1, s2}, projects)

	params := DefaultParams
	params.Viability = ViabilityRule{Policy: ViabilityNone}

	for seed := range int64(10) {
		ledger, err := Solve(r, params, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)

		row, ok := rowFor(ledger, "s1")
		require.True(t, ok)
		require.Equal(t, "B", row.ProjectID)
		require.Equal(t, StageTypeAffinity, row.Stage)
		require.Equal(t, TierStrict, row.Tier)
		require.True(t, row.Rank.IsFallback())
		require.True(t, row.TypeMatched)

		row, ok = rowFor(ledger, "s2")
		require.True(t, ok)
		require.Equal(t, StageAnyType, row.Stage)
		require.Equal(t, "fallback", row.Rank.String())
	}
}

func TestReassigner_PickDrawsWithSingleOption(t *testing.T) {
	r := mustRoster(t, []Student{student("x", "FR", "A")}, []Project{{ID: "A", Type: "ngo", Capacity: 2}})
	state := NewState(r)
	full, err := DefaultParams.Ladder().Tier(TierFull)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	ra := &reassigner{roster: r, state: state, rng: rng, full: full, log: zap.NewNop()}
	st, _ := r.Student("x")
	ok, err := ra.pick(st, full, StageAnyType, full.Name, nil)
	require.NoError(t, err)
	require.True(t, ok)
	project, _ := state.ProjectOf("x")
	require.Equal(t, "A", project)

	ref := rand.New(rand.NewSource(9))
	ref.Intn(1)
	require.Equal(t, ref.Int63(), rng.Int63())
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams.Validate())

	p := DefaultParams
	p.Relaxation = []TierName{TierCapacityOnly, TierNoOverlap}
	require.Error(t, p.Validate())

	p.Relaxation = []TierName{TierStrict}
	require.Error(t, p.Validate())

	p.Relaxation = []TierName{"anything-goes"}
	require.ErrorIs(t, p.Validate(), ErrUnknownTier)

	p = DefaultParams
	p.Nationality = CapRule{Mode: CapFixed}
	require.Error(t, p.Validate())

	p = DefaultParams
	p.Overlap = OverlapRule{Mode: "sometimes", MinShared: 2}
	require.Error(t, p.Validate())
}

// fixture builds a reproducible mid-sized roster.
func fixture(t *testing.T, numStudents, numProjects int) *Roster {
	t.Helper()
	gen := rand.New(rand.NewSource(1))
	nationalities := []string{"FR", "DE", "IT", "ES", "CN", "IN"}
	backgrounds := []string{"cs", "business", "design"}
	types := []string{"startup", "corporate", "ngo"}
	days := []string{"mon", "tue", "wed", "thu", "fri"}

	projects := make([]Project, numProjects)
	for i := range projects {
		projects[i] = Project{ID: fmt.Sprintf("P%02d", i+1), Type: types[i%len(types)], Capacity: 3 + gen.Intn(3)}
	}
	students := make([]Student, numStudents)
	for i := range students {
		s := Student{
			ID:                fmt.Sprintf("S%03d", i+1),
			Nationality:       nationalities[gen.Intn(len(nationalities))],
			Background:        backgrounds[gen.Intn(len(backgrounds))],
			CompanyPreference: types[gen.Intn(len(types))],
		}
		for _, d := range days {
			if gen.Intn(10) < 7 {
				s.Slots = append(s.Slots, d)
			}
		}
		for k, pi := range gen.Perm(numProjects)[:NumPreferences] {
			s.Preferences[k] = projects[pi].ID
		}
		students[i] = s
	}
	return mustRoster(t, students, projects)
}

func TestSolve_Properties(t *testing.T) {
	r := fixture(t, 40, 9)

	variants := map[string]Params{
		"default": DefaultParams,
		"all checks": func() Params {
			p := DefaultParams
			p.Background = CapRule{Mode: CapHalf}
			p.Overlap = OverlapRule{Mode: OverlapJoint, MinShared: 2}
			return p
		}(),
		"typed with relaxation": func() Params {
			p := DefaultParams
			p.Nationality = CapRule{Mode: CapBounded, Fixed: 1}
			p.EnforceTypeInPreferences = true
			p.Relaxation = []TierName{TierCapacityOnly}
			return p
		}(),
	}

	for name, params := range variants {
		for seed := int64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("%s/seed=%d", name, seed), func(t *testing.T) {
				var phases []Phase
				var frozen []string
				params.AfterPhase = func(phase Phase, s *State) {
					phases = append(phases, phase)
					for _, p := range r.Projects() {
						require.LessOrEqual(t, s.Count(p.ID), p.Capacity, "phase %s project %s", phase, p.ID)
					}
					switch phase {
					case PhasePrune:
						frozen = s.NonViable()
					case PhaseReassign:
						require.Equal(t, frozen, s.NonViable())
					}
				}

				ledger, err := Solve(r, params, rand.New(rand.NewSource(seed)))
				require.NoError(t, err)
				require.Equal(t, []Phase{PhaseMatch, PhasePrune, PhaseReassign}, phases)

				// Conservation: every student exactly once.
				seen := map[string]bool{}
				for _, row := range ledger.Rows {
					require.False(t, seen[row.StudentID])
					seen[row.StudentID] = true
				}
				for _, u := range ledger.Unassigned {
					require.False(t, seen[u.StudentID])
					seen[u.StudentID] = true
				}
				require.Len(t, seen, len(r.Students()))

				// Eviction finality.
				for _, p := range ledger.Projects {
					if !p.Viable {
						require.Empty(t, p.Members, p.Project.ID)
					}
				}

				// Rank correctness.
				for _, row := range ledger.Rows {
					st, _ := r.Student(row.StudentID)
					if !row.Rank.IsFallback() {
						require.Equal(t, row.ProjectID, st.Preferences[row.Rank-1])
					} else {
						require.NotContains(t, st.Preferences[:], row.ProjectID)
					}
				}

				// Nationality cap holds for everyone not placed by a relaxed tier.
				byProject := map[string]map[string]int{}
				for _, row := range ledger.Rows {
					if row.Stage == StageRelaxed {
						continue
					}
					if byProject[row.ProjectID] == nil {
						byProject[row.ProjectID] = map[string]int{}
					}
					byProject[row.ProjectID][row.Nationality]++
				}
				for pid, counts := range byProject {
					p, _ := r.Project(pid)
					for nat, n := range counts {
						require.LessOrEqual(t, n, params.Nationality.Limit(p.Capacity), "%s/%s", pid, nat)
					}
				}

				// Background cap, same exemption; blank backgrounds are never counted.
				if params.Background.Enabled() {
					byBackground := map[string]map[string]int{}
					for _, row := range ledger.Rows {
						if row.Stage == StageRelaxed || row.Background == "" {
							continue
						}
						if byBackground[row.ProjectID] == nil {
							byBackground[row.ProjectID] = map[string]int{}
						}
						byBackground[row.ProjectID][row.Background]++
					}
					for pid, counts := range byBackground {
						p, _ := r.Project(pid)
						for bg, n := range counts {
							require.LessOrEqual(t, n, params.Background.Limit(p.Capacity), "%s/%s", pid, bg)
						}
					}
				}

				// Joint availability: every team of two or more shares enough slots.
				if params.Overlap.Mode == OverlapJoint {
					relaxed := map[string]bool{}
					for _, row := range ledger.Rows {
						if row.Stage == StageRelaxed {
							relaxed[row.ProjectID] = true
						}
					}
					for _, p := range ledger.Projects {
						if len(p.Members) < 2 || relaxed[p.Project.ID] {
							continue
						}
						first, _ := r.Student(p.Members[0])
						shared := first.Slots
						for _, id := range p.Members[1:] {
							st, _ := r.Student(id)
							shared = intersect(shared, st.Slots)
						}
						require.GreaterOrEqual(t, len(shared), params.Overlap.MinShared, "project %s slots %v", p.Project.ID, shared)
					}
				}

				// Stable ordering.
				require.True(t, slices.IsSortedFunc(ledger.Rows, func(a, b Row) int {
					return cmp.Or(
						strings.Compare(a.ProjectID, b.ProjectID),
						cmp.Compare(a.Rank.order(), b.Rank.order()),
						strings.Compare(a.StudentID, b.StudentID),
					)
				}))
			})
		}
	}
}

func TestSolve_Deterministic(t *testing.T) {
	r := fixture(t, 60, 12)
	params := DefaultParams
	params.Overlap = OverlapRule{Mode: OverlapPairwise, MinShared: 2}
	params.Relaxation = []TierName{TierNoOverlap}

	first, err := Solve(r, params, rand.New(rand.NewSource(2024)))
	require.NoError(t, err)
	second, err := Solve(r, params, rand.New(rand.NewSource(2024)))
	require.NoError(t, err)

	if diff := gocmp.Diff(first, second); diff != "" {
		t.Fatalf("ledgers differ for the same seed (-first +second):\n%s", diff)
	}
}
