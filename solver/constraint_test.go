package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func student(id, nationality string, prefs ...string) Student {
	s := Student{ID: id, Nationality: nationality}
	copy(s.Preferences[:], prefs)
	return s
}

func withSlots(s Student, slots ...string) Student {
	s.Slots = slots
	return s
}

func mustRoster(t *testing.T, students []Student, projects []Project) *Roster {
	t.Helper()
	r, err := NewRoster(students, projects)
	require.NoError(t, err)
	return r
}

func TestCapRule_Limit(t *testing.T) {
	require.Equal(t, 2, CapRule{Mode: CapFixed, Fixed: 2}.Limit(10))
	require.Equal(t, 3, CapRule{Mode: CapBounded, Fixed: 5}.Limit(3))
	require.Equal(t, 5, CapRule{Mode: CapBounded, Fixed: 5}.Limit(8))
	require.Equal(t, 2, CapRule{Mode: CapHalf}.Limit(5))
	require.Equal(t, 1, CapRule{Mode: CapHalf}.Limit(1))
	require.False(t, CapRule{}.Enabled())
}

func TestChecks(t *testing.T) {
	projects := []Project{{ID: "A", Type: "startup", Capacity: 3}}

	t.Run("capacity rejects a full project", func(t *testing.T) {
		r := mustRoster(t, []Student{
			student("s1", "FR"), student("s2", "DE"), student("s3", "IT"), student("s4", "ES"),
		}, projects)
		state := NewState(r)
		for _, id := range []string{"s1", "s2", "s3"} {
			require.NoError(t, state.Commit(id, "A", StagePreference, TierFull))
		}
		tier := Tier{Name: TierCapacityOnly, Checks: []Check{Capacity()}}
		s4, _ := r.Student("s4")
		a, _ := r.Project("A")

		why, rejected := tier.Reject(s4, a, state)
		require.True(t, rejected)
		require.Equal(t, CheckCapacity, why)
	})

	t.Run("nationality cap counts existing members", func(t *testing.T) {
		r := mustRoster(t, []Student{
			student("s1", "FR"), student("s2", "FR"), student("s3", "FR"), student("s4", "DE"),
		}, projects)
		state := NewState(r)
		require.NoError(t, state.Commit("s1", "A", StagePreference, TierFull))
		tier := Tier{Name: TierFull, Checks: []Check{Capacity(), NationalityCap(CapRule{Mode: CapFixed, Fixed: 2})}}
		a, _ := r.Project("A")
		s2, _ := r.Student("s2")
		s3, _ := r.Student("s3")
		s4, _ := r.Student("s4")

		require.True(t, tier.Feasible(s2, a, state))
		require.NoError(t, state.Commit("s2", "A", StagePreference, TierFull))
		why, rejected := tier.Reject(s3, a, state)
		require.True(t, rejected)
		require.Equal(t, CheckNationality, why)
		require.True(t, tier.Feasible(s4, a, state))
	})

	t.Run("background cap ignores students without a background", func(t *testing.T) {
		s1, s2, s3 := student("s1", "FR"), student("s2", "DE"), student("s3", "IT")
		s1.Background = "cs"
		s2.Background = "cs"
		r := mustRoster(t, []Student{s1, s2, s3}, projects)
		state := NewState(r)
		require.NoError(t, state.Commit("s1", "A", StagePreference, TierFull))
		c := BackgroundCap(CapRule{Mode: CapFixed, Fixed: 1})
		a, _ := r.Project("A")
		p2, _ := r.Student("s2")
		p3, _ := r.Student("s3")

		require.False(t, c.Allows(state.candidate(p2, a)))
		require.True(t, c.Allows(state.candidate(p3, a)))
	})

	t.Run("type match compares company preference with project type", func(t *testing.T) {
		s1 := student("s1", "FR")
		s1.CompanyPreference = "startup"
		s2 := student("s2", "DE")
		s2.CompanyPreference = "corporate"
		r := mustRoster(t, []Student{s1, s2}, projects)
		state := NewState(r)
		a, _ := r.Project("A")
		p1, _ := r.Student("s1")
		p2, _ := r.Student("s2")

		require.True(t, TypeMatch().Allows(state.candidate(p1, a)))
		require.False(t, TypeMatch().Allows(state.candidate(p2, a)))
	})
}

func TestOverlap(t *testing.T) {
	projects := []Project{{ID: "A", Type: "startup", Capacity: 4}}
	r := mustRoster(t, []Student{
		withSlots(student("m1", "FR"), "mon", "tue"),
		withSlots(student("m2", "DE"), "wed", "thu"),
		withSlots(student("c", "IT"), "mon", "tue", "wed", "thu"),
		withSlots(student("lonely", "ES"), "fri"),
	}, projects)
	a, _ := r.Project("A")
	c, _ := r.Student("c")
	lonely, _ := r.Student("lonely")

	t.Run("empty project always passes", func(t *testing.T) {
		state := NewState(r)
		joint := Overlap(OverlapRule{Mode: OverlapJoint, MinShared: 2})
		require.True(t, joint.Allows(state.candidate(lonely, a)))
	})

	t.Run("joint intersection tightens with team size", func(t *testing.T) {
		state := NewState(r)
		require.NoError(t, state.Commit("m1", "A", StagePreference, TierFull))
		joint := Overlap(OverlapRule{Mode: OverlapJoint, MinShared: 2})
		require.True(t, joint.Allows(state.candidate(c, a)))

		require.NoError(t, state.Commit("m2", "A", StagePreference, TierFull))
		require.False(t, joint.Allows(state.candidate(c, a)))
	})

	t.Run("pairwise only compares with each member", func(t *testing.T) {
		state := NewState(r)
		require.NoError(t, state.Commit("m1", "A", StagePreference, TierFull))
		require.NoError(t, state.Commit("m2", "A", StagePreference, TierFull))
		pairwise := Overlap(OverlapRule{Mode: OverlapPairwise, MinShared: 2})
		require.True(t, pairwise.Allows(state.candidate(c, a)))
		require.False(t, pairwise.Allows(state.candidate(lonely, a)))
	})
}

func TestIntersect(t *testing.T) {
	require.Equal(t, []string{"b", "d"}, intersect([]string{"a", "b", "d"}, []string{"b", "c", "d"}))
	require.Empty(t, intersect(nil, []string{"a"}))
}

func TestLadder_Tier(t *testing.T) {
	params := DefaultParams
	params.Background = CapRule{Mode: CapHalf}
	params.Overlap = OverlapRule{Mode: OverlapJoint, MinShared: 2}
	ladder := params.Ladder()

	names := func(tier Tier) []CheckName {
		var out []CheckName
		for _, c := range tier.Checks {
			out = append(out, c.Name())
		}
		return out
	}

	strict, err := ladder.Tier(TierStrict)
	require.NoError(t, err)
	require.Equal(t, []CheckName{CheckCapacity, CheckNationality, CheckBackground, CheckOverlap, CheckType}, names(strict))

	full, err := ladder.Tier(TierFull)
	require.NoError(t, err)
	require.Equal(t, []CheckName{CheckCapacity, CheckNationality, CheckBackground, CheckOverlap}, names(full))

	noBackground, err := ladder.Tier(TierNoBackground)
	require.NoError(t, err)
	require.Equal(t, []CheckName{CheckCapacity, CheckNationality}, names(noBackground))

	capOnly, err := ladder.Tier(TierCapacityOnly)
	require.NoError(t, err)
	require.Equal(t, []CheckName{CheckCapacity}, names(capOnly))

	_, err = ladder.Tier("lenient")
	require.ErrorIs(t, err, ErrUnknownTier)

	t.Run("unmodeled checks are left out of every tier", func(t *testing.T) {
		full, err := DefaultParams.Ladder().Tier(TierFull)
		require.NoError(t, err)
		require.Equal(t, []CheckName{CheckCapacity, CheckNationality}, names(full))
	})
}
