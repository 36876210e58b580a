package solver

import (
	"math/rand"

	"go.uber.org/zap"
)

// visitationOrder shuffles the roster once. The same order is reused for
// every preference rank, so a student's draw sets their priority for all of
// their choices.
func visitationOrder(r *Roster, rng *rand.Rand) []string {
	order := make([]string, len(r.students))
	for i, s := range r.students {
		order[i] = s.ID
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

type matcher struct {
	roster *Roster
	state  *State
	tier   Tier
	log    *zap.Logger
}

// run is a first-fit pass: rank by rank, each unplaced student takes their
// choice at that rank if the tier allows it. Nothing is undone, so an early
// commit can block a later student's higher choice.
func (m *matcher) run(order []string) (int, error) {
	placed := 0
	for rank := range NumPreferences {
		round := 0
		for _, id := range order {
			if m.state.IsAssigned(id) {
				continue
			}
			st, _ := m.roster.Student(id)
			p, ok := m.roster.Project(st.Preferences[rank])
			if !ok {
				continue
			}
			if why, rejected := m.tier.Reject(st, p, m.state); rejected {
				m.log.Debug("preference rejected",
					zap.String("student", id),
					zap.String("project", p.ID),
					zap.Int("rank", rank+1),
					zap.String("check", string(why)))
				continue
			}
			if err := m.state.Commit(id, p.ID, StagePreference, m.tier.Name); err != nil {
				return placed, err
			}
			round++
		}
		placed += round
		m.log.Debug("preference round done", zap.Int("rank", rank+1), zap.Int("placed", round))
	}
	return placed, nil
}
