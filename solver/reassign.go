package solver

import (
	"math/rand"

	"go.uber.org/zap"
)

type reassigner struct {
	roster  *Roster
	state   *State
	rng     *rand.Rand
	full    Tier
	relaxed []Tier
	log     *zap.Logger
}

// run places evicted students first, then students the preference pass left
// over, in visitation order. A student nothing can take is returned as an
// ExhaustionError; the rest of the queue is still processed.
func (r *reassigner) run(evicted, order []string, failFast bool) ([]*ExhaustionError, error) {
	wasEvicted := make(map[string]bool, len(evicted))
	queue := make([]string, 0, len(evicted))
	for _, id := range evicted {
		wasEvicted[id] = true
		queue = append(queue, id)
	}
	for _, id := range order {
		if !wasEvicted[id] && !r.state.IsAssigned(id) {
			queue = append(queue, id)
		}
	}

	var exhausted []*ExhaustionError
	for _, id := range queue {
		ok, err := r.place(id)
		if err != nil {
			return exhausted, err
		}
		if ok {
			continue
		}
		exh := &ExhaustionError{StudentID: id, Evicted: wasEvicted[id], Tried: r.tried()}
		r.log.Warn("student left unassigned", zap.String("student", id), zap.Bool("evicted", exh.Evicted))
		if failFast {
			return append(exhausted, exh), exh
		}
		exhausted = append(exhausted, exh)
	}
	return exhausted, nil
}

func (r *reassigner) tried() []TierName {
	out := []TierName{r.full.Name}
	for _, t := range r.relaxed {
		out = append(out, t.Name)
	}
	return out
}

func (r *reassigner) place(id string) (bool, error) {
	st, ok := r.roster.Student(id)
	if !ok {
		return false, ErrUnknownStudent
	}

	for _, pid := range st.Preferences {
		p, ok := r.roster.Project(pid)
		if !ok || !r.state.IsViable(pid) {
			continue
		}
		if r.full.Feasible(st, p, r.state) {
			return true, r.commit(st, p.ID, StageRetry, r.full.Name)
		}
	}

	sameType := func(p *Project) bool { return p.Type == st.CompanyPreference }
	if ok, err := r.pick(st, r.full, StageTypeAffinity, TierStrict, sameType); ok || err != nil {
		return ok, err
	}
	if ok, err := r.pick(st, r.full, StageAnyType, r.full.Name, nil); ok || err != nil {
		return ok, err
	}
	for _, t := range r.relaxed {
		if ok, err := r.pick(st, t, StageRelaxed, t.Name, nil); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// pick chooses uniformly among viable projects that pass the tier and the
// optional filter. The generator is drawn from whenever at least one option
// exists.
func (r *reassigner) pick(st *Student, tier Tier, stage Stage, recorded TierName, filter func(*Project) bool) (bool, error) {
	var options []string
	for i := range r.roster.projects {
		p := &r.roster.projects[i]
		if !r.state.IsViable(p.ID) {
			continue
		}
		if filter != nil && !filter(p) {
			continue
		}
		if tier.Feasible(st, p, r.state) {
			options = append(options, p.ID)
		}
	}
	if len(options) == 0 {
		return false, nil
	}
	return true, r.commit(st, options[r.rng.Intn(len(options))], stage, recorded)
}

func (r *reassigner) commit(st *Student, projectID string, stage Stage, tier TierName) error {
	if err := r.state.Commit(st.ID, projectID, stage, tier); err != nil {
		return err
	}
	r.log.Debug("student reassigned",
		zap.String("student", st.ID),
		zap.String("project", projectID),
		zap.String("stage", string(stage)))
	return nil
}
