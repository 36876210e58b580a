package solver

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseMatch    Phase = "match"
	PhasePrune    Phase = "prune"
	PhaseReassign Phase = "reassign"
)

type Params struct {
	Nationality CapRule
	Background  CapRule
	Overlap     OverlapRule

	// EnforceTypeInPreferences runs the preference pass under the strict
	// tier instead of the full one.
	EnforceTypeInPreferences bool

	Viability ViabilityRule

	// Relaxation lists extra tiers tried, loosest last, after the any-type
	// step and before a student is declared unassigned.
	Relaxation []TierName

	// FailOnExhaustion makes the first unplaceable student abort the run.
	FailOnExhaustion bool

	Logger *zap.Logger

	// AfterPhase, when set, observes the state at each phase boundary. It
	// must not mutate it.
	AfterPhase func(Phase, *State)
}

var DefaultParams = Params{
	Nationality: CapRule{Mode: CapFixed, Fixed: 2},
	Viability:   ViabilityRule{Policy: ViabilityHalf},
}

func (p Params) Validate() error {
	var errs []error
	if err := p.Nationality.validate(); err != nil {
		errs = append(errs, fmt.Errorf("nationality: %w", err))
	}
	if err := p.Background.validate(); err != nil {
		errs = append(errs, fmt.Errorf("background: %w", err))
	}
	if err := p.Overlap.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Viability.validate(); err != nil {
		errs = append(errs, err)
	}
	prev := TierFull
	for _, t := range p.Relaxation {
		if _, ok := tierDepth[t]; !ok {
			errs = append(errs, fmt.Errorf("relaxation: %w: %q", ErrUnknownTier, t))
			continue
		}
		if !Looser(t, prev) {
			errs = append(errs, fmt.Errorf("relaxation: tier %q must be looser than %q", t, prev))
			continue
		}
		prev = t
	}
	return errors.Join(errs...)
}

// Ladder builds the check ladder the params describe. Capacity and type
// are always present; the attribute checks only when enabled.
func (p Params) Ladder() *Ladder {
	checks := []Check{Capacity()}
	if p.Nationality.Enabled() {
		checks = append(checks, NationalityCap(p.Nationality))
	}
	if p.Background.Enabled() {
		checks = append(checks, BackgroundCap(p.Background))
	}
	if p.Overlap.Enabled() {
		checks = append(checks, Overlap(p.Overlap))
	}
	return NewLadder(append(checks, TypeMatch())...)
}

// Solve runs the preference pass, the viability prune and reassignment, in
// that order, against a fresh state. rng must be seeded by the caller; it
// drives the visitation shuffle and every random choice, so the same seed
// and roster always give the same ledger.
func Solve(roster *Roster, params Params, rng *rand.Rand) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	log := params.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ladder := params.Ladder()
	full, _ := ladder.Tier(TierFull)
	matchTier := full
	if params.EnforceTypeInPreferences {
		matchTier, _ = ladder.Tier(TierStrict)
	}
	var relaxed []Tier
	for _, name := range params.Relaxation {
		t, _ := ladder.Tier(name)
		relaxed = append(relaxed, t)
	}

	state := NewState(roster)
	boundary := func(phase Phase) error {
		if err := state.CheckInvariants(); err != nil {
			return fmt.Errorf("after %s: %w", phase, err)
		}
		if params.AfterPhase != nil {
			params.AfterPhase(phase, state)
		}
		return nil
	}

	order := visitationOrder(roster, rng)
	m := &matcher{roster: roster, state: state, tier: matchTier, log: log}
	placed, err := m.run(order)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	log.Info("preference pass done",
		zap.Int("students", len(order)),
		zap.Int("placed", placed),
		zap.String("tier", string(matchTier.Name)))
	if err := boundary(PhaseMatch); err != nil {
		return nil, err
	}

	evicted, err := prune(state, params.Viability, log)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	log.Info("viability prune done",
		zap.Int("non_viable", len(state.NonViable())),
		zap.Int("evicted", len(evicted)))
	if err := boundary(PhasePrune); err != nil {
		return nil, err
	}

	r := &reassigner{roster: roster, state: state, rng: rng, full: full, relaxed: relaxed, log: log}
	exhausted, err := r.run(evicted, order, params.FailOnExhaustion)
	if err != nil {
		return nil, fmt.Errorf("reassign: %w", err)
	}
	log.Info("reassignment done", zap.Int("unassigned", len(exhausted)))
	if err := boundary(PhaseReassign); err != nil {
		return nil, err
	}

	return buildLedger(roster, state, exhausted), nil
}
