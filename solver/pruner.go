package solver

import (
	"fmt"

	"go.uber.org/zap"
)

type ViabilityPolicy string

const (
	ViabilityHalf  ViabilityPolicy = "half"
	ViabilityFixed ViabilityPolicy = "fixed"
	ViabilityNone  ViabilityPolicy = "none"
)

// ViabilityRule decides the minimum team size a project must reach in the
// preference pass to keep its members. ExemptEmpty leaves projects nobody
// chose open for reassignment instead of closing them.
type ViabilityRule struct {
	Policy      ViabilityPolicy
	Min         int
	ExemptEmpty bool
}

func (r ViabilityRule) Threshold(capacity int) int {
	switch r.Policy {
	case ViabilityHalf:
		return capacity / 2
	case ViabilityFixed:
		return r.Min
	default:
		return 0
	}
}

func (r ViabilityRule) validate() error {
	switch r.Policy {
	case ViabilityHalf, ViabilityNone:
		return nil
	case ViabilityFixed:
		if r.Min < 0 {
			return fmt.Errorf("viability minimum must not be negative, got %d", r.Min)
		}
		return nil
	}
	return fmt.Errorf("unknown viability policy %q", r.Policy)
}

// prune evicts every project whose team is below its threshold, then freezes
// the non-viable set. Evicted students come back in catalog order of their
// project, then commit order.
func prune(state *State, rule ViabilityRule, log *zap.Logger) ([]string, error) {
	var evicted []string
	for _, p := range state.roster.projects {
		n := state.Count(p.ID)
		if n == 0 && rule.ExemptEmpty {
			continue
		}
		threshold := rule.Threshold(p.Capacity)
		if n >= threshold {
			continue
		}
		out, err := state.Evict(p.ID)
		if err != nil {
			return evicted, err
		}
		log.Info("project not viable",
			zap.String("project", p.ID),
			zap.Int("members", n),
			zap.Int("threshold", threshold))
		evicted = append(evicted, out...)
	}
	state.freeze()
	return evicted, nil
}
