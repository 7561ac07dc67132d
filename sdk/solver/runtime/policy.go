package runtime

import (
	"errors"

	"github.com/lox/cfrsolver/sdk/solver"
)

// Policy exposes read-only access to a solver blueprint for sampling
// actions during live play (spec.md §6's Solver::frequency query
// surface). sdk/ev.BlueprintStrategy is the one solver-core consumer
// that goes through it today, rather than calling Blueprint.Strategy
// directly, so self-play evaluation and any future serving process
// share the same "look up by info-set key, pad or fall back to uniform"
// path instead of each reimplementing it.
type Policy struct {
	blueprint *solver.Blueprint
}

// Load constructs a runtime policy from a stored blueprint file.
func Load(path string) (*Policy, error) {
	bp, err := solver.LoadBlueprint(path)
	if err != nil {
		return nil, err
	}
	return &Policy{blueprint: bp}, nil
}

// NewPolicy wraps an already-loaded blueprint (e.g. one a Trainer just
// produced, or one the caller loaded itself to inspect before serving
// it) without a round-trip through disk.
func NewPolicy(bp *solver.Blueprint) *Policy {
	return &Policy{blueprint: bp}
}

// Blueprint returns the underlying blueprint metadata (read-only).
func (p *Policy) Blueprint() *solver.Blueprint {
	if p == nil {
		return nil
	}
	return p.blueprint
}

// ActionWeights returns the stored probability distribution for the provided
// info-set key and action count. When the key is missing, a uniform policy is
// returned to guarantee a valid distribution.
func (p *Policy) ActionWeights(key solver.InfoSetKey, actionCount int) ([]float64, error) {
	if p == nil || p.blueprint == nil {
		return nil, errors.New("nil policy")
	}
	if actionCount <= 0 {
		return nil, errors.New("action count must be positive")
	}

	if strat, ok := p.blueprint.Strategy(key); ok {
		out := make([]float64, actionCount)
		copy(out, strat)
		if len(strat) >= actionCount {
			return out, nil
		}
		// Pad missing entries uniformly for remaining actions.
		uniform := 1.0 / float64(actionCount)
		for i := len(strat); i < actionCount; i++ {
			out[i] = uniform
		}
		return out, nil
	}

	// Uniform fallback.
	out := make([]float64, actionCount)
	v := 1.0 / float64(actionCount)
	for i := range out {
		out[i] = v
	}
	return out, nil
}
