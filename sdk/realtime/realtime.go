// Package realtime implements the real-time subgame solver (spec C11):
// given a live hand's current PokerState, it re-solves the remaining
// subgame with external-sampling MCCFR biased toward robustness against
// fixed opponent tendencies, bottoming out at a configured depth into a
// blueprint-guided rollout rather than recursing to true showdown. It
// reuses sdk/tree's lock-free TreeStorage (spec C7) rather than the
// blueprint trainer's sharded RegretTable, since a subgame tree is built
// fresh per hand and discarded afterward instead of living for the whole
// training run.
package realtime

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/cfrsolver/sdk/action"
	"github.com/lox/cfrsolver/sdk/solver"
	"github.com/lox/cfrsolver/sdk/state"
	"github.com/lox/cfrsolver/sdk/tree"
)

// Phase tracks the solver's lifecycle, spec.md §4.8's "solver state
// transitions UNDEFINED -> SOLVING -> SOLVED/INTERRUPT".
type Phase uint32

const (
	PhaseUndefined Phase = iota
	PhaseSolving
	PhaseSolved
	PhaseInterrupted
)

func (p Phase) String() string {
	switch p {
	case PhaseSolving:
		return "solving"
	case PhaseSolved:
		return "solved"
	case PhaseInterrupted:
		return "interrupt"
	default:
		return "undefined"
	}
}

// Bias is a one-time per-seat soft prior injected before a subgame's
// normal play begins (spec.md §4.1's BIAS pseudo-round), biasing that
// seat's sampled actions toward a tendency so the subsolver's strategy
// stays robust against opponents who lean fold-happy, calling-station,
// or aggressive rather than assuming they play the blueprint exactly.
type Bias uint8

const (
	BiasNone Bias = iota
	BiasFold
	BiasCall
	BiasRaise
)

var biasOptions = []Bias{BiasNone, BiasFold, BiasCall, BiasRaise}

// weights returns a mixing distribution over actions that favors the
// kinds of action this bias leans toward, used to nudge (not replace)
// the seat's regret-matching strategy when it is not the traverser.
func (b Bias) weights(actions []action.Action) []float64 {
	w := make([]float64, len(actions))
	total := 0.0
	for i, a := range actions {
		v := 1.0
		switch {
		case b == BiasFold && a.Kind == action.Fold:
			v = 6
		case b == BiasCall && (a.Kind == action.Call || a.Kind == action.Check):
			v = 6
		case b == BiasRaise && (a.Kind == action.Bet || a.Kind == action.Raise || a.Kind == action.AllIn):
			v = 6
		}
		w[i] = v
		total += v
	}
	if total <= 0 {
		return uniform(len(actions))
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

func uniform(n int) []float64 {
	p := make([]float64, n)
	if n == 0 {
		return p
	}
	v := 1.0 / float64(n)
	for i := range p {
		p[i] = v
	}
	return p
}

func sampleIndex(p []float64, rng *rand.Rand) int {
	total := 0.0
	for _, v := range p {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return rng.IntN(len(p))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range p {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i
		}
	}
	return len(p) - 1
}

func mix(a, b []float64) []float64 {
	out := make([]float64, len(a))
	total := 0.0
	for i := range out {
		out[i] = a[i] * b[i]
		total += out[i]
	}
	if total <= 0 {
		return uniform(len(a))
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// LeafEvaluator estimates the expected utility to a seat from a state
// that has reached the subgame's configured terminal depth, by rolling
// out under the blueprint instead of continuing to recurse (spec.md
// §4.8's "leaf evaluator"), bounding how deep any one real-time
// traversal goes. When Sampled is set, each rollout step plays the
// one-byte action index the assigned seat's Bias selects (spec C9's
// sampled blueprint) instead of resampling the full-precision average
// strategy; Sampled may be nil, in which case Rollout falls back to
// Blueprint.Strategy the way it always did.
type LeafEvaluator struct {
	Blueprint *solver.Blueprint
	Sampled   *solver.SampledBlueprint
	Eval      solver.Evaluator
	Profile   *action.Profile
	KeyFor    func(st state.PokerState, seat int) solver.InfoSetKey
}

// Rollout plays st to completion and returns target's resulting
// utility. biases assigns each seat the tendency its line should play
// under (BiasNone if nil or out of range); Sampled's one-byte lookup is
// tried first for each acting seat's assigned bias, falling back to the
// full-precision average strategy (uniform if the blueprint has no
// entry) wherever Sampled has nothing for that infoset.
func (le LeafEvaluator) Rollout(st state.PokerState, target int, biases []Bias, rng *rand.Rand) float64 {
	cur := st
	for !cur.IsComplete() {
		seat := cur.ActiveSeat()
		if seat == -1 {
			break
		}
		actions := cur.LegalActions(le.Profile)
		if len(actions) == 0 {
			break
		}
		bias := BiasNone
		if biases != nil && seat >= 0 && seat < len(biases) {
			bias = biases[seat]
		}
		idx := le.chooseAction(cur, seat, actions, bias, rng)
		next, err := cur.Apply(actions[idx])
		if err != nil {
			break
		}
		cur = next
	}
	payouts := cur.Payouts(le.Eval)
	if target < 0 || target >= len(payouts) {
		return 0
	}
	return float64(payouts[target])
}

func (le LeafEvaluator) chooseAction(st state.PokerState, seat int, actions []action.Action, bias Bias, rng *rand.Rand) int {
	key := le.KeyFor(st, seat)
	if idx, ok := le.Sampled.ActionIndex(key, int(bias)); ok && idx < len(actions) {
		return idx
	}
	strat, ok := le.Blueprint.Strategy(key)
	if !ok || len(strat) != len(actions) {
		strat = uniform(len(actions))
	}
	return sampleIndex(strat, rng)
}

// Config parameterizes a subgame re-solve (spec.md §6
// RealTimeSolverConfig).
type Config struct {
	DiscountInterval int
	LCFRThresh       int
	LogInterval      int
	// TerminalStreet/TerminalBetLevel mark the depth at which the
	// traversal stops recursing and calls LeafEvaluator instead.
	TerminalStreet   action.Street
	TerminalBetLevel int
	// Deadline, if non-zero, bounds wall-clock time via Clock.Now().
	Deadline time.Time
	// MaxIterations bounds the subgame solve by iteration count.
	MaxIterations int
}

// RealTimeSolver re-solves a subgame rooted at a live PokerState.
type RealTimeSolver struct {
	cfg     Config
	profile *action.Profile
	leaf    LeafEvaluator
	eval    solver.Evaluator
	clock   quartz.Clock

	phase     atomic.Uint32
	interrupt atomic.Bool
}

// NewRealTimeSolver builds a RealTimeSolver. clock defaults to
// quartz.NewReal(); tests that need deterministic wall-clock control
// over the Deadline check pass a quartz.NewMock(t) instead.
func NewRealTimeSolver(cfg Config, profile *action.Profile, leaf LeafEvaluator, eval solver.Evaluator, clock quartz.Clock) *RealTimeSolver {
	if clock == nil {
		clock = quartz.NewReal()
	}
	r := &RealTimeSolver{cfg: cfg, profile: profile, leaf: leaf, eval: eval, clock: clock}
	r.phase.Store(uint32(PhaseUndefined))
	return r
}

// SetInterrupt flips the atomic interrupt flag this solver polls between
// iterations (spec.md §6 "Interrupt interface").
func (r *RealTimeSolver) SetInterrupt() {
	r.interrupt.Store(true)
}

// Phase returns the solver's current lifecycle state.
func (r *RealTimeSolver) Phase() Phase {
	return Phase(r.phase.Load())
}

// Solve runs external-sampling MCCFR over the subgame rooted at st,
// targeting seat target, for up to cfg.MaxIterations iterations (or
// until the wall-clock deadline or an external interrupt fires,
// whichever comes first). It returns the resulting subgame tree so the
// caller can read off target's average strategy at the root via
// storage.Root().AverageStrategy() restricted to the bias-preflight's
// BiasNone branch (index 0), the "no bias assumed" line of play.
func (r *RealTimeSolver) Solve(st state.PokerState, target int, seed int64) (*tree.TreeStorage, Phase, error) {
	r.phase.Store(uint32(PhaseSolving))

	storage := tree.NewTreeStorage(len(biasOptions))
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed>>32)^0x9e3779b9))

	iterations := r.cfg.MaxIterations
	if iterations <= 0 {
		iterations = 1000
	}

	for i := 1; i <= iterations; i++ {
		if r.interrupt.Load() {
			r.phase.Store(uint32(PhaseInterrupted))
			return storage, PhaseInterrupted, nil
		}
		if !r.cfg.Deadline.IsZero() && !r.clock.Now().Before(r.cfg.Deadline) {
			r.phase.Store(uint32(PhaseInterrupted))
			return storage, PhaseInterrupted, nil
		}

		biases := make([]Bias, len(st.Seats()))
		if _, err := r.biasPreflight(st, target, storage.Root(), 0, biases, rng); err != nil {
			return storage, PhaseInterrupted, err
		}

		if r.cfg.DiscountInterval > 0 && i <= r.cfg.LCFRThresh && i%r.cfg.DiscountInterval == 0 {
			factor := float64(i/r.cfg.DiscountInterval) / float64(i/r.cfg.DiscountInterval+1)
			storage.Root().Discount(factor)
		}
	}

	r.phase.Store(uint32(PhaseSolved))
	return storage, PhaseSolved, nil
}

// biasPreflight walks the BIAS pseudo-round: the traverser (target) is
// deemed to choose every non-folded opponent's bias in turn, fully
// exploring all biasOptions combinations the way external-sampling CFR
// fully explores the traverser's own real decisions. Once every
// opponent has a bias assigned, play proceeds into the ordinary subgame
// with each opponent's action sampling nudged toward its assigned bias.
func (r *RealTimeSolver) biasPreflight(st state.PokerState, target int, node *tree.Node, seat int, biases []Bias, rng *rand.Rand) (float64, error) {
	n := len(st.Seats())
	for seat < n && (seat == target || st.Seats()[seat].Folded) {
		seat++
	}
	if seat >= n {
		return r.traverseSubgame(st, target, node, biases, rng)
	}

	strategy := node.Strategy()
	util := make([]float64, len(biasOptions))
	nodeUtil := 0.0
	for i, b := range biasOptions {
		biases[seat] = b
		child := node.Child(i, len(biasOptions))
		u, err := r.biasPreflight(st, target, child, seat+1, biases, rng)
		if err != nil {
			return 0, err
		}
		util[i] = u
		nodeUtil += strategy[i] * u
	}
	regrets := make([]float64, len(biasOptions))
	for i := range regrets {
		regrets[i] = util[i] - nodeUtil
	}
	node.AccumulateRegret(regrets, 1.0, false)
	node.AccumulateStrategy(strategy, 1.0, 1.0)
	return nodeUtil, nil
}

func (r *RealTimeSolver) traverseSubgame(st state.PokerState, target int, node *tree.Node, biases []Bias, rng *rand.Rand) (float64, error) {
	if st.IsComplete() {
		return r.terminalUtility(st, target), nil
	}
	seat := st.ActiveSeat()
	if seat == -1 {
		return r.terminalUtility(st, target), nil
	}
	if r.atTerminalDepth(st) {
		return r.leaf.Rollout(st, target, biases, rng), nil
	}

	actions := st.LegalActions(r.profile)
	if len(actions) == 0 {
		return r.terminalUtility(st, target), nil
	}

	strategy := node.Strategy()

	if seat == target {
		util := make([]float64, len(actions))
		nodeUtil := 0.0
		for i, a := range actions {
			next, err := st.Apply(a)
			if err != nil {
				return 0, err
			}
			child := node.Child(i, len(actions))
			u, err := r.traverseSubgame(next, target, child, biases, rng)
			if err != nil {
				return 0, err
			}
			util[i] = u
			nodeUtil += strategy[i] * u
		}
		regrets := make([]float64, len(actions))
		for i := range regrets {
			regrets[i] = util[i] - nodeUtil
		}
		node.AccumulateRegret(regrets, 1.0, false)
		node.AccumulateStrategy(strategy, 1.0, 1.0)
		return nodeUtil, nil
	}

	mixed := mix(strategy, biases[seat].weights(actions))
	idx := sampleIndex(mixed, rng)
	next, err := st.Apply(actions[idx])
	if err != nil {
		return 0, err
	}
	child := node.Child(idx, len(actions))
	return r.traverseSubgame(next, target, child, biases, rng)
}

func (r *RealTimeSolver) terminalUtility(st state.PokerState, target int) float64 {
	payouts := st.Payouts(r.eval)
	if target < 0 || target >= len(payouts) {
		return 0
	}
	return float64(payouts[target])
}

// atTerminalDepth reports whether st has reached the configured
// (terminal_round, terminal_bet_level) boundary past which the
// traversal stops recursing and rolls out under the blueprint instead.
func (r *RealTimeSolver) atTerminalDepth(st state.PokerState) bool {
	if st.Street() > r.cfg.TerminalStreet {
		return true
	}
	return st.Street() == r.cfg.TerminalStreet && st.BetLevel() >= r.cfg.TerminalBetLevel
}
