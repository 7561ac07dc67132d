package solver

import (
	"math"
	rand "math/rand/v2"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/abstraction"
	"github.com/lox/cfrsolver/sdk/action"
	"github.com/lox/cfrsolver/sdk/state"
)

// Evaluator scores a 7-card hand (hole + board), the pluggable interface
// every traversal's terminal-utility computation resolves through.
type Evaluator func(hole, board poker.Hand) poker.HandRank

// DefaultEvaluator combines hole and board into a single 7-card hand and
// scores it with poker.Evaluate7Cards, the evaluator every Trainer and
// evaluation run uses unless a test substitutes something cheaper.
func DefaultEvaluator() Evaluator {
	return func(hole, board poker.Hand) poker.HandRank {
		return poker.Evaluate7Cards(hole | board)
	}
}

// MCCFRSolver runs external-sampling Monte Carlo CFR over a PokerState
// tree, bucketing information sets through an optional ClusterMap and
// accumulating regret/strategy sums in a RegretTable (spec C8).
//
// This generalizes the teacher's sdk/solver/traversal.go in three ways
// the teacher never implemented: negative-regret pruning (PruneThreshold/
// PruneProbability), linear/CFR+ discounting applied on a schedule
// (DiscountInterval), and an explicit UpdateStrategy pass that refreshes
// the average-strategy table independent of the regret-accumulating
// traversal, matching spec.md §4.6's pseudocode contract.
type MCCFRSolver struct {
	trainCfg TrainingConfig
	absCfg   AbstractionConfig
	profile  *action.Profile
	clusters *abstraction.ClusterMap
	indexer  *abstraction.CachedIndexer
	regrets  *RegretTable
	eval     Evaluator
}

// NewMCCFRSolver builds a solver over the given configs. clusters may be
// nil, in which case hole/board bucketing falls back to a deterministic
// hash-modulo scheme (useful for smoke tests that haven't paid for an
// offline BuildClusters run).
func NewMCCFRSolver(trainCfg TrainingConfig, absCfg AbstractionConfig, clusters *abstraction.ClusterMap, eval Evaluator) *MCCFRSolver {
	profile := action.NewProfile(absCfg.BetSizing,
		action.WithMaxActionsPerNode(absCfg.MaxActionsPerNode),
		action.WithMaxRaisesPerBucket(absCfg.MaxRaisesPerBucket),
		action.WithRaisesEnabled(absCfg.EnableRaises),
	)
	return &MCCFRSolver{
		trainCfg: trainCfg,
		absCfg:   absCfg,
		profile:  profile,
		clusters: clusters,
		indexer:  abstraction.NewCachedIndexer(),
		regrets:  NewRegretTable(),
		eval:     eval,
	}
}

// Regrets exposes the underlying regret table, primarily for checkpointing.
func (s *MCCFRSolver) Regrets() *RegretTable {
	return s.regrets
}

func (s *MCCFRSolver) holeBucket(hole, board poker.Hand) int {
	if s.clusters != nil {
		return int(s.clusters.Lookup(hole, board))
	}
	buckets := s.absCfg.PreflopBucketCount
	if board.CountCards() > 0 {
		buckets = s.absCfg.PostflopBucketCount
	}
	if buckets <= 0 {
		buckets = 1
	}
	idx := s.indexer.Index(hole, board)
	return int(idx % uint64(buckets))
}

func (s *MCCFRSolver) infoSetKey(st state.PokerState, seat int) InfoSetKey {
	p := st.Seats()[seat]
	holeBucket := s.holeBucket(p.HoleCards, st.Board())
	boardBucket := 0
	if st.Board().CountCards() >= 3 {
		boardBucket = s.holeBucket(0, st.Board())
	}
	return InfoSetKey{
		Street:       mapStreet(st.Street()),
		Player:       seat,
		HoleBucket:   holeBucket,
		BoardBucket:  boardBucket,
		PotBucket:    potBucket(st.PotSize(), s.trainCfg.BigBlind),
		ToCallBucket: toCallBucket(st.ToCall(seat), s.trainCfg.BigBlind),
	}
}

// InfoSetKeyFor exposes the info-set bucketing a Traverse call would use
// for (st, seat), so callers outside this package (the real-time leaf
// evaluator, the self-play harness) can query a Blueprint's average
// strategy under the same abstraction it was trained with.
func (s *MCCFRSolver) InfoSetKeyFor(st state.PokerState, seat int) InfoSetKey {
	return s.infoSetKey(st, seat)
}

// Frequency returns the current regret-matching strategy's probability
// of act at (st, seat), the Solver::frequency entry point spec.md §6
// describes for querying a specific infoset. Returns 0 if act is not
// among st's legal actions.
func (s *MCCFRSolver) Frequency(st state.PokerState, seat int, act action.Action) float64 {
	actions := st.LegalActions(s.profile)
	idx := -1
	for i, a := range actions {
		if a == act {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0
	}
	key := s.infoSetKey(st, seat)
	entry := s.regrets.Get(key, len(actions))
	strategy := entry.Strategy()
	return strategy[idx]
}

func mapStreet(s action.Street) Street {
	switch s {
	case action.Preflop:
		return StreetPreflop
	case action.Flop:
		return StreetFlop
	case action.Turn:
		return StreetTurn
	case action.River:
		return StreetRiver
	default:
		return StreetRiver
	}
}

func potBucket(pot, bb int) int {
	if bb <= 0 {
		bb = 1
	}
	thresholds := []int{bb, bb * 3, bb * 6, bb * 12}
	for i, boundary := range thresholds {
		if pot <= boundary {
			return i
		}
	}
	return len(thresholds)
}

func toCallBucket(toCall, bb int) int {
	if bb <= 0 {
		bb = 1
	}
	thresholds := []int{0, bb, bb * 2, bb * 4}
	for i, boundary := range thresholds {
		if toCall <= boundary {
			return i
		}
	}
	return len(thresholds)
}

func utilityForPlayer(st state.PokerState, seat int, eval Evaluator) float64 {
	payouts := st.Payouts(eval)
	return float64(payouts[seat])
}

// Traverse runs one external-sampling MCCFR pass rooted at st, updating
// regret/strategy sums for target and returning target's expected
// utility from st. Opponent and chance actions are sampled according to
// their current strategy; target's own actions are all explored, the
// defining trait of external sampling.
func (s *MCCFRSolver) Traverse(st state.PokerState, target int, iteration int, rng *rand.Rand) (float64, error) {
	return s.traverse(st, target, iteration, 1.0, 1.0, rng)
}

func (s *MCCFRSolver) traverse(st state.PokerState, target, iteration int, reachTarget, reachOthers float64, rng *rand.Rand) (float64, error) {
	if st.IsComplete() {
		return utilityForPlayer(st, target, s.eval), nil
	}

	seat := st.ActiveSeat()
	if seat == -1 {
		return utilityForPlayer(st, target, s.eval), nil
	}

	actions := st.LegalActions(s.profile)
	if len(actions) == 0 {
		return utilityForPlayer(st, target, s.eval), nil
	}

	key := s.infoSetKey(st, seat)
	entry := s.regrets.Get(key, len(actions))
	strategy := entry.Strategy()

	if seat == target {
		util := make([]float64, len(actions))
		nodeUtil := 0.0
		pruneEligible := s.trainCfg.PruneThreshold > 0 && iteration > s.trainCfg.PruneThreshold

		for i, act := range actions {
			if pruneEligible && entry.RegretAt(i) <= 0 && rng.Float64() < s.trainCfg.PruneProbability {
				// Negative-regret pruning: actions the current
				// strategy already assigns ~zero probability to are
				// skipped once training is far enough along, saving
				// compute on subtrees that won't move the average
				// strategy.
				util[i] = 0
				continue
			}
			next, err := st.Apply(act)
			if err != nil {
				return 0, NewSolverError(ErrInvariant, "apply action %v: %w", act, err)
			}
			u, err := s.traverse(next, target, iteration, reachTarget, reachOthers*strategy[i], rng)
			if err != nil {
				return 0, err
			}
			util[i] = u
			nodeUtil += strategy[i] * u
		}

		regrets := make([]float64, len(actions))
		for i := range actions {
			regrets[i] = (util[i] - nodeUtil) * reachOthers
		}
		entry.Update(regrets, strategy, reachTarget, RegretUpdateOptions{
			ClampNegativeRegrets: s.trainCfg.UseCFRPlus,
			LinearAveraging:      s.trainCfg.UseDCFR,
			Iteration:            iteration,
		})
		return nodeUtil, nil
	}

	idx, prob := sampleStrategyIndex(strategy, rng)
	if prob <= 0 {
		prob = 1.0 / float64(len(actions))
	}
	next, err := st.Apply(actions[idx])
	if err != nil {
		return 0, NewSolverError(ErrInvariant, "apply sampled action %v: %w", actions[idx], err)
	}
	return s.traverse(next, target, iteration, reachTarget*prob, reachOthers, rng)
}

// UpdateStrategy runs a pure current-strategy rollout from st, adding to
// every visited node's strategy sum but touching no regret sum. Running
// this on its own schedule (separate from Traverse) is what spec.md
// §4.6 calls the update_strategy pass: it lets the average strategy
// converge smoothly even when Traverse itself is skipping pruned
// branches for long stretches.
func (s *MCCFRSolver) UpdateStrategy(st state.PokerState, player, iteration int, rng *rand.Rand) error {
	if st.IsComplete() {
		return nil
	}
	seat := st.ActiveSeat()
	if seat == -1 {
		return nil
	}
	actions := st.LegalActions(s.profile)
	if len(actions) == 0 {
		return nil
	}

	key := s.infoSetKey(st, seat)
	entry := s.regrets.Get(key, len(actions))
	strategy := entry.Strategy()

	if seat == player {
		entry.AccumulateStrategyOnly(strategy, discountWeight(s.trainCfg, iteration))
	}

	idx, _ := sampleStrategyIndex(strategy, rng)
	next, err := st.Apply(actions[idx])
	if err != nil {
		return NewSolverError(ErrInvariant, "apply action during update_strategy: %w", err)
	}
	return s.UpdateStrategy(next, player, iteration, rng)
}

func discountWeight(cfg TrainingConfig, iteration int) float64 {
	if !cfg.UseDCFR || iteration <= 0 {
		return 1.0
	}
	return float64(iteration)
}

// ApplyDiscount scans every tracked info set and decays accumulated
// regret/strategy sums, the periodic "next_step" schedule spec.md §4.6
// describes for discounted/CFR+ variants. It should be called roughly
// every TrainingConfig.DiscountInterval iterations.
func (s *MCCFRSolver) ApplyDiscount(iteration int) {
	if s.trainCfg.DiscountInterval <= 0 {
		return
	}
	k := float64(iteration) / float64(s.trainCfg.DiscountInterval)
	factor := k / (k + 1)
	if factor <= 0 || factor >= 1 || math.IsNaN(factor) {
		return
	}
	for _, entry := range s.regrets.Entries() {
		entry.Discount(factor)
	}
}

func sampleStrategyIndex(strategy []float64, rng *rand.Rand) (int, float64) {
	if len(strategy) == 0 {
		return 0, 0
	}
	total := 0.0
	for _, v := range strategy {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		idx := rng.IntN(len(strategy))
		return idx, 1.0 / float64(len(strategy))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range strategy {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i, v / total
		}
	}
	return len(strategy) - 1, strategy[len(strategy)-1] / total
}
