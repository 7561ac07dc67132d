// Package ev computes expected-value estimates and runs self-play
// simulation over the solver's PokerState/action machinery (spec C12).
// MonteCarloEquity and EnumerateEquity are adapted from the teacher's
// sdk/analysis.CalculateEquity single-threaded estimator, generalized to
// a parallel worker pool (the shape the teacher's deleted
// internal/evaluator/equity.go used, built on golang.org/x/sync/errgroup
// instead of a hand-rolled WaitGroup) so a target standard-error can be
// reached without the caller picking a simulation count up front.
package ev

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/cfrsolver/poker"
)

// EquityResult aggregates win/tie counts across every worker's share of
// the simulation budget.
type EquityResult struct {
	Wins    uint64
	Ties    uint64
	Samples uint64
}

// Equity returns the overall equity (wins + half of ties, over samples).
func (r EquityResult) Equity() float64 {
	if r.Samples == 0 {
		return 0
	}
	return (float64(r.Wins) + 0.5*float64(r.Ties)) / float64(r.Samples)
}

// StandardError returns the standard error of the binomial equity
// estimate, the quantity MonteCarloEquity's target-SE termination
// condition polls.
func (r EquityResult) StandardError() float64 {
	if r.Samples == 0 {
		return math.Inf(1)
	}
	p := r.Equity()
	return math.Sqrt(p * (1 - p) / float64(r.Samples))
}

// MonteCarloOptions bounds a Monte-Carlo equity run by whichever of its
// three stopping conditions triggers first, mirroring spec §5's "the EV
// Monte-Carlo routine terminates by standard-error target, max
// iterations, or max wall-clock, whichever comes first" contract. The
// predicate is only checked between completed batches, never mid-batch.
type MonteCarloOptions struct {
	TargetStandardError float64
	MaxSamples          uint64
	MaxDuration         time.Duration
	BatchSize           uint64
	Workers             int
	Seed                int64
}

func (o *MonteCarloOptions) setDefaults() {
	if o.MaxSamples <= 0 {
		o.MaxSamples = 2_000_000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 2000
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 10 * time.Second
	}
}

// MonteCarloEquity estimates hero's equity against opponents random
// opponent hands (uniform over the remaining deck) by repeated
// showdown simulation, fanning batches of simulations out across
// opts.Workers goroutines joined with an errgroup. ctx is checked only
// between batches; a batch already running is not interrupted.
func MonteCarloEquity(ctx context.Context, hero poker.Hand, board poker.Hand, opponents int, opts MonteCarloOptions) (EquityResult, error) {
	opts.setDefaults()
	if opponents < 1 {
		opponents = 1
	}

	deadline := time.Now().Add(opts.MaxDuration)
	var total EquityResult

	for total.Samples < opts.MaxSamples && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		batch, err := runBatch(ctx, hero, board, opponents, opts)
		if err != nil {
			return total, err
		}
		total.Wins += batch.Wins
		total.Ties += batch.Ties
		total.Samples += batch.Samples

		if opts.TargetStandardError > 0 && total.StandardError() <= opts.TargetStandardError {
			break
		}
	}
	return total, nil
}

func runBatch(ctx context.Context, hero, board poker.Hand, opponents int, opts MonteCarloOptions) (EquityResult, error) {
	g, _ := errgroup.WithContext(ctx)
	results := make([]EquityResult, opts.Workers)
	perWorker := opts.BatchSize / uint64(opts.Workers)
	if perWorker == 0 {
		perWorker = 1
	}

	for w := 0; w < opts.Workers; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opts.Seed ^ int64(w)<<32 ^ time.Now().UnixNano()))
			results[w] = simulateN(hero, board, opponents, perWorker, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EquityResult{}, err
	}

	var total EquityResult
	for _, r := range results {
		total.Wins += r.Wins
		total.Ties += r.Ties
		total.Samples += r.Samples
	}
	return total, nil
}

func simulateN(hero, board poker.Hand, opponents int, n uint64, rng *rand.Rand) EquityResult {
	var result EquityResult
	dead := hero | board

	live := make([]poker.Card, 0, 52)
	for rank := uint8(0); rank < 13; rank++ {
		for suit := uint8(0); suit < 4; suit++ {
			c := poker.NewCard(rank, suit)
			if !dead.HasCard(c) {
				live = append(live, c)
			}
		}
	}
	needBoard := 5 - board.CountCards()

	for i := uint64(0); i < n; i++ {
		draw := append([]poker.Card(nil), live...)
		rng.Shuffle(len(draw), func(a, b int) { draw[a], draw[b] = draw[b], draw[a] })

		finalBoard := board
		idx := 0
		for c := 0; c < needBoard; c++ {
			finalBoard.AddCard(draw[idx])
			idx++
		}

		heroRank := poker.Evaluate7Cards(hero | finalBoard)
		heroWins, tied := true, false
		for o := 0; o < opponents && idx+1 < len(draw); o++ {
			oppHand := poker.NewHand(draw[idx], draw[idx+1])
			idx += 2
			oppRank := poker.Evaluate7Cards(oppHand | finalBoard)
			switch poker.CompareHands(heroRank, oppRank) {
			case -1:
				heroWins = false
			case 0:
				tied = true
			}
		}
		result.Samples++
		if heroWins {
			if tied {
				result.Ties++
			} else {
				result.Wins++
			}
		}
	}
	return result
}

// EnumerateEquity exhaustively evaluates hero against every possible
// single-opponent holding consistent with dead cards, for exact
// (non-sampled) equities on the river. It returns an empty result unless
// board holds all five cards; partial boards are not enumerated.
func EnumerateEquity(hero, board poker.Hand) EquityResult {
	dead := hero | board
	var result EquityResult

	heroRank := poker.Evaluate7Cards(hero | board)
	if board.CountCards() != 5 {
		return EquityResult{}
	}

	for r1 := uint8(0); r1 < 13; r1++ {
		for s1 := uint8(0); s1 < 4; s1++ {
			c1 := poker.NewCard(r1, s1)
			if dead.HasCard(c1) {
				continue
			}
			for r2 := uint8(0); r2 < 13; r2++ {
				for s2 := uint8(0); s2 < 4; s2++ {
					c2 := poker.NewCard(r2, s2)
					if c2 <= c1 || dead.HasCard(c2) {
						continue
					}
					oppHand := poker.NewHand(c1, c2)
					oppRank := poker.Evaluate7Cards(oppHand | board)
					result.Samples++
					switch poker.CompareHands(heroRank, oppRank) {
					case 1:
						result.Wins++
					case 0:
						result.Ties++
					}
				}
			}
		}
	}
	return result
}
