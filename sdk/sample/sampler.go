// Package sample implements the round-sampling strategies the solver
// uses to draw opponent hands and remaining board cards consistent with
// configured starting ranges (spec C6), generalizing the teacher's
// single-range Monte-Carlo equity sampler into a reusable abstraction
// that the MCCFR traversal and the EV estimator both consult.
package sample

import (
	rand "math/rand/v2"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/abstraction"
)

// maxRejectionRetries is the rejection-sampling retry budget spec.md §4.5
// specifies ("abort with an error after 10,000 consecutive rejections").
const maxRejectionRetries = 10000

// Sampler draws a hand for one seat, consistent with that seat's range
// and the cards already known to be in play (dead to everyone).
type Sampler interface {
	// Sample returns a hand not overlapping dead, and the importance
	// weight of that draw relative to a uniform draw (1.0 for samplers
	// that draw uniformly from the feasible set).
	Sample(rng *rand.Rand, dead poker.Hand) (hand poker.Hand, weight float64, ok bool)
}

// MarginalRejectionSampler draws a single two-card hand from a weighted
// Range by rejection: repeatedly pick a uniformly random combo from the
// range and reject it if it collides with dead cards. Simple and exact,
// but can stall if the range is narrow and most of it is dead.
type MarginalRejectionSampler struct {
	Range      *abstraction.Range
	MaxRetries int
}

// NewMarginalRejectionSampler returns a sampler over the given range with
// a default retry budget.
func NewMarginalRejectionSampler(r *abstraction.Range) *MarginalRejectionSampler {
	return &MarginalRejectionSampler{Range: r, MaxRetries: maxRejectionRetries}
}

func (s *MarginalRejectionSampler) Sample(rng *rand.Rand, dead poker.Hand) (poker.Hand, float64, bool) {
	hands := s.Range.Hands()
	if len(hands) == 0 {
		return 0, 0, false
	}
	retries := s.MaxRetries
	if retries <= 0 {
		retries = maxRejectionRetries
	}
	for i := 0; i < retries; i++ {
		hand := hands[rng.IntN(len(hands))]
		if hand&dead == 0 {
			return hand, 1.0, true
		}
	}
	return 0, 0, false
}

// ImportanceRejectionSampler draws from a Range weighted by its combo
// weights (pairs and suited/offsuit combos carrying the notation's
// declared weight), returning an importance weight of 1/P(draw) relative
// to uniform so downstream regret/EV estimates stay unbiased despite the
// non-uniform proposal distribution.
type ImportanceRejectionSampler struct {
	Range      *abstraction.Range
	MaxRetries int
}

// NewImportanceRejectionSampler returns a weighted sampler over the
// given range.
func NewImportanceRejectionSampler(r *abstraction.Range) *ImportanceRejectionSampler {
	return &ImportanceRejectionSampler{Range: r, MaxRetries: maxRejectionRetries}
}

func (s *ImportanceRejectionSampler) Sample(rng *rand.Rand, dead poker.Hand) (poker.Hand, float64, bool) {
	hands := s.Range.Hands()
	if len(hands) == 0 {
		return 0, 0, false
	}
	totalWeight := 0.0
	for _, h := range hands {
		totalWeight += s.Range.Weight(h)
	}
	if totalWeight <= 0 {
		return 0, 0, false
	}

	retries := s.MaxRetries
	if retries <= 0 {
		retries = maxRejectionRetries
	}
	for i := 0; i < retries; i++ {
		target := rng.Float64() * totalWeight
		acc := 0.0
		var chosen poker.Hand
		for _, h := range hands {
			acc += s.Range.Weight(h)
			if target <= acc {
				chosen = h
				break
			}
		}
		if chosen == 0 {
			chosen = hands[len(hands)-1]
		}
		if chosen&dead == 0 {
			weight := s.Range.Weight(chosen)
			prob := weight / totalWeight
			if prob <= 0 {
				continue
			}
			return chosen, 1.0 / (prob * float64(len(hands))), true
		}
	}
	return 0, 0, false
}

// ImportanceRandomWalkSampler draws a sequence of correlated hands for a
// single chain of iterations by keeping the previous draw and, with
// probability StepProb or when the previous draw collides with dead,
// replacing it with a uniformly drawn combo from the range; if that combo
// is dead too, the first live combo in range order is taken. It does not
// swap single cards. The weight it returns is the range weight of the hand
// (1.0 when that weight is not positive), not an importance weight
// relative to uniform as the rejection samplers return.
type ImportanceRandomWalkSampler struct {
	Range     *abstraction.Range
	StepProb  float64
	current   poker.Hand
	hasCurrent bool
}

// NewImportanceRandomWalkSampler returns a random-walk sampler over the
// given range with the given per-step mutation probability (0, 1).
func NewImportanceRandomWalkSampler(r *abstraction.Range, stepProb float64) *ImportanceRandomWalkSampler {
	if stepProb <= 0 || stepProb > 1 {
		stepProb = 0.1
	}
	return &ImportanceRandomWalkSampler{Range: r, StepProb: stepProb}
}

func (s *ImportanceRandomWalkSampler) Sample(rng *rand.Rand, dead poker.Hand) (poker.Hand, float64, bool) {
	hands := s.Range.Hands()
	if len(hands) == 0 {
		return 0, 0, false
	}

	if !s.hasCurrent || s.current&dead != 0 || rng.Float64() < s.StepProb {
		candidate := hands[rng.IntN(len(hands))]
		if candidate&dead == 0 {
			s.current = candidate
			s.hasCurrent = true
		}
	}

	if !s.hasCurrent || s.current&dead != 0 {
		s.hasCurrent = false
		for _, h := range hands {
			if h&dead == 0 {
				s.current = h
				s.hasCurrent = true
				break
			}
		}
	}
	if !s.hasCurrent {
		return 0, 0, false
	}

	weight := s.Range.Weight(s.current)
	if weight <= 0 {
		weight = 1.0
	}
	return s.current, weight, true
}

// SampleBoard draws the remaining board cards (up to 5 total) uniformly
// from the cards not already dead, used when completing a partially
// dealt board for a rollout or equity estimate.
func SampleBoard(rng *rand.Rand, board poker.Hand, dead poker.Hand, target int) poker.Hand {
	need := target - board.CountCards()
	if need <= 0 {
		return board
	}

	live := make([]poker.Card, 0, 52)
	for rank := uint8(0); rank < 13; rank++ {
		for suit := uint8(0); suit < 4; suit++ {
			card := poker.NewCard(rank, suit)
			if !board.HasCard(card) && !dead.HasCard(card) {
				live = append(live, card)
			}
		}
	}
	rng.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })

	result := board
	for i := 0; i < need && i < len(live); i++ {
		result.AddCard(live[i])
	}
	return result
}
