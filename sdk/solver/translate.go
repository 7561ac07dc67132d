package solver

import "sort"

// TranslateBetSize maps a real (off-tree) bet size x, expressed in pot
// fractions, onto one of the abstract sizes used at this decision node,
// using the pseudo-harmonic mapping: bracket x between the two abstract
// sizes A <= x <= B nearest it, then choose A with probability
//
//	p_A = (B - x)(1 + A) / ((B - A)(1 + x))
//
// and B otherwise. x below every abstract size snaps to the smallest
// size; x above every abstract size snaps to the largest. The formula
// is computed entirely in float64 to avoid cancellation when A and x
// are close, per spec.md §4.7.
//
// sizes need not be pre-sorted; TranslateBetSize sorts a copy before
// bracketing.
func TranslateBetSize(x float64, sizes []float64, roll float64) float64 {
	if len(sizes) == 0 {
		return x
	}
	sorted := append([]float64(nil), sizes...)
	sort.Float64s(sorted)

	if x <= sorted[0] {
		return sorted[0]
	}
	if x >= sorted[len(sorted)-1] {
		return sorted[len(sorted)-1]
	}

	for i := 0; i < len(sorted)-1; i++ {
		a, b := sorted[i], sorted[i+1]
		if x < a || x > b {
			continue
		}
		if a == b {
			return a
		}
		pA := (b - x) * (1 + a) / ((b - a) * (1 + x))
		if roll < pA {
			return a
		}
		return b
	}
	return sorted[len(sorted)-1]
}

// PseudoHarmonicProbability returns p_A, the probability the pseudo-harmonic
// mapping assigns to the lower bracket size A when translating x against
// the bracket (A, B). Exposed separately from TranslateBetSize so callers
// that need the probability itself (e.g. computing translation-induced
// regret) don't have to re-derive it from a sampled roll.
func PseudoHarmonicProbability(x, a, b float64) float64 {
	if a == b {
		return 1
	}
	return (b - x) * (1 + a) / ((b - a) * (1 + x))
}
