package sample

import (
	rand "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/abstraction"
)

func mustParseRange(t *testing.T, notation string) *abstraction.Range {
	t.Helper()
	r, err := abstraction.ParseRange(notation)
	require.NoError(t, err, "parse range %q", notation)
	return r
}

func mustCard(t *testing.T, s string) poker.Card {
	t.Helper()
	c, err := poker.ParseCard(s)
	require.NoError(t, err, "parse card %q", s)
	return c
}

// TestMarginalRejectionSamplerErrorsOnInfeasibleRange exercises spec.md §8's
// "MarginalRejection collision" scenario: seat 1's whole range is AK
// offsuit, and every ace and every king is already dead (e.g. seat 0 holds
// AcAd and two kings are burned elsewhere), so every combo in the range
// collides on every draw. The sampler must report infeasibility rather
// than loop forever.
func TestMarginalRejectionSamplerErrorsOnInfeasibleRange(t *testing.T) {
	r := mustParseRange(t, "AKo")
	sampler := NewMarginalRejectionSampler(r)
	sampler.MaxRetries = 500 // keep the test fast; still far more than needed to prove exhaustion

	var dead poker.Hand
	for _, suit := range "cdhs" {
		dead.AddCard(mustCard(t, "A"+string(suit)))
		dead.AddCard(mustCard(t, "K"+string(suit)))
	}
	rng := rand.New(rand.NewPCG(1, 2))

	_, _, ok := sampler.Sample(rng, dead)
	require.False(t, ok, "expected sampling against a fully-dead range to fail")
}

func TestMarginalRejectionSamplerSucceedsWhenCombosAreLive(t *testing.T) {
	r := mustParseRange(t, "AA")
	sampler := NewMarginalRejectionSampler(r)

	dead := poker.NewHand(mustCard(t, "Kc"), mustCard(t, "Kd"))
	rng := rand.New(rand.NewPCG(7, 11))

	hand, weight, ok := sampler.Sample(rng, dead)
	require.True(t, ok, "expected a live AA combo to be drawn")
	require.Equal(t, 1.0, weight, "expected unit weight for marginal rejection")
	require.Zero(t, hand&dead, "sampled hand collides with dead mask")
}

func TestImportanceRejectionSamplerReturnsPositiveWeights(t *testing.T) {
	r := mustParseRange(t, "AA,KK")
	sampler := NewImportanceRejectionSampler(r)
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 50; i++ {
		hand, weight, ok := sampler.Sample(rng, 0)
		require.True(t, ok, "expected sample to succeed")
		require.Greater(t, weight, 0.0, "expected a positive importance weight")
		require.True(t, r.ContainsHand(hand), "sampled hand is not a member of the source range")
	}
}

func TestImportanceRandomWalkSamplerNeverReturnsDeadHand(t *testing.T) {
	r := mustParseRange(t, "AA,KK,QQ")
	sampler := NewImportanceRandomWalkSampler(r, 0.5)
	rng := rand.New(rand.NewPCG(9, 13))

	dead := poker.NewHand(mustCard(t, "Ac"), mustCard(t, "Ad"), mustCard(t, "Kc"), mustCard(t, "Kd"))
	for i := 0; i < 50; i++ {
		hand, _, ok := sampler.Sample(rng, dead)
		if !ok {
			continue
		}
		require.Zero(t, hand&dead, "random-walk sampler returned a hand colliding with dead mask")
	}
}

func TestSampleBoardRespectsDeadMaskAndTargetSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	board := poker.NewHand(mustCard(t, "2h"), mustCard(t, "3h"), mustCard(t, "4c"))
	dead := poker.NewHand(mustCard(t, "Ac"), mustCard(t, "Ad"))

	full := SampleBoard(rng, board, dead, 5)
	require.Equal(t, 5, full.CountCards(), "expected a 5-card board")
	require.Zero(t, full&dead, "sampled board collides with dead mask")
	require.Equal(t, board, full&board, "sampled board does not retain the original 3 cards")
}
