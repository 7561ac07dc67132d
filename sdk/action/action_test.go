package action

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryEqualSameSequence(t *testing.T) {
	a := NewHistory().Append(Action{Kind: Call}).Append(Action{Kind: Bet, Amount: 40})
	b := NewHistory().Append(Action{Kind: Call}).Append(Action{Kind: Bet, Amount: 40})
	require.True(t, a.Equal(b), "expected equal histories built from the same action sequence")
}

func TestHistoryEqualDiffersOnAmountOrLength(t *testing.T) {
	base := NewHistory().Append(Action{Kind: Call}).Append(Action{Kind: Bet, Amount: 40})

	diffAmount := NewHistory().Append(Action{Kind: Call}).Append(Action{Kind: Bet, Amount: 50})
	require.False(t, base.Equal(diffAmount), "expected histories with different bet amounts to differ")

	shorter := NewHistory().Append(Action{Kind: Call})
	require.False(t, base.Equal(shorter), "expected histories of different length to differ")
}

func TestHistorySuffixAfterPrefix(t *testing.T) {
	prefix := NewHistory().Append(Action{Kind: Call})
	full := prefix.Append(Action{Kind: Bet, Amount: 20}).Append(Action{Kind: Call})

	suffix, ok := full.Suffix(prefix)
	require.True(t, ok, "expected full to extend prefix")

	want := []Action{{Kind: Bet, Amount: 20}, {Kind: Call}}
	require.Equal(t, want, suffix.Actions())
}

func TestHistorySuffixRejectsNonPrefix(t *testing.T) {
	full := NewHistory().Append(Action{Kind: Call}).Append(Action{Kind: Bet, Amount: 20})
	notAPrefix := NewHistory().Append(Action{Kind: Fold})

	_, ok := full.Suffix(notAPrefix)
	require.False(t, ok, "expected non-matching prefix to be rejected")

	longerThanFull := full.Append(Action{Kind: Call})
	_, ok = full.Suffix(longerThanFull)
	require.False(t, ok, "expected a prefix longer than h to be rejected")
}

func TestHistoryAppendDoesNotAliasPriorSlice(t *testing.T) {
	root := NewHistory().Append(Action{Kind: Call})
	branchA := root.Append(Action{Kind: Bet, Amount: 10})
	branchB := root.Append(Action{Kind: Fold})

	require.False(t, branchA.Equal(branchB), "expected fanned-out branches from a shared prefix to differ")
	require.Equal(t, 1, root.Len(), "expected root to stay untouched by either branch")
}

func TestRaiseCountOnlyCountsAggressiveActions(t *testing.T) {
	h := NewHistory().
		Append(Action{Kind: Call}).
		Append(Action{Kind: Bet, Amount: 10}).
		Append(Action{Kind: Raise, Amount: 30}).
		Append(Action{Kind: Call}).
		Append(Action{Kind: AllIn, Amount: 200})

	require.Equal(t, 3, h.RaiseCount(), "expected 3 aggressive actions")
}
