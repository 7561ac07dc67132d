// Package action defines the abstract betting actions the solver reasons
// over, the per-hand history of actions taken, and the bet-sizing profile
// that expands a round into concrete abstract actions.
package action

import "fmt"

// Kind identifies the category of an abstract action.
type Kind uint8

const (
	Fold Kind = iota
	Check
	Call
	Bet
	Raise
	AllIn
)

func (k Kind) String() string {
	switch k {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Bet:
		return "bet"
	case Raise:
		return "raise"
	case AllIn:
		return "allin"
	default:
		return "unknown"
	}
}

// Action is a single abstract betting action. Amount is the total chips
// the acting player has in front of them after the action (0 for
// Fold/Check/Call, meaningful for Bet/Raise/AllIn).
type Action struct {
	Kind   Kind
	Amount int
}

func (a Action) String() string {
	if a.Kind == Bet || a.Kind == Raise || a.Kind == AllIn {
		return fmt.Sprintf("%s(%d)", a.Kind, a.Amount)
	}
	return a.Kind.String()
}

// History is the ordered sequence of actions taken so far in a hand, the
// unit an InfoSet's "path so far" reduces to once bucketed (spec C2/C3).
type History struct {
	actions []Action
}

// NewHistory returns an empty action history.
func NewHistory() History {
	return History{}
}

// Append returns a new History with act appended; History is immutable so
// callers can fan out from a shared prefix without aliasing slices.
func (h History) Append(act Action) History {
	next := make([]Action, len(h.actions)+1)
	copy(next, h.actions)
	next[len(h.actions)] = act
	return History{actions: next}
}

// Actions returns the history's actions in order. The returned slice must
// not be mutated by the caller.
func (h History) Actions() []Action {
	return h.actions
}

// Len returns the number of actions taken.
func (h History) Len() int {
	return len(h.actions)
}

// Last returns the most recent action and true, or the zero Action and
// false if the history is empty.
func (h History) Last() (Action, bool) {
	if len(h.actions) == 0 {
		return Action{}, false
	}
	return h.actions[len(h.actions)-1], true
}

// Equal reports whether h and other are the same sequence of Actions, the
// structural equality spec.md §3 requires of ActionHistory so it can be
// compared after a serialize/deserialize round-trip. History holds a
// slice, so it is not comparable with == and cannot key a map.
func (h History) Equal(other History) bool {
	if len(h.actions) != len(other.actions) {
		return false
	}
	for i, a := range h.actions {
		if a != other.actions[i] {
			return false
		}
	}
	return true
}

// Suffix returns the actions taken after prefix, and true if h actually
// extends prefix (prefix's actions are an exact, equal-by-value prefix of
// h's). Returns (History{}, false) if h does not extend prefix.
func (h History) Suffix(prefix History) (History, bool) {
	if len(prefix.actions) > len(h.actions) {
		return History{}, false
	}
	for i, a := range prefix.actions {
		if a != h.actions[i] {
			return History{}, false
		}
	}
	rest := append([]Action(nil), h.actions[len(prefix.actions):]...)
	return History{actions: rest}, true
}

// RaiseCount returns the number of Bet/Raise/AllIn actions in the history,
// the quantity bet-level abstraction buckets on.
func (h History) RaiseCount() int {
	n := 0
	for _, a := range h.actions {
		if a.Kind == Bet || a.Kind == Raise || a.Kind == AllIn {
			n++
		}
	}
	return n
}
