// Package tree implements the solver's concurrent game-tree storage
// (spec C7): a lock-free tree of per-infoset regret/strategy cells that
// many MCCFR worker goroutines traverse and update simultaneously, plus
// a dense FlatStorage alternative for fully-enumerable abstractions
// (e.g. preflop-only blueprints).
package tree

import (
	"math"
	"sync"
	"sync/atomic"
)

// cell is a single float64 value safe for concurrent relaxed loads and
// read-modify-write updates without a mutex, using CAS retry on the
// underlying bit pattern. Regret and strategy sums are exactly this
// shape: many goroutines add to the same slot, and the only operation
// that matters is "add" and "read the current total".
type cell struct {
	bits atomic.Uint64
}

func (c *cell) load() float64 {
	return math.Float64frombits(c.bits.Load())
}

func (c *cell) store(v float64) {
	c.bits.Store(math.Float64bits(v))
}

func (c *cell) add(delta float64) {
	for {
		old := c.bits.Load()
		updated := math.Float64frombits(old) + delta
		if c.bits.CompareAndSwap(old, math.Float64bits(updated)) {
			return
		}
	}
}

// Node is one information set's regret-matching state, plus lazily
// published child nodes keyed by action index. A Node's action count is
// fixed at creation (it is determined by the abstraction, not learned),
// so children is a flat slice rather than a map.
type Node struct {
	numActions  int
	regretSum   []cell
	strategySum []cell
	children    []atomic.Pointer[Node]
	publish     []sync.Mutex
}

// NewNode allocates a Node with the given number of legal actions.
func NewNode(numActions int) *Node {
	return &Node{
		numActions:  numActions,
		regretSum:   make([]cell, numActions),
		strategySum: make([]cell, numActions),
		children:    make([]atomic.Pointer[Node], numActions),
		publish:     make([]sync.Mutex, numActions),
	}
}

// NumActions returns the node's fixed action count.
func (n *Node) NumActions() int {
	return n.numActions
}

// Child returns the existing child for the given action edge, or
// installs and returns a freshly allocated one with childActions legal
// actions. The fast path is a single atomic load with no locking; a
// caller that finds the edge empty takes that edge's mutex, re-checks,
// and stores the new child with a plain atomic store (no CAS).
func (n *Node) Child(actionIdx, childActions int) *Node {
	if existing := n.children[actionIdx].Load(); existing != nil {
		return existing
	}
	n.publish[actionIdx].Lock()
	defer n.publish[actionIdx].Unlock()
	if existing := n.children[actionIdx].Load(); existing != nil {
		return existing
	}
	child := NewNode(childActions)
	n.children[actionIdx].Store(child)
	return child
}

// PeekChild returns the child at actionIdx without creating one, or nil.
func (n *Node) PeekChild(actionIdx int) *Node {
	return n.children[actionIdx].Load()
}

// Strategy returns the current regret-matching strategy: each action's
// probability proportional to its positive regret, or uniform if no
// action currently has positive regret.
func (n *Node) Strategy() []float64 {
	strategy := make([]float64, n.numActions)
	var total float64
	for i := range strategy {
		r := n.regretSum[i].load()
		if r > 0 {
			strategy[i] = r
			total += r
		}
	}
	if total <= 0 {
		uniform := 1.0 / float64(n.numActions)
		for i := range strategy {
			strategy[i] = uniform
		}
		return strategy
	}
	for i := range strategy {
		strategy[i] /= total
	}
	return strategy
}

// AverageStrategy returns the time-averaged strategy (strategySum
// normalized), the quantity that actually converges to a Nash
// equilibrium and is what gets written into the Blueprint.
func (n *Node) AverageStrategy() []float64 {
	avg := make([]float64, n.numActions)
	var total float64
	for i := range avg {
		s := n.strategySum[i].load()
		avg[i] = s
		total += s
	}
	if total <= 0 {
		uniform := 1.0 / float64(n.numActions)
		for i := range avg {
			avg[i] = uniform
		}
		return avg
	}
	for i := range avg {
		avg[i] /= total
	}
	return avg
}

// AccumulateRegret adds per-action instantaneous regret, scaled by
// discount (linear-CFR/CFR+ discounting applied by the caller), and
// clamps negative regrets to zero when clampNegative is set (CFR+).
func (n *Node) AccumulateRegret(regrets []float64, discount float64, clampNegative bool) {
	for i, r := range regrets {
		if discount != 1 {
			n.regretSum[i].add(n.regretSum[i].load()*(discount-1) + r*discount)
		} else {
			n.regretSum[i].add(r)
		}
		if clampNegative {
			if cur := n.regretSum[i].load(); cur < 0 {
				n.regretSum[i].store(0)
			}
		}
	}
}

// AccumulateStrategy adds reachWeight*strategy[i] into the running
// strategy-sum average for the update_strategy pass.
func (n *Node) AccumulateStrategy(strategy []float64, reachWeight, discount float64) {
	for i, p := range strategy {
		if discount != 1 {
			n.strategySum[i].store(n.strategySum[i].load()*discount + p*reachWeight)
		} else {
			n.strategySum[i].add(p * reachWeight)
		}
	}
}

// Discount multiplies every regret and strategy cell by factor in place,
// then recurses into every already-published child, the lcfr_discount
// operation spec.md §4.3 describes as "traverses the entire allocated
// tree". Unpublished edges need no visit: their cells don't exist yet.
func (n *Node) Discount(factor float64) {
	for i := range n.regretSum {
		n.regretSum[i].store(n.regretSum[i].load() * factor)
	}
	for i := range n.strategySum {
		n.strategySum[i].store(n.strategySum[i].load() * factor)
	}
	for i := range n.children {
		if child := n.children[i].Load(); child != nil {
			child.Discount(factor)
		}
	}
}

// TreeStorage roots a concurrent game tree whose reads take no lock. A
// single root Node is shared by every worker goroutine; all per-iteration
// growth happens through Node.Child's per-edge mutex-guarded lazy
// installation.
type TreeStorage struct {
	root *Node
}

// NewTreeStorage allocates a TreeStorage whose root offers rootActions
// legal actions.
func NewTreeStorage(rootActions int) *TreeStorage {
	return &TreeStorage{root: NewNode(rootActions)}
}

// Root returns the tree's root node.
func (t *TreeStorage) Root() *Node {
	return t.root
}
