package abstraction

import (
	"sort"
	"sync"

	"github.com/lox/cfrsolver/poker"
)

// HandIndexer canonicalizes a hole+board combination under suit
// isomorphism: two deals that differ only by relabeling suits (e.g.
// swapping every club for every diamond) map to the same canonical
// index. This collapses the hand space solvers iterate over by roughly
// a factor of 4! for boards using all four suits.
type HandIndexer struct{}

// NewHandIndexer returns a HandIndexer. It carries no state; the suit
// canonicalization is a pure function of the cards given.
func NewHandIndexer() *HandIndexer {
	return &HandIndexer{}
}

// CanonicalHand returns the hole+board hand with suits relabeled to a
// fixed canonical ordering: suits holding more cards come first; between
// suits with equal counts, at the lowest rank where the two differ, the
// suit lacking that rank comes first. Suits are then remapped to
// Clubs/Diamonds/Hearts/Spades in that order.
func (hi *HandIndexer) CanonicalHand(hole, board poker.Hand) poker.Hand {
	combined := hole | board
	order := hi.canonicalSuitOrder(combined)

	var out poker.Hand
	for _, c := range combined.Cards() {
		out.AddCard(poker.NewCard(c.Rank(), order[c.Suit()]))
	}
	return out
}

// Index returns a stable uint64 index for the canonical hand, suitable
// as a key into an offline-trained cluster table.
func (hi *HandIndexer) Index(hole, board poker.Hand) uint64 {
	return uint64(hi.CanonicalHand(hole, board))
}

type suitSignature struct {
	suit      uint8
	count     int
	lowestSet uint16 // lowest-rank-first bit signature for stable ordering
}

func (hi *HandIndexer) canonicalSuitOrder(h poker.Hand) [4]uint8 {
	sigs := make([]suitSignature, 4)
	for suit := uint8(0); suit < 4; suit++ {
		mask := h.GetSuitMask(suit)
		sigs[suit] = suitSignature{suit: suit, count: popcount16(mask), lowestSet: reverseBits13(mask)}
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].count != sigs[j].count {
			return sigs[i].count > sigs[j].count
		}
		return sigs[i].lowestSet < sigs[j].lowestSet
	})

	var order [4]uint8
	for newSuit, sig := range sigs {
		order[sig.suit] = uint8(newSuit)
	}
	return order
}

func popcount16(v uint16) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

// reverseBits13 reverses the low 13 bits so that the lowest rank becomes
// the most significant bit; ascending order of the result therefore puts
// the suit lacking the lowest differing rank first. It is used only to keep the
// canonical suit order stable/deterministic across suits with equal card
// counts (isomorphism does not care which arbitrary tie-break is chosen,
// only that it is applied consistently).
func reverseBits13(v uint16) uint16 {
	var out uint16
	for i := 0; i < 13; i++ {
		if v&(1<<i) != 0 {
			out |= 1 << (12 - i)
		}
	}
	return out
}

// CachedIndexer wraps a HandIndexer with a concurrent-safe memo of
// recently computed canonical indices, avoiding repeat canonicalization
// work for the same hole+board pair visited by multiple MCCFR iterations
// in flight at once.
type CachedIndexer struct {
	indexer *HandIndexer
	mu      sync.RWMutex
	cache   map[[2]poker.Hand]uint64
}

// NewCachedIndexer wraps a fresh HandIndexer in a cache.
func NewCachedIndexer() *CachedIndexer {
	return &CachedIndexer{
		indexer: NewHandIndexer(),
		cache:   make(map[[2]poker.Hand]uint64),
	}
}

// Index returns the canonical index for hole+board, computing and
// memoizing it if not already cached.
func (c *CachedIndexer) Index(hole, board poker.Hand) uint64 {
	key := [2]poker.Hand{hole, board}

	c.mu.RLock()
	if idx, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return idx
	}
	c.mu.RUnlock()

	idx := c.indexer.Index(hole, board)

	c.mu.Lock()
	c.cache[key] = idx
	c.mu.Unlock()
	return idx
}
