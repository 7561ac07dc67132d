package poker

import (
	"math/rand"
)

// Deck represents a standard 52-card deck, or a narrower deck with some
// cards already known to be dead (see NewDeckExcluding).
type Deck struct {
	cards []Card
	next  int
	rng   *rand.Rand // Random source for deterministic shuffling
}

// NewDeck creates a new shuffled deck with explicit RNG
func NewDeck(rng *rand.Rand) *Deck {
	return NewDeckExcluding(rng, 0)
}

// NewDeckExcluding builds a shuffled deck over every card not in dead, the
// hook range-sampled hole cards need: once a seat's hand is drawn from a
// Range rather than dealt sequentially, the board deck must not still
// hold a copy of that card.
func NewDeckExcluding(rng *rand.Rand, dead Hand) *Deck {
	d := &Deck{
		next: 0,
		rng:  rng,
	}

	d.cards = make([]Card, 0, 52)
	for suit := range uint8(4) {
		for rank := range uint8(13) {
			c := NewCard(rank, suit)
			if !dead.HasCard(c) {
				d.cards = append(d.cards, c)
			}
		}
	}

	d.Shuffle()
	return d
}

// Shuffle shuffles the deck using Fisher-Yates
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.Intn(i + 1)
		} else {
			j = rand.Intn(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals n cards from the deck
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := d.cards[d.next : d.next+n]
	d.next += n
	return cards
}

// DealOne deals a single card from the deck
func (d *Deck) DealOne() Card {
	if d.next >= len(d.cards) {
		return 0
	}
	card := d.cards[d.next]
	d.next++
	return card
}

// Reset resets and reshuffles the deck
func (d *Deck) Reset() {
	d.Shuffle()
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}
