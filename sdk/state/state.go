// Package state implements PokerState, the immutable no-limit hold'em
// state machine the solver traverses (spec C4). Every action application
// returns a new state; nothing is mutated in place, which lets the same
// prefix state be shared across the many branches a single MCCFR
// iteration fans out into.
package state

import (
	"errors"
	"fmt"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/action"
)

// ErrHandComplete is returned by Apply once a hand has already reached a
// terminal state (everyone but one folded, or showdown resolved).
var ErrHandComplete = errors.New("state: hand already complete")

// ErrIllegalAction is returned by Apply when the action does not match
// anything LegalActions offered for the current seat.
var ErrIllegalAction = errors.New("state: illegal action")

// Seat holds one player's per-hand state.
type Seat struct {
	HoleCards poker.Hand
	Stack     int // chips behind, not yet committed
	Bet       int // committed this street
	TotalBet  int // committed this entire hand
	Folded    bool
	AllIn     bool
}

// PokerState is a single point in the hand tree: the board, every seat's
// stack/bet/fold state, whose turn it is, and the deck remaining to deal
// from. The zero value is not meaningful; use New.
type PokerState struct {
	button        int
	street        action.Street
	board         poker.Hand
	deck          poker.Deck
	seats         []Seat
	activeSeat    int // -1 once the current round is closed
	currentBet    int
	minRaise      int
	bigBlind      int
	lastAggressor int
	betLevel      int // raises since the start of the current street; resets on advanceStreet
	acted         []bool
	history       action.History
	rake          Rake
}

// Rake parameterizes the house cut taken from a postflop pot at
// showdown-or-award time (spec.md §4.1: "payoff = max(pot·(1−r), pot −
// cap)"). The zero value disables rake entirely, matching a preflop-only
// fold where no rake is ever taken.
type Rake struct {
	Percent float64 // r, e.g. 0.05 for 5%
	Cap     float64 // absolute chip cap on the amount raked
}

// take returns the number of chips raked out of a pot of the given size,
// applying the spec's max(pot*(1-r), pot-cap) payoff formula (the raked
// amount is pot minus that payoff).
func (r Rake) take(pot int) int {
	if r.Percent <= 0 && r.Cap <= 0 {
		return 0
	}
	p := float64(pot)
	payoff := p * (1 - r.Percent)
	if r.Cap > 0 && p-r.Cap > payoff {
		payoff = p - r.Cap
	}
	if payoff < 0 {
		payoff = 0
	}
	raked := pot - int(payoff)
	if raked < 0 {
		return 0
	}
	if raked > pot {
		return pot
	}
	return raked
}

// Config parameterizes a fresh hand.
type Config struct {
	Button       int
	Players      int
	SmallBlind   int
	BigBlind     int
	StartStack   int
	Deck         poker.Deck   // pre-shuffled; New deals hole cards from it
	HoleCards    []poker.Hand // optional; when set, overrides dealing from Deck
	Rake         Rake         // postflop-only house cut; zero value disables it
}

// New deals hole cards and posts blinds, returning the state with the
// first voluntary decision pending (or already past preflop if heads-up
// blind postings leave nobody to act, mirroring standard hold'em rules).
func New(cfg Config) PokerState {
	seats := make([]Seat, cfg.Players)
	deck := cfg.Deck
	for i := range seats {
		var hole poker.Hand
		if cfg.HoleCards != nil {
			hole = cfg.HoleCards[i]
		} else {
			cards := deck.Deal(2)
			hole = poker.NewHand(cards...)
		}
		seats[i] = Seat{HoleCards: hole, Stack: cfg.StartStack}
	}

	s := PokerState{
		button:   cfg.Button,
		street:   action.Preflop,
		deck:     deck,
		seats:    seats,
		bigBlind: cfg.BigBlind,
		acted:    make([]bool, cfg.Players),
		rake:     cfg.Rake,
	}

	sbSeat := (cfg.Button + 1) % cfg.Players
	bbSeat := (cfg.Button + 2) % cfg.Players
	if cfg.Players == 2 {
		sbSeat = cfg.Button
		bbSeat = (cfg.Button + 1) % cfg.Players
	}
	s.postBlind(sbSeat, cfg.SmallBlind)
	s.postBlind(bbSeat, cfg.BigBlind)
	s.currentBet = cfg.BigBlind
	s.minRaise = cfg.BigBlind
	s.lastAggressor = bbSeat

	s.activeSeat = s.firstToActPreflop(cfg.Players)
	s.settleIfClosed()
	return s
}

func (s *PokerState) postBlind(seat, amount int) {
	if amount > s.seats[seat].Stack {
		amount = s.seats[seat].Stack
	}
	s.seats[seat].Stack -= amount
	s.seats[seat].Bet += amount
	s.seats[seat].TotalBet += amount
	if s.seats[seat].Stack == 0 {
		s.seats[seat].AllIn = true
	}
}

func (s *PokerState) firstToActPreflop(players int) int {
	if players == 2 {
		return s.button
	}
	return (s.button + 3) % players
}

func (s *PokerState) firstToActPostflop(players int) int {
	seat := (s.button + 1) % players
	for i := 0; i < players; i++ {
		if s.canAct(seat) {
			return seat
		}
		seat = (seat + 1) % players
	}
	return -1
}

func (s PokerState) canAct(seat int) bool {
	return !s.seats[seat].Folded && !s.seats[seat].AllIn
}

// Button returns the button seat.
func (s PokerState) Button() int { return s.button }

// Street returns the current betting round.
func (s PokerState) Street() action.Street { return s.street }

// Board returns the community cards dealt so far.
func (s PokerState) Board() poker.Hand { return s.board }

// Seats returns every player's per-hand state. The slice must not be
// mutated; PokerState relies on seats never aliasing between states.
func (s PokerState) Seats() []Seat { return s.seats }

// ActiveSeat returns the seat on turn, or -1 if the current round is
// closed (all bets matched or all-in) and play should advance streets.
func (s PokerState) ActiveSeat() int { return s.activeSeat }

// History returns the actions taken so far this hand.
func (s PokerState) History() action.History { return s.history }

// BetLevel returns the number of raises made since the current street
// began (spec.md §3: "bet_level resets to 0 on round transitions"). This
// is distinct from History().RaiseCount(), which counts aggressive
// actions across the whole hand; BetLevel is the per-street quantity the
// ActionProfile's (round, bet_level, position, in_position) table and
// the real-time solver's terminal-depth check key on.
func (s PokerState) BetLevel() int { return s.betLevel }

// PotSize returns the total chips committed by all seats this hand.
func (s PokerState) PotSize() int {
	total := 0
	for _, seat := range s.seats {
		total += seat.TotalBet
	}
	return total
}

// ToCall returns the amount the given seat must add to match CurrentBet.
func (s PokerState) ToCall(seat int) int {
	toCall := s.currentBet - s.seats[seat].Bet
	if toCall < 0 {
		return 0
	}
	return toCall
}

func (s PokerState) playersInHand() int {
	n := 0
	for _, seat := range s.seats {
		if !seat.Folded {
			n++
		}
	}
	return n
}

// IsComplete reports whether the hand has reached a terminal state:
// either only one player remains unfolded, or the river betting round
// has closed and a showdown is due.
func (s PokerState) IsComplete() bool {
	if s.playersInHand() <= 1 {
		return true
	}
	return s.street == action.River && s.activeSeat == -1 && s.allRoundsSettled()
}

func (s PokerState) allRoundsSettled() bool {
	for i, seat := range s.seats {
		if seat.Folded || seat.AllIn {
			continue
		}
		if seat.Bet != s.currentBet || !s.acted[i] {
			return false
		}
	}
	return true
}

// LegalActions returns the abstract actions available to ActiveSeat,
// expanded against the given profile's bet sizing for this context.
func (s PokerState) LegalActions(profile *action.Profile) []action.Action {
	if s.activeSeat == -1 || s.IsComplete() {
		return nil
	}
	seat := s.seats[s.activeSeat]
	toCall := s.ToCall(s.activeSeat)

	actions := make([]action.Action, 0, profile.MaxActionsPerNode())
	if toCall > 0 {
		actions = append(actions, action.Action{Kind: action.Fold})
	}
	if toCall == 0 {
		actions = append(actions, action.Action{Kind: action.Check})
	} else if toCall >= seat.Stack {
		actions = append(actions, action.Action{Kind: action.AllIn, Amount: seat.Bet + seat.Stack})
	} else {
		actions = append(actions, action.Action{Kind: action.Call})
	}

	if profile.RaisesEnabled() && seat.Stack > toCall {
		inPosition := s.isInPosition(s.activeSeat)
		fractions := profile.SizesFor(s.street, s.betLevel, inPosition)
		for _, total := range s.raiseTotals(s.activeSeat, fractions) {
			kind := action.Bet
			if s.currentBet > 0 {
				kind = action.Raise
			}
			actions = append(actions, action.Action{Kind: kind, Amount: total})
		}
		maxTotal := seat.Bet + seat.Stack
		if maxTotal > s.currentBet {
			hasAllIn := false
			for _, a := range actions {
				if a.Kind == action.AllIn || ((a.Kind == action.Bet || a.Kind == action.Raise) && a.Amount == maxTotal) {
					hasAllIn = true
					break
				}
			}
			if !hasAllIn {
				actions = append(actions, action.Action{Kind: action.AllIn, Amount: maxTotal})
			}
		}
	}

	if len(actions) > profile.MaxActionsPerNode() {
		actions = actions[:profile.MaxActionsPerNode()]
	}
	return actions
}

func (s PokerState) isInPosition(seat int) bool {
	// last to act postflop (the button, or else the nearest seat
	// counter-clockwise from it that still has a live decision) is "in
	// position".
	n := len(s.seats)
	candidate := (s.button + n) % n
	for i := 0; i < n; i++ {
		if s.canAct(candidate) {
			return candidate == seat
		}
		candidate = (candidate - 1 + n) % n
	}
	return false
}

func (s PokerState) raiseTotals(seatIdx int, fractions []float64) []int {
	seat := s.seats[seatIdx]
	maxTotal := seat.Bet + seat.Stack
	minRaise := s.minRaise
	if minRaise <= 0 {
		minRaise = s.bigBlind
	}
	minTotal := s.currentBet + minRaise
	pot := s.PotSize()

	seen := make(map[int]struct{}, len(fractions))
	totals := make([]int, 0, len(fractions))
	for _, frac := range fractions {
		if frac <= 0 {
			continue
		}
		raiseBy := int(frac * float64(pot+s.ToCall(seatIdx)))
		total := s.currentBet + raiseBy
		if total < minTotal {
			total = minTotal
		}
		if total >= maxTotal {
			continue
		}
		if _, ok := seen[total]; ok {
			continue
		}
		seen[total] = struct{}{}
		totals = append(totals, total)
	}
	return totals
}

// Apply returns the state resulting from ActiveSeat taking act, advancing
// to the next decision (or the next street, or showdown) as needed.
func (s PokerState) Apply(act action.Action) (PokerState, error) {
	if s.IsComplete() {
		return s, ErrHandComplete
	}
	if s.activeSeat == -1 {
		return s, ErrIllegalAction
	}

	next := s.clone()
	seat := s.activeSeat
	next.history = s.history.Append(act)

	switch act.Kind {
	case action.Fold:
		next.seats[seat].Folded = true
	case action.Check:
		next.acted[seat] = true
	case action.Call:
		toCall := next.ToCall(seat)
		if toCall > next.seats[seat].Stack {
			toCall = next.seats[seat].Stack
		}
		next.commit(seat, toCall)
		next.acted[seat] = true
	case action.Bet, action.Raise:
		if act.Amount <= next.seats[seat].Bet {
			return s, fmt.Errorf("%w: raise total %d not above current bet %d", ErrIllegalAction, act.Amount, next.seats[seat].Bet)
		}
		delta := act.Amount - next.seats[seat].Bet
		raiseBy := act.Amount - next.currentBet
		next.commit(seat, delta)
		if raiseBy > next.minRaise {
			next.minRaise = raiseBy
		}
		next.currentBet = next.seats[seat].Bet
		next.lastAggressor = seat
		next.betLevel++
		next.resetActed(seat)
	case action.AllIn:
		delta := next.seats[seat].Stack
		raiseAmount := next.seats[seat].Bet + delta
		next.commit(seat, delta)
		if raiseAmount > next.currentBet {
			raiseBy := raiseAmount - next.currentBet
			if raiseBy > next.minRaise {
				next.minRaise = raiseBy
			}
			next.currentBet = raiseAmount
			next.lastAggressor = seat
			next.betLevel++
			next.resetActed(seat)
		}
		next.acted[seat] = true
	default:
		return s, fmt.Errorf("%w: unknown action kind %v", ErrIllegalAction, act.Kind)
	}

	next.activeSeat = next.nextActiveSeat(seat)
	next.settleIfClosed()
	return next, nil
}

func (s *PokerState) commit(seat, amount int) {
	if amount > s.seats[seat].Stack {
		amount = s.seats[seat].Stack
	}
	s.seats[seat].Stack -= amount
	s.seats[seat].Bet += amount
	s.seats[seat].TotalBet += amount
	if s.seats[seat].Stack == 0 {
		s.seats[seat].AllIn = true
	}
}

func (s *PokerState) resetActed(except int) {
	for i := range s.acted {
		s.acted[i] = i == except
	}
}

func (s PokerState) nextActiveSeat(from int) int {
	n := len(s.seats)
	seat := (from + 1) % n
	for i := 0; i < n; i++ {
		if s.canAct(seat) && !(s.seats[seat].Bet == s.currentBet && s.acted[seat]) {
			return seat
		}
		seat = (seat + 1) % n
	}
	return -1
}

// settleIfClosed advances street(s) automatically while the round is
// closed and more than one player remains, dealing board cards as it
// goes; this mirrors the teacher's advanceToNextDecision loop but lives
// inside PokerState itself so every caller sees a consistent cursor.
func (s *PokerState) settleIfClosed() {
	for s.playersInHand() > 1 && s.activeSeat == -1 && s.street != action.River {
		s.advanceStreet()
	}
}

func (s *PokerState) advanceStreet() {
	switch s.street {
	case action.Preflop:
		s.board = poker.NewHand(append(s.board.Cards(), s.deck.Deal(3)...)...)
		s.street = action.Flop
	case action.Flop:
		s.board = poker.NewHand(append(s.board.Cards(), s.deck.DealOne())...)
		s.street = action.Turn
	case action.Turn:
		s.board = poker.NewHand(append(s.board.Cards(), s.deck.DealOne())...)
		s.street = action.River
	default:
		return
	}
	for i := range s.seats {
		s.seats[i].Bet = 0
		s.acted[i] = false
	}
	s.currentBet = 0
	s.minRaise = s.bigBlind
	s.betLevel = 0
	n := len(s.seats)
	if s.activeSeat = s.firstToActPostflopFrom(n); s.activeSeat == -1 {
		return
	}
}

func (s *PokerState) firstToActPostflopFrom(n int) int {
	seat := (s.button + 1) % n
	for i := 0; i < n; i++ {
		if s.canAct(seat) {
			return seat
		}
		seat = (seat + 1) % n
	}
	return -1
}

func (s PokerState) clone() PokerState {
	next := s
	next.seats = append([]Seat(nil), s.seats...)
	next.acted = append([]bool(nil), s.acted...)
	return next
}

// Winners returns the seats entitled to the pot: the lone unfolded player
// if everyone else folded, or the best-ranked hand(s) at showdown using
// eval to compare 7-card hands (board + hole cards), ties splitting the
// pot (spec PokerState.Winners/TieBreak supplement).
func (s PokerState) Winners(eval func(hole, board poker.Hand) poker.HandRank) []int {
	live := make([]int, 0, len(s.seats))
	for i, seat := range s.seats {
		if !seat.Folded {
			live = append(live, i)
		}
	}
	if len(live) == 1 {
		return live
	}

	best := live[0]
	bestRank := eval(s.seats[best].HoleCards, s.board)
	winners := []int{best}
	for _, i := range live[1:] {
		rank := eval(s.seats[i].HoleCards, s.board)
		cmp := poker.CompareHands(rank, bestRank)
		switch {
		case cmp > 0:
			bestRank = rank
			winners = []int{i}
		case cmp == 0:
			winners = append(winners, i)
		}
	}
	return winners
}

// Pot describes one side pot: the amount, and the seats eligible to win it.
type Pot struct {
	Amount   int
	Eligible []int
}

// Pots computes the side-pot structure from each seat's total
// contribution this hand, re-deriving (not copying) the tiered all-in
// algorithm the teacher's internal pot manager used, adapted to the
// immutable PokerState model.
func (s PokerState) Pots() []Pot {
	type contribution struct {
		seat   int
		amount int
	}
	contribs := make([]contribution, 0, len(s.seats))
	for i, seat := range s.seats {
		if seat.TotalBet > 0 {
			contribs = append(contribs, contribution{i, seat.TotalBet})
		}
	}
	if len(contribs) == 0 {
		return nil
	}

	levels := make([]int, 0, len(contribs))
	seen := map[int]bool{}
	for _, c := range contribs {
		if !seen[c.amount] {
			seen[c.amount] = true
			levels = append(levels, c.amount)
		}
	}
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0 && levels[j] < levels[j-1]; j-- {
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}

	var pots []Pot
	prev := 0
	for _, level := range levels {
		tier := level - prev
		if tier <= 0 {
			continue
		}
		amount := 0
		eligible := make([]int, 0, len(contribs))
		for _, c := range contribs {
			if c.amount >= level {
				amount += tier
			}
			if c.amount >= level && !s.seats[c.seat].Folded {
				eligible = append(eligible, c.seat)
			}
		}
		if amount > 0 && len(eligible) > 0 {
			pots = append(pots, Pot{Amount: amount, Eligible: eligible})
		}
		prev = level
	}
	return pots
}

// TotalPot returns the sum of every side pot.
func (s PokerState) TotalPot() int {
	total := 0
	for _, p := range s.Pots() {
		total += p.Amount
	}
	return total
}

// Payouts resolves every pot against eval, splitting ties evenly and
// giving any odd remainder to the earliest-position eligible winner
// (spec PokerState.TieBreak supplement), returning each seat's net
// chip change (winnings minus contribution).
func (s PokerState) Payouts(eval func(hole, board poker.Hand) poker.HandRank) []int {
	payouts := make([]int, len(s.seats))
	for i, seat := range s.seats {
		payouts[i] = -seat.TotalBet
	}

	live := make([]int, 0, len(s.seats))
	for i, seat := range s.seats {
		if !seat.Folded {
			live = append(live, i)
		}
	}
	rank := make(map[int]poker.HandRank, len(live))
	if len(live) > 1 {
		for _, i := range live {
			rank[i] = eval(s.seats[i].HoleCards, s.board)
		}
	}

	// Rake is postflop only (spec.md §4.1): a hand that ends with
	// everyone but one seat folded before the board ever reached the
	// flop pays no rake at all, regardless of the configured Rake.
	rakeOn := s.street >= action.Flop || s.board.CountCards() >= 3

	for _, pot := range s.Pots() {
		amount := pot.Amount
		if rakeOn {
			amount -= s.rake.take(amount)
		}
		if len(pot.Eligible) == 1 {
			payouts[pot.Eligible[0]] += amount
			continue
		}
		best := pot.Eligible[0]
		bestRank := rank[best]
		winners := []int{best}
		for _, seat := range pot.Eligible[1:] {
			cmp := poker.CompareHands(rank[seat], bestRank)
			switch {
			case cmp > 0:
				bestRank = rank[seat]
				winners = []int{seat}
			case cmp == 0:
				winners = append(winners, seat)
			}
		}
		share := amount / len(winners)
		remainder := amount - share*len(winners)
		for _, seat := range winners {
			payouts[seat] += share
		}
		if remainder > 0 {
			payouts[earliestBySeatOrder(winners, s.button)] += remainder
		}
	}
	return payouts
}

// RakeTaken returns the total chips that Payouts would remove from the
// pot(s) as rake, the amount spec.md §8's zero-sum property accounts for
// separately ("Σ over seats of utilities + rake = 0").
func (s PokerState) RakeTaken() int {
	rakeOn := s.street >= action.Flop || s.board.CountCards() >= 3
	if !rakeOn {
		return 0
	}
	total := 0
	for _, pot := range s.Pots() {
		total += s.rake.take(pot.Amount)
	}
	return total
}

// earliestBySeatOrder picks the winner closest (clockwise) to the seat
// just after the button, the standard odd-chip tie-break rule.
func earliestBySeatOrder(seats []int, button int) int {
	best := seats[0]
	bestDist := distanceFromButton(best, button)
	for _, s := range seats[1:] {
		d := distanceFromButton(s, button)
		if d < bestDist {
			bestDist = d
			best = s
		}
	}
	return best
}

func distanceFromButton(seat, button int) int {
	d := seat - button
	if d <= 0 {
		d += 64
	}
	return d
}
