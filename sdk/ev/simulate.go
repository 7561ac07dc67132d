package ev

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	rand2 "math/rand/v2"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/action"
	"github.com/lox/cfrsolver/sdk/solver"
	"github.com/lox/cfrsolver/sdk/solver/runtime"
	"github.com/lox/cfrsolver/sdk/state"
)

// Strategy picks an action for seat to play at st, the interface both a
// Blueprint-backed player and a fixed/scripted opponent implement, so
// SimulateConfig.Players can mix blueprint strategies with baselines
// (e.g. an always-call station) in the same self-play run.
type Strategy interface {
	Act(st state.PokerState, seat int, profile *action.Profile, rng *rand2.Rand) (action.Action, error)
}

// BlueprintStrategy samples an action from a trained blueprint's average
// strategy at the info set a MCCFRSolver would compute for (st, seat),
// querying it through a runtime.Policy rather than Blueprint.Strategy
// directly: Policy.ActionWeights is the same "query a loaded strategy by
// info-set key, with a uniform fallback when the key or the action count
// doesn't match" contract this self-play harness needs, so the harness
// and any other blueprint consumer (e.g. a future long-running serving
// process) go through one read path instead of two copies of the same
// fallback logic.
type BlueprintStrategy struct {
	Policy *runtime.Policy
	KeyFor func(st state.PokerState, seat int) solver.InfoSetKey
}

func (b BlueprintStrategy) Act(st state.PokerState, seat int, profile *action.Profile, rng *rand2.Rand) (action.Action, error) {
	actions := st.LegalActions(profile)
	if len(actions) == 0 {
		return action.Action{}, fmt.Errorf("ev: no legal actions for seat %d", seat)
	}
	strat, err := b.Policy.ActionWeights(b.KeyFor(st, seat), len(actions))
	if err != nil {
		return action.Action{}, fmt.Errorf("ev: action weights for seat %d: %w", seat, err)
	}
	idx := sampleStrategy(strat, rng)
	return actions[idx], nil
}

func sampleStrategy(p []float64, rng *rand2.Rand) int {
	total := 0.0
	for _, v := range p {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return rng.IntN(len(p))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range p {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i
		}
	}
	return len(p) - 1
}

// CallingStationStrategy always checks or calls, the simplest baseline
// opponent to evaluate a blueprint against (grounded on the teacher's
// sdk/examples/calling-station bot, the one opponent the teacher's own
// eval harness spawned for every evaluation run).
type CallingStationStrategy struct{}

func (CallingStationStrategy) Act(st state.PokerState, seat int, profile *action.Profile, rng *rand2.Rand) (action.Action, error) {
	for _, a := range st.LegalActions(profile) {
		if a.Kind == action.Check || a.Kind == action.Call {
			return a, nil
		}
	}
	actions := st.LegalActions(profile)
	if len(actions) == 0 {
		return action.Action{}, fmt.Errorf("ev: no legal actions for seat %d", seat)
	}
	return actions[0], nil
}

// PlayerResult aggregates one seat's outcome across a simulation run.
type PlayerResult struct {
	Name      string
	Hands     int
	NetChips  int
	BBPerHand float64
	BBPer100  float64
}

// SimulateResult is the outcome of a full SimulateSelfPlay run.
type SimulateResult struct {
	HandsCompleted uint64
	Duration       time.Duration
	Players        []PlayerResult
}

// SimulateConfig parameterizes a self-play evaluation run, replacing the
// teacher's HTTP-server-plus-spawned-bot-processes harness
// (cmd/solver/eval_runner.go, deleted — see DESIGN.md) with a single
// in-process loop over PokerState, since the solver core has no
// business owning a network protocol (spec §1 Non-goals: "an HTTP/JSON
// command server").
type SimulateConfig struct {
	Names      []string
	Players    []Strategy
	Profile    *action.Profile
	Eval       solver.Evaluator
	Hands      int
	Seed       int64
	SmallBlind int
	BigBlind   int
	StartStack int
}

// SimulateSelfPlay deals Hands independent hands, rotating the button
// each hand, resets every seat's stack between hands (a fixed-bankroll
// per-hand win-rate measurement rather than a tournament), and has each
// acting seat's configured Strategy choose an action until the hand
// completes, accumulating each seat's net chips won/lost.
func SimulateSelfPlay(ctx context.Context, cfg SimulateConfig) (SimulateResult, error) {
	if len(cfg.Players) < 2 {
		return SimulateResult{}, fmt.Errorf("ev: simulate requires at least 2 players, got %d", len(cfg.Players))
	}
	if cfg.Hands <= 0 {
		return SimulateResult{}, fmt.Errorf("ev: hands must be positive, got %d", cfg.Hands)
	}

	start := time.Now()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	deckRNG := rand.New(rand.NewSource(seed))
	actRNG := rand2.New(rand2.NewPCG(uint64(seed), uint64(seed>>32)^0x9e3779b9))

	n := len(cfg.Players)
	net := make([]int, n)
	var completed uint64

	for h := 0; h < cfg.Hands; h++ {
		select {
		case <-ctx.Done():
			return buildResult(cfg, net, completed, start), ctx.Err()
		default:
		}

		deck := *poker.NewDeck(deckRNG)
		st := state.New(state.Config{
			Button:     h % n,
			Players:    n,
			SmallBlind: cfg.SmallBlind,
			BigBlind:   cfg.BigBlind,
			StartStack: cfg.StartStack,
			Deck:       deck,
		})

		for !st.IsComplete() {
			seat := st.ActiveSeat()
			if seat == -1 {
				break
			}
			act, err := cfg.Players[seat].Act(st, seat, cfg.Profile, actRNG)
			if err != nil {
				return buildResult(cfg, net, completed, start), err
			}
			next, err := st.Apply(act)
			if err != nil {
				return buildResult(cfg, net, completed, start), err
			}
			st = next
		}

		payouts := st.Payouts(cfg.Eval)
		for i, p := range payouts {
			net[i] += p
		}
		completed++
	}

	return buildResult(cfg, net, completed, start), nil
}

func buildResult(cfg SimulateConfig, net []int, completed uint64, start time.Time) SimulateResult {
	players := make([]PlayerResult, len(net))
	for i, chips := range net {
		name := fmt.Sprintf("seat%d", i)
		if i < len(cfg.Names) && cfg.Names[i] != "" {
			name = cfg.Names[i]
		}
		bbPerHand := 0.0
		bbPer100 := 0.0
		if completed > 0 && cfg.BigBlind > 0 {
			bbPerHand = float64(chips) / float64(cfg.BigBlind) / float64(completed)
			bbPer100 = bbPerHand * 100
		}
		players[i] = PlayerResult{
			Name:      name,
			Hands:     int(completed),
			NetChips:  chips,
			BBPerHand: bbPerHand,
			BBPer100:  bbPer100,
		}
	}
	return SimulateResult{
		HandsCompleted: completed,
		Duration:       time.Since(start),
		Players:        players,
	}
}
