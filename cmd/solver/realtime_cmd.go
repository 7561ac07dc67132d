package main

import (
	"context"
	"fmt"
	"math/rand"
	rand2 "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/action"
	"github.com/lox/cfrsolver/sdk/ev"
	"github.com/lox/cfrsolver/sdk/realtime"
	"github.com/lox/cfrsolver/sdk/solver"
	"github.com/lox/cfrsolver/sdk/solver/runtime"
	"github.com/lox/cfrsolver/sdk/state"
)

// RealtimeCmd deals a fresh hand, plays it forward under the blueprint
// for one action so there is a live decision point, then re-solves the
// remaining subgame for the acting seat using sdk/realtime (spec C11)
// and reports the resulting average strategy at the subgame root.
type RealtimeCmd struct {
	Blueprint    string        `help:"path to blueprint pack" required:""`
	Seed         int64         `help:"random seed; 0 uses time seed" default:"0"`
	SmallBlind   int           `help:"small blind size" default:"5"`
	BigBlind     int           `help:"big blind size" default:"10"`
	Stack        int           `help:"starting stack size" default:"1000"`
	Iterations   int           `help:"subgame MCCFR iterations" default:"2000"`
	TimeBudget   time.Duration `help:"wall-clock budget for the re-solve" default:"5s"`
	TerminalBets int           `help:"raise count at which the subgame bottoms out into a blueprint rollout" default:"2"`
}

func (cmd *RealtimeCmd) Run(ctx context.Context, logger *log.Logger) error {
	bp, err := solver.LoadBlueprint(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}

	absCfg := bp.Abstraction
	trainCfg := solver.DefaultTrainingConfig()
	trainCfg.SmallBlind = cmd.SmallBlind
	trainCfg.BigBlind = cmd.BigBlind
	trainCfg.EnableRaises = absCfg.EnableRaises
	trainCfg.MaxRaisesPerBucket = absCfg.MaxRaisesPerBucket

	mccfr := solver.NewMCCFRSolver(trainCfg, absCfg, nil, solver.DefaultEvaluator())
	profile := action.NewProfile(absCfg.BetSizing,
		action.WithMaxActionsPerNode(absCfg.MaxActionsPerNode),
		action.WithMaxRaisesPerBucket(absCfg.MaxRaisesPerBucket),
		action.WithRaisesEnabled(absCfg.EnableRaises),
	)

	seed := cmd.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	deckRNG := rand.New(rand.NewSource(seed))
	deck := *poker.NewDeck(deckRNG)

	st := state.New(state.Config{
		Button:     0,
		Players:    2,
		SmallBlind: cmd.SmallBlind,
		BigBlind:   cmd.BigBlind,
		StartStack: cmd.Stack,
		Deck:       deck,
	})

	hero := ev.BlueprintStrategy{Policy: runtime.NewPolicy(bp), KeyFor: mccfr.InfoSetKeyFor}
	actRNG := rand2.New(rand2.NewPCG(uint64(seed), uint64(seed>>32)^0x9e3779b9))
	if !st.IsComplete() {
		seat := st.ActiveSeat()
		act, err := hero.Act(st, seat, profile, actRNG)
		if err != nil {
			return fmt.Errorf("seed opening action: %w", err)
		}
		next, err := st.Apply(act)
		if err != nil {
			return fmt.Errorf("apply opening action: %w", err)
		}
		logger.Info("seeded live decision point", "seat", seat, "action", act.Kind, "pot", next.PotSize())
		st = next
	}

	target := st.ActiveSeat()
	if target == -1 {
		return fmt.Errorf("dealt hand is already complete; nothing to re-solve")
	}

	leaf := realtime.LeafEvaluator{
		Blueprint: bp,
		Sampled:   solver.BuildSampledBlueprint(bp),
		Eval:      solver.DefaultEvaluator(),
		Profile:   profile,
		KeyFor:    mccfr.InfoSetKeyFor,
	}
	cfg := realtime.Config{
		DiscountInterval: 100,
		LCFRThresh:       cmd.Iterations,
		TerminalStreet:   action.River,
		TerminalBetLevel: cmd.TerminalBets,
		Deadline:         time.Now().Add(cmd.TimeBudget),
		MaxIterations:    cmd.Iterations,
	}
	rts := realtime.NewRealTimeSolver(cfg, profile, leaf, solver.DefaultEvaluator(), nil)

	storage, phase, err := rts.Solve(st, target, seed)
	if err != nil {
		return fmt.Errorf("subgame solve: %w", err)
	}

	// The subgame tree's root node is the bias-preflight pseudo-round
	// (one branch per opponent seat's assigned tendency, spec.md §4.1).
	// Descend through the "no bias assumed" (BiasNone) branch for every
	// non-folded opponent seat to reach the node that actually
	// represents target's real decision at st.
	node := storage.Root()
	for seat, s := range st.Seats() {
		if seat == target || s.Folded {
			continue
		}
		child := node.PeekChild(0) // biasOptions[0] == realtime.BiasNone
		if child == nil {
			node = nil
			break
		}
		node = child
	}

	actions := st.LegalActions(profile)
	logger.Info("subgame re-solve complete", "phase", phase.String(), "seat", target)
	if node == nil {
		logger.Warn("subgame root has no visited decision node for the unbiased line; try more iterations")
		return nil
	}
	avg := node.AverageStrategy()
	for i, a := range actions {
		if i < len(avg) {
			logger.Info("action frequency", "action", a.Kind, "amount", a.Amount, "freq", avg[i])
		}
	}
	return nil
}
