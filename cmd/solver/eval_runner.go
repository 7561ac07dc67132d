package main

import (
	"context"
	"fmt"

	"github.com/lox/cfrsolver/sdk/action"
	"github.com/lox/cfrsolver/sdk/ev"
	"github.com/lox/cfrsolver/sdk/solver"
	"github.com/lox/cfrsolver/sdk/solver/runtime"
)

// evaluationOptions parameterizes a blueprint evaluation run. It replaces
// the teacher's HTTP-server-plus-bot-process evaluationOptions
// (cmd/solver/eval_runner.go, which spun up internal/server and spawned
// a bot subprocess per seat) with a direct ev.SimulateSelfPlay call,
// since the solver module has no business owning that command-server
// surface (spec §1 Non-goals).
type evaluationOptions struct {
	Blueprint  *solver.Blueprint
	Hands      int
	Seed       int64
	SmallBlind int
	BigBlind   int
	StartStack int
	Opponent   string
}

// runEvaluation plays the loaded blueprint's average strategy (seat 0)
// against a baseline opponent (every other seat) for opts.Hands hands
// and reports each seat's win rate.
func runEvaluation(ctx context.Context, opts evaluationOptions) (ev.SimulateResult, error) {
	if opts.SmallBlind <= 0 {
		opts.SmallBlind = 5
	}
	if opts.BigBlind <= 0 {
		opts.BigBlind = 10
	}
	if opts.StartStack <= 0 {
		opts.StartStack = 1000
	}

	absCfg := opts.Blueprint.Abstraction
	trainCfg := solver.DefaultTrainingConfig()
	trainCfg.SmallBlind = opts.SmallBlind
	trainCfg.BigBlind = opts.BigBlind
	trainCfg.EnableRaises = absCfg.EnableRaises
	trainCfg.MaxRaisesPerBucket = absCfg.MaxRaisesPerBucket

	mccfr := solver.NewMCCFRSolver(trainCfg, absCfg, nil, solver.DefaultEvaluator())
	profile := action.NewProfile(absCfg.BetSizing,
		action.WithMaxActionsPerNode(absCfg.MaxActionsPerNode),
		action.WithMaxRaisesPerBucket(absCfg.MaxRaisesPerBucket),
		action.WithRaisesEnabled(absCfg.EnableRaises),
	)

	hero := ev.BlueprintStrategy{Policy: runtime.NewPolicy(opts.Blueprint), KeyFor: mccfr.InfoSetKeyFor}
	opponent, err := baselineStrategy(opts.Opponent)
	if err != nil {
		return ev.SimulateResult{}, err
	}

	cfg := ev.SimulateConfig{
		Names:      []string{"blueprint", "opponent"},
		Players:    []ev.Strategy{hero, opponent},
		Profile:    profile,
		Eval:       solver.DefaultEvaluator(),
		Hands:      opts.Hands,
		Seed:       opts.Seed,
		SmallBlind: opts.SmallBlind,
		BigBlind:   opts.BigBlind,
		StartStack: opts.StartStack,
	}
	return ev.SimulateSelfPlay(ctx, cfg)
}

func baselineStrategy(name string) (ev.Strategy, error) {
	switch name {
	case "", "station":
		return ev.CallingStationStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown baseline opponent %q", name)
	}
}
