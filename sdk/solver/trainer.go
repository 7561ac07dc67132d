package solver

import (
	"context"
	"math/rand"
	rand2 "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/cfrsolver/internal/randutil"
	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/abstraction"
	"github.com/lox/cfrsolver/sdk/sample"
	"github.com/lox/cfrsolver/sdk/state"
)

// TraversalStats holds coarse progress counters that a Trainer reports
// to the configured logger on the ProgressEvery schedule and writes into
// checkpoints. Nothing in the traversal increments them, so they keep the
// values the Trainer started with or was restored with.
type TraversalStats struct {
	NodesVisited  int64
	TerminalNodes int64
	MaxDepth      int
}

// Progress is a point-in-time snapshot handed to a caller-supplied
// progress callback, mirroring the structured fields the teacher's
// cmd/solver progress output logs (iteration, infosets, nodes_visited,
// max_depth).
type Progress struct {
	Iteration    int64
	Infosets     int
	NodesVisited int64
	MaxDepth     int
	Elapsed      time.Duration
}

// Trainer drives a blueprint MCCFR run: it owns the MCCFRSolver, the
// per-table RNG state needed for deterministic resume, and the
// checkpoint/progress schedules, generalizing the teacher's
// sdk/solver/trainer.go parallel-goroutines-per-iteration shape to the
// new PokerState-based traversal core.
type Trainer struct {
	solver   *MCCFRSolver
	trainCfg TrainingConfig
	absCfg   AbstractionConfig
	ranges   []*abstraction.Range

	iteration atomic.Int64
	stats     TraversalStats
	statsMu   sync.Mutex

	rngSeed int64

	checkpointPath  string
	checkpointEvery int

	logger *log.Logger
}

// NewTrainer constructs a Trainer with a fresh MCCFRSolver, validating
// both configs before anything else runs.
func NewTrainer(absCfg AbstractionConfig, trainCfg TrainingConfig, clusters *abstraction.ClusterMap) (*Trainer, error) {
	if err := absCfg.Validate(); err != nil {
		return nil, NewSolverError(ErrConfiguration, "abstraction config: %w", err)
	}
	if err := trainCfg.Validate(); err != nil {
		return nil, NewSolverError(ErrConfiguration, "training config: %w", err)
	}

	ranges := make([]*abstraction.Range, trainCfg.Players)
	for i, notation := range trainCfg.InitRanges {
		r, err := abstraction.ParseRange(notation)
		if err != nil {
			return nil, NewSolverError(ErrConfiguration, "init range[%d] %q: %w", i, notation, err)
		}
		ranges[i] = r
	}

	t := &Trainer{
		solver:   NewMCCFRSolver(trainCfg, absCfg, clusters, DefaultEvaluator()),
		trainCfg: trainCfg,
		absCfg:   absCfg,
		ranges:   ranges,
		rngSeed:  trainCfg.Seed,
		logger:   log.Default().With("component", "trainer"),
	}
	return t, nil
}

// Blueprint extracts the current average strategy for every tracked
// information set into a serializable Blueprint.
func (t *Trainer) Blueprint() *Blueprint {
	entries := t.solver.regrets.Entries()
	strategies := make(map[string][]float64, len(entries))
	for key, entry := range entries {
		strategies[key] = entry.AverageStrategy()
	}
	return &Blueprint{
		Version:     blueprintFileVersion,
		GeneratedAt: time.Now(),
		Iterations:  int(t.iteration.Load()),
		Abstraction: t.absCfg,
		Strategies:  strategies,
	}
}

// Iteration returns the number of completed iterations.
func (t *Trainer) Iteration() int64 {
	return t.iteration.Load()
}

// Stats returns a copy of the current traversal counters.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// Run executes MCCFR iterations until TrainingConfig.Iterations is
// reached (continuing from whatever iteration the Trainer already holds,
// so resuming from a checkpoint picks up where it left off rather than
// restarting the count), fanning each iteration out across
// ParallelTables goroutines (one per table, each dealing a fresh hand and
// traversing it once for every seat as the target in turn), invoking progress on the
// configured schedule and writing checkpoints if EnableCheckpoints was
// called.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	start := time.Now()
	total := int64(t.trainCfg.Iterations)

	for t.iteration.Load() < total {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		iter := int(t.iteration.Add(1))

		if err := t.singleIteration(iter); err != nil {
			return err
		}

		if t.trainCfg.DiscountInterval > 0 && iter%t.trainCfg.DiscountInterval == 0 {
			t.solver.ApplyDiscount(iter)
		}

		if t.trainCfg.ProgressEvery > 0 && iter%t.trainCfg.ProgressEvery == 0 {
			p := Progress{
				Iteration:    int64(iter),
				Infosets:     t.solver.regrets.Size(),
				NodesVisited: t.Stats().NodesVisited,
				MaxDepth:     t.Stats().MaxDepth,
				Elapsed:      time.Since(start),
			}
			t.logger.Info("training progress",
				"iteration", p.Iteration,
				"infosets", p.Infosets,
				"nodes_visited", p.NodesVisited,
				"max_depth", p.MaxDepth,
			)
			if progress != nil {
				progress(p)
			}
		}

		if t.checkpointPath != "" && t.checkpointEvery > 0 && iter%t.checkpointEvery == 0 {
			if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
				t.logger.Warn("checkpoint save failed", "err", err)
			}
		}
	}
	return nil
}

func (t *Trainer) singleIteration(iter int) error {
	var wg sync.WaitGroup
	errs := make([]error, t.trainCfg.ParallelTables)

	for table := 0; table < t.trainCfg.ParallelTables; table++ {
		wg.Add(1)
		go func(table int) {
			defer wg.Done()
			seed := TableSeed(t.rngSeed, iter, table)
			deckRNG := NewFastRand(seed)
			sampleRNG := randutil.New(seed)

			for target := 0; target < t.trainCfg.Players; target++ {
				st := t.dealHand(deckRNG, sampleRNG, table%t.trainCfg.Players)
				if _, err := t.solver.Traverse(st, target, iter, sampleRNG); err != nil {
					errs[table] = err
					return
				}
			}
		}(table)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// dealHand deals a fresh hand, drawing hole cards uniformly from the deck
// except for any seat with a configured starting range (trainCfg.InitRanges),
// whose hand is instead drawn from that range via a rejection sampler
// (spec C6), the ranges field this Trainer has carried since NewTrainer but
// previously left unconsumed.
func (t *Trainer) dealHand(deckRNG *rand.Rand, sampleRNG *rand2.Rand, button int) state.PokerState {
	hasRanges := false
	for _, r := range t.ranges {
		if r != nil {
			hasRanges = true
			break
		}
	}

	if !hasRanges {
		deck := *poker.NewDeck(deckRNG)
		return state.New(state.Config{
			Button:     button,
			Players:    t.trainCfg.Players,
			SmallBlind: t.trainCfg.SmallBlind,
			BigBlind:   t.trainCfg.BigBlind,
			StartStack: t.trainCfg.StartingStack,
			Deck:       deck,
		})
	}

	holes := make([]poker.Hand, t.trainCfg.Players)
	var dead poker.Hand
	var liveCards []poker.Card
	for rank := uint8(0); rank < 13; rank++ {
		for suit := uint8(0); suit < 4; suit++ {
			liveCards = append(liveCards, poker.NewCard(rank, suit))
		}
	}
	sampleRNG.Shuffle(len(liveCards), func(i, j int) { liveCards[i], liveCards[j] = liveCards[j], liveCards[i] })

	for i := 0; i < t.trainCfg.Players; i++ {
		if t.ranges[i] != nil {
			sampler := sample.NewMarginalRejectionSampler(t.ranges[i])
			if hand, _, ok := sampler.Sample(sampleRNG, dead); ok {
				holes[i] = hand
				dead |= hand
				continue
			}
		}
		var drawn []poker.Card
		for len(drawn) < 2 && len(liveCards) > 0 {
			c := liveCards[0]
			liveCards = liveCards[1:]
			if dead.HasCard(c) {
				continue
			}
			drawn = append(drawn, c)
		}
		hand := poker.NewHand(drawn...)
		holes[i] = hand
		dead |= hand
	}

	deck := *poker.NewDeckExcluding(deckRNG, dead)
	cfg := state.Config{
		Button:     button,
		Players:    t.trainCfg.Players,
		SmallBlind: t.trainCfg.SmallBlind,
		BigBlind:   t.trainCfg.BigBlind,
		StartStack: t.trainCfg.StartingStack,
		Deck:       deck,
		HoleCards:  holes,
	}
	return state.New(cfg)
}

// Solve advances the trainer tPlus iterations beyond whatever it has
// already completed, the Solver::solve(t_plus) driver entry point
// spec.md §6 describes, expressed in terms of Run's continue-from-
// current-iteration semantics.
func (t *Trainer) Solve(ctx context.Context, tPlus int, progress func(Progress)) error {
	if tPlus <= 0 {
		return NewSolverError(ErrConfiguration, "t_plus must be positive, got %d", tPlus)
	}
	t.trainCfg.Iterations = int(t.iteration.Load()) + tPlus
	return t.Run(ctx, progress)
}

// SetTotalIterations overrides the trainer's target iteration count
// (e.g. extending a resumed run past its original checkpointed target).
func (t *Trainer) SetTotalIterations(n int) error {
	if n <= 0 {
		return NewSolverError(ErrConfiguration, "iterations must be > 0, got %d", n)
	}
	t.trainCfg.Iterations = n
	return nil
}

// SetProgressEvery overrides how often Run reports progress.
func (t *Trainer) SetProgressEvery(n int) {
	t.trainCfg.ProgressEvery = n
}

// EnableCheckpoints configures the trainer to write a checkpoint to path
// every `every` iterations.
func (t *Trainer) EnableCheckpoints(path string, every int) {
	t.checkpointPath = path
	t.checkpointEvery = every
}

// TrainingConfig returns the trainer's training configuration.
func (t *Trainer) TrainingConfig() TrainingConfig {
	return t.trainCfg
}

// AbstractionConfig returns the trainer's abstraction configuration.
func (t *Trainer) AbstractionConfig() AbstractionConfig {
	return t.absCfg
}
