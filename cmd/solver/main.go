package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/cfrsolver/sdk/solver"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Train    TrainCmd    `cmd:"" help:"run MCCFR training and emit a blueprint"`
	Eval     EvalCmd     `cmd:"" help:"evaluate an existing blueprint via self-play"`
	Realtime RealtimeCmd `cmd:"" help:"re-solve a single hand in real time against a blueprint"`
}

type TrainCmd struct {
	Out             string `help:"path to write the blueprint pack" required:""`
	Config          string `help:"path to an HCL training config; individual flags below still override it"`
	Iterations      int    `help:"number of MCCFR iterations" default:"100000"`
	Players         int    `help:"number of players in self-play" default:"2"`
	Parallel        int    `help:"number of concurrent tables" default:"1"`
	Seed            int64  `help:"random seed; 0 uses time seed" default:"0"`
	SmallBlind      int    `help:"small blind size" default:"5"`
	BigBlind        int    `help:"big blind size" default:"10"`
	Stack           int    `help:"starting stack size" default:"1000"`
	CheckpointPath  string `help:"path to write periodic checkpoints"`
	CheckpointEvery int    `help:"checkpoint interval in iterations (0 disables)" default:"0"`
	ProgressEvery   int    `help:"log progress every N iterations (0 => iterations/100)" default:"0"`
	DisableRaises   bool   `help:"disable raise actions for minimal smoke testing"`
	MaxRaises       int    `help:"limit raises per node (0 keeps full abstraction)" default:"0"`
	Smoke           bool   `help:"apply smoke preset (stack=50, small blind=1, big blind=2, max raises=2)"`
	ResumeFrom      string `help:"resume training from checkpoint file"`
	CPUProfile      string `help:"write CPU profile to file"`
	CFRPlus         bool   `help:"enable CFR+ (positive regret matching with linear averaging)"`
	Sampling        string `help:"sampling mode (external|full)" enum:"external,full" default:"external"`
}

type EvalCmd struct {
	Blueprint  string `help:"path to blueprint pack" required:""`
	Hands      int    `help:"number of hands to simulate" default:"10000"`
	Seed       int64  `help:"random seed; 0 uses time seed" default:"0"`
	SmallBlind int    `help:"small blind size" default:"5"`
	BigBlind   int    `help:"big blind size" default:"10"`
	Stack      int    `help:"starting stack size" default:"1000"`
	Opponent   string `help:"baseline opponent for seats beyond the blueprint hero (station)" default:"station"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("solver"),
		kong.Description("CFR solver tooling"),
		kong.UsageOnError(),
	)

	logger := log.Default()
	if cli.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	var err error
	switch ctx.Command() {
	case "train":
		err = cli.Train.Run(context.Background(), logger)
	case "eval":
		err = cli.Eval.Run(context.Background(), logger)
	case "realtime":
		err = cli.Realtime.Run(context.Background(), logger)
	default:
		logger.Fatal("unknown command", "command", ctx.Command())
	}
	if err != nil {
		logger.Fatal("command failed", "err", err)
	}
}

func (cmd *TrainCmd) Run(ctx context.Context, logger *log.Logger) error {
	mode, err := parseSamplingMode(cmd.Sampling)
	if err != nil {
		return err
	}

	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		logger.Info("CPU profiling enabled", "path", cmd.CPUProfile)
	}

	var trainer *solver.Trainer

	if cmd.ResumeFrom != "" {
		trainer, err = solver.LoadTrainerFromCheckpoint(cmd.ResumeFrom, nil)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if cmd.Iterations > 0 {
			if err := trainer.SetTotalIterations(cmd.Iterations); err != nil {
				return err
			}
		}
		if cmd.CheckpointPath != "" && cmd.CheckpointEvery > 0 {
			trainer.EnableCheckpoints(cmd.CheckpointPath, cmd.CheckpointEvery)
		}
		if cmd.ProgressEvery > 0 {
			trainer.SetProgressEvery(cmd.ProgressEvery)
		}
		if cmd.DisableRaises || cmd.MaxRaises > 0 || cmd.Smoke {
			logger.Warn("cannot change abstraction shape when resuming from checkpoint; keeping original")
		}
		trainCfg := trainer.TrainingConfig()
		if mode != trainCfg.Sampling {
			logger.Warn("cannot change sampling mode when resuming from checkpoint; keeping original", "requested", mode, "checkpoint", trainCfg.Sampling)
		}
		logger.Info("resuming training run",
			"iterations", trainCfg.Iterations,
			"resume_iteration", trainer.Iteration(),
			"max_raises", trainCfg.MaxRaisesPerBucket,
			"parallel", trainCfg.ParallelTables,
			"sampling", trainCfg.Sampling.String(),
			"checkpoint", cmd.ResumeFrom,
		)
	} else {
		abs := solver.DefaultAbstraction()
		train := solver.DefaultTrainingConfig()
		if cmd.Config != "" {
			loadedTrain, loadedAbs, err := solver.LoadHCL(cmd.Config)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			train, abs = loadedTrain, loadedAbs
			logger.Info("loaded training config", "path", cmd.Config)
		}

		if cmd.Smoke {
			train.SmallBlind = 1
			train.BigBlind = 2
			train.StartingStack = 50
			abs.MaxRaisesPerBucket = 2
			train.MaxRaisesPerBucket = 2
			logger.Info("applying smoke preset", "stack", 50, "small_blind", 1, "big_blind", 2, "max_raises", 2)
		}

		if cmd.Iterations > 0 {
			train.Iterations = cmd.Iterations
		}
		if cmd.Players > 0 {
			train.Players = cmd.Players
		}
		if cmd.Parallel > 0 {
			train.ParallelTables = cmd.Parallel
		}
		if cmd.Seed != 0 {
			train.Seed = cmd.Seed
		}
		if cmd.SmallBlind > 0 {
			train.SmallBlind = cmd.SmallBlind
		}
		if cmd.BigBlind > 0 {
			train.BigBlind = cmd.BigBlind
		}
		if cmd.Stack > 0 {
			train.StartingStack = cmd.Stack
		}
		if cmd.ProgressEvery > 0 {
			train.ProgressEvery = cmd.ProgressEvery
		}
		if cmd.DisableRaises {
			train.EnableRaises = false
			abs.EnableRaises = false
			abs.BetSizing = nil
			if abs.MaxActionsPerNode < 2 {
				abs.MaxActionsPerNode = 2
			}
			abs.MaxRaisesPerBucket = 0
			train.MaxRaisesPerBucket = 0
		} else if cmd.MaxRaises > 0 {
			abs.MaxRaisesPerBucket = cmd.MaxRaises
			train.MaxRaisesPerBucket = cmd.MaxRaises
		}

		train.UseCFRPlus = cmd.CFRPlus
		train.Sampling = mode

		trainer, err = solver.NewTrainer(abs, train, nil)
		if err != nil {
			return err
		}
		if cmd.CheckpointPath != "" && cmd.CheckpointEvery > 0 {
			trainer.EnableCheckpoints(cmd.CheckpointPath, cmd.CheckpointEvery)
		}
		if cmd.ProgressEvery > 0 {
			trainer.SetProgressEvery(cmd.ProgressEvery)
		}
		logger.Info("starting training run",
			"iterations", train.Iterations,
			"players", train.Players,
			"max_raises", abs.MaxRaisesPerBucket,
			"parallel", train.ParallelTables,
			"cfr_plus", train.UseCFRPlus,
			"sampling", train.Sampling.String(),
		)
	}

	start := time.Now()
	progress := func(p solver.Progress) {
		logger.Info("training progress",
			"iteration", p.Iteration,
			"infosets", p.Infosets,
			"nodes_visited", p.NodesVisited,
			"max_depth", p.MaxDepth,
			"elapsed", p.Elapsed,
		)
	}

	if err := trainer.Run(ctx, progress); err != nil {
		return err
	}

	bp := trainer.Blueprint()
	duration := time.Since(start)
	logger.Info("training completed", "duration", duration, "infosets", len(bp.Strategies))

	if err := bp.Save(cmd.Out); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}
	logger.Info("blueprint saved", "path", cmd.Out)
	return nil
}

func parseSamplingMode(input string) (solver.SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "external":
		return solver.SamplingModeExternal, nil
	case "full":
		return solver.SamplingModeFullTraversal, nil
	default:
		return solver.SamplingModeExternal, fmt.Errorf("unknown sampling mode %q", input)
	}
}

func (cmd *EvalCmd) Run(ctx context.Context, logger *log.Logger) error {
	if cmd.Hands <= 0 {
		return fmt.Errorf("hands must be positive (got %d)", cmd.Hands)
	}
	bp, err := solver.LoadBlueprint(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}

	logger.Info("blueprint loaded",
		"generated", bp.GeneratedAt.Format(time.RFC3339),
		"iterations", bp.Iterations,
		"infosets", len(bp.Strategies),
	)

	opts := evaluationOptions{
		Blueprint:  bp,
		Hands:      cmd.Hands,
		Seed:       cmd.Seed,
		SmallBlind: cmd.SmallBlind,
		BigBlind:   cmd.BigBlind,
		StartStack: cmd.Stack,
		Opponent:   cmd.Opponent,
	}

	res, err := runEvaluation(ctx, opts)
	if err != nil {
		return fmt.Errorf("run evaluation: %w", err)
	}

	logger.Info("evaluation complete", "hands_completed", res.HandsCompleted, "duration", res.Duration)

	for _, p := range res.Players {
		logger.Info("player summary",
			"player", p.Name,
			"bb_per_100", p.BBPer100,
			"bb_per_hand", p.BBPerHand,
			"net_chips", p.NetChips,
			"hands", p.Hands,
		)
	}
	return nil
}
