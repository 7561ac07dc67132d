package solver

import (
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// hclFile is the on-disk shape of a training config, decoded with
// hclsimple the way the teacher's internal/client and internal/server
// packages decoded their connection configs — repurposed here from
// wiring config to solver training config.
type hclFile struct {
	Iterations          int      `hcl:"iterations"`
	Players             int      `hcl:"players"`
	Seed                int64    `hcl:"seed,optional"`
	ParallelTables      int      `hcl:"parallel_tables,optional"`
	CheckpointEveryMins int      `hcl:"checkpoint_every_mins,optional"`
	ProgressEvery       int      `hcl:"progress_every,optional"`
	SmallBlind          int      `hcl:"small_blind"`
	BigBlind            int      `hcl:"big_blind"`
	StartingStack       int      `hcl:"starting_stack"`
	EnableRaises        bool     `hcl:"enable_raises,optional"`
	MaxRaisesPerBucket  int      `hcl:"max_raises_per_bucket,optional"`
	AdaptiveRaiseVisits int      `hcl:"adaptive_raise_visits,optional"`
	UseCFRPlus          bool     `hcl:"use_cfr_plus,optional"`
	UseDCFR             bool     `hcl:"use_dcfr,optional"`
	PruneThreshold      int      `hcl:"prune_threshold,optional"`
	PruneProbability    float64  `hcl:"prune_probability,optional"`
	DiscountInterval    int      `hcl:"discount_interval,optional"`
	InitRanges          []string `hcl:"init_ranges,optional"`

	PreflopBucketCount  int       `hcl:"preflop_bucket_count"`
	PostflopBucketCount int       `hcl:"postflop_bucket_count"`
	BetSizing           []float64 `hcl:"bet_sizing,optional"`
	MaxActionsPerNode   int       `hcl:"max_actions_per_node,optional"`
}

// LoadHCL reads a human-editable HCL training config from path, the
// counterpart to the teacher's internal/client/config.go hclsimple.DecodeFile
// call, producing a validated TrainingConfig/AbstractionConfig pair.
func LoadHCL(path string) (TrainingConfig, AbstractionConfig, error) {
	var f hclFile
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return TrainingConfig{}, AbstractionConfig{}, NewSolverError(ErrConfiguration, "decode hcl config: %w", err)
	}

	abs := AbstractionConfig{
		PreflopBucketCount:  f.PreflopBucketCount,
		PostflopBucketCount: f.PostflopBucketCount,
		BetSizing:           f.BetSizing,
		MaxActionsPerNode:   f.MaxActionsPerNode,
		EnableRaises:        f.EnableRaises,
		MaxRaisesPerBucket:  f.MaxRaisesPerBucket,
	}
	if abs.MaxActionsPerNode == 0 {
		abs.MaxActionsPerNode = 8
	}

	train := TrainingConfig{
		Iterations:          f.Iterations,
		Players:             f.Players,
		Seed:                f.Seed,
		ParallelTables:      f.ParallelTables,
		CheckpointEvery:     time.Duration(f.CheckpointEveryMins) * time.Minute,
		ProgressEvery:       f.ProgressEvery,
		SmallBlind:          f.SmallBlind,
		BigBlind:            f.BigBlind,
		StartingStack:       f.StartingStack,
		EnableRaises:        f.EnableRaises,
		MaxRaisesPerBucket:  f.MaxRaisesPerBucket,
		AdaptiveRaiseVisits: f.AdaptiveRaiseVisits,
		UseCFRPlus:          f.UseCFRPlus,
		Sampling:            SamplingModeExternal,
		UseDCFR:             f.UseDCFR,
		PruneThreshold:      f.PruneThreshold,
		PruneProbability:    f.PruneProbability,
		DiscountInterval:    f.DiscountInterval,
		InitRanges:          f.InitRanges,
	}
	if train.ParallelTables == 0 {
		train.ParallelTables = 1
	}

	if err := abs.Validate(); err != nil {
		return train, abs, NewSolverError(ErrConfiguration, "abstraction config: %w", err)
	}
	if err := train.Validate(); err != nil {
		return train, abs, NewSolverError(ErrConfiguration, "training config: %w", err)
	}
	return train, abs, nil
}
