package solver

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"os"
	"time"
)

const blueprintFileVersion = 1

// Blueprint is the lossless C9 variant: the full-precision average
// strategy (spec.md §3 "Lossless blueprint wraps a TreeStorage<f32> of
// average probabilities plus the SolverConfig under which it was
// trained") keyed by InfoSetKey.String() rather than a tree walk, since
// Trainer.Blueprint already flattens RegretTable.Entries() into this
// shape. It is the artifact Trainer.Blueprint produces and Solver::
// frequency-style queries (Blueprint.Strategy, runtime.Policy) read.
type Blueprint struct {
	Version     int                  `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Iterations  int                  `json:"iterations"`
	Abstraction AbstractionConfig    `json:"abstraction"`
	Strategies  map[string][]float64 `json:"strategies"`
}

// Save writes the blueprint to disk as JSON. Persistence format is an
// external-collaborator concern (spec.md §1); JSON is used here only
// because it is the simplest encoding that round-trips this package's
// own types without pulling in a format the spec never names.
func (b *Blueprint) Save(path string) error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if path == "" {
		return errors.New("destination path is required")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// LoadBlueprint reads a blueprint from disk and validates the
// abstraction metadata it was trained under, so a caller can't
// accidentally query a Profile that disagrees with the strategy's own
// action-set shape.
func LoadBlueprint(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bp Blueprint
	if err := json.NewDecoder(f).Decode(&bp); err != nil {
		return nil, err
	}
	if err := bp.Abstraction.Validate(); err != nil {
		return nil, err
	}
	if bp.Version != blueprintFileVersion {
		return nil, errors.New("unsupported blueprint version")
	}
	return &bp, nil
}

// Strategy returns the full-precision average strategy stored for key.
func (b *Blueprint) Strategy(key InfoSetKey) ([]float64, bool) {
	if b == nil {
		return nil, false
	}
	strat, ok := b.Strategies[key.String()]
	return strat, ok
}

// biasOffsetCount mirrors sdk/realtime.Bias's four tendencies (none,
// fold, call, raise). Stored as a bare int here rather than importing
// sdk/realtime's Bias type: sdk/realtime already imports sdk/solver for
// the Blueprint it rolls out under, so the dependency can only flow one
// way, and SampledBlueprint only ever needs the offset as an array
// index.
const biasOffsetCount = 4

// SampledBlueprint is the C9 "sampled (single-action, one-byte)
// blueprint" spec.md §3 describes: for every information set, one byte
// per bias offset recording which index into that infoset's legal
// action set the real-time leaf evaluator should play deterministically,
// instead of resampling the full []float64 average strategy on every
// rollout step. It is derived from a Blueprint, never trained directly.
type SampledBlueprint struct {
	Version int
	// Actions maps an InfoSetKey.String() to one action-index byte per
	// bias offset (index 0 = unbiased/BiasNone, 1 = fold-leaning, 2 =
	// call-leaning, 3 = raise-leaning).
	Actions map[string][biasOffsetCount]byte
}

// BuildSampledBlueprint compresses bp's average strategies into
// SampledBlueprint's one-byte-per-(infoset, bias offset) form. Each
// infoset's legal actions are laid out passive-to-aggressive by
// sdk/state.PokerState.LegalActions (fold first when offered, then
// check/call, then raises in ascending size, all-in last), so biasing
// the chosen index toward the low or high end of that ordering
// approximates a fold- or raise-leaning line without needing each
// action's Kind at compress time; the unbiased and call-leaning offsets
// both resolve to the strategy's single most likely action.
func BuildSampledBlueprint(bp *Blueprint) *SampledBlueprint {
	out := &SampledBlueprint{
		Version: blueprintFileVersion,
		Actions: make(map[string][biasOffsetCount]byte, len(bp.Strategies)),
	}
	for key, strat := range bp.Strategies {
		if len(strat) == 0 {
			continue
		}
		neutral := byte(argmaxIndex(strat))
		var row [biasOffsetCount]byte
		row[0] = neutral
		row[1] = byte(biasedArgmaxIndex(strat, -1))
		row[2] = neutral
		row[3] = byte(biasedArgmaxIndex(strat, +1))
		out.Actions[key] = row
	}
	return out
}

// ActionIndex returns the compressed action-index byte for (key,
// biasOffset), and whether key was present at all. biasOffset is
// clamped into [0, biasOffsetCount) so a caller passing an out-of-range
// offset degrades to the unbiased line rather than panicking.
func (sb *SampledBlueprint) ActionIndex(key InfoSetKey, biasOffset int) (int, bool) {
	if sb == nil {
		return 0, false
	}
	row, ok := sb.Actions[key.String()]
	if !ok {
		return 0, false
	}
	if biasOffset < 0 || biasOffset >= biasOffsetCount {
		biasOffset = 0
	}
	return int(row[biasOffset]), true
}

// Save writes the sampled blueprint to disk with encoding/gob, the
// compact binary encoding that matches a structure whose whole point is
// a byte per entry rather than a human-readable float list.
func (sb *SampledBlueprint) Save(path string) error {
	if sb == nil {
		return errors.New("nil sampled blueprint")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(sb)
}

// LoadSampledBlueprint reads a SampledBlueprint written by Save.
func LoadSampledBlueprint(path string) (*SampledBlueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var sb SampledBlueprint
	if err := gob.NewDecoder(f).Decode(&sb); err != nil {
		return nil, err
	}
	if sb.Version != blueprintFileVersion {
		return nil, errors.New("unsupported sampled blueprint version")
	}
	return &sb, nil
}

func argmaxIndex(strat []float64) int {
	best := 0
	for i, p := range strat {
		if p > strat[best] {
			best = i
		}
	}
	return best
}

// biasedArgmaxIndex finds the strategy's most likely action after
// nudging probability mass toward the low end of the action order
// (dir < 0, approximating a fold-leaning line) or the high end
// (dir > 0, approximating a raise-leaning line). The nudge is a linear
// ramp across the action indices so it never overrides a strategy with
// one clearly dominant action, only breaks ties and near-ties in the
// biased direction.
func biasedArgmaxIndex(strat []float64, dir int) int {
	n := len(strat)
	if n <= 1 {
		return 0
	}
	best := 0
	bestScore := -1.0
	for i, p := range strat {
		ramp := 1.0 + float64(dir)*0.5*float64(i)/float64(n-1)
		score := p * ramp
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}
