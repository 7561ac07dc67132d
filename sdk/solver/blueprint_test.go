package solver

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadBlueprintRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version-mismatch.json")

	bp := &Blueprint{
		Version:     blueprintFileVersion + 1,
		GeneratedAt: time.Now().UTC(),
		Iterations:  5,
		Abstraction: DefaultAbstraction(),
		Strategies:  map[string][]float64{},
	}

	if err := bp.Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	if _, err := LoadBlueprint(path); err == nil {
		t.Fatalf("expected version mismatch to fail")
	}
}

func TestLoadBlueprintRejectsInvalidAbstraction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid-abstraction.json")

	bp := &Blueprint{
		Version:     blueprintFileVersion,
		GeneratedAt: time.Now().UTC(),
		Iterations:  1,
		Abstraction: AbstractionConfig{
			PreflopBucketCount:  0,
			PostflopBucketCount: 10,
			BetSizing:           []float64{0.5},
			MaxActionsPerNode:   3,
		},
		Strategies: map[string][]float64{},
	}

	if err := bp.Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	if _, err := LoadBlueprint(path); err == nil {
		t.Fatalf("expected abstraction validation to fail")
	}
}

func TestLoadBlueprintRejectsCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupted.json")

	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write corrupted file: %v", err)
	}

	if _, err := LoadBlueprint(path); err == nil {
		t.Fatalf("expected corrupted blueprint to fail")
	}
}

func TestBuildSampledBlueprintBiasesTowardActionOrderEnds(t *testing.T) {
	key := InfoSetKey{Street: StreetFlop, Player: 0, HoleBucket: 1, BoardBucket: 2, PotBucket: 3, ToCallBucket: 0}
	bp := &Blueprint{
		Version:     blueprintFileVersion,
		Abstraction: DefaultAbstraction(),
		Strategies: map[string][]float64{
			key.String(): {0.34, 0.33, 0.33},
		},
	}

	sb := BuildSampledBlueprint(bp)

	unbiased, ok := sb.ActionIndex(key, 0)
	if !ok {
		t.Fatalf("expected unbiased entry for key")
	}
	if unbiased != 0 {
		t.Fatalf("expected unbiased index to match the strategy's argmax, got %d", unbiased)
	}

	foldLeaning, ok := sb.ActionIndex(key, 1)
	if !ok {
		t.Fatalf("expected fold-leaning entry for key")
	}
	if foldLeaning != 0 {
		t.Fatalf("expected fold-leaning index to stay at the low end of the action order, got %d", foldLeaning)
	}

	raiseLeaning, ok := sb.ActionIndex(key, 3)
	if !ok {
		t.Fatalf("expected raise-leaning entry for key")
	}
	if raiseLeaning != 2 {
		t.Fatalf("expected raise-leaning index to move toward the high end of the action order, got %d", raiseLeaning)
	}
}

func TestSampledBlueprintActionIndexMissingKey(t *testing.T) {
	sb := BuildSampledBlueprint(&Blueprint{Strategies: map[string][]float64{}})

	if _, ok := sb.ActionIndex(InfoSetKey{Player: 9}, 0); ok {
		t.Fatalf("expected missing key to report not-found")
	}
}

func TestSampledBlueprintActionIndexClampsOutOfRangeBias(t *testing.T) {
	key := InfoSetKey{Player: 0}
	bp := &Blueprint{Strategies: map[string][]float64{key.String(): {0.1, 0.9}}}
	sb := BuildSampledBlueprint(bp)

	inRange, ok := sb.ActionIndex(key, 0)
	if !ok {
		t.Fatalf("expected entry for key")
	}
	outOfRange, ok := sb.ActionIndex(key, 99)
	if !ok {
		t.Fatalf("expected entry for key")
	}
	if outOfRange != inRange {
		t.Fatalf("expected out-of-range bias offset to degrade to the unbiased entry")
	}
}

func TestSampledBlueprintSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sampled.gob")

	key := InfoSetKey{Street: StreetTurn, Player: 1, HoleBucket: 4}
	bp := &Blueprint{Strategies: map[string][]float64{key.String(): {0.2, 0.5, 0.3}}}
	sb := BuildSampledBlueprint(bp)

	if err := sb.Save(path); err != nil {
		t.Fatalf("save sampled blueprint: %v", err)
	}

	loaded, err := LoadSampledBlueprint(path)
	if err != nil {
		t.Fatalf("load sampled blueprint: %v", err)
	}

	want, _ := sb.ActionIndex(key, 2)
	got, ok := loaded.ActionIndex(key, 2)
	if !ok || got != want {
		t.Fatalf("round-tripped sampled blueprint mismatch: want %d, got %d (ok=%v)", want, got, ok)
	}
}

func TestLoadSampledBlueprintRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sampled-version-mismatch.gob")

	sb := &SampledBlueprint{Version: blueprintFileVersion + 1, Actions: map[string][biasOffsetCount]byte{}}
	if err := sb.Save(path); err != nil {
		t.Fatalf("save sampled blueprint: %v", err)
	}

	if _, err := LoadSampledBlueprint(path); err == nil {
		t.Fatalf("expected version mismatch to fail")
	}
}
