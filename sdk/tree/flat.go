package tree

import (
	"fmt"
	"hash/fnv"

	chd "github.com/opencoff/go-chd"
)

// keyHash maps a string key to the uint64 space go-chd's CHD builder
// operates on.
func keyHash(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}

// FlatStorage is the dense alternative to the lock-free Node tree (spec
// §4.3): for abstractions small enough to enumerate every information
// set offline (the canonical case being a preflop-only blueprint), every
// infoset is pre-assigned a slot and a minimal perfect hash (go-chd)
// maps each serialized ActionHistory key straight to its slot, so there
// is no lazy tree growth to synchronize at all during training.
type FlatStorage struct {
	hash       *chd.Chd
	fallback   map[string]int
	numActions []int
	regretSum  [][]cell
	strategy   [][]cell
}

// BuildFlatStorage compiles a FlatStorage from every (key, numActions)
// pair the caller has enumerated in advance. keys must be unique.
func BuildFlatStorage(keys []string, numActions []int) (*FlatStorage, error) {
	if len(keys) != len(numActions) {
		return nil, fmt.Errorf("tree: keys and numActions length mismatch (%d vs %d)", len(keys), len(numActions))
	}

	fs := &FlatStorage{
		fallback:   make(map[string]int, len(keys)),
		numActions: append([]int(nil), numActions...),
		regretSum:  make([][]cell, len(keys)),
		strategy:   make([][]cell, len(keys)),
	}
	for i, n := range numActions {
		fs.regretSum[i] = make([]cell, n)
		fs.strategy[i] = make([]cell, n)
	}
	for i, k := range keys {
		fs.fallback[k] = i
	}

	builder, err := chd.New()
	if err != nil {
		return fs, nil
	}
	for _, k := range keys {
		builder.Add(keyHash(k))
	}
	hash, err := builder.Freeze(0.8)
	if err != nil {
		// Degenerate key sets (too few entries) can fail CHD
		// construction; the map fallback still answers correctly.
		return fs, nil
	}
	fs.hash = hash
	return fs, nil
}

// Slot returns the storage slot for key, or -1 if unknown.
func (fs *FlatStorage) Slot(key string) int {
	if fs.hash != nil {
		slot := fs.hash.Find(keyHash(key))
		if slot < uint64(len(fs.numActions)) {
			return int(slot)
		}
	}
	if slot, ok := fs.fallback[key]; ok {
		return slot
	}
	return -1
}

// Strategy returns the regret-matching strategy for the given slot.
func (fs *FlatStorage) Strategy(slot int) []float64 {
	n := fs.numActions[slot]
	strategy := make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		r := fs.regretSum[slot][i].load()
		if r > 0 {
			strategy[i] = r
			total += r
		}
	}
	if total <= 0 {
		uniform := 1.0 / float64(n)
		for i := range strategy {
			strategy[i] = uniform
		}
		return strategy
	}
	for i := range strategy {
		strategy[i] /= total
	}
	return strategy
}

// AverageStrategy returns the normalized strategy-sum for the given slot.
func (fs *FlatStorage) AverageStrategy(slot int) []float64 {
	n := fs.numActions[slot]
	avg := make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		avg[i] = fs.strategy[slot][i].load()
		total += avg[i]
	}
	if total <= 0 {
		uniform := 1.0 / float64(n)
		for i := range avg {
			avg[i] = uniform
		}
		return avg
	}
	for i := range avg {
		avg[i] /= total
	}
	return avg
}

// AccumulateRegret adds instantaneous regret into the given slot.
func (fs *FlatStorage) AccumulateRegret(slot int, regrets []float64, discount float64, clampNegative bool) {
	cells := fs.regretSum[slot]
	for i, r := range regrets {
		if discount != 1 {
			cells[i].store(cells[i].load()*discount + r)
		} else {
			cells[i].add(r)
		}
		if clampNegative && cells[i].load() < 0 {
			cells[i].store(0)
		}
	}
}

// AccumulateStrategy adds reachWeight*strategy[i] into the slot's
// running average-strategy total.
func (fs *FlatStorage) AccumulateStrategy(slot int, strategy []float64, reachWeight, discount float64) {
	cells := fs.strategy[slot]
	for i, p := range strategy {
		if discount != 1 {
			cells[i].store(cells[i].load()*discount + p*reachWeight)
		} else {
			cells[i].add(p * reachWeight)
		}
	}
}

// NumSlots returns how many information sets this storage holds.
func (fs *FlatStorage) NumSlots() int {
	return len(fs.numActions)
}
