package solver

import "math/rand"

// PCG32 backs Trainer.singleIteration's per-table deck RNG (spec.md §5:
// "at each iteration a worker picks a traverser seat ... and runs one
// traversal to completion"; every parallel table needs its own stream
// so two tables dealing in the same iteration never draw the same
// shuffle). PCG-XSH-RR, 64-bit state and 32-bit output: small enough to
// allocate one per goroutine per iteration without the GC pressure
// math/rand's default source would add at this call volume.
type PCG32 struct {
	state uint64
}

// NewPCG32 creates a new PCG32 RNG with the given seed.
func NewPCG32(seed int64) *PCG32 {
	return &PCG32{state: uint64(seed)*2 + 1}
}

// InitSeed reinitializes with a new seed (avoids allocation).
func (r *PCG32) InitSeed(seed int64) {
	r.state = uint64(seed)*2 + 1
}

// Uint32 generates a random uint32.
func (r *PCG32) Uint32() uint32 {
	oldstate := r.state
	r.state = oldstate*6364136223846793005 + 1442695040888963407
	xorshifted := uint32(((oldstate >> 18) ^ oldstate) >> 27)
	rot := uint32(oldstate >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// Intn returns a random int in [0, n).
func (r *PCG32) Intn(n int) int {
	return int(r.Uint32() % uint32(n))
}

// wrapperSource adapts PCG32 to the math/rand.Source interface so deck
// shuffling can keep using *rand.Rand's Shuffle/Deal helpers.
type wrapperSource struct {
	rng *PCG32
}

func (w *wrapperSource) Int63() int64 {
	return int64(w.rng.Uint32())<<31 | int64(w.rng.Uint32())
}

func (w *wrapperSource) Seed(seed int64) {
	w.rng = NewPCG32(seed)
}

// NewFastRand creates a math/rand.Rand backed by PCG32.
func NewFastRand(seed int64) *rand.Rand {
	return rand.New(&wrapperSource{rng: NewPCG32(seed)})
}

// TableSeed derives a deterministic per-table, per-iteration seed from
// a trainer's base seed, the quantity Trainer.singleIteration needs so
// every (iteration, table) pair gets an independent deck-shuffle stream
// while a fixed base seed still reproduces the same run exactly (spec.md
// §8: "a fixed-seed blueprint solve for K iterations with W workers is
// deterministic per seat modulo external-sampling RNG draws").
func TableSeed(base int64, iteration, table int) int64 {
	return base ^ int64(iteration)<<20 ^ int64(table)
}
