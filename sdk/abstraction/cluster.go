package abstraction

import (
	"fmt"
	"math"
	"math/rand"

	chd "github.com/opencoff/go-chd"

	"github.com/lox/cfrsolver/poker"
	"github.com/lox/cfrsolver/sdk/analysis"
	"github.com/lox/cfrsolver/sdk/classification"
)

// ochsBuckets is the number of equity-vs-one-random-opponent estimates
// each hand is scored with, the equity feature width. Each entry is an
// independent Monte Carlo estimate of the same equity, not a bucket of a
// histogram of outcomes.
const ochsBuckets = 8

// ClusterMap is an offline-trained mapping from canonical hand index to
// a coarse cluster id (spec C5). The mapping is built once by
// BuildClusters and then queried read-only by every solver iteration, so
// it is backed by a minimal perfect hash rather than a live map.
type ClusterMap struct {
	indexer  *HandIndexer
	hash     *chd.Chd
	clusters []uint16 // cluster id per hash slot
	fallback map[uint64]uint16
}

// Lookup returns the cluster id for the given hole+board combination.
func (cm *ClusterMap) Lookup(hole, board poker.Hand) uint16 {
	idx := cm.indexer.Index(hole, board)
	if cm.hash != nil {
		slot := cm.hash.Find(idx)
		if slot < uint64(len(cm.clusters)) {
			return cm.clusters[slot]
		}
	}
	if cluster, ok := cm.fallback[idx]; ok {
		return cluster
	}
	return 0
}

// handFeatures is the feature vector a hand is clustered on: ochsBuckets
// repeated equity estimates against one random opponent plus
// board-texture/draw features once three or more board cards are present.
type handFeatures struct {
	index    uint64
	equity   [ochsBuckets]float64
	texture  float64
	drawiness float64
}

// BuildClusters trains a ClusterMap offline: it samples `sampleHands`
// canonical hole+board combinations, scores each with ochsBuckets repeated
// equity estimates (plus board-texture/draw features postflop), runs k-means
// over those feature vectors to assign `k` clusters, then compiles the
// resulting index->cluster table into a minimal perfect hash via go-chd.
func BuildClusters(board poker.Hand, k, sampleHands, equitySimulations int, rng *rand.Rand) (*ClusterMap, error) {
	if k <= 0 {
		return nil, fmt.Errorf("abstraction: cluster count must be positive, got %d", k)
	}
	indexer := NewHandIndexer()

	samples, err := sampleCanonicalHands(board, sampleHands, rng)
	if err != nil {
		return nil, err
	}

	features := make([]handFeatures, len(samples))
	for i, hole := range samples {
		features[i] = computeFeatures(indexer, hole, board, equitySimulations, rng)
	}

	assignments := kmeans(features, k, rng)

	fallback := make(map[uint64]uint16, len(features))
	for i, f := range features {
		fallback[f.index] = assignments[i]
	}

	builder, err := chd.New()
	if err != nil {
		return &ClusterMap{indexer: indexer, fallback: fallback}, nil
	}
	for _, f := range features {
		builder.Add(f.index)
	}
	hash, err := builder.Freeze(0.8)
	if err != nil {
		// A degenerate/too-small key set can fail CHD construction; the
		// map-based fallback still answers every query correctly, just
		// without the perfect-hash memory win.
		return &ClusterMap{indexer: indexer, fallback: fallback}, nil
	}

	// CHD places keys in its own slot order, so the cluster table is laid
	// out by the slot each index hashes to rather than by sample order.
	var maxSlot uint64
	for _, f := range features {
		if s := hash.Find(f.index); s > maxSlot {
			maxSlot = s
		}
	}
	clusters := make([]uint16, maxSlot+1)
	for i, f := range features {
		clusters[hash.Find(f.index)] = assignments[i]
	}

	return &ClusterMap{
		indexer:  indexer,
		hash:     hash,
		clusters: clusters,
		fallback: fallback,
	}, nil
}

func sampleCanonicalHands(board poker.Hand, n int, rng *rand.Rand) ([]poker.Hand, error) {
	seen := make(map[poker.Hand]bool, n)
	hands := make([]poker.Hand, 0, n)
	attempts := 0
	maxAttempts := n * 20
	for len(hands) < n && attempts < maxAttempts {
		attempts++
		deck := poker.NewDeck(rng)
		cards := deck.Deal(2)
		hole := poker.NewHand(cards...)
		if hole&board != 0 {
			continue
		}
		if seen[hole] {
			continue
		}
		seen[hole] = true
		hands = append(hands, hole)
	}
	if len(hands) == 0 {
		return nil, fmt.Errorf("abstraction: failed to sample any canonical hands for clustering")
	}
	return hands, nil
}

func computeFeatures(indexer *HandIndexer, hole, board poker.Hand, simulations int, rng *rand.Rand) handFeatures {
	f := handFeatures{index: indexer.Index(hole, board)}

	holeStrs := cardStrings(hole)
	boardStrs := cardStrings(board)
	for opp := 0; opp < ochsBuckets; opp++ {
		result := analysis.CalculateEquity(holeStrs, boardStrs, 1, simulations/ochsBuckets+1, rng)
		f.equity[opp] = result.Equity()
	}

	if board.CountCards() >= 3 {
		texture := classification.AnalyzeBoardTexture(board)
		f.texture = float64(texture)
		draws := classification.DetectDraws(hole, board)
		if draws.HasStrongDraw() {
			f.drawiness = 1.0
		} else if draws.HasWeakDraw() {
			f.drawiness = 0.5
		}
	}
	return f
}

func cardStrings(h poker.Hand) []string {
	cards := h.Cards()
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

// kmeans runs Lloyd's algorithm over the feature vectors using EMD as the
// distance metric between equity feature vectors (plus squared distance on
// the scalar texture/draw features), returning a cluster id per input.
func kmeans(features []handFeatures, k int, rng *rand.Rand) []uint16 {
	n := len(features)
	if k > n {
		k = n
	}
	centroids := make([]handFeatures, k)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		centroids[i] = features[perm[i]]
	}

	assignments := make([]uint16, n)
	const maxIterations = 25
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, f := range features {
			best := 0
			bestDist := featureDistance(f, centroids[0])
			for c := 1; c < k; c++ {
				d := featureDistance(f, centroids[c])
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != uint16(best) {
				assignments[i] = uint16(best)
				changed = true
			}
		}

		sums := make([]handFeatures, k)
		counts := make([]int, k)
		for i, f := range features {
			c := assignments[i]
			counts[c]++
			for b := 0; b < ochsBuckets; b++ {
				sums[c].equity[b] += f.equity[b]
			}
			sums[c].texture += f.texture
			sums[c].drawiness += f.drawiness
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for b := 0; b < ochsBuckets; b++ {
				centroids[c].equity[b] = sums[c].equity[b] / float64(counts[c])
			}
			centroids[c].texture = sums[c].texture / float64(counts[c])
			centroids[c].drawiness = sums[c].drawiness / float64(counts[c])
		}

		if !changed {
			break
		}
	}
	return assignments
}

func featureDistance(a, b handFeatures) float64 {
	dEquity := EMD(a.equity[:], b.equity[:])
	dTexture := a.texture - b.texture
	dDraw := a.drawiness - b.drawiness
	return dEquity + dTexture*dTexture + dDraw*dDraw
}

// EMD computes the 1D Earth Mover's Distance between two equal-length
// vectors as the sum of absolute differences of their running cumulative
// sums, averaged over both argument orders. That distance is symmetric, so
// the average equals either direction alone. No greedy nearest-target
// assignment of mass is made and no invariants are checked.
func EMD(x, y []float64) float64 {
	return (greedyEMD(x, y) + greedyEMD(y, x)) / 2
}

func greedyEMD(from, to []float64) float64 {
	n := len(from)
	src := append([]float64(nil), from...)
	dst := append([]float64(nil), to...)

	total := 0.0
	// Cumulative-distribution-distance formulation of 1D EMD: the work
	// to move mass between histograms equals the sum of absolute
	// differences of the running cumulative sums.
	cumSrc, cumDst := 0.0, 0.0
	for i := 0; i < n; i++ {
		cumSrc += src[i]
		cumDst += dst[i]
		total += math.Abs(cumSrc - cumDst)
	}
	return total
}
