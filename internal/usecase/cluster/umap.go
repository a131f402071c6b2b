package cluster

import (
	"math"
	"math/rand"
	"sort"
)

// Manifold layout defaults. Neighborhood size and minimum distance follow
// the reference UMAP defaults and are fixed, not tuned per corpus.
const (
	umapNeighbors   = 15
	umapMinDist     = 0.1
	umapEpochs      = 300
	umapNegSamples  = 5
	umapInitialRate = 1.0
	umapMaxStep     = 4.0
)

// projectUMAP lays the points out in 2-D with a seeded stochastic
// neighbor-graph optimization: attraction along k-nearest-neighbor edges,
// repulsion against negative samples. The layout starts from the PCA
// projection so runs with the same seed are fully reproducible.
func projectUMAP(points [][]float64, seed int64) ([][2]float64, error) {
	n := len(points)

	coords, err := projectPCA(points)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))

	// small jitter breaks exact PCA collinearity
	for i := range coords {
		coords[i][0] += rng.Float64()*1e-4 - 5e-5
		coords[i][1] += rng.Float64()*1e-4 - 5e-5
	}

	edges := knnEdges(points, minInt(umapNeighbors, n-1))
	minDistSq := umapMinDist * umapMinDist

	for epoch := 0; epoch < umapEpochs; epoch++ {
		rate := umapInitialRate * (1 - float64(epoch)/float64(umapEpochs))

		for _, e := range edges {
			i, j := e.from, e.to

			// pull neighbors together until they sit at minimum distance
			dx := coords[j][0] - coords[i][0]
			dy := coords[j][1] - coords[i][1]
			distSq := dx*dx + dy*dy
			if distSq > minDistSq {
				g := clampStep(rate * attractiveGrad(distSq))
				coords[i][0] += g * dx
				coords[i][1] += g * dy
				coords[j][0] -= g * dx
				coords[j][1] -= g * dy
			}

			// push randomly sampled non-neighbors apart
			for s := 0; s < umapNegSamples; s++ {
				k := rng.Intn(n)
				if k == i {
					continue
				}
				dx := coords[k][0] - coords[i][0]
				dy := coords[k][1] - coords[i][1]
				distSq := dx*dx + dy*dy
				g := clampStep(rate * repulsiveGrad(distSq))
				coords[i][0] -= g * dx
				coords[i][1] -= g * dy
			}
		}
	}
	return coords, nil
}

type edge struct {
	from, to int
	dist     float64
}

// knnEdges returns the k-nearest-neighbor edges of every point under
// euclidean distance in the original high-dimensional space.
func knnEdges(points [][]float64, k int) []edge {
	n := len(points)
	edges := make([]edge, 0, n*k)

	dists := make([]edge, 0, n-1)
	for i := 0; i < n; i++ {
		dists = dists[:0]
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dists = append(dists, edge{from: i, to: j, dist: euclidean(points[i], points[j])})
		}
		sort.Slice(dists, func(a, b int) bool { return dists[a].dist < dists[b].dist })
		edges = append(edges, dists[:k]...)
	}
	return edges
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func attractiveGrad(distSq float64) float64 {
	return distSq / (1 + distSq)
}

func repulsiveGrad(distSq float64) float64 {
	return 1 / ((0.001 + distSq) * (1 + distSq))
}

func clampStep(g float64) float64 {
	if g > umapMaxStep {
		return umapMaxStep
	}
	if g < -umapMaxStep {
		return -umapMaxStep
	}
	return g
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
