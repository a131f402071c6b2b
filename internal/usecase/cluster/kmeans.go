package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/intersect-search/intersect/internal/domain"
)

const kmeansMaxIter = 100

// clusterKMeans partitions 2-D points into k groups with seeded k-means++
// initialization and Lloyd iterations. Same seed, same assignment.
func clusterKMeans(points [][2]float64, k int, seed int64) ([]int, error) {
	n := len(points)
	if k < 1 {
		return nil, fmt.Errorf("%w: cluster count %d", domain.ErrClusterConfig, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: %d clusters requested for %d points", domain.ErrClusterConfig, k, n)
	}

	rng := rand.New(rand.NewSource(seed))
	centers := seedCenters(points, k, rng)
	labels := make([]int, n)

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCenter(p, centers)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// recompute centers; an emptied cluster grabs the point farthest
		// from its current center
		sums := make([][2]float64, k)
		counts := make([]int, k)
		for i, p := range points {
			sums[labels[i]][0] += p[0]
			sums[labels[i]][1] += p[1]
			counts[labels[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				far := farthestPoint(points, labels, centers)
				centers[c] = points[far]
				labels[far] = c
				continue
			}
			centers[c][0] = sums[c][0] / float64(counts[c])
			centers[c][1] = sums[c][1] / float64(counts[c])
		}
	}
	return labels, nil
}

// seedCenters picks initial centers with k-means++: first uniformly, then
// proportional to squared distance from the nearest chosen center.
func seedCenters(points [][2]float64, k int, rng *rand.Rand) [][2]float64 {
	centers := make([][2]float64, 0, k)
	centers = append(centers, points[rng.Intn(len(points))])

	weights := make([]float64, len(points))
	for len(centers) < k {
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centers {
				d = math.Min(d, sqDist(p, c))
			}
			weights[i] = d
			total += d
		}
		if total == 0 {
			// all remaining points coincide with a center
			centers = append(centers, points[rng.Intn(len(points))])
			continue
		}
		target := rng.Float64() * total
		for i, w := range weights {
			target -= w
			if target <= 0 {
				centers = append(centers, points[i])
				break
			}
		}
	}
	return centers
}

func nearestCenter(p [2]float64, centers [][2]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(p, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthestPoint(points [][2]float64, labels []int, centers [][2]float64) int {
	best, bestDist := 0, -1.0
	for i, p := range points {
		if d := sqDist(p, centers[labels[i]]); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sqDist(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}
