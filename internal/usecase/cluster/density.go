package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/intersect-search/intersect/internal/domain"
)

// NoiseLabel marks points the density clusterer could not place in any
// cluster. It is a reserved label, not a valid cluster id.
const NoiseLabel = -1

// clusterDensity partitions 2-D points by density, HDBSCAN-style: mutual
// reachability distances, a minimum spanning tree, and a single-linkage cut
// at the largest edge-weight gap. Components below the minimum cluster size
// become noise. A minimum cluster size the corpus cannot satisfy is a fatal
// configuration error, the same policy as an oversized k-means cluster count.
func clusterDensity(points [][2]float64, minClusterSize int) ([]int, error) {
	n := len(points)
	if minClusterSize < 2 {
		return nil, fmt.Errorf("%w: minimum cluster size %d", domain.ErrClusterConfig, minClusterSize)
	}
	if minClusterSize > n {
		return nil, fmt.Errorf("%w: minimum cluster size %d exceeds %d points",
			domain.ErrClusterConfig, minClusterSize, n)
	}

	core := coreDistances(points, minClusterSize)
	tree := spanningTree(points, core)

	// cut the tree at the largest gap between consecutive edge weights;
	// no meaningful gap means a single cluster
	sort.Slice(tree, func(i, j int) bool { return tree[i].dist < tree[j].dist })
	cut := math.Inf(1)
	bestGap := 0.0
	for i := 1; i < len(tree); i++ {
		if gap := tree[i].dist - tree[i-1].dist; gap > bestGap {
			bestGap = gap
			cut = tree[i].dist
		}
	}

	uf := newUnionFind(n)
	for _, e := range tree {
		if e.dist < cut {
			uf.union(e.from, e.to)
		}
	}

	// components large enough become clusters, the rest is noise
	sizes := make(map[int]int, n)
	for i := 0; i < n; i++ {
		sizes[uf.find(i)]++
	}
	next := 0
	labelOf := make(map[int]int, len(sizes))
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		if sizes[root] < minClusterSize {
			labels[i] = NoiseLabel
			continue
		}
		id, ok := labelOf[root]
		if !ok {
			id = next
			labelOf[root] = id
			next++
		}
		labels[i] = id
	}
	return labels, nil
}

// coreDistances returns each point's distance to its k-th nearest neighbor,
// the density estimate the mutual reachability metric is built on.
func coreDistances(points [][2]float64, k int) []float64 {
	n := len(points)
	core := make([]float64, n)
	dists := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		dists = dists[:0]
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dists = append(dists, math.Sqrt(sqDist(points[i], points[j])))
		}
		sort.Float64s(dists)
		core[i] = dists[minInt(k-1, len(dists)-1)]
	}
	return core
}

// spanningTree builds a minimum spanning tree over the mutual reachability
// graph with Prim's algorithm. mr(a,b) = max(core(a), core(b), d(a,b)).
func spanningTree(points [][2]float64, core []float64) []edge {
	n := len(points)
	inTree := make([]bool, n)
	dist := make([]float64, n)
	parent := make([]int, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		parent[i] = -1
	}
	dist[0] = 0

	tree := make([]edge, 0, n-1)
	for range points {
		best, bestDist := -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !inTree[i] && dist[i] < bestDist {
				best, bestDist = i, dist[i]
			}
		}
		inTree[best] = true
		if parent[best] >= 0 {
			tree = append(tree, edge{from: parent[best], to: best, dist: dist[best]})
		}

		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := math.Sqrt(sqDist(points[best], points[j]))
			mr := math.Max(d, math.Max(core[best], core[j]))
			if mr < dist[j] {
				dist[j] = mr
				parent[j] = best
			}
		}
	}
	return tree
}

type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}
