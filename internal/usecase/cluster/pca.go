package cluster

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/intersect-search/intersect/internal/domain"
)

// projectPCA reduces the point matrix to its first two principal components.
// Deterministic: no randomness beyond the numerically stable SVD underneath.
// Coordinates are mean-centered, matching the usual fit-transform output.
func projectPCA(points [][]float64) ([][2]float64, error) {
	n := len(points)
	d := len(points[0])
	if n < 2 || d < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points and 2 dimensions for PCA, have %dx%d",
			domain.ErrClusterConfig, n, d)
	}

	m := mat.NewDense(n, d, nil)
	for i, p := range points {
		m.SetRow(i, p)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed: %w",
			domain.ErrDegenerateEmbedding)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	centered := centerColumns(m)
	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, 2))

	out := make([][2]float64, n)
	for i := range out {
		out[i][0] = proj.At(i, 0)
		out[i][1] = proj.At(i, 1)
	}
	return out, nil
}

func centerColumns(m *mat.Dense) *mat.Dense {
	n, d := m.Dims()
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, m)
		var sum float64
		for _, v := range col {
			sum += v
		}
		means[j] = sum / float64(n)
	}

	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, m.At(i, j)-means[j])
		}
	}
	return out
}
