// Package cluster projects corpus embeddings to 2-D and partitions them for
// the exploratory neighborhood visualization, with the query injected as a
// synthetic point.
package cluster

import (
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
)

// Visualization sentinels. The synthetic point participates in projection
// and clustering like any record but is never scored, and its surfaced label
// is always the reserved "you" marker.
const (
	SyntheticTitle = "Your text"
	LabelYou       = "you"
	labelNoise     = "noise"
)

// Projection selects the dimensionality reduction algorithm.
type Projection string

const (
	ProjectionPCA  Projection = "pca"
	ProjectionUMAP Projection = "umap"
)

// Method selects the clustering algorithm.
type Method string

const (
	MethodKMeans  Method = "kmeans"
	MethodDensity Method = "density"
)

// Options configures one projection-and-clustering pass.
type Options struct {
	Projection     Projection
	Method         Method
	Clusters       int   // centroid clustering only
	MinClusterSize int   // density clustering only
	Seed           int64 // drives every stochastic step
}

// defaults fills unset options. The defaults are fixed, not tuned per corpus.
func (o Options) defaults() Options {
	if o.Projection == "" {
		o.Projection = ProjectionPCA
	}
	if o.Method == "" {
		o.Method = MethodKMeans
	}
	if o.Clusters == 0 {
		o.Clusters = 3
	}
	if o.MinClusterSize == 0 {
		o.MinClusterSize = 5
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

// Point is one projected record as surfaced to the visualization layer.
type Point struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// Result is the outcome of one projection-and-clustering pass.
type Result struct {
	// Points carries the surfaced copy, query point last with the "you"
	// label overwritten.
	Points []Point
	// Assignments are the raw cluster labels in point order, query point
	// last with the label the algorithm actually assigned. Cluster
	// statistics must come from here, never from the surfaced copy.
	Assignments []int
	// Clusters counts distinct valid clusters, noise excluded.
	Clusters int
}

// Service runs the projection and clustering subsystem.
type Service struct {
	logger *zap.Logger
}

// New creates the visualization service.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// ProjectAndCluster appends the query as a synthetic point, projects the
// augmented embedding matrix to 2-D, and partitions the result. Degenerate
// embeddings and cluster parameters the corpus cannot satisfy abort with an
// error; NaN never propagates into coordinates silently.
func (s *Service) ProjectAndCluster(c domain.Corpus, q domain.Query, opts Options) (Result, error) {
	opts = opts.defaults()

	dim, ok := c.EmbeddingDim()
	if !ok {
		return Result{}, fmt.Errorf("corpus: %w", domain.ErrMissingEmbedding)
	}
	qv := q.Embedding()
	if len(qv) == 0 {
		return Result{}, fmt.Errorf("query: %w", domain.ErrMissingEmbedding)
	}
	if len(qv) != dim {
		return Result{}, fmt.Errorf("query dim %d, corpus dim %d: %w",
			len(qv), dim, domain.ErrVectorDimMismatch)
	}

	// synthetic query point goes last
	points := make([][]float64, 0, len(c)+1)
	for i := range c {
		v, err := toFinite(c[i].Embedding())
		if err != nil {
			return Result{}, fmt.Errorf("record %s: %w", c[i].ID(), err)
		}
		points = append(points, v)
	}
	queryPoint, err := toFinite(qv)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	points = append(points, queryPoint)

	var coords [][2]float64
	switch opts.Projection {
	case ProjectionPCA:
		coords, err = projectPCA(points)
	case ProjectionUMAP:
		coords, err = projectUMAP(points, opts.Seed)
	default:
		return Result{}, fmt.Errorf("%w: unknown projection %q", domain.ErrClusterConfig, opts.Projection)
	}
	if err != nil {
		return Result{}, err
	}

	var labels []int
	switch opts.Method {
	case MethodKMeans:
		labels, err = clusterKMeans(coords, opts.Clusters, opts.Seed)
	case MethodDensity:
		labels, err = clusterDensity(coords, opts.MinClusterSize)
	default:
		return Result{}, fmt.Errorf("%w: unknown clustering method %q", domain.ErrClusterConfig, opts.Method)
	}
	if err != nil {
		return Result{}, err
	}

	distinct := make(map[int]bool)
	for _, l := range labels {
		if l != NoiseLabel {
			distinct[l] = true
		}
	}

	out := Result{
		Assignments: labels,
		Clusters:    len(distinct),
		Points:      make([]Point, len(coords)),
	}
	for i := range c {
		out.Points[i] = Point{
			ID:    c[i].ID(),
			Title: c[i].Title(),
			X:     coords[i][0],
			Y:     coords[i][1],
			Label: labelString(labels[i]),
		}
	}
	// the overwrite happens only on the surfaced copy; Assignments keeps
	// the label the algorithm assigned
	last := len(coords) - 1
	out.Points[last] = Point{
		Title: SyntheticTitle,
		X:     coords[last][0],
		Y:     coords[last][1],
		Label: LabelYou,
	}

	s.logger.Debug("projection and clustering complete",
		zap.Int("points", len(coords)),
		zap.String("projection", string(opts.Projection)),
		zap.String("method", string(opts.Method)),
		zap.Int("clusters", out.Clusters),
	)
	return out, nil
}

func labelString(label int) string {
	if label == NoiseLabel {
		return labelNoise
	}
	return strconv.Itoa(label)
}

// toFinite widens to float64 and rejects NaN or Inf components.
func toFinite(v []float32) ([]float64, error) {
	out := make([]float64, len(v))
	for i, f := range v {
		d := float64(f)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("component %d: %w", i, domain.ErrDegenerateEmbedding)
		}
		out[i] = d
	}
	return out, nil
}
