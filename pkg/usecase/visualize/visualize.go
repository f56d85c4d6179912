package visualize

import (
	"context"
	"math"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/dealscope/pkg/utils/tsne"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMaxDatapoints = 2000
	DefaultMinSamples    = 31
	DefaultPerplexity    = 30
	DefaultSeed          = 42
)

// ErrMisaligned is returned when the store gives back field slices of different lengths
var ErrMisaligned = goerr.New("store returned misaligned results")

// Plot is the 3-D projection of a collection. Documents, Vectors and Colors
// are index aligned.
type Plot struct {
	Documents []string     `json:"documents"`
	Vectors   [][3]float64 `json:"vectors"`
	Colors    []string     `json:"colors"`
}

// Empty returns a plot with no points
func Empty() *Plot {
	return &Plot{
		Documents: []string{},
		Vectors:   [][3]float64{},
		Colors:    []string{},
	}
}

// Len is the number of points
func (x *Plot) Len() int {
	return len(x.Vectors)
}

// Reducer maps n embeddings to n points in 3 dimensions
type Reducer interface {
	Reduce(ctx context.Context, embeddings [][]float32) ([][3]float64, error)
}

// TSNE is the default Reducer
type TSNE struct {
	Perplexity float64
	Seed       uint64
}

// minSamples is the smallest sample count t-SNE accepts for the perplexity
func (x *TSNE) minSamples() int {
	p := x.Perplexity
	if p <= 0 {
		p = DefaultPerplexity
	}
	return int(math.Floor(p)) + 1
}

func (x *TSNE) Reduce(ctx context.Context, embeddings [][]float32) ([][3]float64, error) {
	n := len(embeddings)
	if n == 0 {
		return [][3]float64{}, nil
	}
	d := len(embeddings[0])

	data := make([]float64, 0, n*d)
	for i, e := range embeddings {
		if len(e) != d {
			return nil, goerr.New("embedding dimensions differ",
				goerr.V("index", i), goerr.V("expected", d), goerr.V("actual", len(e)))
		}
		for _, v := range e {
			data = append(data, float64(v))
		}
	}

	y, err := tsne.Embed(ctx, mat.NewDense(n, d, data), tsne.Options{
		Dims:       3,
		Perplexity: x.Perplexity,
		Seed:       x.Seed,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run t-SNE")
	}

	out := make([][3]float64, n)
	for i := range n {
		out[i] = [3]float64{y.At(i, 0), y.At(i, 1), y.At(i, 2)}
	}
	return out, nil
}

type config struct {
	maxDatapoints int
	minSamples    int
	reducer       Reducer
}

type Option func(*config)

// WithMaxDatapoints caps how many records are read from the store
func WithMaxDatapoints(n int) Option {
	return func(c *config) {
		c.maxDatapoints = n
	}
}

// WithMinSamples sets the smallest record count that is projected
func WithMinSamples(n int) Option {
	return func(c *config) {
		c.minSamples = n
	}
}

func WithReducer(r Reducer) Option {
	return func(c *config) {
		c.reducer = r
	}
}

// Project reads up to max datapoints from the collection and reduces their
// embeddings to 3-D. Fewer than min samples gives Empty().
func Project(ctx context.Context, coll vectorstore.Collection, opts ...Option) (*Plot, error) {
	cfg := config{
		maxDatapoints: DefaultMaxDatapoints,
		minSamples:    DefaultMinSamples,
		reducer:       &TSNE{Perplexity: DefaultPerplexity, Seed: DefaultSeed},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if t, ok := cfg.reducer.(*TSNE); ok {
		cfg.minSamples = max(cfg.minSamples, t.minSamples())
	}

	res, err := coll.Get(ctx, vectorstore.GetOptions{
		Include: vectorstore.IncludeAll,
		Limit:   cfg.maxDatapoints,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read collection", goerr.V("collection", coll.Name()))
	}

	n := len(res.Embeddings)
	if n == 0 || n < cfg.minSamples {
		logging.From(ctx).Info("not enough samples to plot",
			"collection", coll.Name(),
			"samples", n,
			"min_samples", cfg.minSamples)
		return Empty(), nil
	}

	if len(res.Documents) != n || len(res.Metadatas) != n {
		return nil, goerr.Wrap(ErrMisaligned, "cannot project collection",
			goerr.V("embeddings", n),
			goerr.V("documents", len(res.Documents)),
			goerr.V("metadatas", len(res.Metadatas)))
	}

	vectors, err := cfg.reducer.Reduce(ctx, res.Embeddings)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to reduce embeddings")
	}
	if len(vectors) != n {
		return nil, goerr.Wrap(ErrMisaligned, "reducer returned wrong number of points",
			goerr.V("expected", n), goerr.V("actual", len(vectors)))
	}

	colors := make([]string, n)
	for i, m := range res.Metadatas {
		colors[i] = model.ColorOf(m.Category)
	}

	return &Plot{
		Documents: res.Documents,
		Vectors:   vectors,
		Colors:    colors,
	}, nil
}
