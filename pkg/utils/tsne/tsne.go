// Package tsne implements exact t-distributed stochastic neighbor embedding.
// Every iteration is O(n²), which is fine for the few thousand points a plot
// holds.
package tsne

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/m-mizutani/goerr/v2"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrTooFewSamples means the sample count does not exceed the perplexity
	ErrTooFewSamples = goerr.New("number of samples must be greater than perplexity")
)

// Init selects how the low dimensional points start
type Init string

const (
	InitPCA    Init = "pca"
	InitRandom Init = "random"
)

const (
	exaggerationIters = 250
	initialMomentum   = 0.5
	finalMomentum     = 0.8
	minGain           = 0.01
	perplexityTol     = 1e-5
	perplexitySteps   = 100
	initScale         = 1e-4
	checkInterval     = 50
)

// Options control the embedding. Zero values take the defaults noted.
type Options struct {
	Dims              int     // 3
	Perplexity        float64 // 30
	LearningRate      float64 // max(n/EarlyExaggeration/4, 50)
	MaxIter           int     // 1000
	EarlyExaggeration float64 // 12
	Seed              uint64  // 42
	Init              Init    // pca
}

func (o *Options) setDefaults(n int) {
	if o.Dims <= 0 {
		o.Dims = 3
	}
	if o.Perplexity <= 0 {
		o.Perplexity = 30
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 1000
	}
	if o.EarlyExaggeration <= 0 {
		o.EarlyExaggeration = 12
	}
	if o.LearningRate <= 0 {
		o.LearningRate = math.Max(float64(n)/o.EarlyExaggeration/4, 50)
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	if o.Init == "" {
		o.Init = InitPCA
	}
}

// Embed maps the rows of x to opts.Dims dimensions. The same input and
// options always give the same output.
func Embed(ctx context.Context, x mat.Matrix, opts Options) (*mat.Dense, error) {
	n, _ := x.Dims()
	opts.setDefaults(n)

	if float64(n) <= opts.Perplexity {
		return nil, goerr.Wrap(ErrTooFewSamples, "cannot embed",
			goerr.V("samples", n), goerr.V("perplexity", opts.Perplexity))
	}

	p := jointProbabilities(squaredDistances(x), opts.Perplexity)
	y := initialSolution(x, opts)

	if err := optimize(ctx, p, y, opts); err != nil {
		return nil, err
	}

	return mat.NewDense(n, opts.Dims, y), nil
}

// squaredDistances returns the n×n squared euclidean distance matrix, row major
func squaredDistances(x mat.Matrix) []float64 {
	n, d := x.Dims()
	dist := make([]float64, n*n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			var s float64
			for k := range d {
				diff := x.At(i, k) - x.At(j, k)
				s += diff * diff
			}
			dist[i*n+j] = s
			dist[j*n+i] = s
		}
	}
	return dist
}

// jointProbabilities returns the symmetric affinity matrix P, calibrating a
// gaussian per point so its conditional distribution has the given perplexity
func jointProbabilities(dist []float64, perplexity float64) []float64 {
	n := int(math.Sqrt(float64(len(dist))))
	cond := make([]float64, n*n)
	target := math.Log(perplexity)

	for i := range n {
		row := dist[i*n : (i+1)*n]
		out := cond[i*n : (i+1)*n]

		minDist := math.Inf(1)
		for j, v := range row {
			if j != i && v < minDist {
				minDist = v
			}
		}

		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for range perplexitySteps {
			var sum, weighted float64
			for j, v := range row {
				if j == i {
					out[j] = 0
					continue
				}
				shifted := v - minDist
				pj := math.Exp(-shifted * beta)
				out[j] = pj
				sum += pj
				weighted += shifted * pj
			}

			entropy := math.Log(sum) + beta*weighted/sum
			for j := range out {
				out[j] /= sum
			}

			diff := entropy - target
			if math.Abs(diff) < perplexityTol {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
	}

	p := make([]float64, n*n)
	denom := 2 * float64(n)
	for i := range n {
		for j := range n {
			v := (cond[i*n+j] + cond[j*n+i]) / denom
			p[i*n+j] = math.Max(v, 1e-12)
		}
		p[i*n+i] = 0
	}
	return p
}

// initialSolution returns n×dims starting points, row major, with the first
// coordinate scaled to standard deviation 1e-4
func initialSolution(x mat.Matrix, opts Options) []float64 {
	n, d := x.Dims()
	dims := opts.Dims

	if opts.Init == InitPCA && d >= dims && n > dims {
		if y, ok := pcaProjection(x, dims); ok {
			return y
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	y := make([]float64, n*dims)
	for i := range y {
		y[i] = rng.NormFloat64() * initScale
	}
	return y
}

func pcaProjection(x mat.Matrix, dims int) ([]float64, bool) {
	n, d := x.Dims()

	var pc stat.PC
	if !pc.PrincipalComponents(x, nil) {
		return nil, false
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	if _, c := vecs.Dims(); c < dims {
		return nil, false
	}

	centered := mat.NewDense(n, d, nil)
	centered.Copy(x)
	for k := range d {
		col := mat.Col(nil, k, centered)
		mean := stat.Mean(col, nil)
		for i := range n {
			centered.Set(i, k, centered.At(i, k)-mean)
		}
	}

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, dims))

	std := stat.StdDev(mat.Col(nil, 0, &proj), nil)
	if std == 0 || math.IsNaN(std) {
		return nil, false
	}

	y := make([]float64, n*dims)
	for i := range n {
		for k := range dims {
			y[i*dims+k] = proj.At(i, k) / std * initScale
		}
	}
	return y, true
}

func optimize(ctx context.Context, p, y []float64, opts Options) error {
	dims := opts.Dims
	n := len(y) / dims

	grad := make([]float64, len(y))
	update := make([]float64, len(y))
	gains := make([]float64, len(y))
	for i := range gains {
		gains[i] = 1
	}
	num := make([]float64, n*n)

	for iter := range opts.MaxIter {
		if iter%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return goerr.Wrap(err, "embedding interrupted", goerr.V("iteration", iter))
			}
		}

		exaggeration, momentum := 1.0, finalMomentum
		if iter < exaggerationIters {
			exaggeration, momentum = opts.EarlyExaggeration, initialMomentum
		}

		// Student-t kernel between every pair of points
		var sumQ float64
		for i := range n {
			for j := i + 1; j < n; j++ {
				var s float64
				for k := range dims {
					diff := y[i*dims+k] - y[j*dims+k]
					s += diff * diff
				}
				q := 1 / (1 + s)
				num[i*n+j] = q
				num[j*n+i] = q
				sumQ += 2 * q
			}
		}
		sumQ = math.Max(sumQ, 1e-12)

		for i := range grad {
			grad[i] = 0
		}
		for i := range n {
			for j := range n {
				if i == j {
					continue
				}
				q := num[i*n+j]
				mult := (exaggeration*p[i*n+j] - q/sumQ) * q
				for k := range dims {
					grad[i*dims+k] += 4 * mult * (y[i*dims+k] - y[j*dims+k])
				}
			}
		}

		for i := range y {
			if grad[i]*update[i] < 0 {
				gains[i] += 0.2
			} else {
				gains[i] *= 0.8
			}
			gains[i] = math.Max(gains[i], minGain)

			update[i] = momentum*update[i] - opts.LearningRate*gains[i]*grad[i]
			y[i] += update[i]
		}

		// keep the solution centered
		for k := range dims {
			var mean float64
			for i := range n {
				mean += y[i*dims+k]
			}
			mean /= float64(n)
			for i := range n {
				y[i*dims+k] -= mean
			}
		}
	}

	return nil
}
