package pricing

import (
	"context"
	"os"

	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFrontierWeight   = 0.8
	DefaultSpecialistWeight = 0.2
)

// Weights are the linear coefficients applied to each estimator
type Weights struct {
	Frontier   float64 `yaml:"frontier"`
	Specialist float64 `yaml:"specialist"`
}

// DefaultWeights returns 0.8 frontier + 0.2 specialist
func DefaultWeights() Weights {
	return Weights{
		Frontier:   DefaultFrontierWeight,
		Specialist: DefaultSpecialistWeight,
	}
}

// LoadWeights reads weights from a YAML file with "frontier" and
// "specialist" keys. Missing keys keep their default.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()

	raw, err := os.ReadFile(path)
	if err != nil {
		return w, goerr.Wrap(err, "failed to read weights file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return w, goerr.Wrap(err, "failed to parse weights file", goerr.V("path", path))
	}
	if w.Frontier < 0 || w.Specialist < 0 {
		return w, goerr.New("weights must be non-negative", goerr.V("path", path), goerr.V("weights", w))
	}
	return w, nil
}

// Ensemble combines a specialist and a frontier estimate with fixed weights
type Ensemble struct {
	preprocessor Preprocessor
	specialist   Estimator
	frontier     Estimator
	weights      Weights
}

var _ Estimator = (*Ensemble)(nil)

// EnsembleOption is a functional option for Ensemble
type EnsembleOption func(*Ensemble)

// WithPreprocessor sets the rewrite step. The default passes text through.
func WithPreprocessor(p Preprocessor) EnsembleOption {
	return func(e *Ensemble) {
		e.preprocessor = p
	}
}

// WithWeights replaces the default weights
func WithWeights(w Weights) EnsembleOption {
	return func(e *Ensemble) {
		e.weights = w
	}
}

// NewEnsemble creates an Ensemble
func NewEnsemble(specialist, frontier Estimator, opts ...EnsembleOption) *Ensemble {
	e := &Ensemble{
		preprocessor: PassThrough{},
		specialist:   specialist,
		frontier:     frontier,
		weights:      DefaultWeights(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Price returns frontier*w.Frontier + specialist*w.Specialist for the
// preprocessed description. Any failure aborts the estimate.
func (e *Ensemble) Price(ctx context.Context, description string) (float64, error) {
	logger := logging.From(ctx)

	rewrite, err := e.preprocessor.Preprocess(ctx, description)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to preprocess description")
	}

	specialist, err := e.specialist.Price(ctx, rewrite)
	if err != nil {
		return 0, goerr.Wrap(err, "specialist estimate failed")
	}

	frontier, err := e.frontier.Price(ctx, rewrite)
	if err != nil {
		return 0, goerr.Wrap(err, "frontier estimate failed")
	}

	combined := frontier*e.weights.Frontier + specialist*e.weights.Specialist
	logger.Info("ensemble estimate",
		"specialist", specialist,
		"frontier", frontier,
		"combined", combined)

	return combined, nil
}
