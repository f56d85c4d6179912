package framework

import (
	"context"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/memory"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/usecase/visualize"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
)

// Mode selects the planner implementation
type Mode string

const (
	ModeAutonomous Mode = "autonomous"
	ModeWorkflow   Mode = "workflow"
)

// ParseMode maps a PLANNER_MODE value to a Mode. Unknown values select the
// autonomous planner.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "workflow", "planning", "planning_agent", "plan":
		return ModeWorkflow
	default:
		return ModeAutonomous
	}
}

// Planner finds at most one new opportunity per cycle. memory holds the
// opportunities already surfaced.
type Planner interface {
	Plan(ctx context.Context, memory []*model.Opportunity) (*model.Opportunity, error)
}

// PlannerFactory builds the planner for mode on top of the shared collection
type PlannerFactory func(ctx context.Context, mode Mode, collection vectorstore.Collection) (Planner, error)

// Framework runs planning cycles against the shared collection and the
// persistent opportunity memory
type Framework struct {
	collection vectorstore.Collection
	memory     *memory.Store
	factory    PlannerFactory
	mode       Mode

	planner Planner
}

type Option func(*Framework)

func WithMode(mode Mode) Option {
	return func(f *Framework) {
		f.mode = mode
	}
}

func New(collection vectorstore.Collection, store *memory.Store, factory PlannerFactory, opts ...Option) *Framework {
	f := &Framework{
		collection: collection,
		memory:     store,
		factory:    factory,
		mode:       ModeAutonomous,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Collection returns the long lived collection handle
func (f *Framework) Collection() vectorstore.Collection {
	return f.collection
}

func (f *Framework) Mode() Mode {
	return f.mode
}

func (f *Framework) getPlanner(ctx context.Context) (Planner, error) {
	if f.planner != nil {
		return f.planner, nil
	}

	logging.From(ctx).Info("initializing planner", "mode", f.mode)
	p, err := f.factory(ctx, f.mode, f.collection)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create planner", goerr.V("mode", f.mode))
	}
	f.planner = p
	return p, nil
}

// RunCycle asks the planner for one opportunity. A new opportunity is
// appended to opps and the whole list is persisted. On any error nothing is
// written.
func (f *Framework) RunCycle(ctx context.Context, opps []*model.Opportunity) ([]*model.Opportunity, error) {
	logger := logging.From(ctx)

	p, err := f.getPlanner(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("starting planning cycle", "known", len(opps))
	result, err := p.Plan(ctx, opps)
	if err != nil {
		return nil, goerr.Wrap(err, "planning cycle failed")
	}

	if result == nil {
		logger.Info("planning cycle found no new opportunity")
		return opps, nil
	}

	if err := result.Validate(); err != nil {
		return nil, goerr.Wrap(err, "planner returned invalid opportunity")
	}

	updated := append(opps[:len(opps):len(opps)], result)
	if err := f.memory.Write(ctx, updated); err != nil {
		return nil, goerr.Wrap(err, "failed to persist opportunity")
	}

	logger.Info("planning cycle found opportunity",
		"url", result.Deal.URL,
		"price", result.Deal.Price,
		"estimate", result.Estimate,
		"discount", result.Discount)

	return updated, nil
}

// Run reads the memory and runs a single cycle on it
func (f *Framework) Run(ctx context.Context) ([]*model.Opportunity, error) {
	opps, err := f.memory.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read memory")
	}
	return f.RunCycle(ctx, opps)
}

// ResetMemory keeps the first keep opportunities and drops the rest
func (f *Framework) ResetMemory(ctx context.Context, keep int) ([]*model.Opportunity, error) {
	opps, err := f.memory.ResetKeepFirst(ctx, keep)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to reset memory", goerr.V("keep", keep))
	}
	return opps, nil
}

// PlotData projects the shared collection to 3-D
func (f *Framework) PlotData(ctx context.Context, maxDatapoints int, opts ...visualize.Option) (*visualize.Plot, error) {
	if maxDatapoints > 0 {
		opts = append([]visualize.Option{visualize.WithMaxDatapoints(maxDatapoints)}, opts...)
	}
	return visualize.Project(ctx, f.collection, opts...)
}
