package framework_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/memory"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/usecase/framework"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	vsmemory "github.com/m-mizutani/dealscope/pkg/vectorstore/memory"
	"github.com/m-mizutani/gt"
)

type mockPlanner struct {
	plan func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error)
}

func (m *mockPlanner) Plan(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
	return m.plan(ctx, opps)
}

func setup(t *testing.T, planner framework.Planner, opts ...framework.Option) (*framework.Framework, *memory.Store, *int) {
	t.Helper()
	coll, err := vsmemory.New().Collection(context.Background(), "products")
	gt.NoError(t, err)

	store := memory.New(memory.NewFile(filepath.Join(t.TempDir(), "memory.json")))

	var created int
	factory := func(ctx context.Context, mode framework.Mode, c vectorstore.Collection) (framework.Planner, error) {
		created++
		return planner, nil
	}

	return framework.New(coll, store, factory, opts...), store, &created
}

func TestParseMode(t *testing.T) {
	testCases := map[string]framework.Mode{
		"workflow":       framework.ModeWorkflow,
		"planning":       framework.ModeWorkflow,
		"planning_agent": framework.ModeWorkflow,
		"plan":           framework.ModeWorkflow,
		"Workflow":       framework.ModeWorkflow,
		"":               framework.ModeAutonomous,
		"autonomous":     framework.ModeAutonomous,
		"agent":          framework.ModeAutonomous,
	}

	for input, expected := range testCases {
		t.Run(input, func(t *testing.T) {
			gt.Equal(t, framework.ParseMode(input), expected)
		})
	}
}

func TestRunPersistsOpportunity(t *testing.T) {
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			return model.NewOpportunity(model.Deal{
				ProductDescription: "Test product",
				Price:              100,
				URL:                "https://example.com/p",
			}, 132), nil
		},
	}

	f, store, _ := setup(t, planner, framework.WithMode(framework.ModeWorkflow))
	gt.Equal(t, f.Mode(), framework.ModeWorkflow)

	opps, err := f.Run(context.Background())
	gt.NoError(t, err)
	gt.A(t, opps).Length(1)
	gt.Equal(t, opps[0].Discount, 32.0)

	saved, err := store.Read(context.Background())
	gt.NoError(t, err)
	gt.A(t, saved).Length(1)
	gt.Equal(t, saved[0].Deal.URL, "https://example.com/p")
	gt.Equal(t, saved[0].Discount, 32.0)
}

func TestRunCycleNoResult(t *testing.T) {
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			return nil, nil
		},
	}
	f, store, _ := setup(t, planner)

	existing := []*model.Opportunity{
		model.NewOpportunity(model.Deal{ProductDescription: "a", Price: 10, URL: "https://example.com/a"}, 80),
	}
	opps, err := f.RunCycle(context.Background(), existing)
	gt.NoError(t, err)
	gt.A(t, opps).Length(1)

	saved, err := store.Read(context.Background())
	gt.NoError(t, err)
	gt.A(t, saved).Length(0)
}

func TestRunCyclePlannerError(t *testing.T) {
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			return nil, errors.New("model unavailable")
		},
	}
	f, store, _ := setup(t, planner)

	_, err := f.Run(context.Background())
	gt.Error(t, err)

	_, statErr := os.Stat(store.Location())
	gt.True(t, os.IsNotExist(statErr))
}

func TestRunCycleRejectsInconsistentDiscount(t *testing.T) {
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			return &model.Opportunity{
				Deal:     model.Deal{ProductDescription: "x", Price: 10, URL: "https://example.com/x"},
				Estimate: 20,
				Discount: 99,
			}, nil
		},
	}
	f, store, _ := setup(t, planner)

	_, err := f.Run(context.Background())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInconsistentDiscount))

	saved, err := store.Read(context.Background())
	gt.NoError(t, err)
	gt.A(t, saved).Length(0)
}

func TestPlannerCreatedOnce(t *testing.T) {
	var calls int
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			calls++
			return nil, nil
		},
	}
	f, _, created := setup(t, planner)

	for range 3 {
		_, err := f.Run(context.Background())
		gt.NoError(t, err)
	}
	gt.Equal(t, *created, 1)
	gt.Equal(t, calls, 3)
}

func TestRunCycleDoesNotAliasInput(t *testing.T) {
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			return model.NewOpportunity(model.Deal{ProductDescription: "n", Price: 1, URL: "https://example.com/n"}, 2), nil
		},
	}
	f, _, _ := setup(t, planner)

	base := make([]*model.Opportunity, 0, 4)
	updated, err := f.RunCycle(context.Background(), base)
	gt.NoError(t, err)
	gt.A(t, updated).Length(1)
	gt.A(t, base).Length(0)
}

func TestResetMemory(t *testing.T) {
	planner := &mockPlanner{
		plan: func(ctx context.Context, opps []*model.Opportunity) (*model.Opportunity, error) {
			return nil, nil
		},
	}
	f, store, _ := setup(t, planner)

	var opps []*model.Opportunity
	for i, url := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		opps = append(opps, model.NewOpportunity(model.Deal{ProductDescription: "p", Price: float64(i), URL: url}, 100))
	}
	gt.NoError(t, store.Write(context.Background(), opps))

	kept, err := f.ResetMemory(context.Background(), memory.DefaultKeep)
	gt.NoError(t, err)
	gt.A(t, kept).Length(2)

	saved, err := store.Read(context.Background())
	gt.NoError(t, err)
	gt.A(t, saved).Length(2)
	gt.Equal(t, saved[1].Deal.URL, "https://example.com/2")
}

func TestPlotDataEmptyCollection(t *testing.T) {
	f, _, _ := setup(t, &mockPlanner{})
	plot, err := f.PlotData(context.Background(), 100)
	gt.NoError(t, err)
	gt.Equal(t, plot.Len(), 0)
}
