package planner_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/agent/planner"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/policy"
	"github.com/m-mizutani/dealscope/pkg/tool/bargain"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockScanner struct {
	scan func(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error)
}

func (m *mockScanner) Scan(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error) {
	return m.scan(ctx, memory)
}

type mockEstimator struct {
	price func(ctx context.Context, description string) (float64, error)
}

func (m *mockEstimator) Price(ctx context.Context, description string) (float64, error) {
	return m.price(ctx, description)
}

type mockMessenger struct {
	alerts   []*model.Opportunity
	notifies int
	err      error
}

func (m *mockMessenger) Alert(ctx context.Context, opp *model.Opportunity) error {
	m.alerts = append(m.alerts, opp)
	return m.err
}

func (m *mockMessenger) Notify(ctx context.Context, description string, dealPrice, estimate float64, url string) error {
	m.notifies++
	return m.err
}

type mockGenerator struct {
	calls    int
	generate func(call int, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	return m.generate(m.calls, contents, config)
}

func fixedScanner(deals ...*model.Deal) *mockScanner {
	return &mockScanner{
		scan: func(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error) {
			return &model.DealSelection{Deals: deals}, nil
		},
	}
}

// estimates maps a description to its true value
func estimates(values map[string]float64) *mockEstimator {
	return &mockEstimator{
		price: func(ctx context.Context, description string) (float64, error) {
			return values[description], nil
		},
	}
}

func newPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.New(context.Background())
	gt.NoError(t, err)
	return p
}

func TestWorkflowPicksBestDeal(t *testing.T) {
	scanner := fixedScanner(
		&model.Deal{ProductDescription: "a", Price: 100, URL: "https://example.com/a"},
		&model.Deal{ProductDescription: "b", Price: 100, URL: "https://example.com/b"},
		&model.Deal{ProductDescription: "c", Price: 100, URL: "https://example.com/c"},
	)
	est := estimates(map[string]float64{"a": 120, "b": 190, "c": 160})
	msg := &mockMessenger{}

	w := planner.NewWorkflow(scanner, est, newPolicy(t), msg)
	opp, err := w.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.NotNil(t, opp)
	gt.Equal(t, opp.Deal.URL, "https://example.com/b")
	gt.Equal(t, opp.Discount, 90.0)
	gt.A(t, msg.alerts).Length(1)
}

func TestWorkflowPricesAtMostFive(t *testing.T) {
	var deals []*model.Deal
	for _, d := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		deals = append(deals, &model.Deal{ProductDescription: d, Price: 10, URL: "https://example.com/" + d})
	}
	var priced int
	est := &mockEstimator{
		price: func(ctx context.Context, description string) (float64, error) {
			priced++
			return 10, nil
		},
	}

	w := planner.NewWorkflow(fixedScanner(deals...), est, newPolicy(t), &mockMessenger{})
	opp, err := w.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.Nil(t, opp)
	gt.Equal(t, priced, planner.DefaultMaxDeals)
}

func TestWorkflowNonPositiveMaxDealsUsesDefault(t *testing.T) {
	for _, n := range []int{0, -3} {
		t.Run(fmt.Sprintf("max %d", n), func(t *testing.T) {
			scanner := fixedScanner(
				&model.Deal{ProductDescription: "a", Price: 100, URL: "https://example.com/a"},
				&model.Deal{ProductDescription: "b", Price: 100, URL: "https://example.com/b"},
			)
			est := estimates(map[string]float64{"a": 120, "b": 300})

			w := planner.NewWorkflow(scanner, est, newPolicy(t), &mockMessenger{}, planner.WithMaxDeals(n))
			opp, err := w.Plan(context.Background(), nil)
			gt.NoError(t, err)
			gt.NotNil(t, opp)
			gt.Equal(t, opp.Deal.URL, "https://example.com/b")
		})
	}
}

func TestWorkflowRejectedByPolicy(t *testing.T) {
	scanner := fixedScanner(&model.Deal{ProductDescription: "a", Price: 100, URL: "https://example.com/a"})
	msg := &mockMessenger{}

	w := planner.NewWorkflow(scanner, estimates(map[string]float64{"a": 140}), newPolicy(t), msg)
	opp, err := w.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.Nil(t, opp)
	gt.A(t, msg.alerts).Length(0)
}

func TestWorkflowAlertFailureIgnored(t *testing.T) {
	scanner := fixedScanner(&model.Deal{ProductDescription: "a", Price: 100, URL: "https://example.com/a"})
	msg := &mockMessenger{err: errors.New("pushover down")}

	w := planner.NewWorkflow(scanner, estimates(map[string]float64{"a": 300}), newPolicy(t), msg)
	opp, err := w.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.NotNil(t, opp)
	gt.Equal(t, opp.Discount, 200.0)
}

func TestWorkflowPricingFailure(t *testing.T) {
	scanner := fixedScanner(&model.Deal{ProductDescription: "a", Price: 100, URL: "https://example.com/a"})
	est := &mockEstimator{
		price: func(ctx context.Context, description string) (float64, error) {
			return 0, errors.New("model offline")
		},
	}

	w := planner.NewWorkflow(scanner, est, newPolicy(t), &mockMessenger{})
	_, err := w.Plan(context.Background(), nil)
	gt.Error(t, err)
}

func TestWorkflowNoDeals(t *testing.T) {
	scanner := &mockScanner{
		scan: func(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error) {
			return nil, nil
		},
	}
	w := planner.NewWorkflow(scanner, estimates(nil), newPolicy(t), &mockMessenger{})
	opp, err := w.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.Nil(t, opp)
}

func functionCall(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: name, Args: args}}},
			}},
		},
	}
}

func text(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(s, genai.RoleModel)},
		},
	}
}

func TestAutonomousNotifies(t *testing.T) {
	scanner := fixedScanner(&model.Deal{ProductDescription: "Robot vacuum", Price: 200, URL: "https://example.com/vacuum"})
	est := estimates(map[string]float64{"Robot vacuum": 350})
	msg := &mockMessenger{}

	gen := &mockGenerator{
		generate: func(call int, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gt.A(t, config.Tools).Length(3)
			switch call {
			case 1:
				return functionCall(bargain.ScanName, map[string]any{}), nil
			case 2:
				last := contents[len(contents)-1]
				gt.NotNil(t, last.Parts[0].FunctionResponse)
				return functionCall(bargain.EstimateName, map[string]any{"description": "Robot vacuum"}), nil
			case 3:
				return functionCall(bargain.NotifyName, map[string]any{
					"deal_description":     "Robot vacuum",
					"deal_price":           200.0,
					"estimated_true_value": 350.0,
					"url":                  "https://example.com/vacuum",
				}), nil
			default:
				return text("Done"), nil
			}
		},
	}

	a := planner.NewAutonomous(gen, scanner, est, msg)
	opp, err := a.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.NotNil(t, opp)
	gt.Equal(t, opp.Discount, 150.0)
	gt.Equal(t, msg.notifies, 1)
	gt.Equal(t, gen.calls, 4)
}

func TestAutonomousNoNotification(t *testing.T) {
	gen := &mockGenerator{
		generate: func(call int, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return text("Nothing worth reporting"), nil
		},
	}

	a := planner.NewAutonomous(gen, fixedScanner(), estimates(nil), &mockMessenger{})
	opp, err := a.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.Nil(t, opp)
	gt.Equal(t, gen.calls, 1)
}

func TestAutonomousIterationLimit(t *testing.T) {
	gen := &mockGenerator{
		generate: func(call int, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return functionCall("unknown_tool", nil), nil
		},
	}

	a := planner.NewAutonomous(gen, fixedScanner(), estimates(nil), &mockMessenger{}, planner.WithMaxIterations(4))
	opp, err := a.Plan(context.Background(), nil)
	gt.NoError(t, err)
	gt.Nil(t, opp)
	gt.Equal(t, gen.calls, 4)
}

func TestAutonomousModelError(t *testing.T) {
	gen := &mockGenerator{
		generate: func(call int, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("unavailable")
		},
	}

	a := planner.NewAutonomous(gen, fixedScanner(), estimates(nil), &mockMessenger{})
	_, err := a.Plan(context.Background(), nil)
	gt.Error(t, err)
}
