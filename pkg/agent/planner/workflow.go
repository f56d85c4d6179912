package planner

import (
	"context"
	"sort"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultMaxDeals is how many scanned deals the workflow prices per run
const DefaultMaxDeals = 5

// Workflow runs scan, price, select, and notify in a fixed order
type Workflow struct {
	scanner   Scanner
	estimator Estimator
	policy    Policy
	messenger Messenger
	maxDeals  int
}

type WorkflowOption func(*Workflow)

func WithMaxDeals(n int) WorkflowOption {
	return func(w *Workflow) {
		w.maxDeals = n
	}
}

func NewWorkflow(scanner Scanner, estimator Estimator, policy Policy, messenger Messenger, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		scanner:   scanner,
		estimator: estimator,
		policy:    policy,
		messenger: messenger,
		maxDeals:  DefaultMaxDeals,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxDeals <= 0 {
		w.maxDeals = DefaultMaxDeals
	}
	return w
}

// Plan returns the best priced new deal when the policy accepts it, and nil
// otherwise
func (w *Workflow) Plan(ctx context.Context, memory []*model.Opportunity) (*model.Opportunity, error) {
	logger := logging.From(ctx)

	selection, err := w.scanner.Scan(ctx, memory)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan deals")
	}
	if selection == nil || len(selection.Deals) == 0 {
		logger.Info("no new deals found")
		return nil, nil
	}

	deals := selection.Deals
	if len(deals) > w.maxDeals {
		deals = deals[:w.maxDeals]
	}

	opps := make([]*model.Opportunity, 0, len(deals))
	for _, deal := range deals {
		estimate, err := w.estimator.Price(ctx, deal.ProductDescription)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to price deal", goerr.V("url", deal.URL))
		}
		opp := model.NewOpportunity(*deal, estimate)
		logger.Debug("priced deal", "url", deal.URL, "price", deal.Price, "estimate", estimate)
		opps = append(opps, opp)
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Discount > opps[j].Discount
	})
	if len(opps) == 0 {
		return nil, nil
	}
	best := opps[0]

	decision, err := w.policy.Evaluate(ctx, best)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate opportunity", goerr.V("url", best.Deal.URL))
	}
	logger.Info("best opportunity",
		"url", best.Deal.URL,
		"discount", best.Discount,
		"accept", decision.Accept,
		"reason", decision.Reason)

	if !decision.Accept {
		return nil, nil
	}

	if err := w.messenger.Alert(ctx, best); err != nil {
		logger.Warn("failed to send alert", "url", best.Deal.URL, "error", err)
	}

	return best, nil
}
