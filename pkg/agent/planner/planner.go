// Package planner contains the two strategies that turn a scan of the
// deal feeds into at most one opportunity.
package planner

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/policy"
)

// Scanner finds new deals that are not in memory
type Scanner interface {
	Scan(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error)
}

// Estimator estimates the true value of a product
type Estimator interface {
	Price(ctx context.Context, description string) (float64, error)
}

// Policy decides whether an opportunity is good enough to report
type Policy interface {
	Evaluate(ctx context.Context, opp *model.Opportunity) (*policy.Decision, error)
}

// Messenger alerts the user about an opportunity
type Messenger interface {
	Alert(ctx context.Context, opp *model.Opportunity) error
	Notify(ctx context.Context, description string, dealPrice, estimate float64, url string) error
}
