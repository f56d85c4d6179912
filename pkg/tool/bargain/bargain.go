// Package bargain provides the function calling tools of the autonomous
// deal planner.
package bargain

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Scanner finds new deals that are not in memory
type Scanner interface {
	Scan(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error)
}

// Estimator estimates the true value of a product
type Estimator interface {
	Price(ctx context.Context, description string) (float64, error)
}

// Notifier tells the user about a deal
type Notifier interface {
	Notify(ctx context.Context, description string, dealPrice, estimate float64, url string) error
}

// decodeArgs converts function call arguments into dst
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal function arguments")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return goerr.Wrap(err, "failed to parse input parameters")
	}
	return nil
}
