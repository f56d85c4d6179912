package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

const (
	frontierSystemPrompt = "You estimate prices of items. Reply only with the price, no explanation"
	similarCount         = 5
)

// SimilarFinder returns documents similar to a description with their prices
type SimilarFinder interface {
	QuerySimilars(ctx context.Context, description string, n int) ([]string, []float64, error)
}

// Frontier asks a large model for a price, grounded on similar catalogue items
type Frontier struct {
	llm     adapter.LLM
	similar SimilarFinder
}

var _ Estimator = (*Frontier)(nil)

func NewFrontier(llm adapter.LLM, similar SimilarFinder) *Frontier {
	return &Frontier{llm: llm, similar: similar}
}

func (f *Frontier) Price(ctx context.Context, description string) (float64, error) {
	documents, prices, err := f.similar.QuerySimilars(ctx, description, similarCount)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to find similar items")
	}

	reply, err := f.llm.Complete(ctx, frontierSystemPrompt, frontierPrompt(description, documents, prices))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to ask frontier model")
	}

	price, err := ParsePrice(reply)
	if err != nil {
		return 0, goerr.Wrap(err, "frontier model gave no price")
	}
	return price, nil
}

func frontierPrompt(description string, documents []string, prices []float64) string {
	var b strings.Builder
	b.WriteString("Estimate the price of this product. Respond with the price, no explanation\n\n")
	b.WriteString(description)

	if len(documents) > 0 {
		b.WriteString("\n\nTo make this task easier, here are some similar products and their prices:\n")
		for i, doc := range documents {
			fmt.Fprintf(&b, "\nProduct:\n%s\nPrice is $%.2f\n", doc, prices[i])
		}
	}
	return b.String()
}
