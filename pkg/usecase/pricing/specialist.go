package pricing

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Specialist prices with a model fine-tuned on the catalogue prompt format
type Specialist struct {
	llm adapter.LLM
}

var _ Estimator = (*Specialist)(nil)

func NewSpecialist(llm adapter.LLM) *Specialist {
	return &Specialist{llm: llm}
}

func (s *Specialist) Price(ctx context.Context, description string) (float64, error) {
	item := model.Item{}
	item.MakePrompt(description)

	reply, err := s.llm.Complete(ctx, "", item.TestPrompt())
	if err != nil {
		return 0, goerr.Wrap(err, "failed to ask specialist model")
	}
	price, err := ParsePrice(reply)
	if err != nil {
		return 0, goerr.Wrap(err, "specialist model gave no price")
	}
	return price, nil
}
