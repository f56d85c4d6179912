package bargain

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const EstimateName = "estimate_true_value"

type Estimate struct {
	estimator Estimator
}

var _ tool.Tool = (*Estimate)(nil)

func NewEstimate(estimator Estimator) *Estimate {
	return &Estimate{estimator: estimator}
}

func (x *Estimate) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        EstimateName,
				Description: "Given the description of an item, estimate how much it is actually worth",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description": {
							Type:        genai.TypeString,
							Description: "The description of the item to be estimated",
						},
					},
					Required: []string{"description"},
				},
			},
		},
	}
}

func (x *Estimate) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	var input struct {
		Description string `json:"description"`
	}
	if err := decodeArgs(fc.Args, &input); err != nil {
		return nil, err
	}
	if input.Description == "" {
		return nil, goerr.New("description is required")
	}

	estimate, err := x.estimator.Price(ctx, input.Description)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to estimate true value")
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"estimated_true_value": estimate},
	}, nil
}
