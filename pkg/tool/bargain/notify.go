package bargain

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const NotifyName = "notify_user_of_deal"

// Notify sends one notification per planning run and keeps the resulting
// opportunity
type Notify struct {
	notifier Notifier
	result   *model.Opportunity
}

var _ tool.Tool = (*Notify)(nil)

func NewNotify(notifier Notifier) *Notify {
	return &Notify{notifier: notifier}
}

// Opportunity returns the deal the user was notified about, or nil
func (x *Notify) Opportunity() *model.Opportunity {
	return x.result
}

func (x *Notify) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        NotifyName,
				Description: "Send the user a push notification about the single most compelling deal; only call this one time",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"deal_description": {
							Type:        genai.TypeString,
							Description: "The description of the deal, summarized in a couple of sentences",
						},
						"deal_price": {
							Type:        genai.TypeNumber,
							Description: "The price offered by this deal",
						},
						"estimated_true_value": {
							Type:        genai.TypeNumber,
							Description: "The estimated actual value that this is worth",
						},
						"url": {
							Type:        genai.TypeString,
							Description: "The URL of this deal as scraped",
						},
					},
					Required: []string{"deal_description", "deal_price", "estimated_true_value", "url"},
				},
			},
		},
	}
}

func (x *Notify) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if x.result != nil {
		return &genai.FunctionResponse{
			Name:     fc.Name,
			Response: map[string]any{"result": "The user was already notified in this run; do not notify again."},
		}, nil
	}

	var input struct {
		Description string  `json:"deal_description"`
		Price       float64 `json:"deal_price"`
		Estimate    float64 `json:"estimated_true_value"`
		URL         string  `json:"url"`
	}
	if err := decodeArgs(fc.Args, &input); err != nil {
		return nil, err
	}

	deal := model.Deal{
		ProductDescription: input.Description,
		Price:              input.Price,
		URL:                input.URL,
	}
	if err := deal.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid deal in notification")
	}

	if err := x.notifier.Notify(ctx, input.Description, input.Price, input.Estimate, input.URL); err != nil {
		return nil, goerr.Wrap(err, "failed to notify user")
	}

	x.result = model.NewOpportunity(deal, input.Estimate)

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": "Notification sent"},
	}, nil
}
