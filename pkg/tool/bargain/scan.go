package bargain

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const ScanName = "scan_the_internet_for_bargains"

type Scan struct {
	scanner Scanner
	memory  []*model.Opportunity
}

var _ tool.Tool = (*Scan)(nil)

// NewScan creates the scan tool. Deals already in memory are not returned.
func NewScan(scanner Scanner, memory []*model.Opportunity) *Scan {
	return &Scan{scanner: scanner, memory: memory}
}

func (x *Scan) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        ScanName,
				Description: "Returns top bargains scraped from the internet along with the price each item is being offered for",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
		},
	}
}

func (x *Scan) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	selection, err := x.scanner.Scan(ctx, x.memory)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan for bargains")
	}
	if selection == nil || len(selection.Deals) == 0 {
		return &genai.FunctionResponse{
			Name:     fc.Name,
			Response: map[string]any{"result": "No new deals were found."},
		}, nil
	}

	raw, err := json.MarshalIndent(selection, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal deal selection")
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": string(raw)},
	}, nil
}
