package planner

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/policy"
	"github.com/m-mizutani/dealscope/pkg/tool"
	"github.com/m-mizutani/dealscope/pkg/tool/bargain"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/autonomous.md
var autonomousPromptRaw string

var autonomousPromptTmpl = template.Must(template.New("autonomous").Parse(autonomousPromptRaw))

// DefaultMaxIterations bounds the tool calling loop
const DefaultMaxIterations = 16

// Generator is the part of the Gemini client the planner needs
type Generator interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Autonomous lets the model drive the scan, estimate and notify tools
type Autonomous struct {
	gemini        Generator
	scanner       Scanner
	estimator     Estimator
	notifier      bargain.Notifier
	maxIterations int
	threshold     float64
}

type AutonomousOption func(*Autonomous)

func WithMaxIterations(n int) AutonomousOption {
	return func(a *Autonomous) {
		a.maxIterations = n
	}
}

// WithThreshold sets the discount the model is told to require before notifying
func WithThreshold(threshold float64) AutonomousOption {
	return func(a *Autonomous) {
		a.threshold = threshold
	}
}

func NewAutonomous(gemini Generator, scanner Scanner, estimator Estimator, notifier bargain.Notifier, opts ...AutonomousOption) *Autonomous {
	a := &Autonomous{
		gemini:        gemini,
		scanner:       scanner,
		estimator:     estimator,
		notifier:      notifier,
		maxIterations: DefaultMaxIterations,
		threshold:     policy.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Plan runs the tool calling loop until the model stops calling tools. The
// result is the opportunity passed to the notify tool, or nil.
func (a *Autonomous) Plan(ctx context.Context, memory []*model.Opportunity) (*model.Opportunity, error) {
	logger := logging.From(ctx)

	notify := bargain.NewNotify(a.notifier)
	registry := tool.New(
		bargain.NewScan(a.scanner, memory),
		bargain.NewEstimate(a.estimator),
		notify,
	)

	config := &genai.GenerateContentConfig{
		Tools: registry.Specs(),
	}
	contents := []*genai.Content{
		genai.NewContentFromText("Find great deals on bargain products using your tools, and notify the user of the best bargain.", genai.RoleUser),
	}

	for i := 0; i < a.maxIterations; i++ {
		prompt, err := a.systemPrompt(registry, i+1)
		if err != nil {
			return nil, err
		}
		config.SystemInstruction = genai.NewContentFromText(prompt, "")

		resp, err := a.gemini.GenerateContent(ctx, contents, config)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate content", goerr.V("iteration", i+1))
		}

		hasFunctionCall := false
		var functionResponses []*genai.Part

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			contents = append(contents, candidate.Content)

			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					logger.Debug("planner message", "text", part.Text)
				}
				if part.FunctionCall == nil {
					continue
				}

				hasFunctionCall = true
				logger.Info("calling tool", "name", part.FunctionCall.Name, "iteration", i+1)

				funcResp, execErr := registry.Execute(ctx, *part.FunctionCall)
				if execErr != nil {
					logger.Warn("tool failed", "name", part.FunctionCall.Name, "error", execErr)
					funcResp = &genai.FunctionResponse{
						Name:     part.FunctionCall.Name,
						Response: map[string]any{"error": execErr.Error()},
					}
				}
				functionResponses = append(functionResponses, &genai.Part{FunctionResponse: funcResp})
			}
		}

		if len(functionResponses) > 0 {
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: functionResponses,
			})
		}

		if !hasFunctionCall {
			break
		}
	}

	if opp := notify.Opportunity(); opp != nil {
		logger.Info("planner notified user", "url", opp.Deal.URL, "discount", opp.Discount)
		return opp, nil
	}
	return nil, nil
}

func (a *Autonomous) systemPrompt(registry *tool.Registry, iteration int) (string, error) {
	var buf bytes.Buffer
	if err := autonomousPromptTmpl.Execute(&buf, map[string]any{
		"Tools":         registry.Names(),
		"Scan":          bargain.ScanName,
		"Estimate":      bargain.EstimateName,
		"Notify":        bargain.NotifyName,
		"Threshold":     a.threshold,
		"Iteration":     iteration,
		"MaxIterations": a.maxIterations,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute autonomous prompt template")
	}
	return buf.String(), nil
}
