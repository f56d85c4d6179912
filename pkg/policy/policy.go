// Package policy decides with Rego whether an opportunity is worth telling
// the user about.
package policy

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

//go:embed default.rego
var defaultModule string

const (
	// Query is evaluated against every opportunity. The package must define
	// a boolean "accept" rule and may define a string "reason".
	Query = "data.dealscope.opportunity"

	DefaultThreshold = 50.0
)

// ErrNoPolicy is returned when a policy directory holds no .rego file
var ErrNoPolicy = goerr.New("no policy file found")

// Decision is the policy result for one opportunity
type Decision struct {
	Accept bool
	Reason string
}

// Policy is a prepared acceptance query
type Policy struct {
	query     *rego.PreparedEvalQuery
	threshold float64
}

type config struct {
	dir       string
	threshold float64
}

type Option func(*config)

// WithDir replaces the built-in policy with the *.rego files in dir
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithThreshold sets input.threshold, the minimum discount in dollars
func WithThreshold(threshold float64) Option {
	return func(c *config) {
		c.threshold = threshold
	}
}

type printHook struct{}

func (h *printHook) Print(ctx print.Context, message string) error {
	logging.From(ctx.Context).Debug("rego print", "message", message, "location", ctx.Location)
	return nil
}

func New(ctx context.Context, opts ...Option) (*Policy, error) {
	cfg := config{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}

	modules, err := loadModules(cfg.dir)
	if err != nil {
		return nil, err
	}

	options := make([]func(*rego.Rego), 0, len(modules)+2)
	options = append(options, rego.Query(Query), rego.EnablePrintStatements(true))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query",
			goerr.V("query", Query), goerr.V("dir", cfg.dir))
	}

	return &Policy{
		query:     &prepared,
		threshold: cfg.threshold,
	}, nil
}

func loadModules(dir string) ([]func(*rego.Rego), error) {
	if dir == "" {
		return []func(*rego.Rego){rego.Module("default.rego", defaultModule)}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, goerr.Wrap(ErrNoPolicy, "policy directory is empty", goerr.V("dir", dir))
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}
	return modules, nil
}

// Threshold returns the configured minimum discount
func (p *Policy) Threshold() float64 {
	return p.threshold
}

// Evaluate runs the policy on opp. An undefined accept rule rejects.
func (p *Policy) Evaluate(ctx context.Context, opp *model.Opportunity) (*Decision, error) {
	input := map[string]any{
		"deal":      opp.Deal,
		"estimate":  opp.Estimate,
		"discount":  opp.Discount,
		"threshold": p.threshold,
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate policy", goerr.V("url", opp.Deal.URL))
	}

	decision := &Decision{}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return decision, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("policy result is not an object",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	if v, ok := data["accept"]; ok {
		accept, ok := v.(bool)
		if !ok {
			return nil, goerr.New("policy accept is not a boolean", goerr.V("value", v))
		}
		decision.Accept = accept
	}
	if v, ok := data["reason"].(string); ok {
		decision.Reason = v
	}

	return decision, nil
}
