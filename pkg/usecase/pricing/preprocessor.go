package pricing

import (
	"context"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

const preprocessSystemPrompt = `Create a concise description of a product. Respond only in this format. Do not include part numbers.
Title: Rewritten short precise title
Category: eg Electronics
Brand: Brand name
Description: 1 sentence description
Details: 1 sentence on features`

// LLMPreprocessor rewrites scraped text into a short structured summary
type LLMPreprocessor struct {
	llm adapter.LLM
}

var _ Preprocessor = (*LLMPreprocessor)(nil)

func NewLLMPreprocessor(llm adapter.LLM) *LLMPreprocessor {
	return &LLMPreprocessor{llm: llm}
}

func (p *LLMPreprocessor) Preprocess(ctx context.Context, text string) (string, error) {
	reply, err := p.llm.Complete(ctx, preprocessSystemPrompt, text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to preprocess text")
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", goerr.New("preprocessor returned empty text")
	}
	return reply, nil
}
