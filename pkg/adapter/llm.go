package adapter

import "context"

// LLM completes a single prompt under a system instruction
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per text in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
