// Package embedding binds an embedder to the model name it serves, so
// ingestion and retrieval can share one explicit model identity.
package embedding

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultModel is all-MiniLM-L6-v2 as published by Ollama
const DefaultModel = "ollama:all-minilm"

// Model encodes texts with one fixed embedding model
type Model struct {
	name     string
	embedder adapter.Embedder
}

// New creates a model. name identifies the model (for example "ollama:all-minilm").
func New(name string, embedder adapter.Embedder) *Model {
	return &Model{name: name, embedder: embedder}
}

// Name returns the model identity
func (m *Model) Name() string {
	return m.name
}

// Encode returns one vector per text. Every vector has the same dimensionality.
func (m *Model) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode texts", goerr.V("model", m.name), goerr.V("count", len(texts)))
	}
	if len(vectors) != len(texts) {
		return nil, goerr.New("embedder returned wrong number of vectors",
			goerr.V("model", m.name), goerr.V("expected", len(texts)), goerr.V("actual", len(vectors)))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, goerr.New("embedder returned inconsistent dimensions",
				goerr.V("model", m.name), goerr.V("index", i), goerr.V("expected", dim), goerr.V("actual", len(v)))
		}
	}

	return vectors, nil
}

// EncodeOne encodes a single text
func (m *Model) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
