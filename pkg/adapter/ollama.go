package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ollama/ollama/api"
)

// Ollama runs generation and embedding models on an Ollama server
type Ollama struct {
	client         *api.Client
	model          string
	embeddingModel string
	options        map[string]any
}

var (
	_ LLM      = (*Ollama)(nil)
	_ Embedder = (*Ollama)(nil)
)

type OllamaOption func(*Ollama)

func WithOllamaModel(model string) OllamaOption {
	return func(o *Ollama) {
		o.model = model
	}
}

func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(o *Ollama) {
		o.embeddingModel = model
	}
}

// WithOllamaSeed fixes the sampling seed and sets temperature to 0
func WithOllamaSeed(seed int) OllamaOption {
	return func(o *Ollama) {
		o.options["seed"] = seed
		o.options["temperature"] = 0
	}
}

// NewOllama connects to host, or to OLLAMA_HOST when host is empty
func NewOllama(host string, opts ...OllamaOption) (*Ollama, error) {
	var (
		client *api.Client
		err    error
	)
	if host == "" {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create ollama client from environment")
		}
	} else {
		base, err := url.Parse(host)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid ollama host", goerr.V("host", host))
		}
		client = api.NewClient(base, http.DefaultClient)
	}

	o := &Ollama{
		client:         client,
		model:          "llama3.2",
		embeddingModel: "all-minilm",
		options:        map[string]any{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Ollama) Complete(ctx context.Context, system, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   o.model,
		System:  system,
		Prompt:  prompt,
		Stream:  &stream,
		Options: o.options,
	}

	var out string
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out += resp.Response
		return nil
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate", goerr.V("model", o.model))
	}
	return out, nil
}

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed", goerr.V("model", o.embeddingModel))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("model", o.embeddingModel), goerr.V("expected", len(texts)), goerr.V("actual", len(resp.Embeddings)))
	}
	return resp.Embeddings, nil
}
