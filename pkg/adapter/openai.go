package adapter

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAI talks to the OpenAI API or any server exposing the same protocol
type OpenAI struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	seed           *int
}

var (
	_ LLM      = (*OpenAI)(nil)
	_ Embedder = (*OpenAI)(nil)
)

type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	baseURL        string
	chatModel      string
	embeddingModel string
	seed           *int
}

// WithOpenAIBaseURL points the client at a compatible server
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) {
		c.baseURL = url
	}
}

func WithOpenAIChatModel(model string) OpenAIOption {
	return func(c *openaiConfig) {
		c.chatModel = model
	}
}

func WithOpenAIEmbeddingModel(model string) OpenAIOption {
	return func(c *openaiConfig) {
		c.embeddingModel = model
	}
}

// WithOpenAISeed requests deterministic sampling where the server supports it
func WithOpenAISeed(seed int) OpenAIOption {
	return func(c *openaiConfig) {
		c.seed = &seed
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := openaiConfig{
		chatModel:      "gpt-4o-mini",
		embeddingModel: string(openai.SmallEmbedding3),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientConfig.BaseURL = cfg.baseURL
	}

	return &OpenAI{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      cfg.chatModel,
		embeddingModel: cfg.embeddingModel,
		seed:           cfg.seed,
	}
}

func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.chatModel,
		Messages: messages,
		Seed:     o.seed,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion", goerr.V("model", o.chatModel))
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("no choices in chat completion", goerr.V("model", o.chatModel))
	}

	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings", goerr.V("model", o.embeddingModel))
	}
	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("model", o.embeddingModel), goerr.V("expected", len(texts)), goerr.V("actual", len(resp.Data)))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
