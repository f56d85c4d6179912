package ingest

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
)

const (
	DefaultCollection  = "products"
	DefaultMinRequired = 31
	DefaultBatchSize   = 1000
)

// Encoder embeds texts with one fixed model
type Encoder interface {
	Name() string
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// ItemSource loads catalogue items. It is only called when the collection
// needs populating.
type ItemSource func(ctx context.Context) ([]*model.Item, error)

// Items wraps an already loaded item list
func Items(items []*model.Item) ItemSource {
	return func(ctx context.Context) ([]*model.Item, error) {
		return items, nil
	}
}

// UseCase builds and tops up the product collection
type UseCase struct {
	store     vectorstore.Store
	encoder   Encoder
	namespace string
	output    io.Writer
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithNamespace sets the prefix used to disambiguate colliding ids
func WithNamespace(ns string) Option {
	return func(uc *UseCase) {
		uc.namespace = ns
	}
}

// WithOutput shows batch progress on w
func WithOutput(w io.Writer) Option {
	return func(uc *UseCase) {
		uc.output = w
	}
}

// New creates an ingestion UseCase. The namespace defaults to a short
// identifier unique to this process.
func New(store vectorstore.Store, encoder Encoder, opts ...Option) *UseCase {
	uc := &UseCase{
		store:     store,
		encoder:   encoder,
		namespace: strings.SplitN(uuid.NewString(), "-", 2)[0],
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
