package retrieval

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultResults is the number of neighbors returned when n <= 0
const DefaultResults = 5

// Encoder embeds texts. It must be the model the collection was built with.
type Encoder interface {
	Name() string
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever finds catalogue items similar to a description
type Retriever struct {
	collection vectorstore.Collection
	encoder    Encoder
}

// New creates a Retriever over collection
func New(collection vectorstore.Collection, encoder Encoder) *Retriever {
	return &Retriever{
		collection: collection,
		encoder:    encoder,
	}
}

// QuerySimilars returns the documents nearest to description and their
// prices as parallel slices, nearest first
func (r *Retriever) QuerySimilars(ctx context.Context, description string, n int) ([]string, []float64, error) {
	if n <= 0 {
		n = DefaultResults
	}

	vectors, err := r.encoder.Encode(ctx, []string{description})
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to embed description", goerr.V("model", r.encoder.Name()))
	}
	if len(vectors) != 1 {
		return nil, nil, goerr.New("expected exactly one embedding", goerr.V("actual", len(vectors)))
	}

	matches, err := r.collection.Query(ctx, vectors[0], n)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to query similar items", goerr.V("collection", r.collection.Name()))
	}
	if len(matches) > n {
		matches = matches[:n]
	}

	documents := make([]string, len(matches))
	prices := make([]float64, len(matches))
	for i, m := range matches {
		documents[i] = m.Document
		prices[i] = m.Metadata.Price
	}

	return documents, prices, nil
}
