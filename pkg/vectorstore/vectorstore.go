// Package vectorstore defines the narrow collection interface the pipeline
// needs from a vector database. Backends live in sub packages.
package vectorstore

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrIDCollision is returned by Collection.Add when a record id already exists
	ErrIDCollision = goerr.New("record id already exists in collection")
	// ErrInvalidRecord is returned by Collection.Add for records missing an id or embedding
	ErrInvalidRecord = goerr.New("invalid record")
)

// Metadata is stored next to every embedding
type Metadata struct {
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// Record is one embedded catalogue item
type Record struct {
	ID        string
	Document  string
	Embedding []float32
	Metadata  Metadata
}

// Include selects which fields Get fills
type Include uint8

const (
	IncludeDocuments Include = 1 << iota
	IncludeEmbeddings
	IncludeMetadatas

	IncludeAll = IncludeDocuments | IncludeEmbeddings | IncludeMetadatas
)

// Has reports whether field is selected
func (x Include) Has(field Include) bool {
	return x&field != 0
}

// GetOptions controls Collection.Get. Limit <= 0 means no limit.
type GetOptions struct {
	Include Include
	Limit   int
}

// GetResult holds parallel slices; unselected fields are nil
type GetResult struct {
	IDs        []string
	Documents  []string
	Embeddings [][]float32
	Metadatas  []Metadata
}

// Match is one nearest neighbor returned by Query
type Match struct {
	ID       string
	Document string
	Metadata Metadata
	// Distance is the cosine distance to the query, 0 for identical direction
	Distance float64
}

// Collection is a named set of records
type Collection interface {
	Name() string

	// Add inserts records. Either every record is stored or none is. A
	// duplicate id returns ErrIDCollision and never overwrites.
	Add(ctx context.Context, records []*Record) error

	// Get reads up to opts.Limit records
	Get(ctx context.Context, opts GetOptions) (*GetResult, error)

	// Query returns up to n records nearest to embedding, nearest first
	Query(ctx context.Context, embedding []float32, n int) ([]*Match, error)

	// Count returns the exact number of records
	Count(ctx context.Context) (int, error)
}

// Store opens collections
type Store interface {
	// Collection returns the named collection, creating it when absent
	Collection(ctx context.Context, name string) (Collection, error)

	// DeleteCollection removes the collection and all records
	DeleteCollection(ctx context.Context, name string) error

	Close() error
}

// ValidateRecords checks ids and embeddings before a write
func ValidateRecords(records []*Record) error {
	seen := make(map[string]struct{}, len(records))
	dim := -1
	for _, r := range records {
		if r == nil || r.ID == "" {
			return goerr.Wrap(ErrInvalidRecord, "record id is empty")
		}
		if len(r.Embedding) == 0 {
			return goerr.Wrap(ErrInvalidRecord, "record embedding is empty", goerr.V("id", r.ID))
		}
		if dim >= 0 && len(r.Embedding) != dim {
			return goerr.Wrap(ErrInvalidRecord, "embedding dimensions differ in batch",
				goerr.V("id", r.ID), goerr.V("expected", dim), goerr.V("actual", len(r.Embedding)))
		}
		dim = len(r.Embedding)
		if _, ok := seen[r.ID]; ok {
			return goerr.Wrap(ErrIDCollision, "duplicate id in batch", goerr.V("id", r.ID))
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

type countFunc func(ctx context.Context, c Collection) (int, error)

func exactCount(ctx context.Context, c Collection) (int, error) {
	return c.Count(ctx)
}

func sampleOne(ctx context.Context, c Collection) (int, error) {
	res, err := c.Get(ctx, GetOptions{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(res.IDs) > 0 {
		return 1, nil
	}
	return 0, nil
}

// CountRecords returns the best known record count. It tries an exact
// count, then a bounded read of one record, and finally reports 0, so an
// unreadable collection looks empty instead of failing.
func CountRecords(ctx context.Context, c Collection) int {
	layers := []struct {
		name string
		fn   countFunc
	}{
		{"count", exactCount},
		{"sample", sampleOne},
	}

	for _, layer := range layers {
		n, err := layer.fn(ctx, c)
		if err == nil {
			return n
		}
		logging.From(ctx).Warn("failed to count records",
			"collection", c.Name(),
			"method", layer.name,
			"error", err)
	}

	return 0
}
