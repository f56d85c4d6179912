package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/usecase/retrieval"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/dealscope/pkg/vectorstore/memory"
	"github.com/m-mizutani/gt"
)

// keywordEncoder maps "angle N" to the vector (1, N)
type keywordEncoder struct {
	err error
}

func (e *keywordEncoder) Name() string { return "keyword" }

func (e *keywordEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		var angle float32
		if _, err := fmt.Sscanf(s, "angle %f", &angle); err != nil {
			angle = 0
		}
		out[i] = []float32{1, angle}
	}
	return out, nil
}

func setup(t *testing.T, n int) vectorstore.Collection {
	t.Helper()
	ctx := context.Background()
	c, err := memory.New().Collection(ctx, "products")
	gt.NoError(t, err)

	var records []*vectorstore.Record
	for i := range n {
		records = append(records, &vectorstore.Record{
			ID:        fmt.Sprintf("doc_%d", i),
			Document:  fmt.Sprintf("item %d", i),
			Embedding: []float32{1, float32(i)},
			Metadata:  vectorstore.Metadata{Category: "Electronics", Price: float64(100 + i)},
		})
	}
	gt.NoError(t, c.Add(ctx, records))
	return c
}

func TestQuerySimilars(t *testing.T) {
	ctx := context.Background()
	r := retrieval.New(setup(t, 10), &keywordEncoder{})

	docs, prices, err := r.QuerySimilars(ctx, "angle 0", 3)
	gt.NoError(t, err)
	gt.Equal(t, docs, []string{"item 0", "item 1", "item 2"})
	gt.Equal(t, prices, []float64{100, 101, 102})
}

func TestQuerySimilarsAlignment(t *testing.T) {
	ctx := context.Background()

	for _, size := range []int{0, 2, 5, 8} {
		r := retrieval.New(setup(t, size), &keywordEncoder{})
		for _, n := range []int{1, 5, 7} {
			docs, prices, err := r.QuerySimilars(ctx, "angle 3", n)
			gt.NoError(t, err)
			gt.Equal(t, len(docs), len(prices))
			gt.Number(t, len(docs)).LessOrEqual(n)
			gt.Equal(t, len(docs), min(n, size))
		}
	}
}

func TestQuerySimilarsDefaultsToFive(t *testing.T) {
	r := retrieval.New(setup(t, 10), &keywordEncoder{})
	docs, prices, err := r.QuerySimilars(context.Background(), "angle 1", 0)
	gt.NoError(t, err)
	gt.A(t, docs).Length(5)
	gt.A(t, prices).Length(5)
}

func TestQuerySimilarsEncoderError(t *testing.T) {
	failure := errors.New("encoder down")
	r := retrieval.New(setup(t, 3), &keywordEncoder{err: failure})
	_, _, err := r.QuerySimilars(context.Background(), "angle 1", 3)
	gt.True(t, errors.Is(err, failure))
}
