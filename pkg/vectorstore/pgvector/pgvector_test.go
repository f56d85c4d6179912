package pgvector_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/dealscope/pkg/vectorstore/pgvector"
	"github.com/m-mizutani/gt"
)

func setupPostgres(t *testing.T) (*pgvector.Store, string) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN is not set")
	}

	store, err := pgvector.New(context.Background(), dsn)
	gt.NoError(t, err)

	name := "test_" + uuid.NewString()
	t.Cleanup(func() {
		_ = store.DeleteCollection(context.Background(), name)
		_ = store.Close()
	})
	return store, name
}

func TestPostgresRoundTrip(t *testing.T) {
	store, name := setupPostgres(t)
	ctx := context.Background()

	c, err := store.Collection(ctx, name)
	gt.NoError(t, err)

	gt.NoError(t, c.Add(ctx, []*vectorstore.Record{
		{ID: "doc_0", Document: "kettle", Embedding: []float32{1, 0, 0}, Metadata: vectorstore.Metadata{Category: "Appliances", Price: 25}},
		{ID: "doc_1", Document: "drill", Embedding: []float32{0, 1, 0}, Metadata: vectorstore.Metadata{Category: "Tools_and_Home_Improvement", Price: 80}},
	}))

	n, err := c.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 2)

	matches, err := c.Query(ctx, []float32{0.9, 0.1, 0}, 1)
	gt.NoError(t, err)
	gt.A(t, matches).Length(1)
	gt.Equal(t, matches[0].ID, "doc_0")
	gt.Equal(t, matches[0].Metadata.Price, 25.0)

	err = c.Add(ctx, []*vectorstore.Record{
		{ID: "doc_2", Document: "lamp", Embedding: []float32{0, 0, 1}},
		{ID: "doc_1", Document: "dup", Embedding: []float32{0, 0, 1}},
	})
	gt.True(t, errors.Is(err, vectorstore.ErrIDCollision))

	n, err = c.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 2)
}
