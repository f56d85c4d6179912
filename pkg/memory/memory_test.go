package memory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/dealscope/pkg/memory"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/gt"
)

func sampleOpportunities(n int) []*model.Opportunity {
	opps := make([]*model.Opportunity, n)
	for i := range n {
		opps[i] = model.NewOpportunity(model.Deal{
			ProductDescription: fmt.Sprintf("product %d", i),
			Price:              100 + float64(i)*0.1,
			URL:                fmt.Sprintf("https://example.com/deal/%d", i),
		}, 150+float64(i)*1.7)
	}
	return opps
}

func TestReadAbsentFile(t *testing.T) {
	store := memory.New(memory.NewFile(filepath.Join(t.TempDir(), "memory.json")))

	opps, err := store.Read(context.Background())
	gt.NoError(t, err)
	gt.NotNil(t, opps)
	gt.A(t, opps).Length(0)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.json")
	store := memory.New(memory.NewFile(path))

	original := sampleOpportunities(4)
	gt.NoError(t, store.Write(ctx, original))

	got, err := store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, got).Length(len(original))
	for i := range original {
		gt.Equal(t, *got[i], *original[i])
	}

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
}

func TestWriteFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.json")
	store := memory.New(memory.NewFile(path))

	gt.NoError(t, store.Write(ctx, []*model.Opportunity{
		model.NewOpportunity(model.Deal{ProductDescription: "TV", Price: 300, URL: "https://example.com/tv"}, 332),
	}))

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.S(t, string(raw)).Contains("\n  {\n    \"deal\": {")

	var decoded []map[string]any
	gt.NoError(t, json.Unmarshal(raw, &decoded))
	gt.Map(t, decoded[0]).HasKey("deal")
	gt.Map(t, decoded[0]).HasKey("estimate")
	gt.Map(t, decoded[0]).HasKey("discount")
	gt.Equal(t, decoded[0]["discount"], any(32.0))

	deal, ok := decoded[0]["deal"].(map[string]any)
	gt.True(t, ok)
	gt.Map(t, deal).HasKey("product_description")
	gt.Map(t, deal).HasKey("price")
	gt.Map(t, deal).HasKey("url")
}

func TestWriteOverwrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.NewFile(filepath.Join(t.TempDir(), "memory.json")))

	gt.NoError(t, store.Write(ctx, sampleOpportunities(5)))
	gt.NoError(t, store.Write(ctx, sampleOpportunities(2)))

	got, err := store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, got).Length(2)

	gt.NoError(t, store.Write(ctx, nil))
	got, err = store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, got).Length(0)
}

func TestWriteRejectsInvalidOpportunity(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.json")
	store := memory.New(memory.NewFile(path))

	gt.NoError(t, store.Write(ctx, sampleOpportunities(2)))
	before, err := os.ReadFile(path)
	gt.NoError(t, err)

	broken := append(sampleOpportunities(2), &model.Opportunity{
		Deal:     model.Deal{ProductDescription: "mismatch", Price: 100, URL: "https://example.com/bad"},
		Estimate: 150,
		Discount: 999,
	})
	err = store.Write(ctx, broken)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInconsistentDiscount))

	after, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, string(after), string(before))

	got, err := store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, got).Length(2)

	kept, err := store.ResetKeepFirst(ctx, 1)
	gt.NoError(t, err)
	gt.A(t, kept).Length(1)
}

func TestResetKeepFirst(t *testing.T) {
	ctx := context.Background()
	const length = 4
	original := sampleOpportunities(length)

	for n := 0; n <= length+2; n++ {
		t.Run(fmt.Sprintf("keep %d", n), func(t *testing.T) {
			store := memory.New(memory.NewFile(filepath.Join(t.TempDir(), "memory.json")))
			gt.NoError(t, store.Write(ctx, original))

			kept, err := store.ResetKeepFirst(ctx, n)
			gt.NoError(t, err)

			want := min(n, length)
			gt.A(t, kept).Length(want)

			got, err := store.Read(ctx)
			gt.NoError(t, err)
			gt.A(t, got).Length(want)
			for i := range want {
				gt.Equal(t, *got[i], *original[i])
			}
		})
	}
}

func TestResetKeepFirstWithoutFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.json")
	store := memory.New(memory.NewFile(path))

	kept, err := store.ResetKeepFirst(ctx, memory.DefaultKeep)
	gt.NoError(t, err)
	gt.A(t, kept).Length(0)

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, string(raw), "[]")
}

func TestReadMalformed(t *testing.T) {
	testCases := map[string]string{
		"invalid json":         `[{"deal":`,
		"not an array":         `{"deal": {}}`,
		"null":                 `null`,
		"null entry":           `[null]`,
		"missing estimate":     `[{"deal": {"product_description": "a", "price": 1, "url": "u"}, "discount": 1}]`,
		"missing deal field":   `[{"deal": {"product_description": "a", "price": 1}, "estimate": 2, "discount": 1}]`,
		"unknown key":          `[{"deal": {"product_description": "a", "price": 1, "url": "u"}, "estimate": 2, "discount": 1, "extra": true}]`,
		"wrong type":           `[{"deal": {"product_description": "a", "price": "1", "url": "u"}, "estimate": 2, "discount": 1}]`,
		"inconsistent":         `[{"deal": {"product_description": "a", "price": 1, "url": "u"}, "estimate": 2, "discount": 5}]`,
		"trailing data":        `[] []`,
		"one bad entry of two": `[{"deal": {"product_description": "a", "price": 1, "url": "u"}, "estimate": 2, "discount": 1}, {"deal": 3}]`,
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "memory.json")
			gt.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := memory.New(memory.NewFile(path)).Read(context.Background())
			gt.Error(t, err)
			gt.True(t, errors.Is(err, memory.ErrMalformed))
		})
	}
}

type mockStorage struct {
	objects map[string][]byte
	closed  bool
}

type bufferWriter struct {
	bytes.Buffer
	commit func([]byte)
}

func (w *bufferWriter) Close() error {
	w.commit(w.Bytes())
	return nil
}

func (m *mockStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &bufferWriter{commit: func(b []byte) { m.objects[key] = append([]byte(nil), b...) }}, nil
}

func (m *mockStorage) Close() error {
	m.closed = true
	return nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, adapter.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestGCSBackend(t *testing.T) {
	ctx := context.Background()
	storage := &mockStorage{objects: map[string][]byte{}}
	store := memory.New(memory.NewGCSWithStorage(storage, "bucket", "deals/memory.json"))
	gt.Equal(t, store.Location(), "gs://bucket/deals/memory.json")

	opps, err := store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, opps).Length(0)

	gt.NoError(t, store.Write(ctx, sampleOpportunities(3)))
	gt.Map(t, storage.objects).HasKey("deals/memory.json")

	kept, err := store.ResetKeepFirst(ctx, 1)
	gt.NoError(t, err)
	gt.A(t, kept).Length(1)

	got, err := store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, got).Length(1)

	gt.NoError(t, store.Close())
	gt.True(t, storage.closed)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := memory.Open(ctx, filepath.Join(t.TempDir(), "m.json"))
	gt.NoError(t, err)
	gt.S(t, store.Location()).Contains("m.json")
	gt.NoError(t, store.Close())

	store, err = memory.Open(ctx, "redis://localhost:6379/0?key=deals")
	gt.NoError(t, err)
	gt.Equal(t, store.Location(), "redis://localhost:6379/deals")
	gt.NoError(t, store.Close())

	_, err = memory.Open(ctx, "gs://bucket-only")
	gt.Error(t, err)
}

func TestRedisBackend(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	ctx := context.Background()
	store, err := memory.Open(ctx, url+"?key=dealscope:test:"+t.Name())
	gt.NoError(t, err)

	gt.NoError(t, store.Write(ctx, sampleOpportunities(2)))
	got, err := store.Read(ctx)
	gt.NoError(t, err)
	gt.A(t, got).Length(2)

	_, err = store.ResetKeepFirst(ctx, 0)
	gt.NoError(t, err)
}
