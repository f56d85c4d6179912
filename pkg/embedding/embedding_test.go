package embedding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/embedding"
	"github.com/m-mizutani/gt"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return m.embedFn(ctx, texts)
}

func TestEncode(t *testing.T) {
	ctx := context.Background()
	m := embedding.New("mock:v1", &mockEmbedder{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, s := range texts {
				out[i] = []float32{float32(len(s)), 1}
			}
			return out, nil
		},
	})

	gt.Equal(t, m.Name(), "mock:v1")

	vectors, err := m.Encode(ctx, []string{"a", "bbb"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(2)
	gt.Equal(t, vectors[1][0], float32(3))

	one, err := m.EncodeOne(ctx, "cc")
	gt.NoError(t, err)
	gt.Equal(t, one[0], float32(2))

	none, err := m.Encode(ctx, nil)
	gt.NoError(t, err)
	gt.A(t, none).Length(0)
}

func TestEncodeRejectsBadOutput(t *testing.T) {
	ctx := context.Background()

	short := embedding.New("mock", &mockEmbedder{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		},
	})
	_, err := short.Encode(ctx, []string{"a", "b"})
	gt.Error(t, err)

	ragged := embedding.New("mock", &mockEmbedder{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 2}, {1}}, nil
		},
	})
	_, err = ragged.Encode(ctx, []string{"a", "b"})
	gt.Error(t, err)

	failure := errors.New("model not loaded")
	broken := embedding.New("mock", &mockEmbedder{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, failure
		},
	})
	_, err = broken.Encode(ctx, []string{"a"})
	gt.True(t, errors.Is(err, failure))
}
