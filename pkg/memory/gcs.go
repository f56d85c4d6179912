package memory

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

// GCS stores the blob as one Cloud Storage object. An object only becomes
// visible when its upload completes, so readers never see partial data.
type GCS struct {
	storage adapter.Storage
	bucket  string
	key     string
}

var _ Backend = (*GCS)(nil)

// NewGCS opens gs://bucket/key
func NewGCS(ctx context.Context, location string) (*GCS, error) {
	bucket, key, err := parseGCSLocation(location)
	if err != nil {
		return nil, err
	}

	storage, err := adapter.NewStorage(ctx, bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open memory bucket", goerr.V("location", location))
	}

	return NewGCSWithStorage(storage, bucket, key), nil
}

// NewGCSWithStorage uses an existing Storage client for bucket
func NewGCSWithStorage(storage adapter.Storage, bucket, key string) *GCS {
	return &GCS{storage: storage, bucket: bucket, key: key}
}

func parseGCSLocation(location string) (string, string, error) {
	rest := strings.TrimPrefix(location, "gs://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", goerr.New("memory location must be gs://bucket/key", goerr.V("location", location))
	}
	return bucket, key, nil
}

func (g *GCS) Location() string {
	return "gs://" + g.bucket + "/" + g.key
}

func (g *GCS) Close() error {
	return g.storage.Close()
}

func (g *GCS) Load(ctx context.Context) ([]byte, bool, error) {
	r, err := g.storage.Get(ctx, g.key)
	if err != nil {
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to read memory object", goerr.V("location", g.Location()))
	}
	return data, true, nil
}

func (g *GCS) Save(ctx context.Context, data []byte) error {
	w, err := g.storage.Put(ctx, g.key)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write memory object", goerr.V("location", g.Location()))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish memory upload", goerr.V("location", g.Location()))
	}
	return nil
}
