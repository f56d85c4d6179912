// Package memory is an in-process vector store. Queries scan every record.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
)

// Store keeps collections in process memory
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

var _ vectorstore.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		collections: make(map[string]*Collection),
	}
}

func (s *Store) Collection(ctx context.Context, name string) (vectorstore.Collection, error) {
	if name == "" {
		return nil, goerr.New("collection name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &Collection{name: name, index: make(map[string]int)}
		s.collections[name] = c
	}
	return c, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return goerr.New("collection not found", goerr.V("name", name))
	}
	delete(s.collections, name)
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Collection holds records in insertion order
type Collection struct {
	name    string
	mu      sync.RWMutex
	records []*vectorstore.Record
	index   map[string]int
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Add(ctx context.Context, records []*vectorstore.Record) error {
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if _, ok := c.index[r.ID]; ok {
			return goerr.Wrap(vectorstore.ErrIDCollision, "failed to add records",
				goerr.V("collection", c.name), goerr.V("id", r.ID))
		}
	}

	for _, r := range records {
		copied := *r
		copied.Embedding = append([]float32(nil), r.Embedding...)
		c.index[r.ID] = len(c.records)
		c.records = append(c.records, &copied)
	}
	return nil
}

func (c *Collection) Get(ctx context.Context, opts vectorstore.GetOptions) (*vectorstore.GetResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.records)
	if opts.Limit > 0 && opts.Limit < n {
		n = opts.Limit
	}

	result := &vectorstore.GetResult{IDs: make([]string, 0, n)}
	for _, r := range c.records[:n] {
		result.IDs = append(result.IDs, r.ID)
		if opts.Include.Has(vectorstore.IncludeDocuments) {
			result.Documents = append(result.Documents, r.Document)
		}
		if opts.Include.Has(vectorstore.IncludeEmbeddings) {
			result.Embeddings = append(result.Embeddings, append([]float32(nil), r.Embedding...))
		}
		if opts.Include.Has(vectorstore.IncludeMetadatas) {
			result.Metadatas = append(result.Metadatas, r.Metadata)
		}
	}
	return result, nil
}

func (c *Collection) Query(ctx context.Context, embedding []float32, n int) ([]*vectorstore.Match, error) {
	if len(embedding) == 0 {
		return nil, goerr.New("query embedding is empty")
	}
	if n <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]*vectorstore.Match, 0, len(c.records))
	for _, r := range c.records {
		matches = append(matches, &vectorstore.Match{
			ID:       r.ID,
			Document: r.Document,
			Metadata: r.Metadata,
			Distance: vectorstore.CosineDistance(embedding, r.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}
