// Package firestore stores vectors in Cloud Firestore and queries them with
// native vector search. A vector index on the "embedding" field is required
// for Query.
package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// maxWritesPerTransaction is the Firestore limit on writes in one commit
	maxWritesPerTransaction = 500

	distanceField = "vector_distance"
	countAlias    = "all"
)

type vectorDoc struct {
	Document  string             `firestore:"document"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	Category  string             `firestore:"category"`
	Price     float64            `firestore:"price"`
}

// Store implements vectorstore.Store on a Firestore database
type Store struct {
	client *firestore.Client
}

var _ vectorstore.Store = (*Store)(nil)

// New connects to the Firestore database
func New(ctx context.Context, projectID, databaseID string) (*Store, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Store{client: client}, nil
}

// Collection returns a handle. Firestore collections exist implicitly once
// the first document is written.
func (s *Store) Collection(ctx context.Context, name string) (vectorstore.Collection, error) {
	if name == "" {
		return nil, goerr.New("collection name is empty")
	}
	return &Collection{client: s.client, name: name}, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	iter := s.client.Collection(name).Select().Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to list documents", goerr.V("collection", name))
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue delete", goerr.V("id", snap.Ref.ID))
		}
		deleted++
	}
	bw.End()

	logging.From(ctx).Debug("deleted firestore collection", "collection", name, "documents", deleted)
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Collection is one Firestore collection of vector documents
type Collection struct {
	client *firestore.Client
	name   string
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) ref() *firestore.CollectionRef {
	return c.client.Collection(c.name)
}

func (c *Collection) Add(ctx context.Context, records []*vectorstore.Record) error {
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	refs := make([]*firestore.DocumentRef, len(records))
	for i, r := range records {
		refs[i] = c.ref().Doc(r.ID)
	}

	// Reject the whole batch before writing anything when an id is taken.
	snaps, err := c.client.GetAll(ctx, refs)
	if err != nil {
		return goerr.Wrap(err, "failed to check existing documents", goerr.V("collection", c.name))
	}
	for _, snap := range snaps {
		if snap.Exists() {
			return goerr.Wrap(vectorstore.ErrIDCollision, "failed to add records",
				goerr.V("collection", c.name), goerr.V("id", snap.Ref.ID))
		}
	}

	var written []*firestore.DocumentRef
	for start := 0; start < len(records); start += maxWritesPerTransaction {
		end := min(start+maxWritesPerTransaction, len(records))
		chunk := records[start:end]

		err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for i, r := range chunk {
				doc := &vectorDoc{
					Document:  r.Document,
					Embedding: firestore.Vector32(r.Embedding),
					Category:  r.Metadata.Category,
					Price:     r.Metadata.Price,
				}
				if err := tx.Create(refs[start+i], doc); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			c.rollback(ctx, written)
			if status.Code(err) == codes.AlreadyExists {
				return goerr.Wrap(vectorstore.ErrIDCollision, "document created concurrently",
					goerr.V("collection", c.name), goerr.V("cause", err.Error()))
			}
			return goerr.Wrap(err, "failed to write documents", goerr.V("collection", c.name))
		}
		written = append(written, refs[start:end]...)
	}

	return nil
}

// rollback removes documents committed by earlier chunks of a failed Add
func (c *Collection) rollback(ctx context.Context, refs []*firestore.DocumentRef) {
	if len(refs) == 0 {
		return
	}

	bw := c.client.BulkWriter(ctx)
	for _, ref := range refs {
		if _, err := bw.Delete(ref); err != nil {
			logging.From(ctx).Warn("failed to roll back document", "id", ref.ID, "error", err)
		}
	}
	bw.End()
}

func (c *Collection) Get(ctx context.Context, opts vectorstore.GetOptions) (*vectorstore.GetResult, error) {
	q := c.ref().Query
	if opts.Include == 0 {
		q = q.Select()
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	result := &vectorstore.GetResult{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read documents", goerr.V("collection", c.name))
		}

		result.IDs = append(result.IDs, snap.Ref.ID)
		if opts.Include == 0 {
			continue
		}

		var doc vectorDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("id", snap.Ref.ID))
		}
		if opts.Include.Has(vectorstore.IncludeDocuments) {
			result.Documents = append(result.Documents, doc.Document)
		}
		if opts.Include.Has(vectorstore.IncludeEmbeddings) {
			result.Embeddings = append(result.Embeddings, []float32(doc.Embedding))
		}
		if opts.Include.Has(vectorstore.IncludeMetadatas) {
			result.Metadatas = append(result.Metadatas, vectorstore.Metadata{Category: doc.Category, Price: doc.Price})
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

	vq := c.ref().FindNearest("embedding", firestore.Vector32(embedding), n, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	var matches []*vectorstore.Match
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to run vector search", goerr.V("collection", c.name))
		}

		var doc vectorDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("id", snap.Ref.ID))
		}

		distance, _ := snap.Data()[distanceField].(float64)
		matches = append(matches, &vectorstore.Match{
			ID:       snap.Ref.ID,
			Document: doc.Document,
			Metadata: vectorstore.Metadata{Category: doc.Category, Price: doc.Price},
			Distance: distance,
		})
	}

	return matches, nil
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	res, err := c.ref().NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count documents", goerr.V("collection", c.name))
	}

	v, ok := res[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected count result type", goerr.V("collection", c.name))
	}
	return int(v.GetIntegerValue()), nil
}
