package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
)

// Input controls one ingestion run
type Input struct {
	Collection    string
	MinRequired   int
	ForceRecreate bool
	BatchSize     int
	// MaxItems caps the number of loaded items; 0 means all
	MaxItems int
}

func (x *Input) setDefaults() {
	if x.Collection == "" {
		x.Collection = DefaultCollection
	}
	if x.MinRequired <= 0 {
		x.MinRequired = DefaultMinRequired
	}
	if x.BatchSize <= 0 {
		x.BatchSize = DefaultBatchSize
	}
}

// Ingest makes sure the collection holds at least MinRequired records and
// returns the record count read back from the store.
func (u *UseCase) Ingest(ctx context.Context, source ItemSource, input Input) (int, error) {
	input.setDefaults()
	logger := logging.From(ctx).With("collection", input.Collection)

	if input.ForceRecreate {
		if err := u.store.DeleteCollection(ctx, input.Collection); err != nil {
			logger.Debug("collection delete ignored", "error", err)
		}
	}

	collection, err := u.store.Collection(ctx, input.Collection)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open collection", goerr.V("collection", input.Collection))
	}

	existing := vectorstore.CountRecords(ctx, collection)
	if !input.ForceRecreate && existing >= input.MinRequired {
		logger.Info("collection already populated", "count", existing, "min_required", input.MinRequired)
		return existing, nil
	}

	items, err := source(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to load items")
	}
	if input.MaxItems > 0 && len(items) > input.MaxItems {
		items = items[:input.MaxItems]
	}

	idStart := existing
	if input.ForceRecreate {
		idStart = 0
	}

	logger.Info("ingesting items",
		"items", len(items),
		"batch_size", input.BatchSize,
		"model", u.encoder.Name(),
		"existing", existing)

	progress := u.startProgress(len(items))
	defer progress.stop()

	for start := 0; start < len(items); start += input.BatchSize {
		end := min(start+input.BatchSize, len(items))
		if err := u.addBatch(ctx, collection, items[start:end], idStart+start); err != nil {
			return 0, err
		}
		progress.update(end)
	}

	count := vectorstore.CountRecords(ctx, collection)
	logger.Info("ingestion finished", "count", count)
	return count, nil
}

func (u *UseCase) addBatch(ctx context.Context, collection vectorstore.Collection, batch []*model.Item, offset int) error {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.Text()
	}

	vectors, err := u.encoder.Encode(ctx, texts)
	if err != nil {
		return goerr.Wrap(err, "failed to embed batch", goerr.V("offset", offset), goerr.V("size", len(batch)))
	}
	if len(vectors) != len(batch) {
		return goerr.New("embedding count does not match batch size",
			goerr.V("offset", offset), goerr.V("expected", len(batch)), goerr.V("actual", len(vectors)))
	}

	records := make([]*vectorstore.Record, len(batch))
	for i, item := range batch {
		records[i] = &vectorstore.Record{
			ID:        recordID(item, offset+i),
			Document:  texts[i],
			Embedding: vectors[i],
			Metadata: vectorstore.Metadata{
				Category: item.Category,
				Price:    item.Price,
			},
		}
	}

	addErr := collection.Add(ctx, records)
	if addErr == nil {
		return nil
	}
	if !errors.Is(addErr, vectorstore.ErrIDCollision) {
		return goerr.Wrap(addErr, "failed to add batch", goerr.V("offset", offset))
	}

	stored, err := collection.Get(ctx, vectorstore.GetOptions{})
	if err != nil {
		return goerr.Wrap(err, "failed to read stored ids", goerr.V("offset", offset))
	}
	taken := make(map[string]struct{}, len(stored.IDs))
	for _, id := range stored.IDs {
		taken[id] = struct{}{}
	}

	// items with an external id that is already stored are skipped, colliding
	// positional ids are moved under the run namespace
	retry := make([]*vectorstore.Record, 0, len(records))
	var skipped, renamed int
	for i, r := range records {
		if _, ok := taken[r.ID]; ok {
			if batch[i].ID != nil {
				skipped++
				continue
			}
			r.ID = u.namespace + "_" + r.ID
			renamed++
		}
		retry = append(retry, r)
	}

	logging.From(ctx).Warn("id collision in batch",
		"namespace", u.namespace,
		"offset", offset,
		"skipped", skipped,
		"renamed", renamed,
		"error", addErr)

	if len(retry) == 0 {
		return nil
	}
	if err := collection.Add(ctx, retry); err != nil {
		return goerr.Wrap(err, "failed to add batch after resolving id collision",
			goerr.V("offset", offset), goerr.V("namespace", u.namespace))
	}
	return nil
}

// recordID derives the record id from the item's external id, or from its
// position when it has none
func recordID(item *model.Item, position int) string {
	if item.ID != nil {
		return fmt.Sprintf("doc_%d", *item.ID)
	}
	return fmt.Sprintf("doc_%d", position)
}

type progress struct {
	s     *spinner.Spinner
	total int
}

func (u *UseCase) startProgress(total int) *progress {
	if u.output == nil {
		return &progress{total: total}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(u.output))
	s.Suffix = fmt.Sprintf(" embedding 0/%d", total)
	s.Start()
	return &progress{s: s, total: total}
}

func (p *progress) update(done int) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" embedding %d/%d", done, p.total)
	p.s.Unlock()
}

func (p *progress) stop() {
	if p.s != nil {
		p.s.Stop()
	}
}
