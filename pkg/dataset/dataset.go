// Package dataset loads catalogue items from bulk sources for ingestion.
package dataset

import (
	"context"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Split names a partition of a dataset
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// ErrUnknownSplit is returned for a split outside train, validation and test
var ErrUnknownSplit = goerr.New("unknown dataset split")

// ParseSplit validates s as a split name
func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case SplitTrain, SplitValidation, SplitTest:
		return Split(s), nil
	}
	return "", goerr.Wrap(ErrUnknownSplit, "invalid split", goerr.V("split", s))
}

// Source reads items of one split. limit <= 0 reads everything.
type Source interface {
	Load(ctx context.Context, split Split, limit int) ([]*model.Item, error)
}

// accept validates item and appends it to items. Invalid items are logged
// and dropped.
func accept(ctx context.Context, items []*model.Item, item *model.Item, origin string) []*model.Item {
	if err := item.Validate(); err != nil {
		logging.From(ctx).Warn("skipping invalid item", "origin", origin, "error", err)
		return items
	}
	return append(items, item)
}

func full(items []*model.Item, limit int) bool {
	return limit > 0 && len(items) >= limit
}
