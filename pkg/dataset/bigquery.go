package dataset

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// BigQuery reads items from tables named <prefix>_<split>, where prefix is
// "dataset.table" or "project.dataset.table"
type BigQuery struct {
	client adapter.BigQuery
	prefix string
}

func NewBigQuery(client adapter.BigQuery, prefix string) *BigQuery {
	return &BigQuery{client: client, prefix: prefix}
}

func (b *BigQuery) Load(ctx context.Context, split Split, limit int) ([]*model.Item, error) {
	table := fmt.Sprintf("%s_%s", b.prefix, split)
	sql := fmt.Sprintf("SELECT title, category, price, full, weight, summary, prompt, id FROM `%s`", table)

	var params map[string]any
	if limit > 0 {
		sql += " LIMIT @limit"
		params = map[string]any{"limit": limit}
	}

	rows, err := b.client.Query(ctx, sql, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query dataset table", goerr.V("table", table))
	}

	items := make([]*model.Item, 0, len(rows))
	for i, row := range rows {
		item, err := rowToItem(row)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid dataset row", goerr.V("table", table), goerr.V("row", i))
		}
		items = accept(ctx, items, item, table)
	}
	return items, nil
}

func rowToItem(row map[string]bigquery.Value) (*model.Item, error) {
	item := &model.Item{}

	var err error
	if item.Title, err = stringValue(row, "title"); err != nil {
		return nil, err
	}
	if item.Category, err = stringValue(row, "category"); err != nil {
		return nil, err
	}
	price, err := floatValue(row, "price")
	if err != nil {
		return nil, err
	}
	if price != nil {
		item.Price = *price
	}

	for key, dst := range map[string]**string{
		"full":    &item.Full,
		"summary": &item.Summary,
		"prompt":  &item.Prompt,
	} {
		if v, ok := row[key].(string); ok {
			*dst = &v
		}
	}

	if item.Weight, err = floatValue(row, "weight"); err != nil {
		return nil, err
	}

	switch v := row["id"].(type) {
	case nil:
	case int64:
		item.ID = &v
	default:
		return nil, goerr.New("id is not an integer", goerr.V("value", v))
	}

	return item, nil
}

func stringValue(row map[string]bigquery.Value, key string) (string, error) {
	switch v := row[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", goerr.New("column is not a string", goerr.V("column", key), goerr.V("value", v))
	}
}

func floatValue(row map[string]bigquery.Value, key string) (*float64, error) {
	switch v := row[key].(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case int64:
		f := float64(v)
		return &f, nil
	default:
		return nil, goerr.New("column is not a number", goerr.V("column", key), goerr.V("value", v))
	}
}
