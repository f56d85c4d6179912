package adapter

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// BigQuery runs parameterized queries and returns rows as maps
type BigQuery interface {
	// Query runs sql with named parameters (@name) and reads every row
	Query(ctx context.Context, sql string, params map[string]any) ([]map[string]bigquery.Value, error)

	Close() error
}

type bigqueryClient struct {
	client   *bigquery.Client
	location string
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithBigQueryLocation sets the location jobs run in
func WithBigQueryLocation(location string) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.location = location
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client: client,
	}

	for _, opt := range opts {
		opt(bq)
	}
	if bq.location != "" {
		bq.client.Location = bq.location
	}

	return bq, nil
}

func (bq *bigqueryClient) Query(ctx context.Context, sql string, params map[string]any) ([]map[string]bigquery.Value, error) {
	q := bq.client.Query(sql)
	for name, value := range params {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: name, Value: value})
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}

	var rows []map[string]bigquery.Value
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result")
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (bq *bigqueryClient) Close() error {
	return bq.client.Close()
}
