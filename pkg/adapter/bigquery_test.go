package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewBigQuery(ctx, projectID)
	gt.NoError(t, err)
	defer client.Close()

	rows, err := client.Query(ctx, "SELECT @n AS n, 'kettle' AS title", map[string]any{"n": 3})
	gt.NoError(t, err)
	gt.A(t, rows).Length(1)
	gt.Equal(t, rows[0]["title"], any("kettle"))
}
