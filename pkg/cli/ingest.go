package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/dealscope/pkg/dataset"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/usecase/ingest"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg           config
		full          bool
		force         bool
		minRequired   int64
		maxItems      int64
		batchSize     int64
		source        string
		split         string
		datasetDir    string
		bigqueryTable string
		hfUser        string
		hfToken       string
		namespace     string
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "full",
			Usage:       "Use the full dataset instead of the lite one",
			Sources:     cli.EnvVars("DEALSCOPE_FULL_DATASET"),
			Destination: &full,
		},
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Delete and rebuild the collection",
			Destination: &force,
		},
		&cli.IntFlag{
			Name:        "min-required",
			Usage:       "Skip ingestion when the collection already holds this many records",
			Value:       ingest.DefaultMinRequired,
			Sources:     cli.EnvVars("DEALSCOPE_MIN_REQUIRED"),
			Destination: &minRequired,
		},
		&cli.IntFlag{
			Name:        "max-items",
			Usage:       "Maximum number of items to load (0 for all)",
			Sources:     cli.EnvVars("DEALSCOPE_MAX_ITEMS"),
			Destination: &maxItems,
		},
		&cli.IntFlag{
			Name:        "batch-size",
			Usage:       "Items embedded and written per batch",
			Value:       ingest.DefaultBatchSize,
			Sources:     cli.EnvVars("DEALSCOPE_BATCH_SIZE"),
			Destination: &batchSize,
		},
		&cli.StringFlag{
			Name:        "dataset-source",
			Usage:       "Item source (hf, bigquery, jsonl)",
			Value:       "hf",
			Sources:     cli.EnvVars("DEALSCOPE_DATASET_SOURCE"),
			Destination: &source,
		},
		&cli.StringFlag{
			Name:        "split",
			Usage:       "Dataset split (train, validation, test)",
			Value:       string(dataset.SplitTrain),
			Destination: &split,
		},
		&cli.StringFlag{
			Name:        "dataset-dir",
			Usage:       "Directory of <split>.jsonl files for the jsonl source",
			Sources:     cli.EnvVars("DEALSCOPE_DATASET_DIR"),
			Destination: &datasetDir,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "Table prefix (dataset.table) for the bigquery source; the split is appended as _<split>",
			Sources:     cli.EnvVars("DEALSCOPE_BIGQUERY_TABLE"),
			Destination: &bigqueryTable,
		},
		&cli.StringFlag{
			Name:        "hf-user",
			Usage:       "HuggingFace user owning the items datasets",
			Value:       dataset.DefaultHFUser,
			Sources:     cli.EnvVars("HF_DATASET_USER"),
			Destination: &hfUser,
		},
		&cli.StringFlag{
			Name:        "hf-token",
			Usage:       "HuggingFace access token",
			Sources:     cli.EnvVars("HF_TOKEN"),
			Destination: &hfToken,
		},
		&cli.StringFlag{
			Name:        "namespace",
			Usage:       "Prefix for record ids that collide with existing ones (defaults to a random id)",
			Destination: &namespace,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Embed catalogue items into the vector store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			s, err := dataset.ParseSplit(split)
			if err != nil {
				return err
			}

			var src dataset.Source
			switch source {
			case "hf":
				var opts []dataset.HFOption
				if hfToken != "" {
					opts = append(opts, dataset.WithHFToken(hfToken))
				}
				src = dataset.NewHuggingFace(dataset.HFDatasetName(hfUser, full), opts...)

			case "bigquery":
				if cfg.project == "" {
					return goerr.New("project is required")
				}
				if bigqueryTable == "" {
					return goerr.New("bigquery-table is required")
				}
				bq, err := adapter.NewBigQuery(ctx, cfg.project)
				if err != nil {
					return goerr.Wrap(err, "failed to create bigquery client")
				}
				defer bq.Close()
				src = dataset.NewBigQuery(bq, bigqueryTable)

			case "jsonl":
				if datasetDir == "" {
					return goerr.New("dataset-dir is required")
				}
				src = dataset.NewJSONL(datasetDir)

			default:
				return goerr.New("unknown dataset source", goerr.V("source", source))
			}

			encoder, err := cfg.newEmbedding(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to create embedding model")
			}

			store, err := cfg.newVectorStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := []ingest.Option{ingest.WithOutput(c.Root().ErrWriter)}
			if namespace != "" {
				opts = append(opts, ingest.WithNamespace(namespace))
			}
			uc := ingest.New(store, encoder, opts...)

			items := func(ctx context.Context) ([]*model.Item, error) {
				return src.Load(ctx, s, int(maxItems))
			}

			count, err := uc.Ingest(ctx, items, ingest.Input{
				Collection:    cfg.collection,
				MinRequired:   int(minRequired),
				ForceRecreate: force,
				BatchSize:     int(batchSize),
				MaxItems:      int(maxItems),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to ingest items")
			}

			if count < int(minRequired) {
				logging.From(ctx).Warn("collection holds fewer records than required",
					"count", count, "min_required", minRequired)
			}

			fmt.Fprintf(c.Root().Writer, "Collection %s holds %d records\n", cfg.collection, count)
			return nil
		},
	}
}
