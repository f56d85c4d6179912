package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/usecase/retrieval"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func similarCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of similar items to display",
			Value:       retrieval.DefaultResults,
			Sources:     cli.EnvVars("DEALSCOPE_SIMILAR_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "similar",
		Usage:     "Find catalogue items similar to a description",
		ArgsUsage: "<description>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			description := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if description == "" {
				return goerr.New("description is required")
			}

			store, coll, err := cfg.openCollection(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			encoder, err := cfg.newEmbedding(ctx)
			if err != nil {
				return err
			}

			documents, prices, err := retrieval.New(coll, encoder).QuerySimilars(ctx, description, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to search similar items")
			}

			if len(documents) == 0 {
				fmt.Fprintf(c.Root().Writer, "No similar items found\n")
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Found %d similar items:\n\n", len(documents))
			for i, doc := range documents {
				fmt.Fprintf(c.Root().Writer, "%d. $%.2f\n", i+1, prices[i])
				fmt.Fprintf(c.Root().Writer, "   %s\n\n", doc)
			}
			return nil
		},
	}
}
