package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func priceCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "price",
		Usage:     "Estimate the true value of a product with the pricing ensemble",
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

			ensemble, err := cfg.newEnsemble(ctx, coll)
			if err != nil {
				return err
			}

			price, err := ensemble.Price(ctx, description)
			if err != nil {
				return goerr.Wrap(err, "failed to estimate price")
			}

			fmt.Fprintf(c.Root().Writer, "$%.2f\n", price)
			return nil
		},
	}
}
