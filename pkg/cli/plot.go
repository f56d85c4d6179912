package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/dealscope/pkg/usecase/framework"
	"github.com/m-mizutani/dealscope/pkg/usecase/visualize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func plotCommand() *cli.Command {
	var (
		cfg           config
		maxDatapoints int64
		output        string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "max-datapoints",
			Usage:       "Maximum number of records to project",
			Value:       visualize.DefaultMaxDatapoints,
			Sources:     cli.EnvVars("DEALSCOPE_MAX_DATAPOINTS"),
			Destination: &maxDatapoints,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output file for the plot JSON (- for stdout)",
			Value:       "plot.json",
			Destination: &output,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "plot",
		Usage: "Project the collection embeddings to 3-D and write them as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			store, coll, err := cfg.openCollection(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			fw := framework.New(coll, nil, nil)
			plot, err := fw.PlotData(ctx, int(maxDatapoints))
			if err != nil {
				return goerr.Wrap(err, "failed to project collection")
			}

			var w io.Writer = c.Root().Writer
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.V("path", output))
				}
				defer f.Close()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(plot); err != nil {
				return goerr.Wrap(err, "failed to write plot", goerr.V("path", output))
			}

			if output != "-" {
				fmt.Fprintf(c.Root().Writer, "Wrote %d points to %s\n", plot.Len(), output)
			}
			return nil
		},
	}
}
