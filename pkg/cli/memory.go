package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/dealscope/pkg/memory"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/usecase/framework"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func memoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Inspect or reset the opportunity memory",
		Commands: []*cli.Command{
			memoryListCommand(),
			memoryResetCommand(),
		},
	}
}

func printOpportunities(c *cli.Command, opps []*model.Opportunity) {
	if len(opps) == 0 {
		fmt.Fprintf(c.Root().Writer, "No opportunities\n")
		return
	}
	for i, opp := range opps {
		fmt.Fprintf(c.Root().Writer, "%d. %s\n", i+1, opp)
		fmt.Fprintf(c.Root().Writer, "   %s\n", opp.Deal.ProductDescription)
	}
}

func memoryListCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List remembered opportunities",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			mem, err := cfg.openMemory(ctx)
			if err != nil {
				return err
			}
			defer mem.Close()

			opps, err := mem.Read(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to read memory")
			}

			printOpportunities(c, opps)
			return nil
		},
	}
}

func memoryResetCommand() *cli.Command {
	var (
		cfg  config
		keep int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "keep",
			Aliases:     []string{"k"},
			Usage:       "Number of oldest opportunities to keep",
			Value:       memory.DefaultKeep,
			Destination: &keep,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "reset",
		Usage: "Truncate the memory to its first entries",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			mem, err := cfg.openMemory(ctx)
			if err != nil {
				return err
			}
			defer mem.Close()

			opps, err := framework.New(nil, mem, nil).ResetMemory(ctx, int(keep))
			if err != nil {
				return goerr.Wrap(err, "failed to reset memory")
			}

			fmt.Fprintf(c.Root().Writer, "Memory at %s reset to %d opportunities\n", mem.Location(), len(opps))
			printOpportunities(c, opps)
			return nil
		},
	}
}
