package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/dealscope/pkg/agent/planner"
	"github.com/m-mizutani/dealscope/pkg/agent/scanner"
	"github.com/m-mizutani/dealscope/pkg/policy"
	"github.com/m-mizutani/dealscope/pkg/usecase/framework"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	var (
		cfg       config
		mode      string
		policyDir string
		threshold float64
		feeds     []string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "planner-mode",
			Usage:       "Planner (workflow, autonomous)",
			Sources:     cli.EnvVars("PLANNER_MODE"),
			Destination: &mode,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego files replacing the built-in acceptance policy",
			Sources:     cli.EnvVars("DEALSCOPE_POLICY_DIR"),
			Destination: &policyDir,
		},
		&cli.FloatFlag{
			Name:        "threshold",
			Usage:       "Minimum discount in dollars to notify about a deal",
			Value:       policy.DefaultThreshold,
			Sources:     cli.EnvVars("DEALSCOPE_THRESHOLD"),
			Destination: &threshold,
		},
		&cli.StringSliceFlag{
			Name:        "feed",
			Usage:       "RSS feed URL to scan (repeatable, defaults to dealnews categories)",
			Sources:     cli.EnvVars("DEALSCOPE_FEEDS"),
			Destination: &feeds,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, notifyFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "run",
		Usage: "Run one planning cycle and print the opportunity memory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			store, coll, err := cfg.openCollection(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			mem, err := cfg.openMemory(ctx)
			if err != nil {
				return err
			}
			defer mem.Close()

			factory := func(ctx context.Context, m framework.Mode, coll vectorstore.Collection) (framework.Planner, error) {
				gemini, err := cfg.newGemini(ctx)
				if err != nil {
					return nil, err
				}

				var scanOpts []scanner.Option
				if len(feeds) > 0 {
					scanOpts = append(scanOpts, scanner.WithFeeds(feeds...))
				}
				sc := scanner.New(gemini, scanOpts...)

				estimator, err := cfg.newEnsemble(ctx, coll)
				if err != nil {
					return nil, err
				}
				msg := cfg.newMessenger(ctx)

				if m == framework.ModeWorkflow {
					pol, err := policy.New(ctx, policy.WithDir(policyDir), policy.WithThreshold(threshold))
					if err != nil {
						return nil, err
					}
					return planner.NewWorkflow(sc, estimator, pol, msg), nil
				}
				return planner.NewAutonomous(gemini, sc, estimator, msg, planner.WithThreshold(threshold)), nil
			}

			fw := framework.New(coll, mem, factory, framework.WithMode(framework.ParseMode(mode)))
			opps, err := fw.Run(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to run planning cycle")
			}

			if len(opps) == 0 {
				fmt.Fprintf(c.Root().Writer, "No opportunities yet\n")
				return nil
			}
			for i, opp := range opps {
				fmt.Fprintf(c.Root().Writer, "%d. %s\n", i+1, opp)
			}
			return nil
		},
	}
}
