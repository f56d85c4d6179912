package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "dealscope",
		Usage: "Find underpriced deals with a retrieval augmented pricing ensemble",
		Commands: []*cli.Command{
			runCommand(),
			ingestCommand(),
			priceCommand(),
			similarCommand(),
			plotCommand(),
			memoryCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
