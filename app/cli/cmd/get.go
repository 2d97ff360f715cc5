package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/volgapavel/popov-exem/app/cli/cmd/client"
	"github.com/volgapavel/popov-exem/app/cli/cmd/common"
	"github.com/volgapavel/popov-exem/pkg/api"
)

// NewGetCommand returns a new instance of a pipectl command
func NewGetCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "get [RUN_ID]",
		Short: "get the state of a run, or list all runs when no run ID is given",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}

			ctx := context.Background()
			if len(args) == 0 {
				runs, err := cli.ListRuns(ctx)
				if err != nil {
					log.Fatal(err)
				}
				common.PrintRuns(os.Stdout, runs)
				return
			}

			state, err := cli.RunState(ctx, args[0])
			if err != nil {
				log.Fatal(err)
			}
			common.PrintRun(os.Stdout, api.RunState(state), common.PrintOptions{})
		},
	}
	return command
}
