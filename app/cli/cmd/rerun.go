package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/volgapavel/popov-exem/app/cli/cmd/client"
)

type rerunOpts struct {
	watch bool // --watch
}

// NewRerunCommand returns a new instance of a pipectl command
func NewRerunCommand() *cobra.Command {
	var rerunOpts rerunOpts
	command := &cobra.Command{
		Use:   "rerun RUN_ID",
		Short: "rerun the failed tasks of a run, reusing its successful artifacts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}
			ctx := context.Background()
			newID, err := cli.RerunFailed(ctx, args[0])
			if err != nil {
				log.Fatal(err)
			}
			if rerunOpts.watch {
				if err := watch(ctx, newID); err != nil {
					log.Fatal(err)
				}
			} else {
				fmt.Printf("Rerun submitted with run ID %s\n", newID)
			}
		},
	}
	command.Flags().BoolVarP(&rerunOpts.watch, "watch", "w", false, "watch the new run until it completes")
	return command
}
