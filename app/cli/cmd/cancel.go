package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/volgapavel/popov-exem/app/cli/cmd/client"
)

// NewCancelCommand returns a new instance of a pipectl command
func NewCancelCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "cancel RUN_ID",
		Short: "cancel a running run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}
			if err := cli.Cancel(context.Background(), args[0]); err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Run %s cancelled\n", args[0])
		},
	}
	return command
}
