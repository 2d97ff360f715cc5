package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand returns a new instance of the pipectl command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipectl",
		Short: "pipectl is the command line interface to the pipeline controller",
		Run: func(cmd *cobra.Command, args []string) {

		},
	}

	rootCmd.AddCommand(NewSubmitCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewCancelCommand())
	rootCmd.AddCommand(NewRerunCommand())
	return rootCmd
}
