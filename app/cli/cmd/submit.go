package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/volgapavel/popov-exem/app/cli/cmd/client"
	pclient "github.com/volgapavel/popov-exem/pkg/client"
)

type submitOpts struct {
	watch bool // --watch
}

// NewSubmitCommand returns a new instance of a pipectl command
func NewSubmitCommand() *cobra.Command {
	var submitOpts submitOpts
	command := &cobra.Command{
		Use:   "submit [SPEC_FILE]",
		Short: "submit a pipeline run, the controller's built-in pipeline when no spec file is given",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New()
			if err != nil {
				log.Fatal(err)
			}

			var req pclient.SubmitRequest
			if len(args) == 1 {
				specFile, err := os.Open(args[0])
				if err != nil {
					log.Fatal(errors.Errorf("cannot open file %s", args[0]))
				}
				defer specFile.Close()
				if err := json.NewDecoder(specFile).Decode(&req); err != nil {
					log.Fatal(errors.Wrapf(err, "cannot decode file %s as pipeline specification", args[0]))
				}
			}

			ctx := context.Background()
			runID, err := cli.Submit(ctx, req.PipelineSpec, req.Args)
			if err != nil {
				log.Fatal(err)
			}

			if submitOpts.watch {
				if err := watch(ctx, runID); err != nil {
					log.Fatal(err)
				}
			} else {
				fmt.Printf("Pipeline submitted with run ID %s\n", runID)
			}
		},
	}
	command.Flags().BoolVarP(&submitOpts.watch, "watch", "w", false, "watch the run until it completes")

	return command
}
