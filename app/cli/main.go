package main

import (
	"os"

	"github.com/volgapavel/popov-exem/app/cli/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
