// Command pocket records transcripts and syncs them to a companion device.
package main

import (
	"fmt"
	"os"

	"github.com/TheEleventhAvatar/pocket/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
