// Command racerepro explores and replays event interleavings of a scenario.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/racerepro/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
