// Command tickhost hosts cooperative scripts.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tickhost/internal/cli"
)

func main() {
	// Subcommands silence cobra's error print; report here once.
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
