// Package main provides the taskcal binary entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/taskcal/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own errors; only unexpected ones are printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
