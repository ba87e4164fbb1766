package main

import (
	"errors"
	"fmt"
	"os"

	app "github.com/valter-silva-au/lmay/internal"
	"github.com/valter-silva-au/lmay/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Bootstrap = app.Bootstrap

	err := cli.Execute()
	if closeErr := app.Shutdown(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing project state: %v\n", closeErr)
	}
	if err != nil {
		// The report already explains a failed validation.
		if !errors.Is(err, cli.ErrValidationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
