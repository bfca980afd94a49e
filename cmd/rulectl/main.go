package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/scau009/dwlite-sub002/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// commands print their own failures; cobra-level errors (bad flags) are printed here
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
