package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/relay/internal/cli"
	"horse.fit/relay/internal/globaltime"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sweep does not accept positional arguments")
		return 2
	}

	rt, err := newRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	now := globaltime.UTC()
	sentRemoved := rt.registry.Sweep(now)
	omissionsRemoved := rt.reporter.Sweep(now)

	fmt.Printf("Removed %d sent partition(s) and %d omission partition(s).\n", sentRemoved, omissionsRemoved)
	return 0
}
