package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/relay/internal/cli"
	"horse.fit/relay/internal/globaltime"
)

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dryRun := fs.Bool("dry-run", false, "Print the summary without pushing or resetting counters")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "report does not accept positional arguments")
		return 2
	}

	rt, err := newRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	now := globaltime.UTC()

	if *dryRun {
		if err := printJSON(rt.reporter.BuildSummary(now)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := rt.reporter.PushDailySummary(now); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to push daily summary: %v\n", err)
		return 1
	}

	fmt.Println("Daily summary pushed; counters reset.")
	return 0
}
