package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "check":
		return runCheck(args[1:])
	case "stats":
		return runStats(args[1:])
	case "report":
		return runReport(args[1:])
	case "sweep":
		return runSweep(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "relay CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  relay <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  check    Evaluate candidate item JSON files against the dedup engine")
	fmt.Fprintln(os.Stderr, "  stats    Print session stats and today's omissions")
	fmt.Fprintln(os.Stderr, "  report   Push the daily summary and reset counters")
	fmt.Fprintln(os.Stderr, "  sweep    Delete sent and omission partitions past retention")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"relay <command> -h\" for command-specific flags.")
}
