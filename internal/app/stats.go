package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/relay/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	rt, err := newRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	snapshot := rt.reporter.Stats()
	omissions := rt.reporter.TodayOmissions()

	if outputFormat == outputFormatJSON {
		payload := map[string]any{
			"analyzed":          snapshot.Analyzed,
			"omitted":           snapshot.Omitted,
			"omissionsByAuthor": snapshot.ByAuthor,
			"omissionsByTopic":  snapshot.ByTopic,
			"sessionStart":      snapshot.SessionStart,
			"sentToday":         rt.registry.TodayCount(),
			"omissionsToday":    omissions,
		}
		if err := printJSON(payload); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	counterRows := [][]string{
		{"analyzed", fmt.Sprintf("%d", snapshot.Analyzed)},
		{"omitted", fmt.Sprintf("%d", snapshot.Omitted)},
		{"sent_today", fmt.Sprintf("%d", rt.registry.TodayCount())},
		{"session_start", snapshot.SessionStart.UTC().Format("2006-01-02 15:04:05")},
	}
	if err := writeTable([]string{"metric", "value"}, counterRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}

	if len(omissions) == 0 {
		return 0
	}

	fmt.Println()
	omissionRows := make([][]string, 0, len(omissions))
	for _, rec := range omissions {
		omissionRows = append(omissionRows, []string{
			rec.Time,
			rec.Classification,
			rec.Item.Author,
			fmt.Sprintf("%d%%", rec.Detail.Similarity),
			rec.Topic,
		})
	}
	if err := writeTable([]string{"time", "classification", "author", "similarity", "topic"}, omissionRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render omissions table: %v\n", err)
		return 1
	}

	return 0
}
