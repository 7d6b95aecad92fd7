package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"horse.fit/relay/internal/cli"
	"horse.fit/relay/internal/dedup"
	"horse.fit/relay/internal/feed"
	"horse.fit/relay/internal/globaltime"
	"horse.fit/relay/internal/registry"
	"horse.fit/relay/internal/report"
	recordschema "horse.fit/relay/schema"
)

// checkResult is the per-file outcome printed by the check command.
type checkResult struct {
	File           string `json:"file"`
	Classification string `json:"classification"`
	Similarity     int    `json:"similarity,omitempty"`
	Elapsed        string `json:"elapsed,omitempty"`
	MatchedAuthor  string `json:"matchedAuthor,omitempty"`
	Topic          string `json:"topic"`
	DeliveryID     string `json:"deliveryId,omitempty"`
	Error          string `json:"error,omitempty"`
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	commit := fs.Bool("commit", false, "Record accepted items as delivered")
	channel := fs.String("channel", "", "Channel label recorded on committed deliveries")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "check requires at least one item JSON file")
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

	results := make([]checkResult, 0, fs.NArg())
	failed := false
	for _, path := range fs.Args() {
		result := checkOne(rt, path, *commit, *channel)
		if result.Error != "" {
			failed = true
		}
		results = append(results, result)
	}
	rt.reporter.Flush()

	if outputFormat == outputFormatJSON {
		if err := printJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			detail := r.Error
			if detail == "" && r.Classification != string(dedup.Unique) {
				detail = fmt.Sprintf("%d%% vs %s, %s ago", r.Similarity, r.MatchedAuthor, r.Elapsed)
			}
			if r.DeliveryID != "" {
				detail = "delivery " + r.DeliveryID
			}
			rows = append(rows, []string{r.File, r.Classification, r.Topic, detail})
		}
		if err := writeTable([]string{"file", "classification", "topic", "detail"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
	}

	if failed {
		return 1
	}
	return 0
}

func checkOne(rt *runtime, path string, commit bool, channel string) checkResult {
	result := checkResult{File: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Sprintf("read: %v", err)
		return result
	}

	candidate, err := recordschema.ValidateCandidateItem(raw)
	if err != nil {
		result.Error = fmt.Sprintf("invalid item: %v", err)
		return result
	}

	item := candidateToItem(candidate)
	decision := rt.engine.Evaluate(item)

	result.Classification = string(decision.Classification)
	result.Topic = decision.Fingerprint.Topic
	if decision.IsDuplicate() {
		result.Similarity = decision.Similarity
		result.Elapsed = report.HumanDuration(decision.Elapsed)
		result.MatchedAuthor = decision.MatchedAuthor
		return result
	}

	if !commit {
		return result
	}

	meta := registry.DeliveryMeta{
		ID:        uuid.NewString(),
		Channel:   channel,
		MediaKind: mediaKindFor(item.MediaRef),
	}
	if _, err := rt.engine.Commit(decision.Ticket, meta); err != nil {
		result.Error = fmt.Sprintf("commit: %v", err)
		return result
	}
	result.DeliveryID = meta.ID
	return result
}

func candidateToItem(c *recordschema.CandidateItem) feed.Item {
	item := feed.Item{
		Text:   c.Text,
		Author: c.Author,
		SeenAt: globaltime.UTC(),
	}
	if c.URL != nil {
		item.URL = *c.URL
	}
	if c.MediaRef != nil {
		item.MediaRef = *c.MediaRef
	}
	if c.SeenAt != nil {
		if seen, err := time.Parse(time.RFC3339, *c.SeenAt); err == nil {
			item.SeenAt = seen.UTC()
		}
	}
	return item
}

func mediaKindFor(mediaRef string) string {
	ref := strings.ToLower(mediaRef)
	switch {
	case ref == "":
		return ""
	case strings.Contains(ref, ".mp4"), strings.Contains(ref, ".webm"), strings.Contains(ref, "/video/"):
		return "video"
	default:
		return "photo"
	}
}
