// Package report accumulates dedup outcome statistics, persists per-omission
// detail to day-partitioned files, and pushes structured notifications to an
// external channel. The reporter is owned by the dedup engine, which
// serializes all calls.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/relay/internal/feed"
	"horse.fit/relay/internal/storage"
)

const (
	omissionPrefix = "omissions-"
	statsFileName  = "stats.json"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"

	previewLength = 100
	topAuthors    = 5
	topTopics     = 3
)

// Notifier pushes formatted messages to an external chat channel. The
// reporter only supplies structured data; formatting and transport are the
// notifier's concern.
type Notifier interface {
	PushOmission(rec OmissionRecord) error
	PushDailySummary(s Summary) error
}

// Omission is the structured input the engine hands over when it suppresses
// an item.
type Omission struct {
	Item           feed.Item
	Classification string
	Topic          string
	Similarity     int
	MatchedAuthor  string
	MatchedText    string
	MatchedAt      time.Time
	Elapsed        time.Duration
}

// OmissionRecord is one element of an omissions-<date>.json partition.
type OmissionRecord struct {
	ID             string         `json:"id"`
	Timestamp      int64          `json:"timestamp"`
	Date           string         `json:"date"`
	Time           string         `json:"time"`
	Item           OmittedItem    `json:"item"`
	Classification string         `json:"classification"`
	Topic          string         `json:"topic"`
	Detail         OmissionDetail `json:"detail"`
}

type OmittedItem struct {
	Text     string `json:"text"`
	Author   string `json:"author"`
	URL      string `json:"url,omitempty"`
	MediaRef string `json:"mediaRef,omitempty"`
}

type OmissionDetail struct {
	Similarity         int    `json:"similarity"`
	MatchedAuthor      string `json:"matchedAuthor"`
	MatchedTime        string `json:"matchedTime"`
	MatchedTextPreview string `json:"matchedTextPreview"`
	ElapsedHuman       string `json:"elapsedHuman"`
}

// statsFile is the single rewritten-on-change stats object.
type statsFile struct {
	Analyzed          int            `json:"analyzed"`
	Omitted           int            `json:"omitted"`
	OmissionsByAuthor map[string]int `json:"omissionsByAuthor"`
	OmissionsByTopic  map[string]int `json:"omissionsByTopic"`
	SessionStart      string         `json:"sessionStart"`
}

// Snapshot is a read-only view of the running counters.
type Snapshot struct {
	Analyzed     int
	Omitted      int
	ByAuthor     map[string]int
	ByTopic      map[string]int
	SessionStart time.Time
	TodayCount   int
}

type CountEntry struct {
	Name  string
	Count int
}

// Summary is the structured daily report pushed through the notifier.
type Summary struct {
	Date       string
	Analyzed   int
	Omitted    int
	Efficiency int // percent of analyzed items detected as duplicates
	TopAuthors []CountEntry
	TopTopics  []CountEntry
}

type Config struct {
	// Retention bounds how long omission partitions survive Sweep.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{Retention: 7 * 24 * time.Hour}
}

type Reporter struct {
	store    storage.Store
	notifier Notifier
	logger   zerolog.Logger
	cfg      Config

	analyzed     int
	omitted      int
	byAuthor     map[string]int
	byTopic      map[string]int
	sessionStart time.Time
	todays       []OmissionRecord
}

// New builds a reporter. Stats from a previous run are reloaded only when
// their session started on the same calendar day; the notifier may be nil
// to disable pushes.
func New(store storage.Store, notifier Notifier, cfg Config, logger zerolog.Logger, now time.Time) *Reporter {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}

	r := &Reporter{
		store:        store,
		notifier:     notifier,
		logger:       logger.With().Str("component", "report").Logger(),
		cfg:          cfg,
		byAuthor:     make(map[string]int),
		byTopic:      make(map[string]int),
		sessionStart: now,
	}
	r.loadStats(now)
	return r
}

// ItemAnalyzed bumps the analyzed counter. Called once per evaluation.
func (r *Reporter) ItemAnalyzed() {
	r.analyzed++
}

// Flush rewrites the stats object. Omissions persist as they happen; this
// exists so a shutdown after analyze-only traffic does not lose the
// analyzed counter.
func (r *Reporter) Flush() {
	r.persistStats()
}

// RecordOmission counts an omitted item, appends its detail record to the
// day partition, rewrites the stats object and notifies the channel. All
// I/O failures are logged and swallowed.
func (r *Reporter) RecordOmission(o Omission, now time.Time) OmissionRecord {
	r.omitted++
	r.byAuthor[o.Item.Author]++
	r.byTopic[o.Topic]++

	rec := OmissionRecord{
		ID:             uuid.NewString(),
		Timestamp:      now.UnixMilli(),
		Date:           now.Format(dateLayout),
		Time:           now.Format(timeLayout),
		Classification: o.Classification,
		Topic:          o.Topic,
		Item: OmittedItem{
			Text:     o.Item.Text,
			Author:   o.Item.Author,
			URL:      o.Item.URL,
			MediaRef: o.Item.MediaRef,
		},
		Detail: OmissionDetail{
			Similarity:         o.Similarity,
			MatchedAuthor:      o.MatchedAuthor,
			MatchedTime:        o.MatchedAt.Format(timeLayout),
			MatchedTextPreview: preview(o.MatchedText),
			ElapsedHuman:       HumanDuration(o.Elapsed),
		},
	}

	r.todays = append(r.todays, rec)
	r.appendOmission(rec)
	r.persistStats()

	if r.notifier != nil {
		if err := r.notifier.PushOmission(rec); err != nil {
			r.logger.Warn().Err(err).Msg("omission notification failed")
		}
	}

	r.logger.Info().
		Str("classification", rec.Classification).
		Str("author", rec.Item.Author).
		Int("similarity", rec.Detail.Similarity).
		Str("elapsed", rec.Detail.ElapsedHuman).
		Msg("omitted duplicate item")
	return rec
}

// Stats returns a copy of the running counters.
func (r *Reporter) Stats() Snapshot {
	byAuthor := make(map[string]int, len(r.byAuthor))
	for k, v := range r.byAuthor {
		byAuthor[k] = v
	}
	byTopic := make(map[string]int, len(r.byTopic))
	for k, v := range r.byTopic {
		byTopic[k] = v
	}
	return Snapshot{
		Analyzed:     r.analyzed,
		Omitted:      r.omitted,
		ByAuthor:     byAuthor,
		ByTopic:      byTopic,
		SessionStart: r.sessionStart,
		TodayCount:   len(r.todays),
	}
}

// TodayOmissions returns the day's omission records in arrival order.
func (r *Reporter) TodayOmissions() []OmissionRecord {
	out := make([]OmissionRecord, len(r.todays))
	copy(out, r.todays)
	return out
}

// BuildSummary assembles the daily summary from the current counters.
func (r *Reporter) BuildSummary(now time.Time) Summary {
	efficiency := 0
	if r.analyzed > 0 {
		efficiency = int(float64(r.omitted)/float64(r.analyzed)*100 + 0.5)
	}
	return Summary{
		Date:       now.Format(dateLayout),
		Analyzed:   r.analyzed,
		Omitted:    r.omitted,
		Efficiency: efficiency,
		TopAuthors: topEntries(r.byAuthor, topAuthors),
		TopTopics:  topEntries(r.byTopic, topTopics),
	}
}

// PushDailySummary sends the daily summary through the notifier and resets
// the daily counters, mirroring the nightly report cycle.
func (r *Reporter) PushDailySummary(now time.Time) error {
	summary := r.BuildSummary(now)
	if r.notifier != nil {
		if err := r.notifier.PushDailySummary(summary); err != nil {
			return fmt.Errorf("push daily summary: %w", err)
		}
	}

	r.analyzed = 0
	r.omitted = 0
	r.byAuthor = make(map[string]int)
	r.byTopic = make(map[string]int)
	r.todays = nil
	r.sessionStart = now
	r.persistStats()
	return nil
}

// Sweep removes omission partitions older than the retention horizon.
func (r *Reporter) Sweep(now time.Time) int {
	names, err := r.store.List(omissionPrefix)
	if err != nil {
		r.logger.Warn().Err(err).Msg("sweep: listing omission partitions failed")
		return 0
	}

	cutoff := now.Add(-r.cfg.Retention)
	removed := 0
	for _, name := range names {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(name, omissionPrefix), ".json")
		day, err := time.Parse(dateLayout, trimmed)
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := r.store.Remove(name); err != nil {
			r.logger.Warn().Err(err).Str("partition", name).Msg("sweep: remove failed")
			continue
		}
		removed++
	}
	return removed
}

func (r *Reporter) appendOmission(rec OmissionRecord) {
	name := omissionPrefix + rec.Date + ".json"

	var records []OmissionRecord
	data, ok, err := r.store.Read(name)
	if err != nil {
		r.logger.Warn().Err(err).Str("partition", name).Msg("omission partition read failed; starting fresh")
	} else if ok {
		if err := json.Unmarshal(data, &records); err != nil {
			r.logger.Warn().Err(err).Str("partition", name).Msg("omission partition corrupt; starting fresh")
			records = nil
		}
	}

	records = append(records, rec)
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal omission partition failed")
		return
	}
	if err := r.store.Write(name, out); err != nil {
		r.logger.Error().Err(err).Str("partition", name).Msg("omission write dropped")
	}
}

func (r *Reporter) persistStats() {
	stats := statsFile{
		Analyzed:          r.analyzed,
		Omitted:           r.omitted,
		OmissionsByAuthor: r.byAuthor,
		OmissionsByTopic:  r.byTopic,
		SessionStart:      r.sessionStart.UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal stats failed")
		return
	}
	if err := r.store.Write(statsFileName, data); err != nil {
		r.logger.Error().Err(err).Msg("stats write dropped")
	}
}

func (r *Reporter) loadStats(now time.Time) {
	data, ok, err := r.store.Read(statsFileName)
	if err != nil || !ok {
		return
	}

	var stats statsFile
	if err := json.Unmarshal(data, &stats); err != nil {
		r.logger.Warn().Err(err).Msg("previous stats unreadable; starting fresh")
		return
	}

	start, err := time.Parse(time.RFC3339, stats.SessionStart)
	if err != nil || start.Format(dateLayout) != now.Format(dateLayout) {
		return
	}

	r.analyzed = stats.Analyzed
	r.omitted = stats.Omitted
	if stats.OmissionsByAuthor != nil {
		r.byAuthor = stats.OmissionsByAuthor
	}
	if stats.OmissionsByTopic != nil {
		r.byTopic = stats.OmissionsByTopic
	}
	r.sessionStart = start
	r.logger.Info().Int("analyzed", r.analyzed).Int("omitted", r.omitted).Msg("restored same-day stats")
}

func topEntries(counts map[string]int, limit int) []CountEntry {
	entries := make([]CountEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, CountEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

// HumanDuration renders an elapsed duration the way the omission log and
// notifications show it: "3h 25m" or "12m".
func HumanDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
