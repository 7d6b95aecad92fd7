// Package registry keeps the durable, day-partitioned log of items that
// were actually delivered downstream. The current day is indexed in memory
// by combined hash; older days are scanned from disk with a bounded
// lookback. The registry is owned exclusively by the dedup engine, which
// serializes all calls; it performs no locking of its own.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/relay/internal/feed"
	"horse.fit/relay/internal/fingerprint"
	"horse.fit/relay/internal/storage"
	recordschema "horse.fit/relay/schema"
)

const (
	partitionPrefix = "sent-"
	partitionSuffix = ".json"
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
)

type Config struct {
	// LookbackPartitions bounds how many prior day partitions Lookup scans.
	LookbackPartitions int
	// LookbackAge bounds how far back in time Lookup scans, independent of
	// how many partitions exist inside that window. Sparse weeks must not
	// pull older partitions into the scan.
	LookbackAge time.Duration
	// MatchThreshold is the fixed text-similarity percentage for the
	// cross-day fallback. Deliberately stricter than the cache tiers: it
	// targets the same story reposted verbatim days later.
	MatchThreshold float64
	// Retention is how long old partitions survive Sweep.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		LookbackPartitions: 7,
		LookbackAge:        7 * 24 * time.Hour,
		MatchThreshold:     95,
		Retention:          14 * 24 * time.Hour,
	}
}

// Match is a registry hit: the sent record plus time since its delivery.
type Match struct {
	Record  recordschema.SentRecord
	Elapsed time.Duration
}

// DeliveryMeta describes a completed delivery being recorded.
type DeliveryMeta struct {
	ID        string // caller-supplied delivery id
	Channel   string // column/channel label the item went out on
	MediaKind string
}

type Registry struct {
	store  storage.Store
	logger zerolog.Logger
	cfg    Config

	today   string // ISO date the in-memory index belongs to
	index   map[string]recordschema.SentRecord
	records []recordschema.SentRecord
}

// Open loads the current day's partition into the in-memory index. A
// missing or unreadable partition degrades to an empty index, never an
// error.
func Open(store storage.Store, cfg Config, logger zerolog.Logger, now time.Time) *Registry {
	if cfg.LookbackPartitions <= 0 {
		cfg.LookbackPartitions = DefaultConfig().LookbackPartitions
	}
	if cfg.LookbackAge <= 0 {
		cfg.LookbackAge = DefaultConfig().LookbackAge
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultConfig().MatchThreshold
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}

	r := &Registry{
		store:  store,
		logger: logger.With().Str("component", "registry").Logger(),
		cfg:    cfg,
	}
	r.loadDay(now)
	return r
}

// Lookup reports whether an item with this fingerprint was already
// delivered: exact combined-hash match against the current day's index
// first, then a bounded scan of prior partitions where a near-verbatim
// text fallback also counts.
func (r *Registry) Lookup(fp fingerprint.Fingerprint, now time.Time) (Match, bool) {
	r.rollover(now)

	if rec, ok := r.index[fp.CombinedHash]; ok {
		return Match{Record: rec, Elapsed: elapsedSince(rec, now)}, true
	}

	names, err := r.store.List(partitionPrefix)
	if err != nil {
		r.logger.Warn().Err(err).Msg("listing sent partitions failed; treating as not found")
		return Match{}, false
	}

	cutoff := now.Add(-r.cfg.LookbackAge)
	if retentionCutoff := now.Add(-r.cfg.Retention); retentionCutoff.After(cutoff) {
		cutoff = retentionCutoff
	}
	scanned := 0
	for _, name := range names {
		if name == r.partitionName(r.today) {
			continue
		}
		if scanned >= r.cfg.LookbackPartitions {
			break
		}
		day, ok := partitionDate(name)
		if !ok || day.Before(cutoff) {
			continue
		}
		scanned++

		records, ok := r.readPartition(name)
		if !ok {
			continue
		}
		for _, rec := range records {
			if rec.Fingerprint.CombinedHash == fp.CombinedHash {
				return Match{Record: rec, Elapsed: elapsedSince(rec, now)}, true
			}
			if rec.Item.NormalizedText == "" {
				continue
			}
			if fingerprint.TextSimilarity(fp.NormalizedText, rec.Item.NormalizedText) > r.cfg.MatchThreshold {
				return Match{Record: rec, Elapsed: elapsedSince(rec, now)}, true
			}
		}
	}

	return Match{}, false
}

// Record appends a sent record to the current day's partition and updates
// the index. The durable write happens before Record returns; a write
// failure is logged and reported, but the in-memory index is updated
// regardless so the session keeps deduplicating.
func (r *Registry) Record(item feed.Item, fp fingerprint.Fingerprint, meta DeliveryMeta, now time.Time) (recordschema.SentRecord, error) {
	r.rollover(now)

	rec := recordschema.SentRecord{
		ID:        meta.ID,
		Timestamp: now.UnixMilli(),
		Date:      now.Format(dateLayout),
		Time:      now.Format(timeLayout),
		Item: recordschema.SentItem{
			Text:           strings.TrimSpace(item.Text),
			NormalizedText: fp.NormalizedText,
			Author:         item.Author,
			URL:            item.URL,
			MediaRef:       item.MediaRef,
		},
		Fingerprint: recordschema.SentFingerprint{
			ContentHash:  fp.ContentHash,
			CombinedHash: fp.CombinedHash,
			MediaRefs:    fp.MediaRefs,
		},
		Meta: recordschema.SentMeta{
			Channel:   meta.Channel,
			MediaKind: meta.MediaKind,
			Topic:     fp.Topic,
		},
	}

	r.records = append(r.records, rec)
	r.index[fp.CombinedHash] = rec

	data, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return rec, fmt.Errorf("marshal partition: %w", err)
	}
	if err := r.store.Write(r.partitionName(r.today), data); err != nil {
		r.logger.Error().Err(err).Str("partition", r.partitionName(r.today)).Msg("sent record write dropped")
		return rec, err
	}

	r.logger.Info().
		Str("delivery_id", rec.ID).
		Str("author", rec.Item.Author).
		Str("topic", rec.Meta.Topic).
		Msg("recorded delivered item")
	return rec, nil
}

// TodayCount returns the number of deliveries recorded for the current day.
func (r *Registry) TodayCount() int {
	return len(r.records)
}

// TodayRecords returns the current day's records, newest first.
func (r *Registry) TodayRecords() []recordschema.SentRecord {
	out := make([]recordschema.SentRecord, len(r.records))
	copy(out, r.records)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Sweep removes partitions older than the retention horizon and returns
// how many files were deleted.
func (r *Registry) Sweep(now time.Time) int {
	names, err := r.store.List(partitionPrefix)
	if err != nil {
		r.logger.Warn().Err(err).Msg("sweep: listing partitions failed")
		return 0
	}

	cutoff := now.Add(-r.cfg.Retention)
	removed := 0
	for _, name := range names {
		day, ok := partitionDate(name)
		if !ok || !day.Before(cutoff) {
			continue
		}
		if err := r.store.Remove(name); err != nil {
			r.logger.Warn().Err(err).Str("partition", name).Msg("sweep: remove failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("swept old sent partitions")
	}
	return removed
}

func (r *Registry) rollover(now time.Time) {
	if r.today != now.Format(dateLayout) {
		r.loadDay(now)
	}
}

func (r *Registry) loadDay(now time.Time) {
	r.today = now.Format(dateLayout)
	r.index = make(map[string]recordschema.SentRecord)
	r.records = nil

	records, ok := r.readPartition(r.partitionName(r.today))
	if !ok {
		return
	}
	r.records = records
	for _, rec := range records {
		r.index[rec.Fingerprint.CombinedHash] = rec
	}
	r.logger.Info().Int("count", len(records)).Str("date", r.today).Msg("loaded sent records for the day")
}

// readPartition reads and validates one partition. Corrupt or unreadable
// files are skipped with a single log line, per the degradation contract.
func (r *Registry) readPartition(name string) ([]recordschema.SentRecord, bool) {
	data, ok, err := r.store.Read(name)
	if err != nil {
		r.logger.Warn().Err(err).Str("partition", name).Msg("partition read failed; skipping")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	records, err := recordschema.ValidateSentPartition(data)
	if err != nil {
		r.logger.Warn().Err(err).Str("partition", name).Msg("partition failed validation; skipping")
		return nil, false
	}
	return records, true
}

func (r *Registry) partitionName(date string) string {
	return partitionPrefix + date + partitionSuffix
}

func partitionDate(name string) (time.Time, bool) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, partitionPrefix), partitionSuffix)
	day, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func elapsedSince(rec recordschema.SentRecord, now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(rec.Timestamp))
}
