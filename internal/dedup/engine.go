// Package dedup decides, for every scraped candidate item, whether it was
// already delivered or already seen, so the same story is never relayed
// twice. It owns the recent-window similarity cache and drives the durable
// delivery registry and the omission reporter.
package dedup

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/relay/internal/feed"
	"horse.fit/relay/internal/fingerprint"
	"horse.fit/relay/internal/globaltime"
	"horse.fit/relay/internal/registry"
	"horse.fit/relay/internal/report"
	recordschema "horse.fit/relay/schema"
)

type Classification string

const (
	// AlreadyDelivered: the delivery registry has a record of this item
	// going out, today or within the lookback window.
	AlreadyDelivered Classification = "already_delivered"
	// ExactDuplicate: same combined hash as a recently seen item that was
	// not (or no longer provably) delivered.
	ExactDuplicate Classification = "exact_duplicate"
	// NearDuplicate: a cached item cleared its time-tiered similarity bar.
	NearDuplicate Classification = "near_duplicate"
	// Unique: none of the above; the caller may deliver and then commit.
	Unique Classification = "unique"
)

// Decision is the outcome of one evaluation. Only Unique decisions carry a
// Ticket, which is what Commit requires: committing a duplicate is made
// unrepresentable rather than checked at commit time.
type Decision struct {
	Classification Classification
	Fingerprint    fingerprint.Fingerprint
	Similarity     int // rounded percentage; 100 for exact and registry hits
	Elapsed        time.Duration
	MatchedAuthor  string
	MatchedText    string
	MatchedAt      time.Time
	Ticket         *Ticket
}

// IsDuplicate reports whether the item must not be relayed.
func (d Decision) IsDuplicate() bool {
	return d.Classification != Unique
}

// Ticket is the single-use capability to commit a unique item after the
// caller's own delivery succeeded.
type Ticket struct {
	item  feed.Item
	fp    fingerprint.Fingerprint
	topic string
	used  bool
}

type Options struct {
	CacheCapacity int
	Thresholds    Thresholds
}

// Engine is the dedup decision pipeline. One instance per process; all
// cache and current-day index mutation happens under its single mutex, so
// concurrently polled feeds can evaluate near-simultaneous items safely.
type Engine struct {
	mu         sync.Mutex
	cache      *similarityCache
	registry   *registry.Registry
	reporter   *report.Reporter
	thresholds Thresholds
	logger     zerolog.Logger
}

func NewEngine(reg *registry.Registry, rep *report.Reporter, opts Options, logger zerolog.Logger) *Engine {
	thresholds := opts.Thresholds
	if len(thresholds.Tiers) == 0 {
		thresholds = DefaultThresholds()
	}
	return &Engine{
		cache:      newSimilarityCache(opts.CacheCapacity),
		registry:   reg,
		reporter:   rep,
		thresholds: thresholds,
		logger:     logger.With().Str("component", "dedup").Logger(),
	}
}

// Evaluate classifies one candidate item. The checks run in strict order
// and the first hit wins: delivered before, exact cache hit, tiered
// near-duplicate, unique. Unique items enter the cache immediately, so a
// later true duplicate of an item that was evaluated but never delivered
// is still suppressed within the window. Evaluate never fails: all storage
// trouble degrades to "nothing found".
func (e *Engine) Evaluate(item feed.Item) Decision {
	fp := fingerprint.New(item.Text, item.Author, item.MediaRef)
	now := globaltime.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.reporter.ItemAnalyzed()

	if match, ok := e.registry.Lookup(fp, now); ok {
		decision := Decision{
			Classification: AlreadyDelivered,
			Fingerprint:    fp,
			Similarity:     100,
			Elapsed:        match.Elapsed,
			MatchedAuthor:  match.Record.Item.Author,
			MatchedText:    match.Record.Item.Text,
			MatchedAt:      time.UnixMilli(match.Record.Timestamp),
		}
		e.reportOmission(item, fp, decision, now)
		return decision
	}

	if entry, ok := e.cache.findExact(fp); ok {
		decision := Decision{
			Classification: ExactDuplicate,
			Fingerprint:    fp,
			Similarity:     100,
			Elapsed:        now.Sub(entry.InsertedAt),
			MatchedAuthor:  entry.Item.Author,
			MatchedText:    entry.Item.Text,
			MatchedAt:      entry.InsertedAt,
		}
		e.reportOmission(item, fp, decision, now)
		return decision
	}

	if entry, score, ok := e.cache.findNearest(fp, now, e.thresholds); ok {
		decision := Decision{
			Classification: NearDuplicate,
			Fingerprint:    fp,
			Similarity:     int(math.Round(score)),
			Elapsed:        now.Sub(entry.InsertedAt),
			MatchedAuthor:  entry.Item.Author,
			MatchedText:    entry.Item.Text,
			MatchedAt:      entry.InsertedAt,
		}
		e.reportOmission(item, fp, decision, now)
		return decision
	}

	e.cache.insert(Entry{
		Item:        item,
		Fingerprint: fp,
		Topic:       fp.Topic,
		InsertedAt:  now,
	})

	return Decision{
		Classification: Unique,
		Fingerprint:    fp,
		Ticket:         &Ticket{item: item, fp: fp, topic: fp.Topic},
	}
}

// Commit records a delivered item in the registry. It must be called only
// after the caller's own delivery succeeded, with the ticket from the
// Unique decision. Reusing a ticket is a logic error; a failed durable
// write is logged by the registry and does not fail the commit.
func (e *Engine) Commit(t *Ticket, meta registry.DeliveryMeta) (recordschema.SentRecord, error) {
	if t == nil {
		return recordschema.SentRecord{}, errors.New("commit requires the ticket of a unique evaluation")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if t.used {
		return recordschema.SentRecord{}, fmt.Errorf("item by %s already committed", t.item.Author)
	}
	t.used = true

	rec, err := e.registry.Record(t.item, t.fp, meta, globaltime.Now())
	if err != nil {
		// Per the degradation contract the delivery stands; the in-memory
		// index still suppresses re-delivery for this session.
		e.logger.Warn().Err(err).Str("delivery_id", meta.ID).Msg("sent record not durable")
	}
	return rec, nil
}

// CacheSize reports how many entries the similarity cache currently holds.
func (e *Engine) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.size()
}

// ClearCache empties the recent-window cache, as the weekly housekeeping
// cycle does.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.clear()
}

func (e *Engine) reportOmission(item feed.Item, fp fingerprint.Fingerprint, d Decision, now time.Time) {
	e.reporter.RecordOmission(report.Omission{
		Item:           item,
		Classification: string(d.Classification),
		Topic:          fp.Topic,
		Similarity:     d.Similarity,
		MatchedAuthor:  d.MatchedAuthor,
		MatchedText:    d.MatchedText,
		MatchedAt:      d.MatchedAt,
		Elapsed:        d.Elapsed,
	}, now)
}
