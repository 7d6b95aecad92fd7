package dedup

import (
	"sort"
	"time"

	"horse.fit/relay/internal/feed"
	"horse.fit/relay/internal/fingerprint"
)

// DefaultCacheCapacity bounds the recent-window cache.
const DefaultCacheCapacity = 1000

// evictKeepRatio is the share of capacity kept after a batch eviction.
const evictKeepRatio = 0.8

// Entry is one recently fingerprinted item, delivered or not.
type Entry struct {
	Item        feed.Item
	Fingerprint fingerprint.Fingerprint
	Topic       string
	InsertedAt  time.Time
}

// Tier pairs a maximum elapsed age with the similarity percentage required
// within it.
type Tier struct {
	MaxAge    time.Duration
	Threshold float64
}

// Thresholds is the time-tiered acceptance ladder for near-duplicate
// matching: the bar is low right after first sight and rises as elapsed
// time makes coincidental similarity more likely to be a different event.
type Thresholds struct {
	Tiers    []Tier
	LongTerm float64 // applies beyond the last tier
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Tiers: []Tier{
			{MaxAge: 30 * time.Minute, Threshold: 70},
			{MaxAge: 2 * time.Hour, Threshold: 80},
			{MaxAge: 24 * time.Hour, Threshold: 90},
		},
		LongTerm: 95,
	}
}

// For returns the threshold applying at the given elapsed age.
func (t Thresholds) For(elapsed time.Duration) float64 {
	for _, tier := range t.Tiers {
		if elapsed < tier.MaxAge {
			return tier.Threshold
		}
	}
	return t.LongTerm
}

// similarityCache is the bounded in-memory recent-window store. Entries are
// kept in insertion order; an index by combined hash serves exact lookups.
type similarityCache struct {
	capacity int
	entries  []Entry
	byHash   map[string]int
}

func newSimilarityCache(capacity int) *similarityCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &similarityCache{
		capacity: capacity,
		byHash:   make(map[string]int),
	}
}

func (c *similarityCache) insert(entry Entry) {
	c.entries = append(c.entries, entry)
	c.byHash[entry.Fingerprint.CombinedHash] = len(c.entries) - 1
	if len(c.entries) > c.capacity {
		c.evict()
	}
}

// evict keeps the newest floor(capacity*0.8) entries and discards the rest.
// Coarse batch eviction, not per-insert LRU; eviction is rare relative to
// inserts.
func (c *similarityCache) evict() {
	keep := int(float64(c.capacity) * evictKeepRatio)
	if keep >= len(c.entries) {
		return
	}

	sorted := make([]Entry, len(c.entries))
	copy(sorted, c.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InsertedAt.After(sorted[j].InsertedAt)
	})
	kept := sorted[:keep]

	// Restore insertion order for the survivors.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].InsertedAt.Before(kept[j].InsertedAt)
	})

	c.entries = kept
	c.byHash = make(map[string]int, len(kept))
	for i, entry := range kept {
		c.byHash[entry.Fingerprint.CombinedHash] = i
	}
}

func (c *similarityCache) findExact(fp fingerprint.Fingerprint) (Entry, bool) {
	i, ok := c.byHash[fp.CombinedHash]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// findNearest scans every entry and returns the best near-duplicate whose
// combined similarity clears the threshold of its own time tier. Ties on
// score go to the most recently inserted entry.
func (c *similarityCache) findNearest(fp fingerprint.Fingerprint, now time.Time, thresholds Thresholds) (Entry, float64, bool) {
	best := -1
	bestScore := 0.0

	for i, entry := range c.entries {
		elapsed := now.Sub(entry.InsertedAt)
		required := thresholds.For(elapsed)

		textSim := fingerprint.TextSimilarity(fp.NormalizedText, entry.Fingerprint.NormalizedText)
		mediaSim := fingerprint.MediaSimilarity(fp.MediaRefs, entry.Fingerprint.MediaRefs)
		score := fingerprint.CombinedSimilarity(textSim, mediaSim)

		if score < required {
			continue
		}
		if score > bestScore {
			best = i
			bestScore = score
			continue
		}
		if score == bestScore && best >= 0 && entry.InsertedAt.After(c.entries[best].InsertedAt) {
			best = i
		}
	}

	if best < 0 {
		return Entry{}, 0, false
	}
	return c.entries[best], bestScore, true
}

func (c *similarityCache) size() int {
	return len(c.entries)
}

func (c *similarityCache) clear() {
	c.entries = nil
	c.byHash = make(map[string]int)
}
