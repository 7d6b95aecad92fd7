package dedup

import (
	"fmt"
	"testing"
	"time"

	"horse.fit/relay/internal/feed"
	"horse.fit/relay/internal/fingerprint"
)

func cacheEntry(text, author, mediaRef string, insertedAt time.Time) Entry {
	fp := fingerprint.New(text, author, mediaRef)
	return Entry{
		Item:        feed.Item{Text: text, Author: author, MediaRef: mediaRef},
		Fingerprint: fp,
		Topic:       fp.Topic,
		InsertedAt:  insertedAt,
	}
}

func TestThresholds_For(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	if got := th.For(10 * time.Minute); got != 70 {
		t.Fatalf("expected 70 inside 30m, got %f", got)
	}
	if got := th.For(90 * time.Minute); got != 80 {
		t.Fatalf("expected 80 inside 2h, got %f", got)
	}
	if got := th.For(3 * time.Hour); got != 90 {
		t.Fatalf("expected 90 inside 24h, got %f", got)
	}
	if got := th.For(48 * time.Hour); got != 95 {
		t.Fatalf("expected 95 beyond 24h, got %f", got)
	}
}

func TestCache_ExactLookup(t *testing.T) {
	t.Parallel()

	c := newSimilarityCache(10)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	c.insert(cacheEntry("a story about bridges", "desk", "", now))

	fp := fingerprint.New("A story about BRIDGES!", "desk", "")
	entry, ok := c.findExact(fp)
	if !ok {
		t.Fatalf("expected exact hit on equivalent item")
	}
	if entry.Item.Author != "desk" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	other := fingerprint.New("a story about bridges", "otherdesk", "")
	if _, ok := c.findExact(other); ok {
		t.Fatalf("expected different author to miss")
	}
}

func TestCache_EvictionKeepsNewest(t *testing.T) {
	t.Parallel()

	const capacity = 10
	c := newSimilarityCache(capacity)
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	fps := make([]fingerprint.Fingerprint, 0, capacity+1)
	for i := 0; i <= capacity; i++ {
		text := fmt.Sprintf("distinct story number %d with padding words", i)
		entry := cacheEntry(text, "desk", "", base.Add(time.Duration(i)*time.Minute))
		fps = append(fps, entry.Fingerprint)
		c.insert(entry)
	}

	if c.size() > capacity {
		t.Fatalf("expected size <= %d after eviction, got %d", capacity, c.size())
	}
	if c.size() != int(float64(capacity)*evictKeepRatio) {
		t.Fatalf("expected batch eviction down to %d, got %d", int(float64(capacity)*evictKeepRatio), c.size())
	}

	// The oldest insert is gone, the newest survives.
	if _, ok := c.findExact(fps[0]); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok := c.findExact(fps[capacity]); !ok {
		t.Fatalf("expected newest entry to survive eviction")
	}
}

func TestCache_FindNearest_TieBreakPrefersNewest(t *testing.T) {
	t.Parallel()

	c := newSimilarityCache(10)
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	// Both entries score identically against the probe.
	c.insert(cacheEntry("alpha bravo charlie delta echo", "first", "", base))
	c.insert(cacheEntry("alpha bravo charlie delta echo", "second", "", base.Add(5*time.Minute)))

	probe := fingerprint.New("alpha bravo charlie delta", "probe", "")
	entry, score, ok := c.findNearest(probe, base.Add(10*time.Minute), DefaultThresholds())
	if !ok {
		t.Fatalf("expected a near-duplicate hit")
	}
	if score != 80 {
		t.Fatalf("expected score 80, got %f", score)
	}
	if entry.Item.Author != "second" {
		t.Fatalf("expected tie to go to the newest entry, got %q", entry.Item.Author)
	}
}

func TestCache_FindNearest_RespectsTierOfEachEntry(t *testing.T) {
	t.Parallel()

	c := newSimilarityCache(10)
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	// 75% token overlap: subset of 3 out of 4 tokens.
	c.insert(cacheEntry("alpha bravo charlie delta", "desk", "", base))
	probe := fingerprint.New("alpha bravo charlie", "probe", "")

	if _, _, ok := c.findNearest(probe, base.Add(10*time.Minute), DefaultThresholds()); !ok {
		t.Fatalf("expected 75%% to clear the 70 threshold at 10 minutes")
	}
	if _, _, ok := c.findNearest(probe, base.Add(3*time.Hour), DefaultThresholds()); ok {
		t.Fatalf("expected 75%% to miss the 90 threshold at 3 hours")
	}
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	c := newSimilarityCache(10)
	c.insert(cacheEntry("some story", "desk", "", time.Now()))
	c.clear()
	if c.size() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", c.size())
	}
}
