package feed

import "time"

// Item is one candidate piece of content handed over by the scraper.
// The dedup engine never mutates it.
type Item struct {
	Text     string
	Author   string
	URL      string
	MediaRef string // media URL or opaque media id, may be empty
	SeenAt   time.Time
}
