package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

// UnclassifiedTopic is used when no significant words survive normalization.
const UnclassifiedTopic = "unclassified"

const (
	topicMaxWords   = 5
	keywordMaxCount = 10
	significantLen  = 3 // tokens must be longer than this
)

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	mentionPattern  = regexp.MustCompile(`@\w+`)
	hashtagPattern  = regexp.MustCompile(`#\w+`)
	mediaRefPattern = regexp.MustCompile(`[A-Za-z0-9_-]{15,}`)
)

var stopwords = map[string]struct{}{
	"that":  {},
	"this":  {},
	"with":  {},
	"from":  {},
	"have":  {},
	"will":  {},
	"about": {},
	"their": {},
	"there": {},
	"more":  {},
}

// Fingerprint is the derived identity of a candidate item. Two items with
// the same normalized text, author and ordered media refs always produce
// the same CombinedHash.
type Fingerprint struct {
	ContentHash    string
	CombinedHash   string
	NormalizedText string
	MediaRefs      []string
	Topic          string
	Keywords       []string
}

// New derives a fingerprint from raw item fields. Total function: it never
// fails, empty inputs produce a fingerprint of the empty content.
func New(text, author, mediaRef string) Fingerprint {
	normalized := Normalize(text)
	refs := MediaRefs(mediaRef)

	combined := normalized + "|" + author + "|" + strings.Join(refs, ",")

	return Fingerprint{
		ContentHash:    hashHex(normalized),
		CombinedHash:   hashHex(strings.ToLower(combined)),
		NormalizedText: normalized,
		MediaRefs:      refs,
		Topic:          Topic(normalized),
		Keywords:       Keywords(normalized),
	}
}

// Normalize strips URLs, @-mentions and #hashtags, replaces everything that
// is not a letter, digit or whitespace with a space, collapses whitespace
// and lowercases. The result is used verbatim for both hashing and
// similarity scoring.
func Normalize(text string) string {
	cleaned := urlPattern.ReplaceAllString(text, "")
	cleaned = mentionPattern.ReplaceAllString(cleaned, "")
	cleaned = hashtagPattern.ReplaceAllString(cleaned, "")

	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(' ')
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// MediaRefs extracts platform-style opaque media identifiers (alphanumeric,
// underscore or hyphen runs of length >= 15) from a raw media URL or id,
// in order of appearance, duplicates preserved.
func MediaRefs(mediaRef string) []string {
	if strings.TrimSpace(mediaRef) == "" {
		return nil
	}
	return mediaRefPattern.FindAllString(mediaRef, -1)
}

// Topic summarizes normalized text as its first few significant words.
func Topic(normalized string) string {
	words := significantTokens(normalized)
	if len(words) == 0 {
		return UnclassifiedTopic
	}
	if len(words) > topicMaxWords {
		words = words[:topicMaxWords]
	}
	return strings.Join(words, " ")
}

// Keywords returns up to 10 significant non-stopword tokens.
func Keywords(normalized string) []string {
	var out []string
	for _, w := range significantTokens(normalized) {
		if _, ok := stopwords[w]; ok {
			continue
		}
		out = append(out, w)
		if len(out) == keywordMaxCount {
			break
		}
	}
	return out
}

// TextSimilarity is the token-set Jaccard similarity of two normalized
// texts as a percentage. Identical strings score 100 even when they have
// no tokens; distinct token-less strings score 0.
func TextSimilarity(a, b string) float64 {
	if a == b {
		return 100
	}

	aset := tokenSet(a)
	bset := tokenSet(b)
	if len(aset) == 0 || len(bset) == 0 {
		return 0
	}

	intersection := 0
	for tok := range aset {
		if _, ok := bset[tok]; ok {
			intersection++
		}
	}
	union := len(aset) + len(bset) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union) * 100
}

// MediaSimilarity is the share of media refs present on both sides,
// relative to the larger side, as a percentage. Duplicated refs are
// de-duplicated before comparison. Zero when either side has no refs.
func MediaSimilarity(a, b []string) float64 {
	aset := refSet(a)
	bset := refSet(b)
	if len(aset) == 0 || len(bset) == 0 {
		return 0
	}

	shared := 0
	for ref := range aset {
		if _, ok := bset[ref]; ok {
			shared++
		}
	}

	larger := len(aset)
	if len(bset) > larger {
		larger = len(bset)
	}
	return float64(shared) / float64(larger) * 100
}

// CombinedSimilarity blends text and media similarity. Media overlap
// dominates when present: identical media with a different caption is a
// stronger duplicate signal than identical wording alone.
func CombinedSimilarity(textSim, mediaSim float64) float64 {
	if mediaSim == 0 {
		return textSim
	}
	return textSim*0.3 + mediaSim*0.7
}

func significantTokens(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) > significantLen {
			out = append(out, w)
		}
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func refSet(refs []string) map[string]struct{} {
	if len(refs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		set[r] = struct{}{}
	}
	return set
}

func hashHex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
