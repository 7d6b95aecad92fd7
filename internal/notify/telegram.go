// Package notify delivers dedup notifications to an external chat channel.
// The reporter hands over structured records; formatting and transport live
// here.
package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/relay/internal/report"
)

const (
	telegramAPIBase = "https://api.telegram.org/bot"
	requestTimeout  = 10 * time.Second
)

var errBadRequest = errors.New("telegram rejected the message")

// Telegram pushes messages through the Telegram Bot API.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewTelegram(token, chatID string, logger zerolog.Logger) *Telegram {
	return &Telegram{
		baseURL: telegramAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

func (t *Telegram) PushOmission(rec report.OmissionRecord) error {
	var b strings.Builder
	b.WriteString("🔍 *Duplicate content suppressed*\n\n")
	fmt.Fprintf(&b, "📰 Topic: %q\n", rec.Topic)
	fmt.Fprintf(&b, "📺 Source: %s\n", rec.Item.Author)
	fmt.Fprintf(&b, "⏰ Original: %s by %s\n", rec.Detail.MatchedTime, rec.Detail.MatchedAuthor)
	fmt.Fprintf(&b, "🔄 Similarity: %d%%\n", rec.Detail.Similarity)
	fmt.Fprintf(&b, "📊 Seen: %s ago\n\n", rec.Detail.ElapsedHuman)
	b.WriteString("❌ Item will not be relayed")

	return t.send(b.String())
}

func (t *Telegram) PushDailySummary(s report.Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Daily report* — %s\n\n", s.Date)
	if s.Omitted == 0 {
		b.WriteString("✅ No duplicates suppressed today")
		return t.send(b.String())
	}

	fmt.Fprintf(&b, "🚫 Items suppressed: %d\n", s.Omitted)
	fmt.Fprintf(&b, "📈 Items analyzed: %d\n", s.Analyzed)
	fmt.Fprintf(&b, "🎯 Detection rate: %d%%\n", s.Efficiency)

	if len(s.TopAuthors) > 0 {
		b.WriteString("\n*By source:*\n")
		for _, entry := range s.TopAuthors {
			fmt.Fprintf(&b, "  • %s: %d\n", entry.Name, entry.Count)
		}
	}
	if len(s.TopTopics) > 0 {
		b.WriteString("\n*Most repeated topics:*\n")
		for _, entry := range s.TopTopics {
			fmt.Fprintf(&b, "  • %s (%dx)\n", entry.Name, entry.Count)
		}
	}

	return t.send(b.String())
}

func (t *Telegram) send(text string) error {
	err := t.sendWithMode(text, "Markdown")
	if err == nil {
		return nil
	}
	if !errors.Is(err, errBadRequest) {
		return err
	}
	// Markdown fails on content with unbalanced markup; retry plain.
	t.logger.Debug().Msg("markdown push rejected, retrying as plain text")
	return t.sendWithMode(text, "")
}

func (t *Telegram) sendWithMode(text, parseMode string) error {
	url := fmt.Sprintf("%s%s/sendMessage", t.baseURL, t.token)

	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return errBadRequest
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}
	return nil
}
