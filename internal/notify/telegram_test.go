package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/relay/internal/report"
)

func testTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tg := NewTelegram("test-token", "42", zerolog.Nop())
	tg.baseURL = server.URL + "/bot"
	return tg
}

func TestPushOmission_SendsMarkdownMessage(t *testing.T) {
	t.Parallel()

	var got map[string]any
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	err := tg.PushOmission(report.OmissionRecord{
		Topic: "transit plan",
		Item:  report.OmittedItem{Author: "citydesk"},
		Detail: report.OmissionDetail{
			Similarity:    92,
			MatchedAuthor: "citydesk",
			MatchedTime:   "08:10:00",
			ElapsedHuman:  "25m",
		},
	})
	if err != nil {
		t.Fatalf("push omission: %v", err)
	}
	if got["chat_id"] != "42" {
		t.Fatalf("unexpected chat id: %v", got["chat_id"])
	}
	if got["parse_mode"] != "Markdown" {
		t.Fatalf("expected markdown parse mode, got %v", got["parse_mode"])
	}
}

func TestSend_RetriesPlainTextOnBadRequest(t *testing.T) {
	t.Parallel()

	calls := 0
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if _, markdown := payload["parse_mode"]; markdown {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := tg.PushDailySummary(report.Summary{Date: "2026-09-01"}); err != nil {
		t.Fatalf("expected plain-text retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
}

func TestSend_ServerErrorPropagates(t *testing.T) {
	t.Parallel()

	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if err := tg.PushDailySummary(report.Summary{Date: "2026-09-01", Omitted: 1, Analyzed: 2}); err == nil {
		t.Fatalf("expected server error to propagate")
	}
}
