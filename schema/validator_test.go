package recordschema

import (
	"encoding/json"
	"testing"
)

func TestValidateSentPartition_Valid(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`[
		{
			"id": "del-001",
			"timestamp": 1756710000000,
			"date": "2026-09-01",
			"time": "08:20:00",
			"item": {
				"text": "Mayor announces transit plan",
				"normalizedText": "mayor announces transit plan",
				"author": "citydesk",
				"url": "https://x.example.com/citydesk/1"
			},
			"fingerprint": {
				"contentHash": "abc",
				"combinedHash": "def",
				"mediaRefs": ["AbcDefGhiJkLmNoP"]
			},
			"meta": {
				"channel": "metro",
				"mediaKind": "image",
				"topic": "mayor announces transit plan"
			}
		}
	]`)

	records, err := ValidateSentPartition(raw)
	if err != nil {
		t.Fatalf("expected partition to be valid, got: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Fingerprint.CombinedHash != "def" {
		t.Fatalf("unexpected combined hash: %q", records[0].Fingerprint.CombinedHash)
	}
}

func TestValidateSentPartition_EmptyArray(t *testing.T) {
	t.Parallel()

	records, err := ValidateSentPartition([]byte(`[]`))
	if err != nil {
		t.Fatalf("expected empty partition to be valid, got: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestValidateSentPartition_RejectsCorruptData(t *testing.T) {
	t.Parallel()

	if _, err := ValidateSentPartition([]byte(`[{"id": "x"`)); err == nil {
		t.Fatalf("expected truncated JSON to fail")
	}
	if _, err := ValidateSentPartition([]byte(`{"not":"an array"}`)); err == nil {
		t.Fatalf("expected non-array payload to fail")
	}
	if _, err := ValidateSentPartition([]byte(`[{"id":"x","timestamp":1,"date":"2026-09-01","time":"1:00"}]`)); err == nil {
		t.Fatalf("expected record missing item/fingerprint to fail")
	}
}

func TestValidateCandidateItem_Valid(t *testing.T) {
	t.Parallel()

	item, err := ValidateCandidateItem([]byte(`{
		"text": "Storm warning issued for the coast",
		"author": "weatherdesk",
		"mediaRef": "https://m.example.com/QrStUvWxYzAbCdEf.jpg",
		"seenAt": "2026-09-01T08:00:00Z"
	}`))
	if err != nil {
		t.Fatalf("expected item to be valid, got: %v", err)
	}
	if item.Author != "weatherdesk" {
		t.Fatalf("unexpected author: %q", item.Author)
	}
}

func TestValidateCandidateItem_WhitespaceText(t *testing.T) {
	t.Parallel()

	if _, err := ValidateCandidateItem([]byte(`{"text":"   ","author":"desk"}`)); err == nil {
		t.Fatalf("expected whitespace-only text to fail")
	}
}

func TestValidateCandidateItem_TrailingContent(t *testing.T) {
	t.Parallel()

	if _, err := ValidateCandidateItem([]byte(`{"text":"a story","author":"desk"} extra`)); err == nil {
		t.Fatalf("expected trailing content to fail")
	}
}
