package storage

import (
	"testing"
)

func TestDir_WriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store: %v", err)
	}

	if err := store.Write("sent-2026-09-01.json", []byte(`[]`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, ok, err := store.Read("sent-2026-09-01.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatalf("expected file to exist")
	}
	if string(data) != `[]` {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestDir_ReadMissing(t *testing.T) {
	t.Parallel()

	store, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store: %v", err)
	}

	_, ok, err := store.Read("sent-1999-01-01.json")
	if err != nil {
		t.Fatalf("expected missing file to be a clean miss, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing file")
	}
}

func TestDir_ListSortsDescendingByName(t *testing.T) {
	t.Parallel()

	store, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store: %v", err)
	}

	for _, name := range []string{"sent-2026-08-30.json", "sent-2026-09-01.json", "sent-2026-08-31.json", "omissions-2026-09-01.json"} {
		if err := store.Write(name, []byte(`[]`)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	names, err := store.List("sent-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 sent partitions, got %v", names)
	}
	if names[0] != "sent-2026-09-01.json" || names[2] != "sent-2026-08-30.json" {
		t.Fatalf("expected newest-first ordering, got %v", names)
	}
}

func TestDir_RemoveMissingIsNoError(t *testing.T) {
	t.Parallel()

	store, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store: %v", err)
	}
	if err := store.Remove("sent-1999-01-01.json"); err != nil {
		t.Fatalf("expected removing a missing file to succeed, got %v", err)
	}
}
