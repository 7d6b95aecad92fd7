package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ExplicitFile(t *testing.T) {
	t.Setenv("RELAY_ENV_TEST_VALUE", "before")

	path := filepath.Join(t.TempDir(), "service.env")
	if err := os.WriteFile(path, []byte("RELAY_ENV_TEST_VALUE=after\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != path {
		t.Fatalf("expected %s to be loaded, got %q", path, loaded)
	}
	if got := os.Getenv("RELAY_ENV_TEST_VALUE"); got != "after" {
		t.Fatalf("expected env file to overlay process env, got %q", got)
	}
}

func TestLoad_MissingDefaultIsFine(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), ".env"), "")
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loader.Load(); err != nil {
		t.Fatalf("missing default env file must not error, got %v", err)
	}
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", filepath.Join(t.TempDir(), "nope.env")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected error for an explicitly requested missing file")
	}
}
