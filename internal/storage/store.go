package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store is the durable storage port for day-partition files and the stats
// object. Implementations must make Write durable before returning.
type Store interface {
	// Read returns the file contents and whether the file exists.
	Read(name string) ([]byte, bool, error)
	Write(name string, data []byte) error
	// List returns file names with the given prefix, sorted descending,
	// so the most recent day partition comes first.
	List(prefix string) ([]string, error)
	Remove(name string) error
}

const (
	writeAttempts = 3
	writeBackoff  = 150 * time.Millisecond
)

// Dir is a Store over a single directory. Writes go through a temp file,
// fsync and rename, with a bounded retry on failure.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Read(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return data, true, nil
}

func (d *Dir) Write(name string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(writeBackoff * time.Duration(attempt))
		}
		if lastErr = d.writeOnce(name, data); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("write %s after %d attempts: %w", name, writeAttempts, lastErr)
}

func (d *Dir) writeOnce(name string, data []byte) error {
	tmp, err := os.CreateTemp(d.root, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(d.root, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (d *Dir) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.root, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || strings.Contains(name, ".tmp-") {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (d *Dir) Remove(name string) error {
	if err := os.Remove(filepath.Join(d.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
