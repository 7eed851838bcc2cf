// Package dbtest holds helpers shared by tests that need a real
// database or files on disk.
package dbtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wesm/teampulse/internal/db"
)

// OpenTestDB opens a fresh database in a temp directory and closes
// it when the test ends.
func OpenTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// WriteTestFile writes content to path, creating parent
// directories.
func WriteTestFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Touch moves path's mtime forward so size/mtime skip checks see
// a change.
func Touch(t *testing.T, path string, d time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	mt := info.ModTime().Add(d)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
