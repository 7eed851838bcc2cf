// Package db persists the imported workspace (channels, users,
// threads, messages and reactions) along with dashboard state such
// as the channel selection and dismissed insights.
package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// DB manages a write connection and a read-only pool.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // serializes writes
}

// makeDSN builds a SQLite connection string with shared pragmas.
func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "ON")
	params.Set("_mmap_size", "268435456")
	params.Set("_cache_size", "-64000")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// Open creates or opens a SQLite database at the given path with
// one writer connection and a small read-only pool.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	writer, err := sql.Open("sqlite3", makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite3", makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	db := &DB{writer: writer, reader: reader}
	if err := db.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// ensureColumn adds a column if it doesn't already exist.
func (db *DB) ensureColumn(
	table, column, definition string,
) error {
	probe := fmt.Sprintf(
		"SELECT count(*) FROM pragma_table_info('%s')"+
			" WHERE name='%s'",
		table, column,
	)
	var count int
	if err := db.writer.QueryRow(probe).Scan(&count); err != nil {
		return fmt.Errorf(
			"checking column %s.%s: %w", table, column, err,
		)
	}
	if count > 0 {
		return nil
	}
	_, err := db.writer.Exec(fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN %s %s",
		table, column, definition,
	))
	if err == nil {
		return nil
	}
	// Another process may have added it concurrently.
	var check int
	if checkErr := db.writer.QueryRow(probe).Scan(&check); checkErr == nil && check > 0 {
		return nil
	}
	return err
}

func (db *DB) init() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.writer.Exec(schemaSQL); err != nil {
		return err
	}

	// Migration: archived flag arrived with directory sync.
	if err := db.ensureColumn(
		"channels", "is_archived", "INTEGER NOT NULL DEFAULT 0",
	); err != nil {
		return fmt.Errorf("adding is_archived column: %w", err)
	}
	if err := db.ensureColumn(
		"users", "is_bot", "INTEGER NOT NULL DEFAULT 0",
	); err != nil {
		return fmt.Errorf("adding is_bot column: %w", err)
	}
	return nil
}

// Close closes both writer and reader connections.
func (db *DB) Close() error {
	return errors.Join(db.writer.Close(), db.reader.Close())
}

// Update executes fn within a write lock and transaction.
// The transaction is committed if fn returns nil, rolled back
// otherwise.
func (db *DB) Update(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.writer.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Reader returns the read-only connection pool.
func (db *DB) Reader() *sql.DB {
	return db.reader
}
