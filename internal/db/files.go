package db

import (
	"database/sql"
	"fmt"
)

// ImportedFile records the export file state at its last import.
type ImportedFile struct {
	Size         int64
	Mtime        int64
	MessageCount int
}

// ImportedFileInfo returns the recorded state for path. Used for
// fast skip checks during import.
func (db *DB) ImportedFileInfo(path string) (ImportedFile, bool) {
	var f ImportedFile
	err := db.reader.QueryRow(
		"SELECT file_size, file_mtime, message_count"+
			" FROM imported_files WHERE file_path = ?",
		path,
	).Scan(&f.Size, &f.Mtime, &f.MessageCount)
	if err != nil {
		return ImportedFile{}, false
	}
	return f, true
}

// RecordImportedFile stores the state of a successfully imported
// file.
func (db *DB) RecordImportedFile(path string, f ImportedFile) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.writer.Exec(`
		INSERT INTO imported_files (
			file_path, file_size, file_mtime, message_count
		) VALUES (?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_size = excluded.file_size,
			file_mtime = excluded.file_mtime,
			message_count = excluded.message_count,
			imported_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		path, f.Size, f.Mtime, f.MessageCount,
	)
	if err != nil {
		return fmt.Errorf("recording imported file %s: %w", path, err)
	}
	return nil
}

// LoadSkippedFiles returns file_path → file_mtime for files that
// failed to parse, so unchanged bad files are not retried.
func (db *DB) LoadSkippedFiles() (map[string]int64, error) {
	rows, err := db.reader.Query(
		"SELECT file_path, file_mtime FROM skipped_files",
	)
	if err != nil {
		return nil, fmt.Errorf("loading skipped files: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf("scanning skipped file: %w", err)
		}
		result[path] = mtime
	}
	return result, rows.Err()
}

// ReplaceSkippedFiles persists the in-memory skip cache after an
// import pass.
func (db *DB) ReplaceSkippedFiles(entries map[string]int64) error {
	return db.Update(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM skipped_files"); err != nil {
			return fmt.Errorf("clearing skipped files: %w", err)
		}
		stmt, err := tx.Prepare(
			"INSERT INTO skipped_files (file_path, file_mtime)" +
				" VALUES (?, ?)",
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for path, mtime := range entries {
			if _, err := stmt.Exec(path, mtime); err != nil {
				return fmt.Errorf("inserting skipped file %s: %w", path, err)
			}
		}
		return nil
	})
}
