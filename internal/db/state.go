package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SelectedChannels returns the saved dashboard selection in the
// order it was saved.
func (db *DB) SelectedChannels(ctx context.Context) ([]string, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT channel_id FROM selected_channels ORDER BY position",
	)
	if err != nil {
		return nil, fmt.Errorf("querying selection: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning selection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetSelectedChannels replaces the selection. Duplicates keep their
// first position; an empty list clears the selection.
func (db *DB) SetSelectedChannels(ids []string) error {
	return db.Update(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM selected_channels"); err != nil {
			return fmt.Errorf("clearing selection: %w", err)
		}
		for i, id := range ids {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO selected_channels"+
					" (channel_id, position) VALUES (?, ?)",
				id, i,
			); err != nil {
				return fmt.Errorf("selecting %s: %w", id, err)
			}
		}
		return nil
	})
}

// DismissInsight hides an insight id. Dismissing twice is a no-op.
func (db *DB) DismissInsight(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.writer.Exec(
		"INSERT OR IGNORE INTO dismissed_insights (insight_id) VALUES (?)",
		id,
	)
	if err != nil {
		return fmt.Errorf("dismissing insight %s: %w", id, err)
	}
	return nil
}

// RestoreInsight un-dismisses an insight and reports whether it
// was dismissed.
func (db *DB) RestoreInsight(id string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	res, err := db.writer.Exec(
		"DELETE FROM dismissed_insights WHERE insight_id = ?", id,
	)
	if err != nil {
		return false, fmt.Errorf("restoring insight %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DismissedInsights returns the set of dismissed insight ids.
func (db *DB) DismissedInsights(
	ctx context.Context,
) (map[string]bool, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT insight_id FROM dismissed_insights",
	)
	if err != nil {
		return nil, fmt.Errorf("querying dismissed insights: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning dismissed insight: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}
