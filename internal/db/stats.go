package db

import (
	"context"
	"fmt"
)

// Stats holds workspace-level counts.
type Stats struct {
	ChannelCount  int `json:"channel_count"`
	UserCount     int `json:"user_count"`
	TeamCount     int `json:"team_count"`
	ThreadCount   int `json:"thread_count"`
	MessageCount  int `json:"message_count"`
	SelectedCount int `json:"selected_count"`
}

// GetStats returns counts, with the message count read from the
// trigger-maintained stats table.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM channels),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(DISTINCT team) FROM user_teams),
			(SELECT COUNT(*) FROM threads),
			(SELECT value FROM stats WHERE key = 'message_count'),
			(SELECT COUNT(*) FROM selected_channels)`

	var s Stats
	err := db.reader.QueryRowContext(ctx, query).Scan(
		&s.ChannelCount,
		&s.UserCount,
		&s.TeamCount,
		&s.ThreadCount,
		&s.MessageCount,
		&s.SelectedCount,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	return s, nil
}
