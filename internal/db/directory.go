package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Channel is a channel row plus its member list.
type Channel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Topic      string   `json:"topic"`
	IsPrivate  bool     `json:"isPrivate"`
	IsArchived bool     `json:"isArchived"`
	MemberIDs  []string `json:"memberIds"`
}

// User is a user row with its team assignment, if any.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	IsBot       bool   `json:"isBot"`
	Deleted     bool   `json:"deleted"`
	Team        string `json:"team,omitempty"`
}

func upsertChannelTx(tx *sql.Tx, ch Channel) error {
	_, err := tx.Exec(`
		INSERT INTO channels (id, name, topic, is_private, is_archived)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE channels.name END,
			topic = excluded.topic,
			is_private = excluded.is_private,
			is_archived = excluded.is_archived,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		ch.ID, ch.Name, ch.Topic, ch.IsPrivate, ch.IsArchived,
	)
	if err != nil {
		return fmt.Errorf("upserting channel %s: %w", ch.ID, err)
	}
	if ch.MemberIDs == nil {
		return nil
	}
	if _, err := tx.Exec(
		"DELETE FROM channel_members WHERE channel_id = ?", ch.ID,
	); err != nil {
		return fmt.Errorf("clearing members of %s: %w", ch.ID, err)
	}
	for _, uid := range ch.MemberIDs {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO channel_members"+
				" (channel_id, user_id) VALUES (?, ?)",
			ch.ID, uid,
		); err != nil {
			return fmt.Errorf("inserting member %s: %w", uid, err)
		}
	}
	return nil
}

// UpsertChannels inserts or updates channels. A nil MemberIDs
// leaves the stored membership alone; a non-nil slice replaces it.
func (db *DB) UpsertChannels(chs []Channel) error {
	return db.Update(func(tx *sql.Tx) error {
		for _, ch := range chs {
			if err := upsertChannelTx(tx, ch); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertUserTx(tx *sql.Tx, u User) error {
	_, err := tx.Exec(`
		INSERT INTO users (id, username, display_name, is_bot, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE users.username END,
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE users.display_name END,
			is_bot = excluded.is_bot,
			deleted = excluded.deleted`,
		u.ID, u.Username, u.DisplayName, u.IsBot, u.Deleted,
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

// UpsertUsers inserts or updates users. Empty names never
// overwrite known ones.
func (db *DB) UpsertUsers(users []User) error {
	return db.Update(func(tx *sql.Tx) error {
		for _, u := range users {
			if err := upsertUserTx(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceTeams replaces every team assignment with members
// (user id → team name).
func (db *DB) ReplaceTeams(members map[string]string) error {
	return db.Update(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM user_teams"); err != nil {
			return fmt.Errorf("clearing teams: %w", err)
		}
		stmt, err := tx.Prepare(
			"INSERT INTO user_teams (user_id, team) VALUES (?, ?)",
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for uid, team := range members {
			if team == "" {
				continue
			}
			if _, err := stmt.Exec(uid, team); err != nil {
				return fmt.Errorf("assigning %s to %s: %w", uid, team, err)
			}
		}
		return nil
	})
}

// TeamMembers returns user id → team name.
func (db *DB) TeamMembers(ctx context.Context) (map[string]string, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT user_id, team FROM user_teams",
	)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var uid, team string
		if err := rows.Scan(&uid, &team); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		out[uid] = team
	}
	return out, rows.Err()
}

// ListChannels returns every channel ordered by name, then id.
func (db *DB) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := db.reader.QueryContext(ctx, `
		SELECT id, name, topic, is_private, is_archived
		FROM channels
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	idx := make(map[string]int)
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(
			&ch.ID, &ch.Name, &ch.Topic, &ch.IsPrivate, &ch.IsArchived,
		); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		ch.MemberIDs = []string{}
		idx[ch.ID] = len(out)
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	mrows, err := db.reader.QueryContext(ctx, `
		SELECT channel_id, user_id FROM channel_members
		ORDER BY channel_id, user_id`)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var chID, uid string
		if err := mrows.Scan(&chID, &uid); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		if i, ok := idx[chID]; ok {
			out[i].MemberIDs = append(out[i].MemberIDs, uid)
		}
	}
	return out, mrows.Err()
}

// ListUsers returns every user ordered by id, with teams attached.
func (db *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := db.reader.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.is_bot, u.deleted,
			COALESCE(t.team, '')
		FROM users u
		LEFT JOIN user_teams t ON t.user_id = u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.DisplayName,
			&u.IsBot, &u.Deleted, &u.Team,
		); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
