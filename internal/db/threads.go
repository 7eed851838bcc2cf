package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/wesm/teampulse/internal/analytics"
)

// maxSQLVars is the maximum bind variables per IN clause to stay
// within SQLite's default SQLITE_MAX_VARIABLE_NUMBER (999).
const maxSQLVars = 500

// inPlaceholders returns a "(?,?,...)" string and []any args for
// a slice of string IDs.
func inPlaceholders(ids []string) (string, []any) {
	ph := make([]byte, 0, 2*len(ids)+1)
	args := make([]any, len(ids))
	ph = append(ph, '(')
	for i, id := range ids {
		if i > 0 {
			ph = append(ph, ',')
		}
		ph = append(ph, '?')
		args[i] = id
	}
	ph = append(ph, ')')
	return string(ph), args
}

// queryChunked executes a callback for each chunk of IDs,
// splitting at maxSQLVars to avoid SQLite bind-variable limits.
func queryChunked(
	ids []string,
	fn func(chunk []string) error,
) error {
	for i := 0; i < len(ids); i += maxSQLVars {
		end := min(i+maxSQLVars, len(ids))
		if err := fn(ids[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// ImportThreads writes threads for one channel, creating the
// channel row if needed. Messages are upserted by id so re-importing
// an export is idempotent. A thread with an empty RootMessageID keeps
// any root already stored. Returns the number of messages written.
func (db *DB) ImportThreads(
	channelID string, threads []analytics.Thread,
) (int, error) {
	written := 0
	err := db.Update(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO channels (id) VALUES (?)",
			channelID,
		); err != nil {
			return fmt.Errorf("ensuring channel %s: %w", channelID, err)
		}
		for _, th := range threads {
			n, err := importThreadTx(tx, channelID, th)
			if err != nil {
				return err
			}
			written += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func importThreadTx(
	tx *sql.Tx, channelID string, th analytics.Thread,
) (int, error) {
	if _, err := tx.Exec(`
		INSERT INTO threads (channel_id, id, root_message_id)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id, id) DO UPDATE SET
			root_message_id = CASE
				WHEN excluded.root_message_id <> ''
				THEN excluded.root_message_id
				ELSE threads.root_message_id
			END`,
		channelID, th.ID, th.RootMessageID,
	); err != nil {
		return 0, fmt.Errorf("upserting thread %s: %w", th.ID, err)
	}

	for _, m := range th.Messages {
		if _, err := tx.Exec(`
			INSERT INTO messages (
				id, channel_id, thread_id, user_id, text, ts, sentiment
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id,
				text = excluded.text,
				ts = excluded.ts,
				sentiment = excluded.sentiment`,
			m.ID, channelID, th.ID, m.UserID, m.Text,
			formatTS(m.Timestamp), m.Sentiment,
		); err != nil {
			return 0, fmt.Errorf("upserting message %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(
			"DELETE FROM reactions WHERE message_id = ?", m.ID,
		); err != nil {
			return 0, fmt.Errorf("clearing reactions: %w", err)
		}
		for _, r := range m.Reactions {
			users, err := json.Marshal(r.UserIDs)
			if err != nil {
				return 0, fmt.Errorf("encoding reaction users: %w", err)
			}
			if _, err := tx.Exec(`
				INSERT INTO reactions (message_id, name, count, users)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(message_id, name) DO UPDATE SET
					count = count + excluded.count`,
				m.ID, r.Name, r.Count, string(users),
			); err != nil {
				return 0, fmt.Errorf("inserting reaction %s: %w", r.Name, err)
			}
		}
	}
	return len(th.Messages), nil
}

// tsBounds converts a window into stored-timestamp bounds. A zero
// Start or End leaves that side open.
func tsBounds(w analytics.Window) (string, string) {
	lo, hi := "", "9999"
	if !w.Start.IsZero() {
		lo = formatTS(w.Start)
	}
	if !w.End.IsZero() {
		hi = formatTS(w.End)
	}
	return lo, hi
}

// LoadThreads returns channel id → threads holding the messages
// inside w, ordered by thread id and timestamp. Threads without any
// message in w are omitted. A thread whose root was never imported
// reports its earliest stored message as root.
func (db *DB) LoadThreads(
	ctx context.Context, channelIDs []string, w analytics.Window,
) (map[string][]analytics.Thread, error) {
	out := make(map[string][]analytics.Thread, len(channelIDs))
	lo, hi := tsBounds(w)

	uniq := make([]string, 0, len(channelIDs))
	for _, id := range channelIDs {
		if !slices.Contains(uniq, id) {
			uniq = append(uniq, id)
		}
	}

	var msgIDs []string
	type ref struct {
		channel string
		thread  int
		msg     int
	}
	refs := make(map[string]ref)

	err := queryChunked(uniq, func(chunk []string) error {
		ph, args := inPlaceholders(chunk)
		args = append(args, lo, hi)
		rows, err := db.reader.QueryContext(ctx, `
			SELECT m.id, m.channel_id, m.thread_id, m.user_id, m.text,
				m.ts, m.sentiment,
				COALESCE(NULLIF(t.root_message_id, ''), (
					SELECT f.id FROM messages f
					WHERE f.channel_id = m.channel_id
						AND f.thread_id = m.thread_id
					ORDER BY f.ts, f.id LIMIT 1
				), m.thread_id)
			FROM messages m
			LEFT JOIN threads t
				ON t.channel_id = m.channel_id AND t.id = m.thread_id
			WHERE m.channel_id IN `+ph+`
				AND m.ts >= ? AND m.ts < ?
			ORDER BY m.channel_id, m.thread_id, m.ts, m.id`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("querying messages: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m analytics.Message
			var ts, root string
			if err := rows.Scan(
				&m.ID, &m.ChannelID, &m.ThreadID, &m.UserID, &m.Text,
				&ts, &m.Sentiment, &root,
			); err != nil {
				return fmt.Errorf("scanning message: %w", err)
			}
			if m.Timestamp, err = parseTS(ts); err != nil {
				return fmt.Errorf("parsing ts of %s: %w", m.ID, err)
			}
			threads := out[m.ChannelID]
			if n := len(threads); n == 0 || threads[n-1].ID != m.ThreadID {
				threads = append(threads, analytics.Thread{
					ID: m.ThreadID, RootMessageID: root,
				})
			}
			last := &threads[len(threads)-1]
			last.Messages = append(last.Messages, m)
			out[m.ChannelID] = threads
			refs[m.ID] = ref{m.ChannelID, len(threads) - 1, len(last.Messages) - 1}
			msgIDs = append(msgIDs, m.ID)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	err = queryChunked(msgIDs, func(chunk []string) error {
		ph, args := inPlaceholders(chunk)
		rows, err := db.reader.QueryContext(ctx,
			"SELECT message_id, name, count, users FROM reactions"+
				" WHERE message_id IN "+ph+
				" ORDER BY message_id, name",
			args...,
		)
		if err != nil {
			return fmt.Errorf("querying reactions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var msgID, users string
			var r analytics.Reaction
			if err := rows.Scan(&msgID, &r.Name, &r.Count, &users); err != nil {
				return fmt.Errorf("scanning reaction: %w", err)
			}
			if err := json.Unmarshal([]byte(users), &r.UserIDs); err != nil {
				return fmt.Errorf("decoding reaction users: %w", err)
			}
			rf := refs[msgID]
			m := &out[rf.channel][rf.thread].Messages[rf.msg]
			m.Reactions = append(m.Reactions, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneBefore deletes messages older than cutoff and any thread
// left without messages. With dryRun it only counts.
func (db *DB) PruneBefore(cutoff time.Time, dryRun bool) (int, error) {
	hi := formatTS(cutoff)
	if dryRun {
		var n int
		err := db.reader.QueryRow(
			"SELECT COUNT(*) FROM messages WHERE ts < ?", hi,
		).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("counting prunable messages: %w", err)
		}
		return n, nil
	}

	var deleted int64
	err := db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM messages WHERE ts < ?", hi)
		if err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
		deleted, _ = res.RowsAffected()
		_, err = tx.Exec(`
			DELETE FROM threads WHERE NOT EXISTS (
				SELECT 1 FROM messages m
				WHERE m.channel_id = threads.channel_id
					AND m.thread_id = threads.id
			)`)
		if err != nil {
			return fmt.Errorf("deleting empty threads: %w", err)
		}
		return nil
	})
	return int(deleted), err
}
