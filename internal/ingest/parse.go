// Package ingest imports pre-scored JSONL workspace exports into
// the store and watches an import directory for new exports.
package ingest

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/db"
	"github.com/wesm/teampulse/internal/timeutil"
)

// messageNamespace seeds deterministic ids for messages exported
// without one, so re-importing a file does not duplicate them.
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("teampulse:message"))

// Export is the parsed content of one JSONL export.
type Export struct {
	Channels []db.Channel
	Users    []db.User
	Teams    map[string]string             // user id → team
	Threads  map[string][]analytics.Thread // channel id → threads
	Messages int
	Skipped  int // lines that were not valid records
}

type rawMessage struct {
	msg analytics.Message
	ts  string
}

// threadKey groups messages by channel and thread.
type threadKey struct {
	channel, thread string
}

// ParseFile opens and parses one export file.
func ParseFile(path string) (Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return Export{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ParseExport(f)
}

// ParseExport reads JSONL records of type channel, user, team and
// message. Lines that are not JSON, have an unknown type, or miss
// required fields are counted in Skipped.
func ParseExport(r io.Reader) (Export, error) {
	exp := Export{
		Teams:   make(map[string]string),
		Threads: make(map[string][]analytics.Thread),
	}
	threads := make(map[threadKey][]rawMessage)

	lr := newLineReader(r, maxLineSize)
	for {
		line, ok, err := lr.next()
		if err != nil {
			return Export{}, fmt.Errorf("reading export: %w", err)
		}
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			exp.Skipped++
			continue
		}
		rec := gjson.Parse(line)
		switch rec.Get("type").Str {
		case "channel":
			ch, ok := parseChannel(rec)
			if !ok {
				exp.Skipped++
				continue
			}
			exp.Channels = append(exp.Channels, ch)
		case "user":
			u, ok := parseUser(rec)
			if !ok {
				exp.Skipped++
				continue
			}
			exp.Users = append(exp.Users, u)
			if team := rec.Get("team").Str; team != "" {
				exp.Teams[u.ID] = team
			}
		case "team":
			name := strings.TrimSpace(rec.Get("name").Str)
			if name == "" {
				exp.Skipped++
				continue
			}
			for _, m := range rec.Get("members").Array() {
				if uid := m.Str; uid != "" {
					exp.Teams[uid] = name
				}
			}
		case "message":
			key, rm, ok := parseMessage(rec)
			if !ok {
				exp.Skipped++
				continue
			}
			threads[key] = append(threads[key], rm)
		default:
			exp.Skipped++
		}
	}
	exp.Skipped += lr.oversized

	for key, msgs := range threads {
		th := assembleThread(key.thread, msgs)
		exp.Threads[key.channel] = append(exp.Threads[key.channel], th)
		exp.Messages += len(th.Messages)
	}
	for ch := range exp.Threads {
		slices.SortFunc(exp.Threads[ch], func(a, b analytics.Thread) int {
			return cmp.Compare(a.ID, b.ID)
		})
	}
	return exp, nil
}

func parseChannel(rec gjson.Result) (db.Channel, bool) {
	id := rec.Get("id").Str
	if id == "" {
		return db.Channel{}, false
	}
	ch := db.Channel{
		ID:         id,
		Name:       strings.TrimPrefix(rec.Get("name").Str, "#"),
		IsPrivate:  rec.Get("is_private").Bool(),
		IsArchived: rec.Get("is_archived").Bool(),
	}
	// Slack exports nest the topic as {"value": ...}.
	if topic := rec.Get("topic"); topic.IsObject() {
		ch.Topic = topic.Get("value").Str
	} else {
		ch.Topic = topic.Str
	}
	if members := rec.Get("members"); members.Exists() {
		ch.MemberIDs = []string{}
		for _, m := range members.Array() {
			if m.Str != "" {
				ch.MemberIDs = append(ch.MemberIDs, m.Str)
			}
		}
	}
	return ch, true
}

func parseUser(rec gjson.Result) (db.User, bool) {
	id := rec.Get("id").Str
	if id == "" {
		return db.User{}, false
	}
	display := ""
	for _, path := range []string{
		"profile.display_name", "display_name",
		"real_name", "profile.real_name",
	} {
		if v := strings.TrimSpace(rec.Get(path).Str); v != "" {
			display = v
			break
		}
	}
	return db.User{
		ID:          id,
		Username:    rec.Get("name").Str,
		DisplayName: display,
		IsBot:       rec.Get("is_bot").Bool(),
		Deleted:     rec.Get("deleted").Bool(),
	}, true
}

func parseMessage(rec gjson.Result) (threadKey, rawMessage, bool) {
	channel := rec.Get("channel").Str
	ts := rec.Get("ts").String()
	if channel == "" || ts == "" {
		return threadKey{}, rawMessage{}, false
	}
	when, err := timeutil.Parse(ts)
	if err != nil {
		return threadKey{}, rawMessage{}, false
	}

	user := rec.Get("user").Str
	id := rec.Get("id").Str
	if id == "" {
		id = rec.Get("client_msg_id").Str
	}
	if id == "" {
		id = uuid.NewSHA1(messageNamespace,
			[]byte(channel+"|"+ts+"|"+user)).String()
	}

	thread := rec.Get("thread_ts").String()
	if thread == "" {
		thread = rec.Get("thread_id").String()
	}
	if thread == "" {
		thread = ts
	}

	sentiment := rec.Get("sentiment")
	if sentiment.IsObject() {
		sentiment = sentiment.Get("score")
	}

	m := analytics.Message{
		ID:        id,
		UserID:    user,
		ChannelID: channel,
		ThreadID:  thread,
		Text:      rec.Get("text").Str,
		Timestamp: when,
		Sentiment: sentiment.Float(),
	}
	for _, r := range rec.Get("reactions").Array() {
		name := r.Get("name").Str
		if name == "" {
			continue
		}
		reaction := analytics.Reaction{
			Name:  name,
			Count: int(r.Get("count").Int()),
		}
		for _, u := range r.Get("users").Array() {
			reaction.UserIDs = append(reaction.UserIDs, u.Str)
		}
		m.Reactions = append(m.Reactions, reaction)
	}
	return threadKey{channel, thread}, rawMessage{msg: m, ts: ts}, true
}

// assembleThread orders messages by time and picks the root: the
// message whose ts equals the thread id. A file holding only replies
// leaves RootMessageID empty so a root stored by an earlier import is
// kept. A repeated id keeps the last occurrence.
func assembleThread(id string, raw []rawMessage) analytics.Thread {
	byID := make(map[string]int, len(raw))
	var kept []rawMessage
	for _, rm := range raw {
		if i, ok := byID[rm.msg.ID]; ok {
			kept[i] = rm
			continue
		}
		byID[rm.msg.ID] = len(kept)
		kept = append(kept, rm)
	}
	slices.SortStableFunc(kept, func(a, b rawMessage) int {
		if c := a.msg.Timestamp.Compare(b.msg.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.msg.ID, b.msg.ID)
	})

	th := analytics.Thread{ID: id}
	for _, rm := range kept {
		if rm.ts == id {
			th.RootMessageID = rm.msg.ID
		}
		th.Messages = append(th.Messages, rm.msg)
	}
	return th
}
