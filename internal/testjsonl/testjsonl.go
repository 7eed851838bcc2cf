// Package testjsonl provides JSONL export builders shared by the
// ingest tests and the demo fixture generator.
package testjsonl

import (
	"encoding/json"
	"strings"
)

// Reaction is one reaction on an exported message.
type Reaction struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

// Message describes an exported message line. Empty optional
// fields are omitted from the output.
type Message struct {
	ID        string
	Channel   string
	User      string
	Text      string
	TS        string
	ThreadTS  string
	Sentiment *float64
	Reactions []Reaction
}

// ChannelJSON returns a channel record as a JSON string.
func ChannelJSON(id, name string, members ...string) string {
	m := map[string]any{
		"type": "channel",
		"id":   id,
		"name": name,
	}
	if len(members) > 0 {
		m["members"] = members
	}
	return mustMarshal(m)
}

// UserJSON returns a user record. An empty team is omitted.
func UserJSON(id, name, realName, team string) string {
	m := map[string]any{
		"type":      "user",
		"id":        id,
		"name":      name,
		"real_name": realName,
	}
	if team != "" {
		m["team"] = team
	}
	return mustMarshal(m)
}

// TeamJSON returns a team record listing its members.
func TeamJSON(name string, members ...string) string {
	return mustMarshal(map[string]any{
		"type":    "team",
		"name":    name,
		"members": members,
	})
}

// MessageJSON returns a message record as a JSON string.
func MessageJSON(msg Message) string {
	m := map[string]any{
		"type":    "message",
		"channel": msg.Channel,
		"user":    msg.User,
		"text":    msg.Text,
		"ts":      msg.TS,
	}
	if msg.ID != "" {
		m["id"] = msg.ID
	}
	if msg.ThreadTS != "" {
		m["thread_ts"] = msg.ThreadTS
	}
	if msg.Sentiment != nil {
		m["sentiment"] = *msg.Sentiment
	}
	if len(msg.Reactions) > 0 {
		m["reactions"] = msg.Reactions
	}
	return mustMarshal(m)
}

// Score returns a pointer to s for Message.Sentiment.
func Score(s float64) *float64 { return &s }

// JoinJSONL joins JSON lines with newlines and appends a
// trailing newline.
func JoinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// ExportBuilder constructs JSONL export content using a fluent
// API.
type ExportBuilder struct {
	lines []string
}

// NewExportBuilder returns a new empty ExportBuilder.
func NewExportBuilder() *ExportBuilder {
	return &ExportBuilder{}
}

// AddChannel appends a channel line.
func (b *ExportBuilder) AddChannel(
	id, name string, members ...string,
) *ExportBuilder {
	b.lines = append(b.lines, ChannelJSON(id, name, members...))
	return b
}

// AddUser appends a user line.
func (b *ExportBuilder) AddUser(
	id, name, realName, team string,
) *ExportBuilder {
	b.lines = append(b.lines, UserJSON(id, name, realName, team))
	return b
}

// AddTeam appends a team line.
func (b *ExportBuilder) AddTeam(
	name string, members ...string,
) *ExportBuilder {
	b.lines = append(b.lines, TeamJSON(name, members...))
	return b
}

// AddMessage appends a message line.
func (b *ExportBuilder) AddMessage(msg Message) *ExportBuilder {
	b.lines = append(b.lines, MessageJSON(msg))
	return b
}

// AddRaw appends an arbitrary raw line.
func (b *ExportBuilder) AddRaw(line string) *ExportBuilder {
	b.lines = append(b.lines, line)
	return b
}

// Len returns the number of lines added so far.
func (b *ExportBuilder) Len() int {
	return len(b.lines)
}

// String returns the JSONL content with a trailing newline.
func (b *ExportBuilder) String() string {
	return JoinJSONL(b.lines...)
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
