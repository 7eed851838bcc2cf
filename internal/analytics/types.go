// Package analytics turns pre-scored channel messages into
// time-bucketed trends, per-entity rollups, risk levels, heatmap
// matrices, and burnout warning series. Every function here is
// pure: it reads an immutable Snapshot and returns a fresh value.
package analytics

import (
	"slices"
	"strings"
	"time"
)

// Reaction is an emoji reaction attached to a message.
type Reaction struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	UserIDs []string `json:"users,omitempty"`
}

// Weight returns how many times the reaction was applied. Exports
// sometimes omit count and only list users.
func (r Reaction) Weight() int {
	if r.Count > 0 {
		return r.Count
	}
	if len(r.UserIDs) > 0 {
		return len(r.UserIDs)
	}
	return 1
}

// Message is a single chat message with an already-computed
// sentiment score in [-1, 1].
type Message struct {
	ID        string
	UserID    string
	ChannelID string
	ThreadID  string
	Text      string
	Timestamp time.Time
	Sentiment float64
	Reactions []Reaction
}

// Thread is a root message plus its replies, ordered by time.
// Messages may be a window of the full thread, in which case the
// root can be absent.
type Thread struct {
	ID            string
	RootMessageID string
	Messages      []Message
}

// Root returns the thread's root message if it is present.
func (t Thread) Root() (Message, bool) {
	for _, m := range t.Messages {
		if m.ID == t.RootMessageID {
			return m, true
		}
	}
	return Message{}, false
}

// LastActivity returns the newest message timestamp, or the
// zero time for an empty thread.
func (t Thread) LastActivity() time.Time {
	var last time.Time
	for _, m := range t.Messages {
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	return last
}

// Channel is a conversation channel with its member set and
// threads.
type Channel struct {
	ID        string
	Name      string
	MemberIDs []string
	Threads   []Thread
}

// DisplayName returns the channel name, falling back to its id.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// User is a workspace member.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// Label returns the best human-readable name for the user.
func (u User) Label() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return u.Username
	default:
		return u.ID
	}
}

// DefaultTeam is the bucket for users with no team mapping.
const DefaultTeam = "Unassigned"

// TeamLookup maps a user to the team they belong to.
type TeamLookup interface {
	TeamOf(userID string) string
}

// TeamMap is a TeamLookup backed by a user id → team map.
type TeamMap struct {
	Members map[string]string
	Default string
}

// TeamOf returns the mapped team, or the default bucket.
func (m TeamMap) TeamOf(userID string) string {
	if t := m.Members[userID]; t != "" {
		return t
	}
	if m.Default != "" {
		return m.Default
	}
	return DefaultTeam
}

// Snapshot is the immutable input to every aggregator: the
// channels in scope with their messages, the user directory, and
// team membership.
type Snapshot struct {
	Channels []Channel
	Users    []User
	Teams    TeamLookup
}

// TeamOf resolves a user's team, defaulting when no lookup is set.
func (s Snapshot) TeamOf(userID string) string {
	if s.Teams == nil {
		return DefaultTeam
	}
	return s.Teams.TeamOf(userID)
}

// eachMessage calls fn for every message in scope, channel by
// channel in snapshot order.
func (s Snapshot) eachMessage(fn func(Channel, Thread, Message)) {
	for _, ch := range s.Channels {
		for _, th := range ch.Threads {
			for _, m := range th.Messages {
				fn(ch, th, m)
			}
		}
	}
}

// people returns the sorted ids of every user who either posted
// in a scoped channel or is a member of one.
func (s Snapshot) people() []string {
	seen := make(map[string]bool)
	for _, ch := range s.Channels {
		for _, id := range ch.MemberIDs {
			if id != "" {
				seen[id] = true
			}
		}
	}
	s.eachMessage(func(_ Channel, _ Thread, m Message) {
		if m.UserID != "" {
			seen[m.UserID] = true
		}
	})
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TeamNames returns the sorted team names of everyone in scope.
func (s Snapshot) TeamNames() []string {
	seen := make(map[string]bool)
	for _, id := range s.people() {
		seen[s.TeamOf(id)] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// userLabels maps user ids to display labels.
func (s Snapshot) userLabels() map[string]string {
	labels := make(map[string]string, len(s.Users))
	for _, u := range s.Users {
		labels[u.ID] = u.Label()
	}
	return labels
}

func labelFor(labels map[string]string, id string) string {
	if l := labels[id]; l != "" {
		return l
	}
	return id
}

// TeamID returns the stable id used for a team row.
func TeamID(name string) string {
	return "team-" + strings.ToLower(
		strings.Join(strings.Fields(name), "-"),
	)
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Bucket is a labelled half-open time interval.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the bucket.
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// SentimentPoint is one bucket of the sentiment trend.
type SentimentPoint struct {
	Date         string  `json:"date"`
	Label        string  `json:"label"`
	AvgSentiment float64 `json:"avgSentiment"`
	MessageCount int     `json:"messageCount"`
}

// ChannelMetric is the per-channel summary row.
type ChannelMetric struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AvgSentiment float64   `json:"avgSentiment"`
	Messages     int       `json:"messages"`
	Threads      int       `json:"threads"`
	LastActivity string    `json:"lastActivity"`
	// Risk classifies the reported two-decimal AvgSentiment, not the
	// raw mean.
	Risk         RiskLevel `json:"risk"`
}

// KPI holds the headline dashboard numbers.
type KPI struct {
	AvgSentiment      float64 `json:"avgSentiment"`
	BurnoutRiskCount  int     `json:"burnoutRiskCount"`
	MonitoredChannels int     `json:"monitoredChannels"`
}

// EntityTotalMetric holds volume totals for one channel, team, or
// employee.
type EntityTotalMetric struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Messages  int    `json:"messages"`
	Threads   int    `json:"threads"`
	Responses int    `json:"responses"`
	Emojis    int    `json:"emojis"`
}

// HeatmapMatrix is a rows × cols grid of cell values.
type HeatmapMatrix struct {
	Rows   []string    `json:"rows"`
	Cols   []string    `json:"cols"`
	Values [][]float64 `json:"values"`
}

// BurnoutPoint is one bucket of a burnout warning series.
type BurnoutPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// BurnoutSeriesResponse maps entity names to warning series that
// share bucket labels. Order lists the names in display order.
type BurnoutSeriesResponse struct {
	Label  string                    `json:"label"`
	Series map[string][]BurnoutPoint `json:"series"`
	Order  []string                  `json:"order"`
}

// EmojiStat is a reaction name with its total weight.
type EmojiStat struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}
