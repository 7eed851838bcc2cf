// Package dashboard answers dashboard queries: it resolves the
// channel scope and time buckets for a request, loads a snapshot
// from the store, and runs the analytics over it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"time"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/db"
	"github.com/wesm/teampulse/internal/insight"
)

const defaultPanelTimeout = 5 * time.Second

// Store is the read side of the database used by the service.
// *db.DB satisfies it.
type Store interface {
	ListChannels(ctx context.Context) ([]db.Channel, error)
	ListUsers(ctx context.Context) ([]db.User, error)
	TeamMembers(ctx context.Context) (map[string]string, error)
	LoadThreads(
		ctx context.Context, channelIDs []string, w analytics.Window,
	) (map[string][]analytics.Thread, error)
	SelectedChannels(ctx context.Context) ([]string, error)
	DismissedInsights(ctx context.Context) (map[string]bool, error)
}

// Options configures a Service.
type Options struct {
	// DefaultTeam buckets users without a team mapping.
	DefaultTeam string
	// Teams overrides team assignments stored in the database.
	Teams        map[string]string
	AgentCommand []string
	RunAgent     insight.GenerateFunc
	PanelTimeout time.Duration
	Now          func() time.Time
}

// Service computes dashboard views. It holds no cache; every call
// reads fresh data.
type Service struct {
	store Store
	opts  Options
}

// New returns a Service reading from store.
func New(store Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PanelTimeout <= 0 {
		opts.PanelTimeout = defaultPanelTimeout
	}
	if opts.DefaultTeam == "" {
		opts.DefaultTeam = analytics.DefaultTeam
	}
	return &Service{store: store, opts: opts}
}

// Query is the scope shared by every view.
type Query struct {
	Range analytics.TimeRange
	// ChannelIDs restricts the scope. When empty the saved
	// selection is used, then every channel.
	ChannelIDs []string
	Location   *time.Location
}

func (q Query) rangeOrDefault() analytics.TimeRange {
	if q.Range == "" {
		return analytics.RangeWeek
	}
	return q.Range
}

func (s *Service) now(q Query) time.Time {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	return s.opts.Now().In(loc)
}

// trailing returns the window of the given length ending at now.
func trailing(now time.Time, days int) analytics.Window {
	return analytics.Window{Start: now.AddDate(0, 0, -days), End: now}
}

func unavailable(what string, err error) error {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", analytics.ErrDataUnavailable, what, err)
}

// degrade logs store failures and drops them so callers render
// the empty value. Context errors are returned.
func degrade(ctx context.Context, view string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, analytics.ErrDataUnavailable) {
		log.Printf("dashboard %s: %v", view, err)
		return nil
	}
	return err
}

// scope resolves the channels a query covers, in display order.
func (s *Service) scope(
	ctx context.Context, ids []string,
) ([]db.Channel, error) {
	all, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, unavailable("listing channels", err)
	}
	if len(ids) == 0 {
		selected, err := s.store.SelectedChannels(ctx)
		if err != nil {
			return nil, unavailable("loading selection", err)
		}
		ids = selected
		if len(pick(all, ids)) == 0 {
			return all, nil
		}
	}
	return pick(all, ids), nil
}

// pick returns the channels named by ids in ids order, skipping
// unknown and repeated ids.
func pick(all []db.Channel, ids []string) []db.Channel {
	byID := make(map[string]db.Channel, len(all))
	for _, ch := range all {
		byID[ch.ID] = ch
	}
	out := make([]db.Channel, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		ch, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ch)
	}
	return out
}

// Teams returns the effective team map: database assignments with
// configured overrides applied.
func (s *Service) Teams(ctx context.Context) (analytics.TeamMap, error) {
	members, err := s.store.TeamMembers(ctx)
	if err != nil {
		return analytics.TeamMap{}, unavailable("loading teams", err)
	}
	merged := make(map[string]string, len(members)+len(s.opts.Teams))
	maps.Copy(merged, members)
	maps.Copy(merged, s.opts.Teams)
	return analytics.TeamMap{Members: merged, Default: s.opts.DefaultTeam}, nil
}

// snapshot loads the scoped channels with their messages inside w.
func (s *Service) snapshot(
	ctx context.Context, q Query, w analytics.Window,
) (analytics.Snapshot, error) {
	chans, err := s.scope(ctx, q.ChannelIDs)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	ids := make([]string, len(chans))
	for i, ch := range chans {
		ids[i] = ch.ID
	}
	threads := map[string][]analytics.Thread{}
	if len(ids) > 0 {
		threads, err = s.store.LoadThreads(ctx, ids, w)
		if err != nil {
			return analytics.Snapshot{}, unavailable("loading messages", err)
		}
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return analytics.Snapshot{}, unavailable("listing users", err)
	}
	teams, err := s.Teams(ctx)
	if err != nil {
		return analytics.Snapshot{}, err
	}

	snap := analytics.Snapshot{
		Channels: make([]analytics.Channel, len(chans)),
		Users:    make([]analytics.User, len(users)),
		Teams:    teams,
	}
	for i, ch := range chans {
		snap.Channels[i] = analytics.Channel{
			ID:        ch.ID,
			Name:      ch.Name,
			MemberIDs: slices.Clone(ch.MemberIDs),
			Threads:   threads[ch.ID],
		}
	}
	for i, u := range users {
		snap.Users[i] = analytics.User{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
		}
	}
	return snap, nil
}

// Trend returns the sentiment trend over the range's trend buckets.
func (s *Service) Trend(
	ctx context.Context, q Query,
) ([]analytics.SentimentPoint, error) {
	pts, err := s.trend(ctx, q)
	return pts, degrade(ctx, "trend", err)
}

func (s *Service) trend(
	ctx context.Context, q Query,
) ([]analytics.SentimentPoint, error) {
	buckets := analytics.TrendBuckets(q.rangeOrDefault(), s.now(q))
	snap, err := s.snapshot(ctx, q, analytics.Span(buckets))
	if err != nil {
		return []analytics.SentimentPoint{}, err
	}
	return analytics.SentimentTrend(snap, buckets), nil
}

// Channels returns per-channel rollups over the range's trailing
// window.
func (s *Service) Channels(
	ctx context.Context, q Query,
) ([]analytics.ChannelMetric, error) {
	rows, err := s.channels(ctx, q)
	return rows, degrade(ctx, "channels", err)
}

func (s *Service) channels(
	ctx context.Context, q Query,
) ([]analytics.ChannelMetric, error) {
	w := trailing(s.now(q), q.rangeOrDefault().LookbackDays())
	snap, err := s.snapshot(ctx, q, w)
	if err != nil {
		return []analytics.ChannelMetric{}, err
	}
	return analytics.ChannelRollups(snap, &w), nil
}

// KPI reduces the channel rollups to the headline numbers.
func (s *Service) KPI(ctx context.Context, q Query) (analytics.KPI, error) {
	k, err := s.kpi(ctx, q)
	return k, degrade(ctx, "kpi", err)
}

func (s *Service) kpi(ctx context.Context, q Query) (analytics.KPI, error) {
	rows, err := s.channels(ctx, q)
	if err != nil {
		return analytics.KPI{}, err
	}
	return analytics.ComputeKPI(rows), nil
}

// TotalsQuery selects an entity totals view.
type TotalsQuery struct {
	Query
	Perspective analytics.Perspective
	// Metric orders the rows when set.
	Metric analytics.MetricKey
	Limit  int
}

// EntityTotals returns per-entity totals for the trailing week,
// scaled to the range.
func (s *Service) EntityTotals(
	ctx context.Context, tq TotalsQuery,
) ([]analytics.EntityTotalMetric, error) {
	rows, err := s.entityTotals(ctx, tq)
	return rows, degrade(ctx, "entity totals", err)
}

func (s *Service) entityTotals(
	ctx context.Context, tq TotalsQuery,
) ([]analytics.EntityTotalMetric, error) {
	w := trailing(s.now(tq.Query), analytics.RangeWeek.LookbackDays())
	snap, err := s.snapshot(ctx, tq.Query, w)
	if err != nil {
		return []analytics.EntityTotalMetric{}, err
	}
	p := tq.Perspective
	if p == "" {
		p = analytics.PerspectiveChannel
	}
	rows := analytics.EntityTotals(snap, p, tq.rangeOrDefault())
	if rows == nil {
		rows = []analytics.EntityTotalMetric{}
	}
	if tq.Metric != "" {
		return analytics.TopN(rows, tq.Metric, tq.Limit), nil
	}
	if tq.Limit > 0 && len(rows) > tq.Limit {
		rows = rows[:tq.Limit]
	}
	return rows, nil
}

// Heatmap builds the grouping × bucket matrix for the range's
// heatmap columns.
func (s *Service) Heatmap(
	ctx context.Context, q Query,
	g analytics.Grouping, m analytics.HeatmapMetric,
) (analytics.HeatmapMatrix, error) {
	buckets := analytics.HeatmapBuckets(q.rangeOrDefault(), s.now(q))
	snap, err := s.snapshot(ctx, q, analytics.Span(buckets))
	if err != nil {
		// Shaped but empty: no rows, the range's columns.
		empty := analytics.BuildHeatmap(analytics.Snapshot{}, g, m, buckets)
		return empty, degrade(ctx, "heatmap", err)
	}
	return analytics.BuildHeatmap(snap, g, m, buckets), nil
}

// Burnout returns warning counts per team or person over the
// range's trend buckets.
func (s *Service) Burnout(
	ctx context.Context, q Query, g analytics.BurnoutGrouping,
) (analytics.BurnoutSeriesResponse, error) {
	buckets := analytics.TrendBuckets(q.rangeOrDefault(), s.now(q))
	snap, err := s.snapshot(ctx, q, analytics.Span(buckets))
	if err != nil {
		empty := analytics.BurnoutSeries(analytics.Snapshot{}, g, buckets)
		return empty, degrade(ctx, "burnout", err)
	}
	return analytics.BurnoutSeries(snap, g, buckets), nil
}

// TopEmojis returns the most used reactions over the range's
// trailing window.
func (s *Service) TopEmojis(
	ctx context.Context, q Query, limit int,
) ([]analytics.EmojiStat, error) {
	w := trailing(s.now(q), q.rangeOrDefault().LookbackDays())
	snap, err := s.snapshot(ctx, q, w)
	if err != nil {
		return []analytics.EmojiStat{}, degrade(ctx, "top emojis", err)
	}
	return analytics.TopEmojis(snap, limit), nil
}
