package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/wesm/teampulse/internal/analytics"
)

// Overview combines the first-paint panels. A panel that fails or
// times out holds its empty value and is named in Errors.
type Overview struct {
	Trend        []analytics.SentimentPoint    `json:"trend"`
	KPI          analytics.KPI                 `json:"kpi"`
	Channels     []analytics.ChannelMetric     `json:"channels"`
	EntityTotals []analytics.EntityTotalMetric `json:"entityTotals"`
	Errors       map[string]string             `json:"errors,omitempty"`
}

// runPanel runs fn under its own timeout. A panic becomes an error.
func runPanel[T any](
	ctx context.Context, timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- result{zero, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(pctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-pctx.Done():
		var zero T
		return zero, pctx.Err()
	}
}

// Overview computes trend, KPI, channel rollups and channel totals
// concurrently. Only cancellation of ctx itself is returned as an
// error.
func (s *Service) Overview(ctx context.Context, q Query) (Overview, error) {
	out := Overview{
		Trend:        []analytics.SentimentPoint{},
		Channels:     []analytics.ChannelMetric{},
		EntityTotals: []analytics.EntityTotalMetric{},
	}
	var (
		mu   gosync.Mutex
		errs = map[string]string{}
		wg   gosync.WaitGroup
	)
	fail := func(panel string, err error) bool {
		if err == nil {
			return false
		}
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "timed out"
		}
		log.Printf("overview %s: %v", panel, err)
		mu.Lock()
		errs[panel] = msg
		mu.Unlock()
		return true
	}
	timeout := s.opts.PanelTimeout

	wg.Go(func() {
		v, err := runPanel(ctx, timeout, func(ctx context.Context) ([]analytics.SentimentPoint, error) {
			return s.trend(ctx, q)
		})
		if !fail("trend", err) {
			out.Trend = v
		}
	})
	wg.Go(func() {
		v, err := runPanel(ctx, timeout, func(ctx context.Context) (analytics.KPI, error) {
			return s.kpi(ctx, q)
		})
		if !fail("kpi", err) {
			out.KPI = v
		}
	})
	wg.Go(func() {
		v, err := runPanel(ctx, timeout, func(ctx context.Context) ([]analytics.ChannelMetric, error) {
			return s.channels(ctx, q)
		})
		if !fail("channels", err) {
			out.Channels = v
		}
	})
	wg.Go(func() {
		v, err := runPanel(ctx, timeout, func(ctx context.Context) ([]analytics.EntityTotalMetric, error) {
			return s.entityTotals(ctx, TotalsQuery{
				Query:       q,
				Perspective: analytics.PerspectiveChannel,
				Metric:      analytics.MetricMessages,
			})
		})
		if !fail("entityTotals", err) {
			out.EntityTotals = v
		}
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Overview{}, err
	}
	if len(errs) > 0 {
		out.Errors = errs
	}
	return out, nil
}
