package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	stdlibsync "sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/config"
	"github.com/wesm/teampulse/internal/dashboard"
	"github.com/wesm/teampulse/internal/db"
	"github.com/wesm/teampulse/internal/dbtest"
	"github.com/wesm/teampulse/internal/ingest"
	"github.com/wesm/teampulse/internal/insight"
	"github.com/wesm/teampulse/internal/server"
	"github.com/wesm/teampulse/internal/slackdir"
	tj "github.com/wesm/teampulse/internal/testjsonl"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Test helpers ---

type testEnv struct {
	srv       *server.Server
	handler   http.Handler
	db        *db.DB
	engine    *ingest.Engine
	importDir string
}

type setupOption func(*config.Config)

func withWriteTimeout(d time.Duration) setupOption {
	return func(c *config.Config) { c.WriteTimeout = d }
}

func setup(t *testing.T, opts ...setupOption) *testEnv {
	return setupWithServerOpts(t, nil, opts...)
}

func setupWithServerOpts(
	t *testing.T, srvOpts []server.Option, opts ...setupOption,
) *testEnv {
	t.Helper()
	database := dbtest.OpenTestDB(t)
	importDir := t.TempDir()

	cfg := config.Config{
		Host:         "127.0.0.1",
		ImportDir:    importDir,
		Timezone:     "UTC",
		WriteTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	engine := ingest.NewEngine(database, importDir)
	srvOpts = append([]server.Option{
		server.WithClock(func() time.Time { return testNow }),
	}, srvOpts...)
	srv := server.New(cfg, database, engine, srvOpts...)

	return &testEnv{
		srv:       srv,
		handler:   srv.Handler(),
		db:        database,
		engine:    engine,
		importDir: importDir,
	}
}

func (te *testEnv) writeExport(t *testing.T, name string, b *tj.ExportBuilder) {
	t.Helper()
	dbtest.WriteTestFile(t, filepath.Join(te.importDir, name), []byte(b.String()))
}

// seed imports a two-channel workspace: eng is mixed, support is
// negative.
func (te *testEnv) seed(t *testing.T) {
	t.Helper()
	te.writeExport(t, "workspace.jsonl", seedExport())
	_, err := te.engine.ImportAll(nil)
	require.NoError(t, err)
}

func seedExport() *tj.ExportBuilder {
	return tj.NewExportBuilder().
		AddChannel("C1", "eng", "U1", "U2").
		AddChannel("C2", "support", "U2").
		AddUser("U1", "ada", "Ada", "Platform").
		AddUser("U2", "bob", "Bob", "").
		AddMessage(tj.Message{
			ID: "m1", Channel: "C1", User: "U1", Text: "shipped",
			TS: "2024-06-14T09:00:00Z", Sentiment: tj.Score(0.5),
			Reactions: []tj.Reaction{{Name: "wave", Count: 2}},
		}).
		AddMessage(tj.Message{
			ID: "m2", Channel: "C1", User: "U2", Text: "it broke",
			TS: "2024-06-14T09:05:00Z", ThreadTS: "2024-06-14T09:00:00Z",
			Sentiment: tj.Score(-0.6),
		}).
		AddMessage(tj.Message{
			ID: "m3", Channel: "C1", User: "U1", Text: "fixed",
			TS: "2024-06-13T10:00:00Z", Sentiment: tj.Score(0.1),
			Reactions: []tj.Reaction{{Name: ":+1::skin-tone-2:", Count: 1}},
		}).
		AddMessage(tj.Message{
			ID: "m4", Channel: "C2", User: "U2", Text: "exhausted",
			TS: "2024-06-12T16:00:00Z", Sentiment: tj.Score(-0.5),
		})
}

func (te *testEnv) do(
	t *testing.T, method, path, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	te.handler.ServeHTTP(w, req)
	return w
}

func (te *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return te.do(t, http.MethodGet, path, "")
}

// listenAndServe starts the server on a real port and returns the
// base URL. The server is shut down when the test finishes.
func (te *testEnv) listenAndServe(t *testing.T) string {
	t.Helper()
	port := server.FindAvailablePort("127.0.0.1", 40000)
	te.srv.SetPort(port)

	var serveErr error
	done := make(chan struct{})
	go func() {
		serveErr = te.srv.ListenAndServe()
		close(done)
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server not ready after 2s: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := te.srv.Shutdown(ctx); err != nil {
			t.Errorf("server shutdown error: %v", err)
		}
		select {
		case <-done:
			if serveErr != nil && serveErr != http.ErrServerClosed {
				t.Errorf("server exited with error: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Error("timed out waiting for server goroutine")
		}
	})
	return "http://" + addr
}

// decode unmarshals the response body into a typed value.
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding JSON: %v\nbody: %s", err, w.Body.String())
	}
	return result
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("expected status %d, got %d: %s", code, w.Code, w.Body.String())
	}
}

func assertErrorContains(
	t *testing.T, w *httptest.ResponseRecorder, substr string,
) {
	t.Helper()
	resp := decode[map[string]string](t, w)
	assert.Contains(t, resp["error"], substr)
}

// flushRecorder wraps httptest.ResponseRecorder to implement
// http.Flusher, enabling SSE streaming tests.
type flushRecorder struct {
	*httptest.ResponseRecorder
	mu stdlibsync.Mutex
}

func (f *flushRecorder) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(b)
}

func (f *flushRecorder) Flush() {
	f.ResponseRecorder.Flush()
}

func (f *flushRecorder) BodyString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

// sseEvents parses an event stream body into name → data lines.
func sseEvents(body string) map[string][]string {
	out := make(map[string][]string)
	var name string
	for line := range strings.SplitSeq(body, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			out[name] = append(out[name], strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

// --- Tests ---

func TestHealthAndVersion(t *testing.T) {
	te := setupWithServerOpts(t, []server.Option{
		server.WithVersion(server.VersionInfo{Version: "1.2.3", Commit: "abc"}),
	})

	w := te.get(t, "/api/v1/health")
	assertStatus(t, w, http.StatusOK)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	w = te.get(t, "/api/v1/version")
	assertStatus(t, w, http.StatusOK)
	v := decode[server.VersionInfo](t, w)
	assert.Equal(t, "1.2.3", v.Version)
	assert.Equal(t, "abc", v.Commit)
}

func TestGetStats(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/stats")
	assertStatus(t, w, http.StatusOK)
	stats := decode[db.Stats](t, w)
	assert.Equal(t, 2, stats.ChannelCount)
	assert.Equal(t, 2, stats.UserCount)
	assert.Equal(t, 4, stats.MessageCount)
	assert.Equal(t, 3, stats.ThreadCount)
}

func TestDashboardEmptyDatabase(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/dashboard/channels")
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, "[]", w.Body.String())

	w = te.get(t, "/api/v1/dashboard/kpi")
	assertStatus(t, w, http.StatusOK)
	assert.Equal(t, analytics.KPI{}, decode[analytics.KPI](t, w))

	w = te.get(t, "/api/v1/dashboard/trend?range=week")
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestDashboardChannelsAndKPI(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/dashboard/channels?range=week")
	assertStatus(t, w, http.StatusOK)
	rows := decode[[]analytics.ChannelMetric](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, "eng", rows[0].Name)
	assert.Equal(t, 3, rows[0].Messages)
	assert.Equal(t, 2, rows[0].Threads)
	assert.Equal(t, analytics.RiskMedium, rows[0].Risk)
	assert.Equal(t, "support", rows[1].Name)
	assert.Equal(t, analytics.RiskHigh, rows[1].Risk)

	w = te.get(t, "/api/v1/dashboard/kpi")
	assertStatus(t, w, http.StatusOK)
	want := analytics.KPI{
		AvgSentiment:      -0.25,
		BurnoutRiskCount:  1,
		MonitoredChannels: 2,
	}
	if diff := cmp.Diff(want, decode[analytics.KPI](t, w)); diff != "" {
		t.Errorf("kpi mismatch (-want +got):\n%s", diff)
	}

	w = te.get(t, "/api/v1/dashboard/kpi?channel_ids=C2,unknown")
	assertStatus(t, w, http.StatusOK)
	kpi := decode[analytics.KPI](t, w)
	assert.Equal(t, 1, kpi.MonitoredChannels)
	assert.Equal(t, -0.5, kpi.AvgSentiment)
}

func TestDashboardTrend(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/dashboard/trend?range=week")
	assertStatus(t, w, http.StatusOK)
	pts := decode[[]analytics.SentimentPoint](t, w)
	require.Len(t, pts, 7)
	total := 0
	for _, p := range pts {
		total += p.MessageCount
	}
	assert.Equal(t, 4, total)
}

func TestDashboardOverview(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/dashboard/overview")
	assertStatus(t, w, http.StatusOK)
	ov := decode[dashboard.Overview](t, w)
	assert.Empty(t, ov.Errors)
	assert.Len(t, ov.Trend, 7)
	assert.Len(t, ov.Channels, 2)
	assert.Equal(t, 2, ov.KPI.MonitoredChannels)
	assert.NotEmpty(t, ov.EntityTotals)
}

func TestDashboardHeatmapAndBurnout(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/dashboard/heatmap?grouping=channels&metric=messages")
	assertStatus(t, w, http.StatusOK)
	m := decode[analytics.HeatmapMatrix](t, w)
	assert.Equal(t, []string{"eng", "support"}, m.Rows)
	require.Len(t, m.Values, 2)
	for _, row := range m.Values {
		assert.Len(t, row, len(m.Cols))
	}

	w = te.get(t, "/api/v1/dashboard/burnout-series?group=team")
	assertStatus(t, w, http.StatusOK)
	series := decode[analytics.BurnoutSeriesResponse](t, w)
	assert.NotEmpty(t, series.Order)
	for _, name := range series.Order {
		assert.Len(t, series.Series[name], 7)
	}
}

func TestDashboardBadParams(t *testing.T) {
	te := setup(t)

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/dashboard/trend?range=decade", "invalid range"},
		{"/api/v1/dashboard/kpi?timezone=Nowhere/Place", "invalid timezone"},
		{"/api/v1/dashboard/heatmap?grouping=planets", "invalid grouping"},
		{"/api/v1/dashboard/heatmap?metric=vibes", "invalid metric"},
		{"/api/v1/dashboard/burnout-series?group=galaxy", "invalid grouping"},
		{"/api/v1/metrics/entity-totals?perspective=world", "invalid perspective"},
		{"/api/v1/metrics/entity-totals?metric=likes", "invalid metric"},
		{"/api/v1/metrics/top-emojis?limit=0", "invalid limit"},
		{"/api/v1/metrics/top-emojis?limit=51", "invalid limit"},
		{"/api/v1/insights/teams?severities=critical", "invalid severity"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := te.get(t, tt.path)
			assertStatus(t, w, http.StatusBadRequest)
			assertErrorContains(t, w, tt.want)
		})
	}
}

func TestEntityTotals(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/metrics/entity-totals?perspective=channel&metric=messages")
	assertStatus(t, w, http.StatusOK)
	rows := decode[[]analytics.EntityTotalMetric](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, "#eng", rows[0].Name)
	assert.Equal(t, 3, rows[0].Messages)
	assert.Equal(t, 1, rows[1].Messages)

	w = te.get(t, "/api/v1/metrics/entity-totals?perspective=channel&range=month")
	assertStatus(t, w, http.StatusOK)
	scaled := decode[[]analytics.EntityTotalMetric](t, w)
	require.Len(t, scaled, 2)
	assert.Equal(t, 12, scaled[0].Messages)

	w = te.get(t, "/api/v1/metrics/entity-totals?perspective=employee&metric=messages&limit=1")
	assertStatus(t, w, http.StatusOK)
	assert.Len(t, decode[[]analytics.EntityTotalMetric](t, w), 1)
}

func TestTopEmojis(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/metrics/top-emojis")
	assertStatus(t, w, http.StatusOK)
	stats := decode[[]analytics.EmojiStat](t, w)
	require.Len(t, stats, 2)
	assert.Equal(t, "wave", stats[0].Name)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, "+1", stats[1].Name)

	w = te.get(t, "/api/v1/metrics/top-emojis?limit=1")
	assertStatus(t, w, http.StatusOK)
	assert.Len(t, decode[[]analytics.EmojiStat](t, w), 1)
}

func TestInsightsListDismissRestore(t *testing.T) {
	te := setup(t)
	te.seed(t)

	ids := func(items []insight.Insight) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.ID
		}
		return out
	}

	w := te.get(t, "/api/v1/insights/teams")
	assertStatus(t, w, http.StatusOK)
	all := decode[[]insight.Insight](t, w)
	require.Contains(t, ids(all), "insight-platform-week")
	require.Contains(t, ids(all), "insight-company-week")

	w = te.get(t, "/api/v1/insights/teams?teams=Platform")
	assertStatus(t, w, http.StatusOK)
	for _, it := range decode[[]insight.Insight](t, w) {
		if it.Team != "" {
			assert.Equal(t, "Platform", it.Team)
		}
	}

	w = te.do(t, http.MethodPost, "/api/v1/insights/insight-platform-week/dismiss", "")
	assertStatus(t, w, http.StatusNoContent)

	w = te.get(t, "/api/v1/insights/teams")
	assert.NotContains(t, ids(decode[[]insight.Insight](t, w)), "insight-platform-week")

	w = te.get(t, "/api/v1/insights/teams?include_dismissed=true")
	assert.Contains(t, ids(decode[[]insight.Insight](t, w)), "insight-platform-week")

	w = te.do(t, http.MethodDelete, "/api/v1/insights/insight-platform-week/dismiss", "")
	assertStatus(t, w, http.StatusNoContent)
	w = te.do(t, http.MethodDelete, "/api/v1/insights/insight-platform-week/dismiss", "")
	assertStatus(t, w, http.StatusNotFound)

	w = te.get(t, "/api/v1/insights/teams?limit=1")
	assert.Len(t, decode[[]insight.Insight](t, w), 1)
}

func TestGenerateInsights(t *testing.T) {
	t.Run("Agent", func(t *testing.T) {
		var gotPrompt string
		stub := func(
			_ context.Context, cmd []string, prompt string,
		) (insight.Result, error) {
			gotPrompt = prompt
			return insight.Result{
				Content: `[{"title":"Support is drowning","summary":"Load is up",` +
					`"severity":"high","category":"workload","team":"Unassigned"}]`,
				Agent: cmd[0],
				Model: "test-model",
			}, nil
		}
		te := setupWithServerOpts(t,
			[]server.Option{server.WithGenerateFunc(stub)},
			func(c *config.Config) { c.InsightAgent = "fake-agent -p" },
		)
		te.seed(t)

		w := te.do(t, http.MethodPost, "/api/v1/insights/generate?limit=2", "")
		assertStatus(t, w, http.StatusOK)
		res := decode[insight.Synthesis](t, w)
		assert.Equal(t, "agent", res.Source)
		assert.Equal(t, "fake-agent", res.Agent)
		assert.Equal(t, "test-model", res.Model)
		require.Len(t, res.Insights, 2)
		assert.Equal(t, "Support is drowning", res.Insights[0].Title)
		assert.NotEmpty(t, gotPrompt)
	})

	t.Run("FallbackWithoutAgent", func(t *testing.T) {
		te := setup(t)
		te.seed(t)

		w := te.do(t, http.MethodPost, "/api/v1/insights/generate", "")
		assertStatus(t, w, http.StatusOK)
		res := decode[insight.Synthesis](t, w)
		assert.Equal(t, "heuristic", res.Source)
		assert.NotEmpty(t, res.Error)
		assert.NotEmpty(t, res.Insights)
	})
}

func TestSelection(t *testing.T) {
	te := setup(t)
	te.seed(t)

	w := te.get(t, "/api/v1/slack/selection")
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"channelIds":[]}`, w.Body.String())

	w = te.do(t, http.MethodPut, "/api/v1/slack/selection",
		`{"channelIds":["C2","C2"]}`)
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"channelIds":["C2"]}`, w.Body.String())

	w = te.get(t, "/api/v1/dashboard/kpi")
	assert.Equal(t, 1, decode[analytics.KPI](t, w).MonitoredChannels)

	// Explicit ids win over the saved selection.
	w = te.get(t, "/api/v1/dashboard/kpi?channel_ids=C1,C2")
	assert.Equal(t, 2, decode[analytics.KPI](t, w).MonitoredChannels)

	w = te.do(t, http.MethodPut, "/api/v1/slack/selection", `{"channelIds":`)
	assertStatus(t, w, http.StatusBadRequest)
}

func TestListChannelsAndUsers(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/slack/channels")
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, "[]", w.Body.String())

	te.seed(t)
	w = te.get(t, "/api/v1/slack/channels")
	chs := decode[[]db.Channel](t, w)
	require.Len(t, chs, 2)
	assert.Equal(t, []string{"U1", "U2"}, chs[0].MemberIDs)

	w = te.get(t, "/api/v1/slack/users")
	users := decode[[]db.User](t, w)
	require.Len(t, users, 2)
	assert.Equal(t, "Platform", users[0].Team)
}

type fakeSlack struct{}

func (fakeSlack) GetConversationsContext(
	context.Context, *slack.GetConversationsParameters,
) ([]slack.Channel, string, error) {
	var ch slack.Channel
	ch.ID = "C9"
	ch.Name = "random"
	return []slack.Channel{ch}, "", nil
}

func (fakeSlack) GetUsersInConversationContext(
	context.Context, *slack.GetUsersInConversationParameters,
) ([]string, string, error) {
	return []string{"U9"}, "", nil
}

func (fakeSlack) GetUsersContext(
	context.Context, ...slack.GetUsersOption,
) ([]slack.User, error) {
	return []slack.User{{ID: "U9", Name: "cy", RealName: "Cy"}}, nil
}

func TestSyncDirectory(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		te := setup(t)
		w := te.do(t, http.MethodPost, "/api/v1/slack/sync", "")
		assertStatus(t, w, http.StatusServiceUnavailable)
	})

	t.Run("Synced", func(t *testing.T) {
		database := dbtest.OpenTestDB(t)
		dir := slackdir.NewWithClient(fakeSlack{}, database)
		srv := server.New(config.Config{}, database, nil, server.WithDirectory(dir))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/slack/sync", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assertStatus(t, w, http.StatusOK)
		assert.JSONEq(t, `{"channels":1,"users":1}`, w.Body.String())

		chs, err := database.ListChannels(context.Background())
		require.NoError(t, err)
		require.Len(t, chs, 1)
		assert.Equal(t, "random", chs[0].Name)
		assert.Equal(t, []string{"U9"}, chs[0].MemberIDs)
	})
}

func TestTriggerImportSSE(t *testing.T) {
	te := setup(t)
	te.writeExport(t, "workspace.jsonl", seedExport())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", nil)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	te.handler.ServeHTTP(w, req)

	assertStatus(t, w.ResponseRecorder, http.StatusOK)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := sseEvents(w.BodyString())
	require.NotEmpty(t, events["progress"])
	require.Len(t, events["done"], 1)

	var stats ingest.Stats
	require.NoError(t, json.Unmarshal([]byte(events["done"][0]), &stats))
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 4, stats.Messages)

	w2 := te.get(t, "/api/v1/import/status")
	assertStatus(t, w2, http.StatusOK)
	status := decode[map[string]any](t, w2)
	assert.Equal(t, true, status["enabled"])
	assert.NotEmpty(t, status["last_import"])
}

func TestImportDisabled(t *testing.T) {
	database := dbtest.OpenTestDB(t)
	srv := server.New(config.Config{}, database, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assertStatus(t, w, http.StatusServiceUnavailable)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/import/status", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())
}

// TestEventsStream verifies that the event stream outlives the
// write timeout and delivers data_updated after an import.
func TestEventsStream(t *testing.T) {
	te := setup(t, withWriteTimeout(100*time.Millisecond))
	baseURL := te.listenAndServe(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, baseURL+"/api/v1/events", nil,
	)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", want)
				}
				if line == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: ready")
	// Longer than the write timeout.
	time.Sleep(300 * time.Millisecond)

	te.writeExport(t, "workspace.jsonl", seedExport())
	_, err = te.engine.ImportAll(nil)
	require.NoError(t, err)
	waitFor("event: data_updated")
}
