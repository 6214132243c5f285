package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/cache"
	"github.com/smukkama/env-monitor/internal/database"
	"github.com/smukkama/env-monitor/internal/monitor"
	"github.com/smukkama/env-monitor/internal/protocol"
	"github.com/smukkama/env-monitor/internal/refresh"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubSource struct {
	latest   []protocol.Reading
	readings []protocol.Reading
	err      error
}

func (s *stubSource) Readings(context.Context) ([]protocol.Reading, error) { return s.readings, s.err }
func (s *stubSource) LatestReadings(context.Context) ([]protocol.Reading, error) {
	return s.latest, s.err
}
func (s *stubSource) Stats(context.Context) (*protocol.Stats, error) {
	return &protocol.Stats{DescriptiveStats: map[string]map[string]float64{"aqi": {"max": 220}}}, s.err
}

type stubHistory struct{ city string }

func (h *stubHistory) RecentAlertLogs(_ context.Context, city string, limit int) ([]*database.AlertLog, error) {
	h.city = city
	return []*database.AlertLog{{EventID: "Delhi-aqi-critical-1", City: "Delhi"}}, nil
}

type testEnv struct {
	mux  http.Handler
	src  *stubSource
	deps Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	src := &stubSource{
		latest: []protocol.Reading{
			{City: "Delhi", AQI: 220, Temperature: 30, Humidity: 50, WindSpeed: 10},
			{City: "Pune", AQI: 50, Temperature: 36, Humidity: 50, WindSpeed: 10},
		},
		readings: []protocol.Reading{
			{City: "Delhi", AQI: 220},
			{City: "Pune", AQI: 50},
			{City: "Delhi", AQI: 180},
		},
	}

	c := cache.New(cache.NewMemoryStore(), cache.WithLogger(discard))
	sched, err := refresh.NewScheduler(c, "12:00", time.UTC)
	require.NoError(t, err)

	feed := alerting.NewFeed(alerting.DefaultFeedCapacity)
	settings := alerting.NewSettings(nil, nil)
	tracker := alerting.NewBreachTracker(cache.NewMemoryStore())
	deps := Deps{
		Feed:     feed,
		Settings: settings,
		Poller:   monitor.NewAlertsPoller(src, settings, feed, nil, monitor.WithTracker(tracker), monitor.WithPollerLogger(discard)),
		Loader:   monitor.NewLoader(src, c, sched, nil, discard),
		Tracker:  tracker,
		History:  &stubHistory{},
	}
	return &testEnv{mux: NewMux(deps, discard), src: src, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type alertsResponse struct {
	NewAlerts int                   `json:"new_alerts"`
	Alerts    []protocol.AlertEvent `json:"alerts"`
	Counts    alerting.Counts       `json:"counts"`
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestAlertsLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/alerts/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decode[alertsResponse](t, rec)
	assert.Equal(t, 2, refreshed.NewAlerts)
	assert.Equal(t, alerting.Counts{Critical: 1, Warning: 1, Total: 2}, refreshed.Counts)

	rec = env.do(t, http.MethodGet, "/api/alerts?severity=critical", "")
	require.Equal(t, http.StatusOK, rec.Code)
	critical := decode[alertsResponse](t, rec)
	require.Len(t, critical.Alerts, 1)
	assert.Equal(t, "Delhi", critical.Alerts[0].Location)
	assert.NotNil(t, critical.Alerts[0].FirstObserved)

	rec = env.do(t, http.MethodDelete, "/api/alerts/"+critical.Alerts[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/alerts/"+critical.Alerts[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["cleared"])
}

func TestListAlerts_InvalidSeverity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/alerts?severity=urgent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshAlerts_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.src.err = errors.New("connection refused")

	rec := env.do(t, http.MethodPost, "/api/alerts/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 0, env.deps.Feed.Len())
}

func TestActiveBreachesAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/alerts/refresh", "")

	rec := env.do(t, http.MethodGet, "/api/alerts/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	breaches := decode[map[string]alerting.BreachState](t, rec)
	assert.Contains(t, breaches, "Delhi:aqi:critical")

	rec = env.do(t, http.MethodGet, "/api/alerts/history?city=Delhi&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delhi", env.deps.History.(*stubHistory).city)

	rec = env.do(t, http.MethodGet, "/api/alerts/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThresholdEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/thresholds/aqi", `{"critical": 250}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alerting.Threshold{Warning: 100, Critical: 250, Enabled: true}, decode[alerting.Threshold](t, rec))

	rec = env.do(t, http.MethodPost, "/api/thresholds/temperature/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[alerting.Threshold](t, rec).Enabled)

	rec = env.do(t, http.MethodGet, "/api/thresholds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[alerting.Thresholds](t, rec)
	assert.Equal(t, 250.0, all[protocol.MetricAQI].Critical)
	assert.False(t, all[protocol.MetricTemperature].Enabled)

	// Delhi drops to a warning and Pune's temperature alert is silenced
	rec = env.do(t, http.MethodPost, "/api/alerts/refresh", "")
	refreshed := decode[alertsResponse](t, rec)
	assert.Equal(t, 1, refreshed.NewAlerts)
	assert.Equal(t, protocol.SeverityWarning, refreshed.Alerts[0].Severity)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/thresholds/pollen/toggle", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/thresholds/aqi", "{").Code)
}

func TestThresholdChangeReevaluatesLastReadings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/alerts/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, env.deps.Feed.Len())

	// upstream is down, so the new pass must come from the last fetched readings
	env.src.err = errors.New("connection refused")

	rec = env.do(t, http.MethodPut, "/api/thresholds/humidity", `{"critical": 40}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 6, env.deps.Feed.Len())
	counts := env.deps.Feed.Counts()
	assert.Equal(t, 2, counts.Info, "both cities now breach humidity")

	rec = env.do(t, http.MethodPost, "/api/thresholds/humidity/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, env.deps.Feed.Len())
	assert.Equal(t, 2, env.deps.Feed.Counts().Info, "disabled humidity adds no info alerts")
}

func TestDashboardAndRefreshStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard?city=Delhi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Origin    monitor.Origin `json:"origin"`
		Dashboard struct {
			Cities    []string           `json:"cities"`
			Readings  []protocol.Reading `json:"readings"`
			Summaries []map[string]any   `json:"summaries"`
		} `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, monitor.OriginAPI, body.Origin)
	assert.Equal(t, []string{"All", "Delhi", "Pune"}, body.Dashboard.Cities)
	assert.Len(t, body.Dashboard.Readings, 2)

	rec = env.do(t, http.MethodGet, "/api/dashboard", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, monitor.OriginCache, body.Origin)

	rec = env.do(t, http.MethodGet, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Contains(t, status, "next_refresh")
	assert.Contains(t, status, "last_refresh")

	rec = env.do(t, http.MethodDelete, "/api/cache", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, env.do(t, http.MethodGet, "/api/refresh", ""))["refresh_due"])
}

func TestStatistics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body monitor.StatsResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, monitor.OriginAPI, body.Origin)
	assert.Equal(t, 220.0, body.Stats.DescriptiveStats["aqi"]["max"])
}

func TestHTTPServer_StartStop(t *testing.T) {
	env := newTestEnv(t)
	srv := NewHTTPServer("127.0.0.1:0", env.deps, discard)

	errCh, err := srv.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	_, open := <-errCh
	assert.False(t, open)
}
