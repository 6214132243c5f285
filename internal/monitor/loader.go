package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smukkama/env-monitor/internal/cache"
	"github.com/smukkama/env-monitor/internal/notification"
	"github.com/smukkama/env-monitor/internal/protocol"
	"github.com/smukkama/env-monitor/internal/refresh"
)

// ErrNoData is returned when a fetch fails and nothing is cached to fall back on
var ErrNoData = errors.New("no data available")

// Origin tells where a loaded payload came from
type Origin string

const (
	OriginAPI   Origin = "api"
	OriginCache Origin = "cache"
)

// ReadingsResult is a loaded reading history
type ReadingsResult struct {
	Readings []protocol.Reading `json:"readings"`
	Origin   Origin             `json:"origin"`
	Stale    bool               `json:"stale"` // served from cache after a failed fetch
}

// StatsResult is a loaded statistics payload
type StatsResult struct {
	Stats  *protocol.Stats `json:"stats"`
	Origin Origin          `json:"origin"`
}

// Loader serves the historical data set and statistics through the cache,
// fetching fresh history only when the daily refresh boundary says so.
type Loader struct {
	source    DataSource
	cache     *cache.Cache
	scheduler *refresh.Scheduler
	notifier  notification.Notifier
	logger    *slog.Logger

	mu sync.Mutex
}

func NewLoader(source DataSource, c *cache.Cache, scheduler *refresh.Scheduler, notifier notification.Notifier, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		source:    source,
		cache:     c,
		scheduler: scheduler,
		notifier:  notifier,
		logger:    logger,
	}
}

// Dashboard returns the reading history. Cached data is used unless force is
// set, the cache is empty or expired, or a refresh boundary has passed since
// the last fetch. A failed fetch falls back to whatever is cached.
func (l *Loader) Dashboard(ctx context.Context, force bool) (*ReadingsResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cache.Now()
	due := force || l.scheduler.ShouldRefresh(ctx, now)

	var cached []protocol.Reading
	hit := l.cache.Get(ctx, cache.KeyDashboardData, &cached)
	if hit && !due {
		return &ReadingsResult{Readings: cached, Origin: OriginCache}, nil
	}

	readings, err := l.source.Readings(ctx)
	if err != nil {
		l.logger.Error("failed to fetch readings", "error", err)
		l.notify(ctx, notification.ForError("Failed to load dashboard data", err))
		if hit {
			return &ReadingsResult{Readings: cached, Origin: OriginCache, Stale: true}, nil
		}
		return nil, errors.Join(ErrNoData, err)
	}

	l.cache.Put(ctx, cache.KeyDashboardData, readings)
	l.scheduler.MarkRefreshed(ctx, now)
	l.logger.Info("dashboard data refreshed", "readings", len(readings))

	return &ReadingsResult{Readings: readings, Origin: OriginAPI}, nil
}

// Statistics returns cached statistics when present, otherwise fetches them
func (l *Loader) Statistics(ctx context.Context) (*StatsResult, error) {
	var cached protocol.Stats
	if l.cache.Get(ctx, cache.KeyStatsData, &cached) {
		l.notify(ctx, notification.Notification{Level: notification.LevelSuccess, Title: "Statistics loaded from cache"})
		return &StatsResult{Stats: &cached, Origin: OriginCache}, nil
	}

	stats, err := l.source.Stats(ctx)
	if err != nil {
		l.logger.Error("failed to fetch statistics", "error", err)
		l.notify(ctx, notification.ForError("Failed to load statistics", err))
		return nil, err
	}

	l.cache.Put(ctx, cache.KeyStatsData, stats)
	l.notify(ctx, notification.Notification{Level: notification.LevelSuccess, Title: "Statistics loaded"})
	return &StatsResult{Stats: stats, Origin: OriginAPI}, nil
}

// RefreshIfDue performs the scheduled refresh when a boundary has passed
// since the last fetch. Statistics are dropped so they are refetched with
// the new history. It reports whether fresh data was loaded.
func (l *Loader) RefreshIfDue(ctx context.Context) (bool, error) {
	if !l.scheduler.ShouldRefresh(ctx, l.cache.Now()) {
		return false, nil
	}

	result, err := l.Dashboard(ctx, true)
	if err != nil {
		return false, err
	}
	if result.Origin != OriginAPI {
		return false, nil
	}

	l.cache.Clear(ctx, cache.KeyStatsData)
	l.logger.Info("scheduled refresh completed")
	return true, nil
}

// SyncStatus describes the daily refresh schedule
type SyncStatus struct {
	LastRefresh        *time.Time    `json:"last_refresh,omitempty"`
	NextRefresh        time.Time     `json:"next_refresh"`
	TimeUntilRefresh   time.Duration `json:"-"`
	TimeUntilRefreshMs int64         `json:"time_until_refresh_ms"`
	RefreshDue         bool          `json:"refresh_due"`
}

// Status reports when data was last fetched and when the next refresh is due
func (l *Loader) Status(ctx context.Context) SyncStatus {
	now := l.cache.Now()
	until := l.scheduler.TimeUntilNextRefresh(now)

	status := SyncStatus{
		NextRefresh:        l.scheduler.NextRefresh(now),
		TimeUntilRefresh:   until,
		TimeUntilRefreshMs: until.Milliseconds(),
		RefreshDue:         l.scheduler.ShouldRefresh(ctx, now),
	}
	if last, ok := l.scheduler.LastRefresh(ctx); ok {
		status.LastRefresh = &last
	}
	return status
}

// ClearCache drops every cached payload and the refresh marker
func (l *Loader) ClearCache(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.ClearAll(ctx)
}

func (l *Loader) notify(ctx context.Context, n notification.Notification) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Send(ctx, n); err != nil {
		l.logger.Warn("notification delivery failed", "title", n.Title, "error", err)
	}
}
