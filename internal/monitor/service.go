package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smukkama/env-monitor/internal/refresh"
	"github.com/smukkama/env-monitor/internal/timer"
)

// Task ids registered with the timer manager
const (
	TaskAlertsPoll       = "alerts-poll"
	TaskDashboardPoll    = "dashboard-poll"
	TaskRefreshCheck     = "refresh-check"
	TaskScheduledRefresh = "scheduled-refresh"
)

// Intervals configures the polling loops
type Intervals struct {
	AlertsPoll    time.Duration
	DashboardPoll time.Duration
	RefreshCheck  time.Duration
}

// Service drives the poller and loader from a timer manager
type Service struct {
	poller    *AlertsPoller
	loader    *Loader
	scheduler *refresh.Scheduler
	timers    *timer.Manager
	intervals Intervals
	logger    *slog.Logger
}

func NewService(poller *AlertsPoller, loader *Loader, scheduler *refresh.Scheduler, intervals Intervals, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		poller:    poller,
		loader:    loader,
		scheduler: scheduler,
		timers:    timer.NewManager(logger),
		intervals: intervals,
		logger:    logger,
	}
}

// Start runs the alerts and dashboard polls immediately and then on their
// intervals, checks the refresh boundary hourly, and also fires a refresh
// just after each boundary.
func (s *Service) Start(ctx context.Context) error {
	s.timers.Start(ctx)

	if err := s.timers.Every(TaskAlertsPoll, s.intervals.AlertsPoll, func(ctx context.Context) {
		s.poller.Tick(ctx)
	}); err != nil {
		return err
	}

	if err := s.timers.Every(TaskDashboardPoll, s.intervals.DashboardPoll, func(ctx context.Context) {
		if _, err := s.loader.Dashboard(ctx, false); err != nil {
			s.logger.Warn("dashboard poll failed", "error", err)
		}
	}); err != nil {
		return err
	}

	checkRefresh := func(ctx context.Context) {
		if _, err := s.loader.RefreshIfDue(ctx); err != nil {
			s.logger.Warn("scheduled refresh failed", "error", err)
		}
	}

	if s.intervals.RefreshCheck <= 0 {
		return fmt.Errorf("%w: %s got %s", timer.ErrInvalidInterval, TaskRefreshCheck, s.intervals.RefreshCheck)
	}
	first := time.Now().Add(s.intervals.RefreshCheck)
	if err := s.timers.Repeat(TaskRefreshCheck, first, func(t time.Time) time.Time {
		return t.Add(s.intervals.RefreshCheck)
	}, checkRefresh); err != nil {
		return err
	}

	// The boundary instant itself is not "past" the boundary, so fire just after it
	afterBoundary := func(t time.Time) time.Time { return s.scheduler.NextRefresh(t).Add(time.Second) }
	if err := s.timers.Repeat(TaskScheduledRefresh, afterBoundary(time.Now()), afterBoundary, checkRefresh); err != nil {
		return err
	}

	s.logger.Info("monitor started",
		"alerts_poll", s.intervals.AlertsPoll,
		"dashboard_poll", s.intervals.DashboardPoll,
		"refresh_check", s.intervals.RefreshCheck,
		"next_refresh", s.scheduler.NextRefresh(time.Now()),
	)
	return nil
}

// Stop cancels all loops and waits for running ticks to finish
func (s *Service) Stop() {
	s.timers.Stop()
}

// NextRun reports when a task is next due
func (s *Service) NextRun(task string) (time.Time, bool) {
	return s.timers.Next(task)
}

// TriggerAlerts runs an alerts tick outside the schedule
func (s *Service) TriggerAlerts(ctx context.Context) error {
	_, err := s.poller.Tick(ctx)
	return err
}
