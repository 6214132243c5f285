// Package refresh decides when cached historical data is due for its once-daily refresh.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/smukkama/env-monitor/internal/cache"
)

// DefaultTimeOfDay is local noon
const DefaultTimeOfDay = "12:00"

// Scheduler tracks a daily refresh boundary and the last successful fetch.
// The last-fetch marker lives in the response cache under cache.KeyLastFetchTime.
type Scheduler struct {
	cache  *cache.Cache
	hour   int
	minute int
	loc    *time.Location
}

// NewScheduler creates a scheduler firing daily at timeOfDay ("HH:MM") in loc
func NewScheduler(c *cache.Cache, timeOfDay string, loc *time.Location) (*Scheduler, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{cache: c, hour: hour, minute: minute, loc: loc}, nil
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(timeOfDay string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day: %s", timeOfDay)
	}
	return hour, minute, nil
}

// Boundary returns the refresh instant on now's calendar day
func (s *Scheduler) Boundary(now time.Time) time.Time {
	local := now.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
}

// NextRefresh returns today's boundary if it has not passed yet, else tomorrow's.
func (s *Scheduler) NextRefresh(now time.Time) time.Time {
	boundary := s.Boundary(now)
	if now.After(boundary) {
		return boundary.AddDate(0, 0, 1)
	}
	return boundary
}

// TimeUntilNextRefresh returns the time remaining until the next boundary
func (s *Scheduler) TimeUntilNextRefresh(now time.Time) time.Duration {
	return s.NextRefresh(now).Sub(now)
}

// ShouldRefresh reports whether fresh data must be fetched: always when no
// fetch was ever recorded, otherwise only once today's boundary has passed
// and the last fetch predates it. It keeps returning true until MarkRefreshed.
func (s *Scheduler) ShouldRefresh(ctx context.Context, now time.Time) bool {
	last, ok := s.cache.Marker(ctx, cache.KeyLastFetchTime)
	if !ok {
		return true
	}

	boundary := s.Boundary(now)
	return now.After(boundary) && last.Before(boundary)
}

// MarkRefreshed records now as the last successful fetch
func (s *Scheduler) MarkRefreshed(ctx context.Context, now time.Time) {
	s.cache.SetMarker(ctx, cache.KeyLastFetchTime, now)
}

// LastRefresh returns the recorded last fetch, if any
func (s *Scheduler) LastRefresh(ctx context.Context) (time.Time, bool) {
	return s.cache.Marker(ctx, cache.KeyLastFetchTime)
}
