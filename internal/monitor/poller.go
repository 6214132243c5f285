package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/notification"
	"github.com/smukkama/env-monitor/internal/protocol"
)

// DataSource is the backend data API
type DataSource interface {
	Readings(ctx context.Context) ([]protocol.Reading, error)
	LatestReadings(ctx context.Context) ([]protocol.Reading, error)
	Stats(ctx context.Context) (*protocol.Stats, error)
}

// EventPublisher streams evaluated events to downstream consumers
type EventPublisher interface {
	PublishAlerts(ctx context.Context, events []protocol.AlertEvent) error
}

// AlertsPoller runs one alert evaluation per tick against the latest readings
type AlertsPoller struct {
	source    DataSource
	settings  *alerting.Settings
	evaluator *alerting.Evaluator
	feed      *alerting.Feed
	notifier  notification.Notifier
	tracker   *alerting.BreachTracker
	publisher EventPublisher
	logger    *slog.Logger

	mu           sync.Mutex // serialises passes
	lastTick     time.Time
	lastReadings []protocol.Reading
}

type PollerOption func(*AlertsPoller)

func WithTracker(t *alerting.BreachTracker) PollerOption {
	return func(p *AlertsPoller) { p.tracker = t }
}

func WithPublisher(pub EventPublisher) PollerOption {
	return func(p *AlertsPoller) { p.publisher = pub }
}

func WithEvaluator(e *alerting.Evaluator) PollerOption {
	return func(p *AlertsPoller) { p.evaluator = e }
}

func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *AlertsPoller) { p.logger = l }
}

func NewAlertsPoller(source DataSource, settings *alerting.Settings, feed *alerting.Feed, notifier notification.Notifier, opts ...PollerOption) *AlertsPoller {
	p := &AlertsPoller{
		source:    source,
		settings:  settings,
		evaluator: alerting.NewEvaluator(),
		feed:      feed,
		notifier:  notifier,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick fetches the latest readings and evaluates them. When the fetch fails
// the feed is left untouched and an error notification is sent.
func (p *AlertsPoller) Tick(ctx context.Context) ([]protocol.AlertEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	readings, err := p.source.LatestReadings(ctx)
	if err != nil {
		p.logger.Error("failed to fetch latest readings", "error", err)
		p.notify(ctx, notification.ForError("Failed to fetch alerts data", err))
		return nil, err
	}

	p.lastReadings = readings
	return p.evaluate(ctx, readings), nil
}

// Reevaluate runs a pass over the readings of the last successful tick with
// the current thresholds, without fetching. It returns nil before the first
// successful tick.
func (p *AlertsPoller) Reevaluate(ctx context.Context) []protocol.AlertEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastReadings == nil {
		return nil
	}
	return p.evaluate(ctx, p.lastReadings)
}

func (p *AlertsPoller) evaluate(ctx context.Context, readings []protocol.Reading) []protocol.AlertEvent {
	now := p.evaluator.Now()
	events := p.evaluator.EvaluateAt(readings, p.settings.Snapshot(), now)
	p.lastTick = now

	if p.tracker != nil {
		if err := p.tracker.Track(ctx, events, now); err != nil {
			p.logger.Warn("breach tracking failed", "error", err)
		}
	}

	p.feed.Add(events)

	if p.publisher != nil {
		if err := p.publisher.PublishAlerts(ctx, events); err != nil {
			p.logger.Warn("failed to publish alert events", "events", len(events), "error", err)
		}
	}

	for _, ev := range alerting.Critical(events) {
		p.notify(ctx, notification.ForCriticalEvent(ev))
	}

	p.logger.Info("alerts evaluated",
		"readings", len(readings),
		"events", len(events),
		"feed", p.feed.Len(),
	)
	return events
}

// LastTick returns the time of the last evaluation pass
func (p *AlertsPoller) LastTick() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}

func (p *AlertsPoller) notify(ctx context.Context, n notification.Notification) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Send(ctx, n); err != nil {
		p.logger.Warn("notification delivery failed", "title", n.Title, "error", err)
	}
}
