// Package alerting turns the latest per-city readings into alert events.
package alerting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// TimestampLayout is the human-readable capture time stamped on each event
const TimestampLayout = "3:04:05 PM"

// Evaluator applies the rule table to a batch of readings. It keeps no memory
// of earlier passes: a persistent breach produces a new event on every call.
type Evaluator struct {
	now      func() time.Time
	newRunID func() string
}

type EvaluatorOption func(*Evaluator)

// WithEvaluatorClock overrides the clock used for ids and timestamps
func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates a new evaluator
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one evaluation pass
func (e *Evaluator) Evaluate(readings []protocol.Reading, thresholds Thresholds) []protocol.AlertEvent {
	return e.EvaluateAt(readings, thresholds, e.now())
}

// EvaluateAt runs one evaluation pass stamped with now
func (e *Evaluator) EvaluateAt(readings []protocol.Reading, thresholds Thresholds, now time.Time) []protocol.AlertEvent {
	return Evaluate(readings, thresholds, now, e.newRunID())
}

// Now reads the evaluator's clock
func (e *Evaluator) Now() time.Time {
	return e.now()
}

// Evaluate produces the events for one pass at time now. For each reading and
// each enabled metric it emits at most one event, for the first breached tier.
func Evaluate(readings []protocol.Reading, thresholds Thresholds, now time.Time, runID string) []protocol.AlertEvent {
	events := make([]protocol.AlertEvent, 0)
	timestamp := now.Format(TimestampLayout)

	for i := range readings {
		reading := &readings[i]
		for _, r := range rules {
			th, ok := thresholds[r.metric]
			if !ok || !th.Enabled {
				continue
			}
			value, ok := reading.Value(r.metric)
			if !ok {
				continue
			}

			for _, t := range r.tiers {
				if value < t.bound(th) {
					continue
				}
				message, details := t.describe(reading.City, value)
				events = append(events, protocol.AlertEvent{
					ID:        EventID(reading.City, r.metric, t.severity, now),
					Severity:  t.severity,
					Metric:    r.metric,
					Category:  r.category,
					Message:   message,
					Details:   details,
					Location:  reading.City,
					Value:     value,
					Timestamp: timestamp,
					Icon:      t.icon,
					RunID:     runID,
					CreatedAt: now,
				})
				break
			}
		}
	}

	return events
}

// EventID builds the event identifier. It embeds the evaluation time, so the
// same breach seen on two ticks yields two ids.
func EventID(city string, metric protocol.Metric, severity protocol.Severity, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d", city, metric, severity, now.UnixMilli())
}

// Critical filters the critical events of a pass
func Critical(events []protocol.AlertEvent) []protocol.AlertEvent {
	var out []protocol.AlertEvent
	for _, ev := range events {
		if ev.Severity == protocol.SeverityCritical {
			out = append(out, ev)
		}
	}
	return out
}
