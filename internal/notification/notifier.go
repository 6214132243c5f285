package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// Level indicates how a notification should be presented
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient, user-facing message
type Notification struct {
	Level  Level                `json:"level"`
	Title  string               `json:"title"`
	Body   string               `json:"body"`
	Event  *protocol.AlertEvent `json:"event,omitempty"`
	SentAt time.Time            `json:"sent_at"`
}

// Notifier delivers notifications to one channel
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a notification. Implementations must be safe for concurrent use.
	Send(ctx context.Context, n Notification) error
}

// ForCriticalEvent builds the notification raised for a critical alert event
func ForCriticalEvent(ev protocol.AlertEvent) Notification {
	return Notification{
		Level: LevelError,
		Title: ev.Message,
		Body:  ev.Details,
		Event: &ev,
	}
}

// ForError builds a notification reporting a failed operation
func ForError(title string, err error) Notification {
	return Notification{
		Level: LevelError,
		Title: title,
		Body:  err.Error(),
	}
}

// Multi fans a notification out to every notifier. All notifiers are tried;
// their errors are joined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}

	var errs []error
	for _, notifier := range m {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// MinLevel wraps a notifier so it only receives notifications at or above level
func MinLevel(level Level, next Notifier) Notifier {
	return &levelFilter{min: level, next: next}
}

type levelFilter struct {
	min  Level
	next Notifier
}

func (f *levelFilter) Name() string { return f.next.Name() }

func (f *levelFilter) Send(ctx context.Context, n Notification) error {
	if rank(n.Level) < rank(f.min) {
		return nil
	}
	return f.next.Send(ctx, n)
}

func rank(l Level) int {
	switch l {
	case LevelError:
		return 3
	case LevelWarning:
		return 2
	case LevelSuccess:
		return 1
	default:
		return 0
	}
}
