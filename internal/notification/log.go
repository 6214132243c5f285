package notification

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log. It is the
// always-on channel standing in for an on-screen toast.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	attrs := []any{"title", n.Title, "body", n.Body}
	if n.Event != nil {
		attrs = append(attrs, "alert_id", n.Event.ID, "location", n.Event.Location, "value", n.Event.Value)
	}
	l.logger.Log(ctx, level, "notification", attrs...)
	return nil
}
