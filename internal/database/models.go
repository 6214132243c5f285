package database

import (
	"time"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// ThresholdRow is a persisted threshold setting
type ThresholdRow struct {
	Metric        string
	WarningValue  float64
	CriticalValue float64
	Enabled       bool
	UpdatedAt     time.Time
}

// AlertLog represents a logged alert event
type AlertLog struct {
	ID            int64
	EventID       string
	RunID         string
	City          string
	Metric        string
	Severity      string
	Category      string
	Message       string
	Details       string
	Value         float64
	FirstObserved *time.Time
	CreatedAt     time.Time
}

// AlertLogFromEvent maps an alert event onto its history row
func AlertLogFromEvent(ev *protocol.AlertEvent) *AlertLog {
	return &AlertLog{
		EventID:       ev.ID,
		RunID:         ev.RunID,
		City:          ev.Location,
		Metric:        string(ev.Metric),
		Severity:      string(ev.Severity),
		Category:      ev.Category,
		Message:       ev.Message,
		Details:       ev.Details,
		Value:         ev.Value,
		FirstObserved: ev.FirstObserved,
		CreatedAt:     ev.CreatedAt,
	}
}
