package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity classifies an alert event
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ParseSeverity validates a severity name
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity: %q", s)
	}
}

// AlertEvent is a threshold breach observed for one city and metric during one evaluation pass
type AlertEvent struct {
	ID        string   `json:"id"`
	Severity  Severity `json:"severity"`
	Metric    Metric   `json:"metric"`
	Category  string   `json:"category"`
	Message   string   `json:"message"`
	Details   string   `json:"details"`
	Location  string   `json:"location"`
	Value     float64  `json:"value"`
	Timestamp string   `json:"timestamp"` // capture time, human readable
	Icon      string   `json:"icon,omitempty"`

	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	// Set by a breach tracker when one is configured
	FirstObserved *time.Time `json:"first_observed,omitempty"`
	LastObserved  *time.Time `json:"last_observed,omitempty"`
}

// EncodeAlertEvent encodes an AlertEvent to JSON
func EncodeAlertEvent(event *AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeAlertEvent decodes JSON to AlertEvent
func DecodeAlertEvent(data []byte) (*AlertEvent, error) {
	var event AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
