package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Metric names a measured quantity in a reading
type Metric string

const (
	MetricAQI         Metric = "aqi"
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricWindSpeed   Metric = "wind_speed"
)

// Metrics lists the metrics in display order
var Metrics = []Metric{MetricAQI, MetricTemperature, MetricHumidity, MetricWindSpeed}

// ParseMetric validates a metric name
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric: %q", s)
}

// Reading is one environmental measurement for one city as served by the data API
type Reading struct {
	City               string  `json:"city"`
	AQI                float64 `json:"aqi"`
	Temperature        float64 `json:"temperature"`
	Humidity           float64 `json:"humidity"`
	WindSpeed          float64 `json:"wind_speed"`
	IngestionTimestamp string  `json:"ingestion_timestamp,omitempty"`

	// Columns carried by the curated dataset; optional
	TemperatureCelsius *float64 `json:"temperature_celsius,omitempty"`
	Lat                *float64 `json:"lat,omitempty"`
	Lon                *float64 `json:"lon,omitempty"`
	DominantPollutant  string   `json:"dominant_pollutant,omitempty"`
	APITimestamp       string   `json:"api_timestamp,omitempty"`
}

// Value returns the reading's value for a metric
func (r *Reading) Value(m Metric) (float64, bool) {
	switch m {
	case MetricAQI:
		return r.AQI, true
	case MetricTemperature:
		return r.Temperature, true
	case MetricHumidity:
		return r.Humidity, true
	case MetricWindSpeed:
		return r.WindSpeed, true
	default:
		return 0, false
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// IngestedAt parses the ingestion timestamp
func (r *Reading) IngestedAt() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, r.IngestionTimestamp); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ErrUnexpectedShape is returned when a payload is valid JSON but not a list of readings
var ErrUnexpectedShape = errors.New("unexpected payload shape")

// DecodeReadings decodes a readings payload. The API answers either with a bare
// array or with an object wrapping it under "data". Anything else yields an
// empty, non-nil slice together with an error the caller may log.
func DecodeReadings(data []byte) ([]Reading, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Reading{}, fmt.Errorf("empty payload: %w", ErrUnexpectedShape)
	}

	switch trimmed[0] {
	case '[':
		var readings []Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return []Reading{}, fmt.Errorf("invalid readings array: %w", err)
		}
		if readings == nil {
			readings = []Reading{}
		}
		return readings, nil

	case '{':
		var wrapped struct {
			Data  json.RawMessage `json:"data"`
			Error string          `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return []Reading{}, fmt.Errorf("invalid readings object: %w", err)
		}
		if wrapped.Error != "" {
			return []Reading{}, fmt.Errorf("api error %q: %w", wrapped.Error, ErrUnexpectedShape)
		}
		inner := bytes.TrimSpace(wrapped.Data)
		if len(inner) == 0 || inner[0] != '[' {
			return []Reading{}, fmt.Errorf("missing data array: %w", ErrUnexpectedShape)
		}
		return DecodeReadings(inner)

	default:
		return []Reading{}, ErrUnexpectedShape
	}
}

// Stats is the descriptive statistics payload served by /api/stats
type Stats struct {
	DescriptiveStats  map[string]map[string]float64 `json:"descriptive_stats"`
	CorrelationMatrix map[string]map[string]float64 `json:"correlation_matrix"`
}

// DecodeStats decodes a statistics payload
func DecodeStats(data []byte) (*Stats, error) {
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("invalid stats payload: %w", err)
	}
	if stats.DescriptiveStats == nil {
		stats.DescriptiveStats = map[string]map[string]float64{}
	}
	if stats.CorrelationMatrix == nil {
		stats.CorrelationMatrix = map[string]map[string]float64{}
	}
	return &stats, nil
}
