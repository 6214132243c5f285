package alerting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// Threshold holds the tier bounds for one metric. A value at or above a bound breaches it.
type Threshold struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
	Enabled  bool    `json:"enabled" yaml:"enabled"`
}

// Thresholds maps each metric to its configuration. Metrics missing from the
// map are treated as disabled.
type Thresholds map[protocol.Metric]Threshold

// DefaultThresholds returns the built-in configuration
func DefaultThresholds() Thresholds {
	return Thresholds{
		protocol.MetricAQI:         {Warning: 100, Critical: 200, Enabled: true},
		protocol.MetricTemperature: {Warning: 35, Critical: 40, Enabled: true},
		protocol.MetricHumidity:    {Warning: 70, Critical: 85, Enabled: true},
		protocol.MetricWindSpeed:   {Warning: 20, Critical: 30, Enabled: true},
	}
}

// Clone returns an independent copy
func (t Thresholds) Clone() Thresholds {
	out := make(Thresholds, len(t))
	for m, th := range t {
		out[m] = th
	}
	return out
}

// LoadThresholdsFile reads thresholds from a YAML file of the form
//
//	aqi: {warning: 100, critical: 200, enabled: true}
//
// Metrics absent from the file keep their defaults, and so do fields
// missing from an entry.
func LoadThresholdsFile(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}

	var raw map[string]ThresholdUpdate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse thresholds file: %w", err)
	}

	thresholds := DefaultThresholds()
	for name, upd := range raw {
		metric, err := protocol.ParseMetric(name)
		if err != nil {
			return nil, fmt.Errorf("thresholds file %s: %w", path, err)
		}
		thresholds[metric] = upd.applyTo(thresholds[metric])
	}
	return thresholds, nil
}

// ErrUnknownMetric is returned when a threshold update names an unsupported metric
var ErrUnknownMetric = errors.New("unknown metric")

// ThresholdRepository persists threshold changes across restarts
type ThresholdRepository interface {
	SaveThreshold(ctx context.Context, metric protocol.Metric, th Threshold) error
}

// ThresholdUpdate carries the fields to change; nil fields are left as they are.
type ThresholdUpdate struct {
	Warning  *float64 `json:"warning,omitempty" yaml:"warning"`
	Critical *float64 `json:"critical,omitempty" yaml:"critical"`
	Enabled  *bool    `json:"enabled,omitempty" yaml:"enabled"`
}

func (u ThresholdUpdate) applyTo(th Threshold) Threshold {
	if u.Warning != nil {
		th.Warning = *u.Warning
	}
	if u.Critical != nil {
		th.Critical = *u.Critical
	}
	if u.Enabled != nil {
		th.Enabled = *u.Enabled
	}
	return th
}

// Settings is the live, mutable threshold configuration. Each evaluation
// receives a Snapshot, so edits never race with a pass in progress.
type Settings struct {
	mu         sync.RWMutex
	thresholds Thresholds
	repo       ThresholdRepository
}

// NewSettings creates settings starting from initial. repo may be nil.
func NewSettings(initial Thresholds, repo ThresholdRepository) *Settings {
	if initial == nil {
		initial = DefaultThresholds()
	}
	return &Settings{thresholds: initial.Clone(), repo: repo}
}

// Snapshot returns a copy of the current thresholds
func (s *Settings) Snapshot() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds.Clone()
}

// Update applies a partial change to one metric
func (s *Settings) Update(ctx context.Context, metric protocol.Metric, upd ThresholdUpdate) (Threshold, error) {
	return s.modify(ctx, metric, func(th *Threshold) {
		*th = upd.applyTo(*th)
	})
}

// Toggle flips a metric's enabled flag
func (s *Settings) Toggle(ctx context.Context, metric protocol.Metric) (Threshold, error) {
	return s.modify(ctx, metric, func(th *Threshold) {
		th.Enabled = !th.Enabled
	})
}

func (s *Settings) modify(ctx context.Context, metric protocol.Metric, apply func(*Threshold)) (Threshold, error) {
	if _, err := protocol.ParseMetric(string(metric)); err != nil {
		return Threshold{}, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	th := s.thresholds[metric]
	apply(&th)

	if s.repo != nil {
		if err := s.repo.SaveThreshold(ctx, metric, th); err != nil {
			return Threshold{}, fmt.Errorf("failed to persist threshold: %w", err)
		}
	}
	s.thresholds[metric] = th
	return th, nil
}
