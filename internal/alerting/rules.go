package alerting

import (
	"fmt"
	"strconv"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// tier is one bound of a rule. Tiers are checked in order and the first
// breached tier wins, so a metric emits at most one event per reading.
type tier struct {
	bound    func(Threshold) float64
	severity protocol.Severity
	message  string // formatted with the city
	details  string // formatted with the value
	icon     string
}

type rule struct {
	metric   protocol.Metric
	category string
	tiers    []tier
}

func criticalBound(th Threshold) float64 { return th.Critical }
func warningBound(th Threshold) float64  { return th.Warning }

// Humidity and wind speed are checked against their critical bound only, and
// raise info and warning respectively. Their warning bound never fires.
var rules = []rule{
	{
		metric:   protocol.MetricAQI,
		category: "Air Quality",
		tiers: []tier{
			{criticalBound, protocol.SeverityCritical, "Critical air quality in %s", "AQI level: %s - Hazardous conditions. Avoid outdoor activities.", "🔴"},
			{warningBound, protocol.SeverityWarning, "Poor air quality in %s", "AQI level: %s - Unhealthy for sensitive groups.", "🟡"},
		},
	},
	{
		metric:   protocol.MetricTemperature,
		category: "Temperature",
		tiers: []tier{
			{criticalBound, protocol.SeverityCritical, "Extreme heat in %s", "Temperature: %s°C - Heat wave conditions. Stay hydrated.", "🔥"},
			{warningBound, protocol.SeverityWarning, "High temperature in %s", "Temperature: %s°C - Take precautions against heat.", "☀️"},
		},
	},
	{
		metric:   protocol.MetricHumidity,
		category: "Humidity",
		tiers: []tier{
			{criticalBound, protocol.SeverityInfo, "High humidity in %s", "Humidity level: %s%% - May feel uncomfortable.", "💧"},
		},
	},
	{
		metric:   protocol.MetricWindSpeed,
		category: "Wind",
		tiers: []tier{
			{criticalBound, protocol.SeverityWarning, "Strong winds in %s", "Wind speed: %s km/h - Exercise caution outdoors.", "💨"},
		},
	},
}

// Category returns the human label for a metric family
func Category(metric protocol.Metric) string {
	for _, r := range rules {
		if r.metric == metric {
			return r.category
		}
	}
	return string(metric)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (t tier) describe(city string, value float64) (message, details string) {
	return fmt.Sprintf(t.message, city), fmt.Sprintf(t.details, formatValue(value))
}
