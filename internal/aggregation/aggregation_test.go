package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/env-monitor/internal/protocol"
)

func sample() []protocol.Reading {
	return []protocol.Reading{
		{City: "Delhi", AQI: 220, Temperature: 30, Humidity: 50, WindSpeed: 10, IngestionTimestamp: "2025-11-02T10:00:00Z"},
		{City: "Pune", AQI: 80, Temperature: 37, Humidity: 40, WindSpeed: 5, IngestionTimestamp: "2025-11-02T10:00:00Z"},
		{City: "Delhi", AQI: 180, Temperature: 32, Humidity: 60, WindSpeed: 14, IngestionTimestamp: "2025-11-02T11:00:00Z"},
		{City: "Mumbai", AQI: 90, Temperature: 31, Humidity: 88, WindSpeed: 22},
	}
}

func TestCities_FirstSeenOrder(t *testing.T) {
	assert.Equal(t, []string{"All", "Delhi", "Pune", "Mumbai"}, Cities(sample()))
	assert.Equal(t, []string{"All"}, Cities(nil))
}

func TestFilterByCity(t *testing.T) {
	readings := sample()

	assert.Len(t, FilterByCity(readings, "All"), 4)
	assert.Len(t, FilterByCity(readings, ""), 4)
	assert.Len(t, FilterByCity(readings, "Delhi"), 2)

	none := FilterByCity(readings, "Chennai")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSummarize(t *testing.T) {
	summaries := Summarize(sample())
	require.Len(t, summaries, 3)

	delhi := summaries[0]
	assert.Equal(t, "Delhi", delhi.City)
	assert.Equal(t, 2, delhi.Samples)
	assert.Equal(t, MetricSummary{Min: 180, Max: 220, Avg: 200}, delhi.Metrics[protocol.MetricAQI])
	assert.Equal(t, MetricSummary{Min: 10, Max: 14, Avg: 12}, delhi.Metrics[protocol.MetricWindSpeed])
	require.NotNil(t, delhi.Latest)
	assert.Equal(t, 180.0, delhi.Latest.AQI)

	assert.Equal(t, "Mumbai", summaries[2].City)
	assert.Equal(t, 1, summaries[2].Samples)
}

func TestSummarize_LatestByTimestampNotPosition(t *testing.T) {
	readings := []protocol.Reading{
		{City: "Delhi", AQI: 1, IngestionTimestamp: "2025-11-02T12:00:00Z"},
		{City: "Delhi", AQI: 2, IngestionTimestamp: "2025-11-02T08:00:00Z"},
	}

	summaries := Summarize(readings)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1.0, summaries[0].Latest.AQI)
}

func TestBuildDashboard(t *testing.T) {
	d := BuildDashboard(sample(), "Pune")

	assert.Equal(t, []string{"All", "Delhi", "Pune", "Mumbai"}, d.Cities)
	assert.Equal(t, "Pune", d.Selected)
	require.Len(t, d.Readings, 1)
	require.Len(t, d.Summaries, 1)
	assert.Equal(t, "Pune", d.Summaries[0].City)

	all := BuildDashboard(sample(), "")
	assert.Equal(t, AllCities, all.Selected)
	assert.Len(t, all.Summaries, 3)
}
