package aggregation

import (
	"github.com/smukkama/env-monitor/internal/protocol"
)

// AllCities is the selector value that disables city filtering
const AllCities = "All"

// Cities returns AllCities followed by every distinct city, in first-seen order
func Cities(readings []protocol.Reading) []string {
	seen := make(map[string]bool)
	cities := []string{AllCities}
	for _, r := range readings {
		if !seen[r.City] {
			seen[r.City] = true
			cities = append(cities, r.City)
		}
	}
	return cities
}

// FilterByCity keeps the readings for city. AllCities or "" keeps everything.
func FilterByCity(readings []protocol.Reading, city string) []protocol.Reading {
	if city == "" || city == AllCities {
		return readings
	}

	out := make([]protocol.Reading, 0)
	for _, r := range readings {
		if r.City == city {
			out = append(out, r)
		}
	}
	return out
}

// Dashboard is the dashboard view for one city selection
type Dashboard struct {
	Cities    []string           `json:"cities"`
	Selected  string             `json:"selected_city"`
	Readings  []protocol.Reading `json:"readings"`
	Summaries []CitySummary      `json:"summaries"`
}

// BuildDashboard assembles the view. The city list always covers the full
// data set so the selector is stable while filtering.
func BuildDashboard(readings []protocol.Reading, city string) Dashboard {
	if city == "" {
		city = AllCities
	}
	filtered := FilterByCity(readings, city)
	return Dashboard{
		Cities:    Cities(readings),
		Selected:  city,
		Readings:  filtered,
		Summaries: Summarize(filtered),
	}
}
