package aggregation

import (
	"time"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// MetricSummary holds min/max/avg of one metric over a city's readings
type MetricSummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// CitySummary aggregates the readings of one city
type CitySummary struct {
	City    string                            `json:"city"`
	Samples int                               `json:"samples"`
	Metrics map[protocol.Metric]MetricSummary `json:"metrics"`
	Latest  *protocol.Reading                 `json:"latest,omitempty"`
}

type accumulator struct {
	min, max, sum float64
	n             int
}

func (a *accumulator) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

// Summarize aggregates readings per city, in first-seen city order. The
// latest reading is the one with the newest ingestion timestamp; readings
// without a parseable timestamp rank by position.
func Summarize(readings []protocol.Reading) []CitySummary {
	type cityAgg struct {
		samples    int
		metrics    map[protocol.Metric]*accumulator
		latest     int
		latestTime time.Time
	}

	var order []string
	byCity := make(map[string]*cityAgg)

	for i := range readings {
		r := &readings[i]
		agg, ok := byCity[r.City]
		if !ok {
			agg = &cityAgg{metrics: make(map[protocol.Metric]*accumulator), latest: -1}
			byCity[r.City] = agg
			order = append(order, r.City)
		}
		agg.samples++

		for _, m := range protocol.Metrics {
			v, ok := r.Value(m)
			if !ok {
				continue
			}
			acc := agg.metrics[m]
			if acc == nil {
				acc = &accumulator{}
				agg.metrics[m] = acc
			}
			acc.add(v)
		}

		ts, ok := r.IngestedAt()
		if agg.latest < 0 || !ok || !ts.Before(agg.latestTime) {
			agg.latest = i
			if ok {
				agg.latestTime = ts
			}
		}
	}

	out := make([]CitySummary, 0, len(order))
	for _, city := range order {
		agg := byCity[city]
		s := CitySummary{
			City:    city,
			Samples: agg.samples,
			Metrics: make(map[protocol.Metric]MetricSummary, len(agg.metrics)),
		}
		for m, acc := range agg.metrics {
			s.Metrics[m] = MetricSummary{Min: acc.min, Max: acc.max, Avg: acc.sum / float64(acc.n)}
		}
		latest := readings[agg.latest]
		s.Latest = &latest
		out = append(out, s)
	}
	return out
}
