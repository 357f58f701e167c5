package producer

import (
	"slices"
	"strings"
	"time"
)

// SensorStats aggregates one sensor's readings over an hour.
type SensorStats struct {
	SensorID   string  `json:"sensor_id"`
	Count      int     `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
	Exceedance int     `json:"exceedance"`
}

// HourSummary is the per-sensor rollup of one completed hour.
type HourSummary struct {
	Hour    time.Time     `json:"hour"`
	Sensors []SensorStats `json:"sensors"`
}

type accumulator struct {
	count      int
	sum        float64
	min        float64
	max        float64
	exceedance int
}

// rollup collects interval results into hourly buckets. It is only touched
// from the interval producer's loop goroutine.
type rollup struct {
	hour  time.Time
	stats map[string]*accumulator
}

func newRollup() *rollup {
	return &rollup{stats: make(map[string]*accumulator)}
}

// observe adds a tick's results. When the tick falls in a later hour than the
// open bucket, the previous hour is closed and returned.
func (r *rollup) observe(at time.Time, results []Result) (HourSummary, bool) {
	hour := at.Truncate(time.Hour)

	var (
		summary HourSummary
		flushed bool
	)
	if !r.hour.IsZero() && hour.After(r.hour) {
		summary, flushed = r.flush(), true
	}
	if r.hour.IsZero() || flushed {
		r.hour = hour
	}

	for _, res := range results {
		id := res.Reading.SensorID
		acc, ok := r.stats[id]
		if !ok {
			acc = &accumulator{min: res.Reading.Value, max: res.Reading.Value}
			r.stats[id] = acc
		}
		acc.count++
		acc.sum += res.Reading.Value
		acc.min = min(acc.min, res.Reading.Value)
		acc.max = max(acc.max, res.Reading.Value)
		if res.Evaluation.Exceeded {
			acc.exceedance++
		}
	}
	return summary, flushed
}

func (r *rollup) flush() HourSummary {
	s := HourSummary{Hour: r.hour, Sensors: make([]SensorStats, 0, len(r.stats))}
	for id, acc := range r.stats {
		s.Sensors = append(s.Sensors, SensorStats{
			SensorID:   id,
			Count:      acc.count,
			Min:        acc.min,
			Max:        acc.max,
			Avg:        acc.sum / float64(acc.count),
			Exceedance: acc.exceedance,
		})
	}
	slices.SortFunc(s.Sensors, func(a, b SensorStats) int {
		return strings.Compare(a.SensorID, b.SensorID)
	})
	r.stats = make(map[string]*accumulator)
	return s
}
