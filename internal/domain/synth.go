package domain

import (
	"math"
	"time"
)

// degradedCeiling is the exclusive upper bound of values reported by sensors
// that are not online.
const degradedCeiling = 30.0

var weatherConditions = []string{"normal", "sunny", "cloudy", "rainy", "windy"}

// Synthesizer produces complete readings from the noise model.
type Synthesizer struct {
	profile Profile
	rnd     Rand
}

// NewSynthesizer creates a Synthesizer drawing from rnd.
func NewSynthesizer(profile Profile, rnd Rand) *Synthesizer {
	return &Synthesizer{profile: profile, rnd: rnd}
}

// Profile returns the model configuration in use.
func (s *Synthesizer) Profile() Profile {
	return s.profile
}

// Synthesize generates the reading a sensor reports at time at, given its
// previous value (nil on cold start). The returned reading has no ID yet.
func (s *Synthesizer) Synthesize(sensor Sensor, at time.Time, prev *Previous) Reading {
	region := sensor.Region()
	band := s.profile.Band(region)

	var value float64
	if sensor.Status != StatusOnline {
		// Truncate rather than round so the value stays below the ceiling.
		value = math.Floor(uniform(s.rnd, 0, degradedCeiling)*100) / 100
	} else {
		candidate := s.profile.Baseline(region, at, s.rnd)
		value = roundToward(s.profile.Smooth(band, prev, candidate, s.rnd), prev, 2)
	}

	return Reading{
		SensorID:  sensor.ID,
		PointID:   sensor.PointID,
		Value:     value,
		Timestamp: at,
		Spectrum:  s.spectrum(),
		Quality:   s.quality(sensor.Status, value, band),
		Weather:   s.weather(),
	}
}

// quality tags a reading: invalid for sensors that are not online, poor when
// the value lies far outside the band, otherwise 70% excellent, 20% good and
// 10% fair.
func (s *Synthesizer) quality(status SensorStatus, value float64, band Band) Quality {
	if status != StatusOnline {
		return QualityInvalid
	}
	if value < band.Min-10 || value > band.Max+10 {
		return QualityPoor
	}
	switch q := s.rnd.Float64(); {
	case q < 0.7:
		return QualityExcellent
	case q < 0.9:
		return QualityGood
	default:
		return QualityFair
	}
}

func (s *Synthesizer) spectrum() Spectrum {
	low := uniform(s.rnd, 0.2, 0.4)
	mid := uniform(s.rnd, 0.3, 0.5)
	high := uniform(s.rnd, 0.2, 0.4)
	total := low + mid + high
	return Spectrum{Low: low / total, Mid: mid / total, High: high / total}
}

func (s *Synthesizer) weather() Weather {
	i := int(s.rnd.Float64() * float64(len(weatherConditions)))
	i = min(i, len(weatherConditions)-1)
	w := Weather{Condition: weatherConditions[i]}

	switch w.Condition {
	case "sunny":
		w.TemperatureC = uniform(s.rnd, 20, 30)
		w.HumidityPct = uniform(s.rnd, 40, 60)
	case "rainy":
		w.TemperatureC = uniform(s.rnd, 15, 25)
		w.HumidityPct = uniform(s.rnd, 70, 90)
	case "windy":
		w.TemperatureC = uniform(s.rnd, 18, 28)
		w.HumidityPct = uniform(s.rnd, 50, 70)
	default:
		w.TemperatureC = uniform(s.rnd, 18, 26)
		w.HumidityPct = uniform(s.rnd, 50, 70)
	}
	if w.Condition == "windy" {
		w.WindSpeedMS = uniform(s.rnd, 5, 15)
	} else {
		w.WindSpeedMS = uniform(s.rnd, 0, 5)
	}

	w.TemperatureC = round(w.TemperatureC, 1)
	w.HumidityPct = round(w.HumidityPct, 1)
	w.WindSpeedMS = round(w.WindSpeedMS, 1)
	return w
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// roundToward rounds v like round, except that it never moves v further from
// the previous value, so the smoothing bound survives rounding.
func roundToward(v float64, prev *Previous, places int) float64 {
	r := round(v, places)
	if prev == nil || math.Abs(r-prev.Value) <= math.Abs(v-prev.Value) {
		return r
	}
	p := math.Pow(10, float64(places))
	if v > prev.Value {
		return math.Floor(v*p) / p
	}
	return math.Ceil(v*p) / p
}
