package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSynthesize_OnlineColdStart(t *testing.T) {
	s := NewSynthesizer(DefaultProfile(), fixedRand(0.5))
	sensor := Sensor{ID: "s-1", PointID: "p-1", RegionType: RegionResidential, Status: StatusOnline}
	ts := at(12, 0)

	r := s.Synthesize(sensor, ts, nil)

	assert.Empty(t, r.ID)
	assert.Equal(t, "s-1", r.SensorID)
	assert.Equal(t, "p-1", r.PointID)
	assert.Equal(t, ts, r.Timestamp)
	assert.InDelta(t, 45.0, r.Value, 1e-9)
	assert.Equal(t, QualityExcellent, r.Quality)
	assert.Equal(t, Weather{Condition: "cloudy", TemperatureC: 22, HumidityPct: 60, WindSpeedMS: 2.5}, r.Weather)
	assert.InDelta(t, 0.3, r.Spectrum.Low, 1e-9)
	assert.InDelta(t, 0.4, r.Spectrum.Mid, 1e-9)
	assert.InDelta(t, 0.3, r.Spectrum.High, 1e-9)
	assert.NoError(t, r.Validate())
}

func TestSynthesize_RegionFromPoint(t *testing.T) {
	s := NewSynthesizer(DefaultProfile(), fixedRand(0.5))
	point := &MonitoringPoint{ID: "p-9", RegionType: RegionIndustrial, DayThreshold: 65, NightThreshold: 55}
	sensor := Sensor{ID: "s-9", PointID: "p-9", Status: StatusOnline, Point: point}

	r := s.Synthesize(sensor, at(12, 0), nil)
	assert.InDelta(t, 65.0, r.Value, 1e-9)
}

func TestSynthesize_SmoothsAgainstPrevious(t *testing.T) {
	s := NewSynthesizer(DefaultProfile(), fixedRand(0.5))
	sensor := Sensor{ID: "s-1", RegionType: RegionArterial, Status: StatusOnline}

	// Baseline at noon is 70; 30s after a 60 dB sample only 2.5 dB of drift is allowed.
	prev := &Previous{Value: 60, Elapsed: 30 * time.Second, ElapsedKnown: true}
	r := s.Synthesize(sensor, at(12, 0), prev)
	assert.InDelta(t, 62.5, r.Value, 1e-9)
}

func TestSynthesize_RoundingStaysWithinStepBound(t *testing.T) {
	s := NewSynthesizer(DefaultProfile(), fixedRand(0.9999))
	sensor := Sensor{ID: "s-1", RegionType: RegionArterial, Status: StatusOnline}

	// 0.606 dB of drift plus 1.9996 of jitter lands on 72.6056; rounding half
	// up would give 72.61, past the 2.606 dB bound.
	prev := &Previous{Value: 70, Elapsed: 7272 * time.Millisecond, ElapsedKnown: true}
	r := s.Synthesize(sensor, at(12, 0), prev)
	assert.InDelta(t, 72.60, r.Value, 1e-9)
	assert.LessOrEqual(t, r.Value-prev.Value, 0.606+smoothingJitter+1e-9)
}

func TestSynthesize_RandomizedStepBound(t *testing.T) {
	p := DefaultProfile()
	rnd := NewRand(7)
	s := NewSynthesizer(p, rnd)
	band := p.Band(RegionCommercial)
	sensor := Sensor{ID: "s-1", RegionType: RegionCommercial, Status: StatusOnline}

	for i := range 2000 {
		prevValue := round(uniform(rnd, band.Min, band.Max), 2)
		elapsed := time.Duration(uniform(rnd, 0, 59.999) * float64(time.Second))
		prev := &Previous{Value: prevValue, Elapsed: elapsed, ElapsedKnown: true}

		r := s.Synthesize(sensor, at(12, 0), prev)
		bound := elapsed.Seconds()/60*5 + smoothingJitter
		assert.LessOrEqual(t, math.Abs(r.Value-prevValue), bound+1e-9, "iteration %d", i)
	}
}

func TestSynthesize_NotOnline(t *testing.T) {
	statuses := []SensorStatus{StatusOffline, StatusFaulty, StatusMaintenance, StatusCalibrating}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			sensor := Sensor{ID: "s-2", RegionType: RegionArterial, Status: status}

			r := NewSynthesizer(DefaultProfile(), fixedRand(0.5)).Synthesize(sensor, at(8, 0), nil)
			assert.InDelta(t, 15.0, r.Value, 1e-9)
			assert.Equal(t, QualityInvalid, r.Quality)

			// The largest possible draw still stays below the ceiling.
			r = NewSynthesizer(DefaultProfile(), fixedRand(0.99999999)).Synthesize(sensor, at(8, 0), nil)
			assert.Less(t, r.Value, degradedCeiling)
			assert.Equal(t, QualityInvalid, r.Quality)
		})
	}
}

func TestSynthesize_BoundsAcrossRegions(t *testing.T) {
	p := DefaultProfile()
	s := NewSynthesizer(p, NewRand(99))
	regions := []RegionType{
		RegionResidential, RegionCommercial, RegionIndustrial,
		RegionArterial, RegionEducation, RegionMixed, "unmapped",
	}

	for _, region := range regions {
		band := p.Band(region)
		sensor := Sensor{ID: "s", RegionType: region, Status: StatusOnline}
		var prev *Previous
		ts := at(0, 0)
		for range 24 * 12 {
			r := s.Synthesize(sensor, ts, prev)
			assert.GreaterOrEqual(t, r.Value, band.Min-bandMargin, "region %q", region)
			assert.LessOrEqual(t, r.Value, band.Max+bandMargin, "region %q", region)
			assert.NotEqual(t, QualityInvalid, r.Quality)
			assert.NoError(t, r.Validate())

			spectrum := r.Spectrum.Low + r.Spectrum.Mid + r.Spectrum.High
			assert.InDelta(t, 1.0, spectrum, 1e-9)

			prev = &Previous{Value: r.Value, Elapsed: 5 * time.Minute, ElapsedKnown: true}
			ts = ts.Add(5 * time.Minute)
		}
	}
}

func TestSynthesizer_Quality(t *testing.T) {
	band := DefaultProfile().Band(RegionResidential)

	tests := []struct {
		name   string
		draw   float64
		status SensorStatus
		value  float64
		want   Quality
	}{
		{"offline", 0.1, StatusOffline, 10, QualityInvalid},
		{"far below band", 0.1, StatusOnline, band.Min - 10.5, QualityPoor},
		{"far above band", 0.1, StatusOnline, band.Max + 10.5, QualityPoor},
		{"excellent", 0.69, StatusOnline, 50, QualityExcellent},
		{"good", 0.7, StatusOnline, 50, QualityGood},
		{"fair", 0.95, StatusOnline, 50, QualityFair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(DefaultProfile(), fixedRand(tt.draw))
			assert.Equal(t, tt.want, s.quality(tt.status, tt.value, band))
		})
	}
}

func TestSynthesizer_WindyWeather(t *testing.T) {
	// Draw 0.9 picks the last condition.
	w := NewSynthesizer(DefaultProfile(), fixedRand(0.9)).weather()
	assert.Equal(t, "windy", w.Condition)
	assert.InDelta(t, 14.0, w.WindSpeedMS, 1e-9)
	assert.InDelta(t, 27.0, w.TemperatureC, 1e-9)
	assert.InDelta(t, 68.0, w.HumidityPct, 1e-9)
}
