package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowAt(t *testing.T) {
	assert.Equal(t, WindowNight, WindowAt(at(5, 59)))
	assert.Equal(t, WindowDay, WindowAt(at(6, 0)))
	assert.Equal(t, WindowDay, WindowAt(at(21, 59)))
	assert.Equal(t, WindowNight, WindowAt(at(22, 0)))
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		overage float64
		want    Severity
	}{
		{0.01, SeverityLow},
		{5, SeverityLow},
		{5.01, SeverityMedium},
		{10, SeverityMedium},
		{10.01, SeverityHigh},
		{15, SeverityHigh},
		{15.01, SeverityCritical},
		{40, SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityFor(tt.overage), "overage %v", tt.overage)
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
	assert.Equal(t, 0, Severity("").Rank())
}

func TestEvaluateThresholds(t *testing.T) {
	t.Run("day exceedance", func(t *testing.T) {
		e := EvaluateThresholds(65, at(12, 0), 60, 70)
		assert.True(t, e.Exceeded)
		assert.Equal(t, WindowDay, e.Window)
		assert.InDelta(t, 60.0, e.Threshold, 1e-9)
		assert.InDelta(t, 5.0, e.Overage, 1e-9)
		assert.Equal(t, SeverityLow, e.Severity)
	})

	t.Run("night uses night limit", func(t *testing.T) {
		e := EvaluateThresholds(65, at(2, 0), 60, 70)
		assert.False(t, e.Exceeded)
		assert.Equal(t, WindowNight, e.Window)
		assert.InDelta(t, 70.0, e.Threshold, 1e-9)
		assert.Zero(t, e.Overage)
		assert.Empty(t, e.Severity)
	})

	t.Run("equal to limit is not exceeded", func(t *testing.T) {
		e := EvaluateThresholds(55, at(23, 0), 65, 55)
		assert.False(t, e.Exceeded)
	})

	t.Run("critical at night", func(t *testing.T) {
		e := EvaluateThresholds(72, at(23, 30), 65, 55)
		assert.True(t, e.Exceeded)
		assert.Equal(t, SeverityCritical, e.Severity)
	})
}

func TestEvaluate_NilPoint(t *testing.T) {
	e := Evaluate(150, at(12, 0), nil)
	assert.False(t, e.Exceeded)
	assert.Empty(t, e.Severity)
}

func TestEvaluate_UsesReadingLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)

	point := &MonitoringPoint{ID: "p-1", DayThreshold: 60, NightThreshold: 50}
	// 23:00 UTC is 07:00 the next morning at UTC+8.
	ts := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	assert.True(t, Evaluate(55, ts, point).Exceeded)
	assert.False(t, Evaluate(55, ts.In(loc), point).Exceeded)
}

func TestNewAlert(t *testing.T) {
	r := Reading{ID: "r-1", SensorID: "s-1", PointID: "p-1", Value: 72.5, Timestamp: at(12, 0)}
	e := EvaluateThresholds(r.Value, r.Timestamp, 60, 50)

	a := NewAlert(r, e)
	assert.Empty(t, a.ID)
	assert.Equal(t, "r-1", a.ReadingID)
	assert.Equal(t, "s-1", a.SensorID)
	assert.Equal(t, "p-1", a.PointID)
	assert.Equal(t, AlertTypeExceedance, a.Type)
	assert.Equal(t, AlertUnhandled, a.Status)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Equal(t, r.Timestamp, a.TriggeredAt)
	assert.InDelta(t, 60.0, a.Threshold, 1e-9)
	assert.InDelta(t, 12.5, a.Overage, 1e-9)
}

func TestGradeOf(t *testing.T) {
	tests := []struct {
		value  float64
		region RegionType
		want   Grade
	}{
		{50, RegionResidential, GradeExcellent},
		{50.5, RegionResidential, GradeGood},
		{58, RegionResidential, GradeLight},
		{65, RegionResidential, GradeModerate},
		{65.1, RegionResidential, GradeSevere},
		{60, RegionIndustrial, GradeExcellent},
		{47, RegionEducation, GradeGood},
		{68, RegionArterial, GradeModerate},
		{80, RegionCommercial, GradeSevere},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeOf(tt.value, tt.region), "%v in %s", tt.value, tt.region)
	}
}
