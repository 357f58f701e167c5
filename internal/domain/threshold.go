package domain

import "time"

// Window is the limit window a timestamp falls into.
type Window string

const (
	WindowDay   Window = "day"   // [06,22)
	WindowNight Window = "night" // [22,06)
)

// Severity is the alert tier derived from how far a limit was exceeded.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from 1 (low) to 4 (critical); 0 for none.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Evaluation is the outcome of comparing one value against a point's limits.
type Evaluation struct {
	Window    Window   `json:"window,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Exceeded  bool     `json:"exceeded"`
	Overage   float64  `json:"overage,omitempty"`
	Severity  Severity `json:"severity,omitempty"`
}

// WindowAt returns the limit window for the timestamp's local hour.
func WindowAt(ts time.Time) Window {
	if h := ts.Hour(); h >= 6 && h < 22 {
		return WindowDay
	}
	return WindowNight
}

// SeverityFor maps a positive overage in dB to a severity tier.
func SeverityFor(overage float64) Severity {
	switch {
	case overage <= 5:
		return SeverityLow
	case overage <= 10:
		return SeverityMedium
	case overage <= 15:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// EvaluateThresholds compares value against the day or night limit that
// applies at ts.
func EvaluateThresholds(value float64, ts time.Time, day, night float64) Evaluation {
	e := Evaluation{Window: WindowAt(ts), Threshold: day}
	if e.Window == WindowNight {
		e.Threshold = night
	}
	if value > e.Threshold {
		e.Exceeded = true
		e.Overage = value - e.Threshold
		e.Severity = SeverityFor(e.Overage)
	}
	return e
}

// Evaluate compares a value against a monitoring point's limits. A nil point
// is treated as not exceeded.
func Evaluate(value float64, ts time.Time, point *MonitoringPoint) Evaluation {
	if point == nil {
		return Evaluation{Window: WindowAt(ts)}
	}
	return EvaluateThresholds(value, ts, point.DayThreshold, point.NightThreshold)
}

// NewAlert builds the unhandled alert for a stored reading that exceeded its
// limit.
func NewAlert(r Reading, e Evaluation) Alert {
	return Alert{
		ReadingID:   r.ID,
		SensorID:    r.SensorID,
		PointID:     r.PointID,
		Type:        AlertTypeExceedance,
		Severity:    e.Severity,
		Status:      AlertUnhandled,
		TriggeredAt: r.Timestamp,
		Value:       r.Value,
		Threshold:   e.Threshold,
		Overage:     e.Overage,
	}
}
