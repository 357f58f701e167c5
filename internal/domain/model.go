package domain

import (
	"errors"
	"fmt"
	"time"
)

// RegionType is the land-use category of a monitoring site.
type RegionType string

const (
	RegionResidential RegionType = "residential"
	RegionCommercial  RegionType = "commercial"
	RegionIndustrial  RegionType = "industrial"
	RegionArterial    RegionType = "arterial"
	RegionEducation   RegionType = "education"
	RegionMixed       RegionType = "mixed"
)

// SensorStatus is the operational state reported by fleet management.
type SensorStatus string

const (
	StatusOnline      SensorStatus = "online"
	StatusOffline     SensorStatus = "offline"
	StatusFaulty      SensorStatus = "faulty"
	StatusMaintenance SensorStatus = "maintenance"
	StatusCalibrating SensorStatus = "calibrating"
)

// Valid reports whether s is one of the known statuses.
func (s SensorStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusFaulty, StatusMaintenance, StatusCalibrating:
		return true
	}
	return false
}

// Quality tags how trustworthy a reading is.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityInvalid   Quality = "invalid"
)

// MonitoringPoint is a geographic site with day and night noise limits (dB).
type MonitoringPoint struct {
	ID             string     `json:"id" yaml:"id"`
	Code           string     `json:"code,omitempty" yaml:"code"`
	Name           string     `json:"name,omitempty" yaml:"name"`
	Lat            float64    `json:"lat" yaml:"lat"`
	Lon            float64    `json:"lon" yaml:"lon"`
	RegionType     RegionType `json:"region_type" yaml:"region_type"`
	DayThreshold   float64    `json:"day_threshold" yaml:"day_threshold"`
	NightThreshold float64    `json:"night_threshold" yaml:"night_threshold"`
}

// Sensor is a noise sensor installed at a monitoring point. Point is nil when
// the owning point could not be resolved.
type Sensor struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name,omitempty" yaml:"name"`
	RegionType RegionType       `json:"region_type,omitempty" yaml:"region_type"`
	Status     SensorStatus     `json:"status" yaml:"status"`
	PointID    string           `json:"point_id" yaml:"point_id"`
	Point      *MonitoringPoint `json:"-" yaml:"-"`
}

// Region returns the sensor's own region type, falling back to its point's.
func (s Sensor) Region() RegionType {
	if s.RegionType != "" {
		return s.RegionType
	}
	if s.Point != nil {
		return s.Point.RegionType
	}
	return ""
}

// Weather holds the ambient conditions recorded alongside a reading.
type Weather struct {
	Condition    string  `json:"condition"`
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	WindSpeedMS  float64 `json:"wind_speed_ms"`
}

// Spectrum is the share of acoustic energy in each frequency band.
type Spectrum struct {
	Low  float64 `json:"low"`  // 20-200 Hz
	Mid  float64 `json:"mid"`  // 200-2000 Hz
	High float64 `json:"high"` // 2000-20000 Hz
}

// Reading is one generated sample. It is immutable once persisted.
type Reading struct {
	ID        string    `json:"id"`
	SensorID  string    `json:"sensor_id"`
	PointID   string    `json:"point_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Quality   Quality   `json:"quality"`
	Weather   Weather   `json:"weather"`
	Spectrum  Spectrum  `json:"spectrum"`
}

// ErrInvalidReading is returned by sinks for readings that fail validation.
var ErrInvalidReading = errors.New("invalid reading")

// Validate checks the reading against the storage constraints.
func (r Reading) Validate() error {
	if r.SensorID == "" {
		return fmt.Errorf("%w: missing sensor id", ErrInvalidReading)
	}
	if r.Value < 0 || r.Value > 200 {
		return fmt.Errorf("%w: value %.2f outside [0,200]", ErrInvalidReading, r.Value)
	}
	if r.Weather.HumidityPct < 0 || r.Weather.HumidityPct > 100 {
		return fmt.Errorf("%w: humidity %.1f outside [0,100]", ErrInvalidReading, r.Weather.HumidityPct)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReading)
	}
	return nil
}

// AlertStatus tracks operator handling of an alert.
type AlertStatus string

const (
	AlertUnhandled  AlertStatus = "unhandled"
	AlertInProgress AlertStatus = "in_progress"
	AlertHandled    AlertStatus = "handled"
	AlertClosed     AlertStatus = "closed"
)

// AlertTypeExceedance marks alerts raised for noise limit exceedance.
const AlertTypeExceedance = "noise_exceedance"

// Alert records that a reading exceeded its point's limit.
type Alert struct {
	ID          string      `json:"id"`
	ReadingID   string      `json:"reading_id"`
	SensorID    string      `json:"sensor_id"`
	PointID     string      `json:"point_id"`
	Type        string      `json:"type"`
	Severity    Severity    `json:"severity"`
	Status      AlertStatus `json:"status"`
	TriggeredAt time.Time   `json:"triggered_at"`
	Value       float64     `json:"value"`
	Threshold   float64     `json:"threshold"`
	Overage     float64     `json:"overage"`
}
