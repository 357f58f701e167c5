// Package fleet loads the read-only sensor fleet: monitoring points with
// their noise limits and the sensors installed at them.
package fleet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Default limits applied to points that leave them unset.
const (
	DefaultDayThreshold   = 60.0
	DefaultNightThreshold = 50.0
)

// Fleet is the set of monitoring points and sensors the engine simulates.
type Fleet struct {
	Points  []domain.MonitoringPoint `yaml:"points"`
	Sensors []domain.Sensor          `yaml:"sensors"`

	points map[string]*domain.MonitoringPoint
}

// Load reads a fleet file from disk.
func Load(path string) (*Fleet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fleet file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML fleet document, applies default limits and resolves
// every sensor's monitoring point.
func Parse(r io.Reader) (*Fleet, error) {
	var f Fleet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fleet: %w", err)
	}
	if err := f.index(); err != nil {
		return nil, fmt.Errorf("parse fleet: %w", err)
	}
	return &f, nil
}

// New builds a fleet from in-memory points and sensors.
func New(points []domain.MonitoringPoint, sensors []domain.Sensor) (*Fleet, error) {
	f := &Fleet{Points: points, Sensors: sensors}
	if err := f.index(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fleet) index() error {
	f.points = make(map[string]*domain.MonitoringPoint, len(f.Points))
	for i := range f.Points {
		p := &f.Points[i]
		if p.ID == "" {
			return fmt.Errorf("point %d: missing id", i)
		}
		if _, dup := f.points[p.ID]; dup {
			return fmt.Errorf("duplicate point id %q", p.ID)
		}
		if p.DayThreshold == 0 {
			p.DayThreshold = DefaultDayThreshold
		}
		if p.NightThreshold == 0 {
			p.NightThreshold = DefaultNightThreshold
		}
		f.points[p.ID] = p
	}

	seen := make(map[string]struct{}, len(f.Sensors))
	for i := range f.Sensors {
		s := &f.Sensors[i]
		if s.ID == "" {
			return fmt.Errorf("sensor %d: missing id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate sensor id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Status == "" {
			s.Status = domain.StatusOnline
		}
		if !s.Status.Valid() {
			return fmt.Errorf("sensor %q: unknown status %q", s.ID, s.Status)
		}
		// An unresolved point is tolerated; the sensor then never raises alerts.
		s.Point = f.points[s.PointID]
	}
	return nil
}

// Point returns a monitoring point by ID.
func (f *Fleet) Point(id string) (*domain.MonitoringPoint, bool) {
	p, ok := f.points[id]
	return p, ok
}

// Active returns the online sensors with their points resolved.
func (f *Fleet) Active() []domain.Sensor {
	out := make([]domain.Sensor, 0, len(f.Sensors))
	for _, s := range f.Sensors {
		if s.Status == domain.StatusOnline {
			out = append(out, s)
		}
	}
	return out
}

// Encode writes the fleet as YAML.
func (f *Fleet) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode fleet: %w", err)
	}
	return enc.Close()
}
