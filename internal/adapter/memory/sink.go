// Package memory provides an in-process domain.Sink backed by a fleet
// registry. It keeps every reading and alert for the life of the process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
	"github.com/google/uuid"
)

// Sink stores readings and alerts in memory.
type Sink struct {
	fleet *fleet.Fleet

	mu       sync.RWMutex
	readings map[string]domain.Reading
	latest   map[string]string // sensor ID -> reading ID
	alerts   map[string]domain.Alert
	byRead   map[string]string // reading ID -> alert ID
}

// NewSink creates an empty sink serving sensors from f.
func NewSink(f *fleet.Fleet) *Sink {
	return &Sink{
		fleet:    f,
		readings: make(map[string]domain.Reading),
		latest:   make(map[string]string),
		alerts:   make(map[string]domain.Alert),
		byRead:   make(map[string]string),
	}
}

func (s *Sink) CreateReading(ctx context.Context, r domain.Reading) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.Validate(); err != nil {
		return "", err
	}

	r.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.ID] = r
	if prevID, ok := s.latest[r.SensorID]; !ok || !s.readings[prevID].Timestamp.After(r.Timestamp) {
		s.latest[r.SensorID] = r.ID
	}
	return r.ID, nil
}

// CreateAlert stores an alert. The reading must exist and may carry at most
// one alert.
func (s *Sink) CreateAlert(ctx context.Context, a domain.Alert) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.readings[a.ReadingID]; !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownReading, a.ReadingID)
	}
	if existing, ok := s.byRead[a.ReadingID]; ok {
		return "", fmt.Errorf("reading %s already has alert %s", a.ReadingID, existing)
	}

	a.ID = uuid.NewString()
	s.alerts[a.ID] = a
	s.byRead[a.ReadingID] = a.ID
	return a.ID, nil
}

func (s *Sink) LatestReading(ctx context.Context, sensorID string) (domain.Reading, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.latest[sensorID]
	if !ok {
		return domain.Reading{}, false, nil
	}
	return s.readings[id], true, nil
}

func (s *Sink) ListActiveSensors(ctx context.Context) ([]domain.Sensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fleet.Active(), nil
}

// Readings returns the number of stored readings.
func (s *Sink) Readings() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Alerts returns a copy of every stored alert.
func (s *Sink) Alerts() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	return out
}
