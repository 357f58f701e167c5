package domain

import (
	"context"
	"errors"
)

// ErrUnknownReading is returned when an alert references a reading the sink
// has never stored.
var ErrUnknownReading = errors.New("unknown reading")

// Sink is the durable store for readings and alerts, and the read side of the
// sensor fleet.
type Sink interface {
	// CreateReading stores a new reading and returns its assigned ID.
	CreateReading(ctx context.Context, r Reading) (string, error)

	// CreateAlert stores a new alert and returns its assigned ID.
	CreateAlert(ctx context.Context, a Alert) (string, error)

	// LatestReading returns the most recent stored reading for a sensor.
	// The boolean is false when the sensor has no readings yet.
	LatestReading(ctx context.Context, sensorID string) (Reading, bool, error)

	// ListActiveSensors returns every sensor whose status is online.
	ListActiveSensors(ctx context.Context) ([]Sensor, error)
}
