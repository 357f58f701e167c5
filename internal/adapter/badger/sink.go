// Package badger persists readings and alerts in an embedded BadgerDB store.
//
// Key layout:
//
//	r/<sensor>/<unix-nanos, big-endian>/<reading id>  -> gob(domain.Reading)
//	i/<reading id>                                    -> reading key
//	a/<reading id>                                    -> gob(domain.Alert)
//
// Big-endian timestamps keep each sensor's readings in chronological order,
// so the latest reading is the first key of a reverse prefix scan.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
)

// ErrAlertExists is returned when a reading already carries an alert.
var ErrAlertExists = errors.New("alert already exists for reading")

// Sink is a domain.Sink backed by BadgerDB. Sensors are served from the fleet.
type Sink struct {
	db     *badger.DB
	fleet  *fleet.Fleet
	logger *slog.Logger
}

// Open opens (or creates) the store at path.
func Open(path string, f *fleet.Fleet, logger *slog.Logger) (*Sink, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	return open(opts, f, logger)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(f *fleet.Fleet, logger *slog.Logger) (*Sink, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	return open(opts, f, logger)
}

func open(opts badger.Options, f *fleet.Fleet, logger *slog.Logger) (*Sink, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	logger.Info("badger store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Sink{db: db, fleet: f, logger: logger}, nil
}

// Close flushes and closes the store.
func (s *Sink) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

func (s *Sink) CreateReading(ctx context.Context, r domain.Reading) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.Validate(); err != nil {
		return "", err
	}

	r.ID = uuid.NewString()
	val, err := encode(r)
	if err != nil {
		return "", err
	}
	key := readingKey(r)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set(indexKey(r.ID), key)
	})
	if err != nil {
		return "", fmt.Errorf("store reading: %w", err)
	}
	return r.ID, nil
}

// WriteReadings bulk-loads readings with a single write batch and returns
// their assigned IDs in input order.
func (s *Sink) WriteReadings(ctx context.Context, readings []domain.Reading) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	ids := make([]string, 0, len(readings))
	for _, r := range readings {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		r.ID = uuid.NewString()
		val, err := encode(r)
		if err != nil {
			return nil, err
		}
		key := readingKey(r)
		if err := wb.Set(key, val); err != nil {
			return nil, fmt.Errorf("write batch: %w", err)
		}
		if err := wb.Set(indexKey(r.ID), key); err != nil {
			return nil, fmt.Errorf("write batch: %w", err)
		}
		ids = append(ids, r.ID)
	}

	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("flush batch: %w", err)
	}
	return ids, nil
}

func (s *Sink) CreateAlert(ctx context.Context, a domain.Alert) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.ID = uuid.NewString()
	val, err := encode(a)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(indexKey(a.ReadingID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrUnknownReading, a.ReadingID)
			}
			return err
		}
		if _, err := txn.Get(alertKey(a.ReadingID)); err == nil {
			return fmt.Errorf("%w: %s", ErrAlertExists, a.ReadingID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(alertKey(a.ReadingID), val)
	})
	if err != nil {
		return "", fmt.Errorf("store alert: %w", err)
	}
	return a.ID, nil
}

func (s *Sink) LatestReading(ctx context.Context, sensorID string) (domain.Reading, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, false, err
	}

	prefix := sensorPrefix(sensorID)
	var (
		r     domain.Reading
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(bytes.Clone(prefix), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return decode(val, &r)
		})
	})
	if err != nil {
		return domain.Reading{}, false, fmt.Errorf("latest reading: %w", err)
	}
	return r, found, nil
}

func (s *Sink) ListActiveSensors(ctx context.Context) ([]domain.Sensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fleet.Active(), nil
}

// QueryRange returns a sensor's readings with start <= timestamp < end in
// chronological order.
func (s *Sink) QueryRange(ctx context.Context, sensorID string, start, end time.Time) ([]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := sensorPrefix(sensorID)
	lower := binary.BigEndian.AppendUint64(bytes.Clone(prefix), uint64(start.UnixNano()))

	var out []domain.Reading
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(lower); it.ValidForPrefix(prefix); it.Next() {
			var r domain.Reading
			if err := it.Item().Value(func(val []byte) error { return decode(val, &r) }); err != nil {
				return err
			}
			if !r.Timestamp.Before(end) {
				break
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	return out, nil
}

// Alert returns the alert recorded for a reading.
func (s *Sink) Alert(ctx context.Context, readingID string) (domain.Alert, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Alert{}, false, err
	}

	var (
		a     domain.Alert
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(alertKey(readingID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return decode(val, &a) })
	})
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("get alert: %w", err)
	}
	return a, found, nil
}

func sensorPrefix(sensorID string) []byte {
	return []byte("r/" + sensorID + "/")
}

func readingKey(r domain.Reading) []byte {
	key := sensorPrefix(r.SensorID)
	key = binary.BigEndian.AppendUint64(key, uint64(r.Timestamp.UnixNano()))
	key = append(key, '/')
	return append(key, r.ID...)
}

func indexKey(readingID string) []byte {
	return []byte("i/" + readingID)
}

func alertKey(readingID string) []byte {
	return []byte("a/" + readingID)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// badgerLogger routes Badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
