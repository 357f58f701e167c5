package producer

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Batch is everything one stream tick produced.
type Batch struct {
	At      time.Time `json:"at"`
	Sensors int       `json:"sensors"`
	Results []Result  `json:"results"`
}

// Stream is a single subscriber's push producer. It owns a private cache that
// is dropped when iteration ends.
type Stream struct {
	cycle    *cycle
	clock    clockwork.Clock
	loc      *time.Location
	interval time.Duration
	logger   *slog.Logger
	used     atomic.Bool
}

// Batches returns the lazy, infinite sequence of tick batches. The first
// batch is produced immediately, later ones once per interval. Ticks with no
// active sensors yield nothing. The sequence ends when ctx is cancelled or
// the consumer stops iterating, which also releases the ticker and cache.
// A Stream can be iterated only once; later calls yield an empty sequence.
func (s *Stream) Batches(ctx context.Context) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		if !s.used.CompareAndSwap(false, true) {
			return
		}

		ticker := s.clock.NewTicker(s.interval)
		defer ticker.Stop()
		defer s.cycle.cache.Reset()

		s.cycle.metrics.StreamSubscribers.Inc()
		defer s.cycle.metrics.StreamSubscribers.Dec()
		s.logger.Debug("stream subscription opened", "interval", s.interval)
		defer s.logger.Debug("stream subscription closed")

		for ctx.Err() == nil {
			at := s.clock.Now().In(s.loc)
			sensors, results, err := s.cycle.run(context.WithoutCancel(ctx), at)
			if err != nil {
				s.logger.Error("stream tick failed", "error", err)
			} else if sensors > 0 {
				if !yield(Batch{At: at, Sensors: sensors, Results: results}) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
		}
	}
}

// Cache exposes the subscription's last-value cache.
func (s *Stream) Cache() *LastValueCache {
	return s.cycle.cache
}
