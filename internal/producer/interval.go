package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// IntervalProducer generates a reading for every active sensor once per
// period, starting immediately. Its cache lives as long as the producer.
type IntervalProducer struct {
	cycle    *cycle
	clock    clockwork.Clock
	loc      *time.Location
	interval time.Duration
	rollup   *rollup
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the producer loop. It returns false if the loop is already
// running. A loop that is still winding down from Stop finishes before the new
// one ticks; Start itself never waits for it.
func (p *IntervalProducer) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return false
	}

	// Detach from the caller so the loop outlives the request that started it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	prevDone := p.done
	done := make(chan struct{})
	ticker := p.clock.NewTicker(p.interval)

	p.cancel = cancel
	p.done = done

	p.logger.Info("interval producer started", "interval", p.interval)
	go p.run(loopCtx, prevDone, ticker, done)
	return true
}

// Stop requests cancellation and waits until the current tick, if any, has
// finished or ctx expires. It returns false if the producer was not running.
func (p *IntervalProducer) Stop(ctx context.Context) bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("interval producer still finishing its tick", "error", ctx.Err())
	}
	return true
}

// Running reports whether the loop has been started and not stopped.
func (p *IntervalProducer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Wait blocks until the most recently started loop has exited or ctx expires.
func (p *IntervalProducer) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interval producer still running: %w", ctx.Err())
	}
}

// Cache exposes the producer's last-value cache.
func (p *IntervalProducer) Cache() *LastValueCache {
	return p.cycle.cache
}

func (p *IntervalProducer) run(ctx context.Context, prevDone <-chan struct{}, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	if prevDone != nil {
		<-prevDone
	}
	if ctx.Err() != nil {
		return
	}

	p.cycle.metrics.SimulationRunning.Set(1)
	defer p.cycle.metrics.SimulationRunning.Set(0)

	for {
		p.tick(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("interval producer stopped")
			return
		case <-ticker.Chan():
		}
		if ctx.Err() != nil {
			p.logger.Info("interval producer stopped")
			return
		}
	}
}

// tick runs one generation pass. Sink calls are shielded from cancellation so
// a Stop only takes effect at the next tick boundary.
func (p *IntervalProducer) tick(ctx context.Context) {
	at := p.clock.Now().In(p.loc)

	sensors, results, err := p.cycle.run(context.WithoutCancel(ctx), at)
	if err != nil {
		p.logger.Error("interval tick failed", "error", err)
		return
	}
	if sensors == 0 {
		return
	}
	p.logger.Debug("interval tick complete", "sensors", sensors, "stored", len(results))

	if summary, ok := p.rollup.observe(at, results); ok {
		for _, s := range summary.Sensors {
			p.logger.Info("hourly noise summary",
				"hour", summary.Hour,
				"sensor_id", s.SensorID,
				"count", s.Count,
				"min", s.Min,
				"max", s.Max,
				"avg", s.Avg,
				"exceedance", s.Exceedance,
			)
		}
	}
}
