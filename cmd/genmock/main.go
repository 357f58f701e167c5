// Command genmock generates reproducible noise telemetry fixtures: a demo
// fleet as YAML and a replayed series of readings and alerts as JSON. It runs
// the same domain model the service uses, so the output matches what the
// interval producer would have stored.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -fleet-out data/mock/fleet.yaml \
//	  -readings-out data/mock/readings.json \
//	  -store data/mock/badger
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/adapter/badger"
	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Fixture is the JSON document written to -readings-out.
type Fixture struct {
	Seed     uint64           `json:"seed"`
	Start    time.Time        `json:"start"`
	Step     string           `json:"step"`
	Readings []domain.Reading `json:"readings"`
	Alerts   []domain.Alert   `json:"alerts"`
}

// readingNamespace keys the deterministic reading IDs.
var readingNamespace = uuid.MustParse("6f1c1f0e-8a43-4c8b-9d6a-2b0f7f3e5a10")

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	seed := flag.Uint64("seed", 42, "random seed for fleet and readings")
	points := flag.Int("points", 12, "number of monitoring points")
	perPoint := flag.Int("sensors-per-point", 2, "sensors installed at each point")
	offline := flag.Float64("offline-ratio", 0.1, "share of sensors that are not online")
	start := flag.String("start", "2026-03-14T00:00:00Z", "timestamp of the first tick (RFC 3339)")
	step := flag.Duration("step", time.Minute, "gap between ticks")
	ticks := flag.Int("ticks", 1440, "number of ticks to replay")
	fleetOut := flag.String("fleet-out", "", "output path for the fleet YAML")
	readingsOut := flag.String("readings-out", "", "output path for the readings JSON fixture")
	storePath := flag.String("store", "", "optional badger directory to seed with the readings")
	flag.Parse()

	if *fleetOut == "" || *readingsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -fleet-out, -readings-out")
	}

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	f := fleet.Generate(fleet.GenerateOptions{
		Seed:            *seed,
		Points:          *points,
		SensorsPerPoint: *perPoint,
		OfflineRatio:    *offline,
	})
	if err := writeFleet(*fleetOut, f); err != nil {
		return err
	}
	log.Printf("fleet: %d points, %d sensors (%d online)", len(f.Points), len(f.Sensors), len(f.Active()))

	clock := clockwork.NewFakeClockAt(startAt)
	fx := replay(f, domain.NewSynthesizer(domain.DefaultProfile(), domain.NewRand(*seed)), clock, *step, *ticks)
	fx.Seed = *seed
	log.Printf("readings: %d, alerts: %d", len(fx.Readings), len(fx.Alerts))

	if err := writeJSON(*readingsOut, fx); err != nil {
		return err
	}

	if *storePath != "" {
		if err := seedStore(*storePath, f, fx); err != nil {
			return err
		}
		log.Printf("seeded badger store at %s", *storePath)
	}
	return nil
}

// replay advances a fake clock tick by tick and synthesizes every sensor in
// the fleet, including those that are not online, against its own previous
// value.
func replay(f *fleet.Fleet, synth *domain.Synthesizer, clock *clockwork.FakeClock, step time.Duration, ticks int) Fixture {
	fx := Fixture{Start: clock.Now(), Step: step.String()}
	last := make(map[string]domain.Reading, len(f.Sensors))

	for range ticks {
		at := clock.Now()
		for _, s := range f.Sensors {
			var prev *domain.Previous
			if l, ok := last[s.ID]; ok {
				prev = domain.PreviousAt(l.Value, l.Timestamp, at)
			}
			r := synth.Synthesize(s, at, prev)
			r.ID = uuid.NewSHA1(readingNamespace, []byte(s.ID+"|"+at.Format(time.RFC3339Nano))).String()
			fx.Readings = append(fx.Readings, r)
			last[s.ID] = r

			if e := domain.Evaluate(r.Value, at, s.Point); e.Exceeded {
				a := domain.NewAlert(r, e)
				a.ID = uuid.NewSHA1(readingNamespace, []byte("alert|"+r.ID)).String()
				fx.Alerts = append(fx.Alerts, a)
			}
		}
		clock.Advance(step)
	}
	return fx
}

func seedStore(path string, f *fleet.Fleet, fx Fixture) error {
	store, err := badger.Open(path, f, slog.Default())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	ids, err := store.WriteReadings(ctx, fx.Readings)
	if err != nil {
		return fmt.Errorf("write readings: %w", err)
	}

	// The store assigns its own reading IDs; point the alerts at them.
	stored := make(map[string]string, len(ids))
	for i, id := range ids {
		stored[fx.Readings[i].ID] = id
	}
	for _, a := range fx.Alerts {
		a.ReadingID = stored[a.ReadingID]
		if _, err := store.CreateAlert(ctx, a); err != nil {
			return fmt.Errorf("write alert: %w", err)
		}
	}
	return nil
}

func writeFleet(path string, f *fleet.Fleet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Encode(out); err != nil {
		out.Close()
		return fmt.Errorf("encode fleet: %w", err)
	}
	return out.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
