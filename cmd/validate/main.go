// Command validate checks a readings fixture produced by genmock against the
// noise model's invariants: value bounds, degraded-sensor tagging, smoothing
// continuity, and alert consistency.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fleet data/mock/fleet.yaml \
//	  -readings data/mock/readings.json
package main

import (
	"cmp"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
)

const (
	jitter    = 2.0
	tolerance = 1e-6
)

type fixture struct {
	Readings []domain.Reading `json:"readings"`
	Alerts   []domain.Alert   `json:"alerts"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fleetPath := flag.String("fleet", "", "path to the fleet YAML")
	readingsPath := flag.String("readings", "", "path to the readings JSON fixture")
	flag.Parse()

	if *fleetPath == "" || *readingsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fleetPath, *readingsPath); code != 0 {
		os.Exit(code)
	}
}

func run(fleetPath, readingsPath string) int {
	fmt.Println("=== Noise Telemetry Fixture Validation ===")
	fmt.Println()

	f, err := fleet.Load(fleetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fleet: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(readingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read fixture: %v\n", err)
		return 1
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse fixture: %v\n", err)
		return 1
	}

	sensors := make(map[string]domain.Sensor, len(f.Sensors))
	for _, s := range f.Sensors {
		sensors[s.ID] = s
	}
	profile := domain.DefaultProfile()

	phases := []*phase{
		validateBounds(fx.Readings, sensors, profile),
		validateContinuity(fx.Readings, sensors, profile),
		validateAlerts(fx.Readings, fx.Alerts, sensors),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Fleet: %d points, %d sensors; fixture: %d readings, %d alerts\n",
		len(f.Points), len(f.Sensors), len(fx.Readings), len(fx.Alerts))
	printGrades(fx.Readings, sensors)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func validateBounds(readings []domain.Reading, sensors map[string]domain.Sensor, profile domain.Profile) *phase {
	p := &phase{name: "Value bounds and quality"}
	for _, r := range readings {
		if err := r.Validate(); err != nil {
			p.errorf("%s: %v", r.ID, err)
			continue
		}
		s, ok := sensors[r.SensorID]
		if !ok {
			p.errorf("%s: unknown sensor %s", r.ID, r.SensorID)
			continue
		}
		if s.Status != domain.StatusOnline {
			if r.Value >= 30 {
				p.errorf("%s: %s sensor reported %.2f dB", r.ID, s.Status, r.Value)
			}
			if r.Quality != domain.QualityInvalid {
				p.errorf("%s: %s sensor tagged %s", r.ID, s.Status, r.Quality)
			}
			continue
		}
		band := profile.Band(s.Region())
		if r.Value < band.Min-5 || r.Value > band.Max+5 {
			p.errorf("%s: %.2f dB outside [%g, %g]", r.ID, r.Value, band.Min-5, band.Max+5)
		}
		if r.Quality == domain.QualityInvalid {
			p.errorf("%s: online sensor tagged invalid", r.ID)
		}
		if sum := r.Spectrum.Low + r.Spectrum.Mid + r.Spectrum.High; math.Abs(sum-1) > tolerance {
			p.errorf("%s: spectrum sums to %.4f", r.ID, sum)
		}
	}
	return p
}

// validateContinuity replays each online sensor's series in time order and
// checks every step against the smoothing caps plus jitter.
func validateContinuity(readings []domain.Reading, sensors map[string]domain.Sensor, profile domain.Profile) *phase {
	p := &phase{name: "Smoothing continuity"}

	bySensor := make(map[string][]domain.Reading)
	for _, r := range readings {
		if s, ok := sensors[r.SensorID]; ok && s.Status == domain.StatusOnline {
			bySensor[r.SensorID] = append(bySensor[r.SensorID], r)
		}
	}

	for id, series := range bySensor {
		slices.SortFunc(series, func(a, b domain.Reading) int { return a.Timestamp.Compare(b.Timestamp) })
		for i := 1; i < len(series); i++ {
			prev, cur := series[i-1], series[i]
			step, limited := profile.Smoothing.StepLimit(cur.Timestamp.Sub(prev.Timestamp), true)
			if !limited {
				continue
			}
			if delta := math.Abs(cur.Value - prev.Value); delta > step+jitter+tolerance {
				p.errorf("%s at %s: moved %.2f dB in %s (cap %.2f)",
					id, cur.Timestamp.Format(time.RFC3339), delta, cur.Timestamp.Sub(prev.Timestamp), step+jitter)
			}
		}
	}
	return p
}

func validateAlerts(readings []domain.Reading, alerts []domain.Alert, sensors map[string]domain.Sensor) *phase {
	p := &phase{name: "Alert consistency"}

	byReading := make(map[string]domain.Alert, len(alerts))
	for _, a := range alerts {
		if _, dup := byReading[a.ReadingID]; dup {
			p.errorf("reading %s has more than one alert", a.ReadingID)
		}
		byReading[a.ReadingID] = a
	}

	for _, r := range readings {
		e := domain.Evaluate(r.Value, r.Timestamp, sensors[r.SensorID].Point)
		a, alerted := byReading[r.ID]
		delete(byReading, r.ID)

		switch {
		case e.Exceeded && !alerted:
			p.errorf("%s: %.2f dB over %s limit %g without alert", r.ID, r.Value, e.Window, e.Threshold)
		case !e.Exceeded && alerted:
			p.errorf("%s: alert %s raised within limit", r.ID, a.ID)
		case alerted:
			if a.Severity != e.Severity {
				p.errorf("%s: severity %s, want %s", a.ID, a.Severity, e.Severity)
			}
			if math.Abs(a.Overage-e.Overage) > tolerance || a.Threshold != e.Threshold {
				p.errorf("%s: overage %.2f over %g, want %.2f over %g", a.ID, a.Overage, a.Threshold, e.Overage, e.Threshold)
			}
			if a.Status != domain.AlertUnhandled || !a.TriggeredAt.Equal(r.Timestamp) {
				p.errorf("%s: status %s triggered %s", a.ID, a.Status, a.TriggeredAt.Format(time.RFC3339))
			}
		}
	}

	for id := range byReading {
		p.errorf("alert references unknown reading %s", id)
	}
	return p
}

func printGrades(readings []domain.Reading, sensors map[string]domain.Sensor) {
	counts := make(map[domain.Grade]int)
	for _, r := range readings {
		counts[domain.GradeOf(r.Value, sensors[r.SensorID].Region())]++
	}
	grades := make([]domain.Grade, 0, len(counts))
	for g := range counts {
		grades = append(grades, g)
	}
	slices.SortFunc(grades, func(a, b domain.Grade) int { return cmp.Compare(counts[b], counts[a]) })

	fmt.Println("\nGrade distribution:")
	for _, g := range grades {
		fmt.Printf("  %-10s %d\n", g, counts[g])
	}
}
