package domain

import "time"

// Previous is the last value a sensor emitted. A nil *Previous is a cold start.
type Previous struct {
	Value   float64
	Elapsed time.Duration
	// ElapsedKnown is false when the previous timestamp is not available.
	ElapsedKnown bool
}

// PreviousAt builds a Previous from a value and the time it was emitted.
// A zero timestamp leaves the elapsed time unknown.
func PreviousAt(value float64, at, now time.Time) *Previous {
	if at.IsZero() {
		return &Previous{Value: value}
	}
	return &Previous{Value: value, Elapsed: now.Sub(at), ElapsedKnown: true}
}

// StepLimit returns the largest allowed |delta| for a gap since the previous
// value. The boolean is false when the change is unconstrained.
func (c SmoothingCaps) StepLimit(elapsed time.Duration, known bool) (float64, bool) {
	if !known || elapsed < 0 {
		return 0, false
	}
	switch {
	case elapsed < ShortGap:
		return elapsed.Seconds() / 60 * c.RatePerMinute, true
	case elapsed <= LongGap:
		return c.MaxStep, true
	default:
		return 0, false
	}
}

// Transition limits how far candidate may move away from prev. It is the
// deterministic half of Smooth.
func (c SmoothingCaps) Transition(prev *Previous, candidate float64) float64 {
	if prev == nil {
		return candidate
	}
	step, limited := c.StepLimit(prev.Elapsed, prev.ElapsedKnown)
	if !limited {
		return candidate
	}
	return clamp(candidate, prev.Value-step, prev.Value+step)
}

// Smooth applies the transition, adds U(-2,2) jitter and clamps the result
// into [min-5, max+5] of the band.
func (p Profile) Smooth(band Band, prev *Previous, candidate float64, rnd Rand) float64 {
	v := p.Smoothing.Transition(prev, candidate)
	v += uniform(rnd, -smoothingJitter, smoothingJitter)
	return clamp(v, band.Min-bandMargin, band.Max+bandMargin)
}
