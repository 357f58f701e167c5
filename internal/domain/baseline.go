package domain

import "time"

// Segment is a part of the day with its own diurnal coefficient.
type Segment int

const (
	SegmentMorning Segment = iota // [06,08)
	SegmentDay                    // [08,18)
	SegmentEvening                // [18,22)
	SegmentNight                  // [22,06)
)

func (s Segment) String() string {
	switch s {
	case SegmentMorning:
		return "morning"
	case SegmentDay:
		return "day"
	case SegmentEvening:
		return "evening"
	case SegmentNight:
		return "night"
	default:
		return "unknown"
	}
}

func parseSegment(name string) (Segment, bool) {
	for _, s := range []Segment{SegmentMorning, SegmentDay, SegmentEvening, SegmentNight} {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// SegmentAt returns the day segment for the timestamp's wall-clock hour in its
// own location.
func SegmentAt(ts time.Time) Segment {
	switch h := ts.Hour(); {
	case h >= 6 && h < 8:
		return SegmentMorning
	case h >= 8 && h < 18:
		return SegmentDay
	case h >= 18 && h < 22:
		return SegmentEvening
	default:
		return SegmentNight
	}
}

// Baseline draws the expected noise level for a region at a point in time:
// base * coefficient + U(-5,5), clamped into the region band.
func (p Profile) Baseline(region RegionType, ts time.Time, rnd Rand) float64 {
	band := p.Band(region)
	v := band.Base*p.Coefficient(SegmentAt(ts)) + uniform(rnd, -baselineJitter, baselineJitter)
	return clamp(v, band.Min, band.Max)
}
