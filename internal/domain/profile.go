package domain

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Band is the expected noise level of a region type.
type Band struct {
	Base float64 `yaml:"base"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// SmoothingCaps bound how fast a sensor's value may drift between samples.
type SmoothingCaps struct {
	RatePerMinute float64 `yaml:"rate_per_minute"` // dB per minute for gaps under ShortGap
	MaxStep       float64 `yaml:"max_step"`        // flat dB cap for gaps in [ShortGap, LongGap]
}

const (
	// ShortGap is the gap below which changes are rate-limited.
	ShortGap = 60 * time.Second
	// LongGap is the largest gap still subject to the flat step cap.
	LongGap = 300 * time.Second

	baselineJitter  = 5.0
	smoothingJitter = 2.0
	bandMargin      = 5.0
)

// Profile is the full tunable configuration of the noise model.
type Profile struct {
	Regions      map[RegionType]Band
	Default      Band
	Coefficients map[Segment]float64
	Smoothing    SmoothingCaps
}

// DefaultProfile returns the built-in region table and diurnal coefficients.
func DefaultProfile() Profile {
	return Profile{
		Regions: map[RegionType]Band{
			RegionResidential: {Base: 45, Min: 35, Max: 60},
			RegionCommercial:  {Base: 55, Min: 45, Max: 70},
			RegionIndustrial:  {Base: 65, Min: 55, Max: 80},
			RegionArterial:    {Base: 70, Min: 60, Max: 85},
			RegionEducation:   {Base: 40, Min: 30, Max: 55},
			RegionMixed:       {Base: 50, Min: 40, Max: 65},
		},
		Default: Band{Base: 50, Min: 40, Max: 70},
		Coefficients: map[Segment]float64{
			SegmentMorning: 1.2,
			SegmentDay:     1.0,
			SegmentEvening: 1.1,
			SegmentNight:   0.7,
		},
		Smoothing: SmoothingCaps{RatePerMinute: 5, MaxStep: 10},
	}
}

// Band returns the band for a region, or the default band when the region is
// not configured.
func (p Profile) Band(region RegionType) Band {
	if b, ok := p.Regions[region]; ok {
		return b
	}
	return p.Default
}

// Coefficient returns the diurnal multiplier for a segment (1.0 if unset).
func (p Profile) Coefficient(s Segment) float64 {
	if c, ok := p.Coefficients[s]; ok {
		return c
	}
	return 1.0
}

// Validate checks that every band is ordered and every multiplier positive.
func (p Profile) Validate() error {
	if err := p.Default.validate("default"); err != nil {
		return err
	}
	for region, b := range p.Regions {
		if err := b.validate(string(region)); err != nil {
			return err
		}
	}
	for seg, c := range p.Coefficients {
		if c <= 0 {
			return fmt.Errorf("coefficient for %s must be positive, got %g", seg, c)
		}
	}
	if p.Smoothing.RatePerMinute < 0 || p.Smoothing.MaxStep < 0 {
		return errors.New("smoothing caps must not be negative")
	}
	return nil
}

func (b Band) validate(name string) error {
	if b.Min > b.Max {
		return fmt.Errorf("band %s: min %g greater than max %g", name, b.Min, b.Max)
	}
	if b.Min < 0 || b.Max > 200 {
		return fmt.Errorf("band %s: range [%g,%g] outside [0,200]", name, b.Min, b.Max)
	}
	return nil
}

// profileFile is the YAML shape of a profile override. Omitted sections keep
// their defaults; listed regions replace or extend the built-in table.
type profileFile struct {
	Default      *Band              `yaml:"default"`
	Regions      map[string]Band    `yaml:"regions"`
	Coefficients map[string]float64 `yaml:"coefficients"`
	Smoothing    *SmoothingCaps     `yaml:"smoothing"`
}

// ParseProfile reads a YAML override and merges it onto DefaultProfile.
func ParseProfile(r io.Reader) (Profile, error) {
	p := DefaultProfile()

	var f profileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return p, nil
		}
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if f.Default != nil {
		p.Default = *f.Default
	}
	for name, b := range f.Regions {
		p.Regions[RegionType(name)] = b
	}
	for name, c := range f.Coefficients {
		seg, ok := parseSegment(name)
		if !ok {
			return Profile{}, fmt.Errorf("parse profile: unknown segment %q", name)
		}
		p.Coefficients[seg] = c
	}
	if f.Smoothing != nil {
		p.Smoothing = *f.Smoothing
	}

	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return p, nil
}
