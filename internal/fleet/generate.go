package fleet

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
)

var regionTypes = []string{
	string(domain.RegionResidential),
	string(domain.RegionCommercial),
	string(domain.RegionIndustrial),
	string(domain.RegionArterial),
	string(domain.RegionEducation),
	string(domain.RegionMixed),
}

// regionLimits are the statutory day/night limits used for generated points.
var regionLimits = map[domain.RegionType][2]float64{
	domain.RegionResidential: {55, 45},
	domain.RegionCommercial:  {60, 50},
	domain.RegionIndustrial:  {65, 55},
	domain.RegionArterial:    {70, 55},
	domain.RegionEducation:   {50, 40},
	domain.RegionMixed:       {60, 50},
}

// GenerateOptions sizes a demo fleet.
type GenerateOptions struct {
	Seed            uint64
	Points          int
	SensorsPerPoint int
	// OfflineRatio is the share of sensors given a non-online status.
	OfflineRatio float64
}

// Generate builds a reproducible demo fleet. The same seed always yields the
// same fleet.
func Generate(opts GenerateOptions) *Fleet {
	faker := gofakeit.New(opts.Seed)

	f := &Fleet{}
	for i := range opts.Points {
		region := domain.RegionType(faker.RandomString(regionTypes))
		limits := regionLimits[region]
		street := faker.Street()
		f.Points = append(f.Points, domain.MonitoringPoint{
			ID:             fmt.Sprintf("p-%03d", i+1),
			Code:           fmt.Sprintf("NM-%04d", faker.Number(1000, 9999)),
			Name:           fmt.Sprintf("%s, %s", street, faker.City()),
			Lat:            faker.Float64Range(30.5, 31.5),
			Lon:            faker.Float64Range(120.9, 122.0),
			RegionType:     region,
			DayThreshold:   limits[0],
			NightThreshold: limits[1],
		})
	}

	degraded := []string{
		string(domain.StatusOffline),
		string(domain.StatusFaulty),
		string(domain.StatusMaintenance),
		string(domain.StatusCalibrating),
	}
	n := 0
	for _, p := range f.Points {
		for range opts.SensorsPerPoint {
			n++
			status := domain.StatusOnline
			if faker.Float64() < opts.OfflineRatio {
				status = domain.SensorStatus(faker.RandomString(degraded))
			}
			f.Sensors = append(f.Sensors, domain.Sensor{
				ID:         fmt.Sprintf("s-%04d", n),
				Name:       fmt.Sprintf("%s #%d", p.Code, n),
				RegionType: p.RegionType,
				Status:     status,
				PointID:    p.ID,
			})
		}
	}

	// Generated data is always consistent, so indexing cannot fail.
	_ = f.index()
	return f
}
