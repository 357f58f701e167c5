package domain

// Grade is the public-facing noise pollution level of a value.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeLight     Grade = "light"
	GradeModerate  Grade = "moderate"
	GradeSevere    Grade = "severe"
)

// gradeLimits are the upper bounds (inclusive) of excellent, good, light and
// moderate per region; anything above the last is severe.
var gradeLimits = map[RegionType][4]float64{
	RegionResidential: {50, 55, 60, 65},
	RegionCommercial:  {55, 60, 65, 70},
	RegionIndustrial:  {60, 65, 70, 75},
	RegionEducation:   {45, 50, 55, 60},
}

var defaultGradeLimits = [4]float64{55, 60, 65, 70}

// GradeOf classifies a value for the given region type.
func GradeOf(value float64, region RegionType) Grade {
	limits, ok := gradeLimits[region]
	if !ok {
		limits = defaultGradeLimits
	}
	switch {
	case value <= limits[0]:
		return GradeExcellent
	case value <= limits[1]:
		return GradeGood
	case value <= limits[2]:
		return GradeLight
	case value <= limits[3]:
		return GradeModerate
	default:
		return GradeSevere
	}
}
