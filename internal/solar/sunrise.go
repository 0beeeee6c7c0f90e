package solar

import (
	"fmt"
	"math"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Sun elevations, in degrees, that mark the start and end of the day for
// each twilight kind. Negative is below the horizon.
const (
	ElevationDaylight     = -0.833
	ElevationCivil        = -6.0
	ElevationNautical     = -12.0
	ElevationAstronomical = -18.0
)

// Twilight kinds accepted by TwilightElevation.
const (
	TwilightDaylight     = "daylight"
	TwilightCivil        = "civil"
	TwilightNautical     = "nautical"
	TwilightAstronomical = "astronomical"
	TwilightAngle        = "angle"
)

// TwilightElevation maps a twilight kind to a sun elevation. angle is only
// used for TwilightAngle and must lie strictly between -90 and 90.
func TwilightElevation(kind string, angle float64) (float64, error) {
	switch kind {
	case TwilightDaylight:
		return ElevationDaylight, nil
	case "", TwilightCivil:
		return ElevationCivil, nil
	case TwilightNautical:
		return ElevationNautical, nil
	case TwilightAstronomical:
		return ElevationAstronomical, nil
	case TwilightAngle:
		if math.IsNaN(angle) || angle <= -90 || angle >= 90 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidElevation, angle)
		}
		return angle, nil
	default:
		return 0, fmt.Errorf("%w: unknown twilight %q", ErrInvalidElevation, kind)
	}
}

// SunriseCalculator is a Calculator backed by github.com/nathan-osman/go-sunrise.
//
// "Sunrise" and "sunset" are the morning and evening instants at which the
// sun passes Elevation, civil twilight (-6°) by default. Solar noon is the
// midpoint between them. When the sun never reaches Elevation the
// calculator falls back to an approximation: noon at 12 - longitude/15,
// and either a 24-hour day (polar day) or a zero-length day at noon
// (polar night).
type SunriseCalculator struct {
	Elevation float64
}

// NewSunriseCalculator returns a civil-twilight SunriseCalculator.
func NewSunriseCalculator() *SunriseCalculator {
	return &SunriseCalculator{Elevation: ElevationCivil}
}

// NewTwilightCalculator returns a SunriseCalculator for a twilight kind.
//
// Parameters:
//   - kind: daylight, civil, nautical, astronomical or angle ("" is civil)
//   - angle: Elevation in degrees when kind is angle
//
// Returns:
//   - *SunriseCalculator: Calculator at the chosen elevation
//   - error: ErrInvalidElevation for an unknown kind or out-of-range angle
func NewTwilightCalculator(kind string, angle float64) (*SunriseCalculator, error) {
	elevation, err := TwilightElevation(kind, angle)
	if err != nil {
		return nil, err
	}
	return &SunriseCalculator{Elevation: elevation}, nil
}

// Compute implements Calculator.
func (c *SunriseCalculator) Compute(latitude, longitude float64, date time.Time) (Times, error) {
	if err := validateCoordinates(latitude, longitude); err != nil {
		return Times{}, err
	}

	date = date.UTC()
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	rise, set := sunrise.TimeOfElevation(latitude, longitude, c.Elevation, date.Year(), date.Month(), date.Day())
	if rise.IsZero() || set.IsZero() {
		return c.polarTimes(latitude, longitude, midnight), nil
	}

	riseH := rise.Sub(midnight).Hours()
	setH := set.Sub(midnight).Hours()
	return Times{
		Sunrise: riseH,
		Noon:    riseH + (setH-riseH)/2,
		Sunset:  setH,
		DayType: DayNormal,
	}, nil
}

// polarTimes approximates the events for a day on which the sun never
// crosses c.Elevation. The sun stays above it when the noon elevation
// would exceed it, and below it otherwise.
func (c *SunriseCalculator) polarTimes(latitude, longitude float64, midnight time.Time) Times {
	noon := 12 - longitude/15

	if noonElevation(latitude, declination(midnight)) > c.Elevation {
		return Times{Sunrise: noon - 12, Noon: noon, Sunset: noon + 12, DayType: DayPolarDay}
	}
	return Times{Sunrise: noon, Noon: noon, Sunset: noon, DayType: DayPolarNight}
}

// noonElevation is the sun's elevation at solar noon, in degrees.
func noonElevation(latitude, declination float64) float64 {
	return 90 - math.Abs(latitude-declination)
}

// declination returns the approximate solar declination in degrees.
// Positive in the northern summer.
func declination(day time.Time) float64 {
	n := float64(day.YearDay())
	return 23.44 * math.Sin(2*math.Pi*(284+n)/365)
}
