package solar

import (
	"fmt"
	"math"
	"time"
)

// Location is a point on the Earth plus the fixed offset used to place
// solar events on the local clock.
type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	UTCOffsetHours float64 `json:"utc_offset_hours"`
}

// Validate checks the coordinates and the offset.
func (l Location) Validate() error {
	if err := validateCoordinates(l.Latitude, l.Longitude); err != nil {
		return err
	}
	if math.IsNaN(l.UTCOffsetHours) || l.UTCOffsetHours < -12 || l.UTCOffsetHours > 14 {
		return fmt.Errorf("%w: utc offset %v outside [-12, 14]", ErrInvalidLocation, l.UTCOffsetHours)
	}
	return nil
}

// Zone returns a fixed time zone for the offset.
func (l Location) Zone() *time.Location {
	seconds := int(math.Round(l.UTCOffsetHours * 3600))
	return time.FixedZone(zoneName(seconds), seconds)
}

func zoneName(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

func validateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidLocation, latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidLocation, longitude)
	}
	return nil
}

// Anchors are the solar instants schedules resolve against.
//
// Sunrise, Noon and Sunset are on the local calendar day of Reference.
// Each Next field is the same event on that day if it has not passed at
// Reference, otherwise the event on the following day. Next* is never
// before its same-day counterpart.
type Anchors struct {
	Sunrise time.Time `json:"sunrise"`
	Noon    time.Time `json:"noon"`
	Sunset  time.Time `json:"sunset"`

	NextSunrise time.Time `json:"next_sunrise"`
	NextNoon    time.Time `json:"next_noon"`
	NextSunset  time.Time `json:"next_sunset"`

	// Reference is the instant the anchors were computed for.
	Reference time.Time `json:"reference"`

	// Today and Tomorrow are the calculator's events shifted to local
	// fractional hours.
	Today    Times `json:"today"`
	Tomorrow Times `json:"tomorrow"`
}

// IsZero reports whether the anchors have never been computed.
func (a Anchors) IsZero() bool {
	return a.Reference.IsZero()
}

// Equal reports whether both sets of anchors describe the same instants
// and hours.
func (a Anchors) Equal(b Anchors) bool {
	return a.Sunrise.Equal(b.Sunrise) && a.Noon.Equal(b.Noon) && a.Sunset.Equal(b.Sunset) &&
		a.NextSunrise.Equal(b.NextSunrise) && a.NextNoon.Equal(b.NextNoon) && a.NextSunset.Equal(b.NextSunset) &&
		a.Reference.Equal(b.Reference) && a.Today == b.Today && a.Tomorrow == b.Tomorrow
}

// Recompute derives the anchors for reference.
//
// The calculator is consulted for the UTC day containing reference and for
// the UTC day containing reference+24h. Each fractional hour is shifted by
// the location's UTC offset and placed on the corresponding local calendar
// day, truncated to the minute; hours outside [0, 24) roll over into the
// adjacent day. An event counts as passed when its local fractional hour
// is less than or equal to the current local hour and minute.
//
// Parameters:
//   - calc: Source of sunrise/noon/sunset hours
//   - loc: Position and UTC offset
//   - reference: The instant treated as "now"
//
// Returns:
//   - Anchors: The computed anchors
//   - error: ErrInvalidLocation, ErrNoCalculator, or a calculator error
func Recompute(calc Calculator, loc Location, reference time.Time) (Anchors, error) {
	if calc == nil {
		return Anchors{}, ErrNoCalculator
	}
	if err := loc.Validate(); err != nil {
		return Anchors{}, err
	}

	zone := loc.Zone()
	tomorrowRef := reference.Add(24 * time.Hour)

	today, err := calc.Compute(loc.Latitude, loc.Longitude, reference.UTC())
	if err != nil {
		return Anchors{}, fmt.Errorf("computing solar times for %s: %w", reference.UTC().Format(time.DateOnly), err)
	}
	tomorrow, err := calc.Compute(loc.Latitude, loc.Longitude, tomorrowRef.UTC())
	if err != nil {
		return Anchors{}, fmt.Errorf("computing solar times for %s: %w", tomorrowRef.UTC().Format(time.DateOnly), err)
	}

	today = today.Shift(loc.UTCOffsetHours)
	tomorrow = tomorrow.Shift(loc.UTCOffsetHours)

	localRef := reference.In(zone)
	localTomorrow := tomorrowRef.In(zone)

	a := Anchors{
		Sunrise:   atHour(localRef, today.Sunrise),
		Noon:      atHour(localRef, today.Noon),
		Sunset:    atHour(localRef, today.Sunset),
		Reference: reference,
		Today:     today,
		Tomorrow:  tomorrow,
	}
	a.NextSunrise, a.NextNoon, a.NextSunset = a.Sunrise, a.Noon, a.Sunset

	current := float64(localRef.Hour()) + float64(localRef.Minute())/60.0
	if today.Sunrise <= current {
		a.NextSunrise = atHour(localTomorrow, tomorrow.Sunrise)
	}
	if today.Noon <= current {
		a.NextNoon = atHour(localTomorrow, tomorrow.Noon)
	}
	if today.Sunset <= current {
		a.NextSunset = atHour(localTomorrow, tomorrow.Sunset)
	}

	return a, nil
}

// atHour places a fractional hour on day's calendar date in day's zone.
// The hour and minute are truncated; time.Date normalises overflow.
func atHour(day time.Time, h float64) time.Time {
	hour := math.Floor(h)
	minute := math.Floor((h - hour) * 60)
	return time.Date(day.Year(), day.Month(), day.Day(), int(hour), int(minute), 0, 0, day.Location())
}
