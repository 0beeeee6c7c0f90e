package solar

import (
	"fmt"
	"math"
	"time"
)

// DayType describes the sun's behaviour on a calendar day.
type DayType string

// Day types.
const (
	DayNormal     DayType = "normal"
	DayPolarDay   DayType = "polar_day"
	DayPolarNight DayType = "polar_night"
)

// Times holds one day's solar events as fractional hours.
//
// Values produced by a Calculator are GMT hours measured from UTC midnight
// of the requested day; they may fall outside [0, 24). Recompute shifts
// them by the UTC offset before storing them on Anchors.
type Times struct {
	Sunrise float64 `json:"sunrise"`
	Noon    float64 `json:"noon"`
	Sunset  float64 `json:"sunset"`
	DayType DayType `json:"day_type"`
}

// Shift returns t with every event moved by hours.
func (t Times) Shift(hours float64) Times {
	return Times{
		Sunrise: t.Sunrise + hours,
		Noon:    t.Noon + hours,
		Sunset:  t.Sunset + hours,
		DayType: t.DayType,
	}
}

// String renders the times as "sunrise H:MM noon H:MM sunset H:MM".
func (t Times) String() string {
	return fmt.Sprintf("sunrise %s noon %s sunset %s",
		FormatHour(t.Sunrise), FormatHour(t.Noon), FormatHour(t.Sunset))
}

// Calculator computes solar events for a position and calendar day.
// Implementations must be pure: identical inputs give identical outputs.
type Calculator interface {
	// Compute returns the events for the UTC calendar day containing date.
	Compute(latitude, longitude float64, date time.Time) (Times, error)
}

// CalculatorFunc adapts a function to the Calculator interface.
type CalculatorFunc func(latitude, longitude float64, date time.Time) (Times, error)

// Compute calls f.
func (f CalculatorFunc) Compute(latitude, longitude float64, date time.Time) (Times, error) {
	return f(latitude, longitude, date)
}

// FormatHour renders a fractional hour as H:MM. Minutes are truncated.
func FormatHour(h float64) string {
	whole, frac := math.Modf(h)
	minutes := math.Floor(frac * 60)
	return fmt.Sprintf("%d:%02d", int(whole), int(minutes))
}
