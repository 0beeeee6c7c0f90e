package timeexpr

import (
	"time"

	"github.com/nerrad567/sunspy/internal/solar"
)

// Resolve turns the expression into an absolute instant.
//
// With an anchor the result is the next occurrence of that anchor plus the
// offset. Without one the base is today's sunrise if sunrise plus the
// offset is still after now, otherwise the next sunrise.
//
// The result has the location of the anchors.
func (e Expression) Resolve(a solar.Anchors, now time.Time) time.Time {
	var base time.Time
	switch e.Anchor {
	case AnchorSunrise:
		base = a.NextSunrise
	case AnchorNoon:
		base = a.NextNoon
	case AnchorSunset:
		base = a.NextSunset
	default:
		if addSeconds(a.Sunrise, e.OffsetSeconds()).After(now) {
			base = a.Sunrise
		} else {
			base = a.NextSunrise
		}
	}
	return addSeconds(base, e.OffsetSeconds())
}

// Resolve parses s and resolves it against a and now. On a parse warning
// the partial expression is still resolved and the error is returned with
// the result.
func Resolve(s string, a solar.Anchors, now time.Time) (time.Time, error) {
	expr, err := Parse(s)
	return expr.Resolve(a, now), err
}

// addSeconds avoids time.Duration overflow for large offsets.
func addSeconds(t time.Time, seconds int64) time.Time {
	return time.Unix(t.Unix()+seconds, int64(t.Nanosecond())).In(t.Location())
}
