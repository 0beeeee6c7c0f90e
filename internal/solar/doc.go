// Package solar computes the solar anchors that camera schedules are
// expressed against.
//
// A Calculator turns a position and a calendar day into sunrise, solar
// noon and sunset as fractional GMT hours. Recompute combines two of those
// days (the reference day and the one after it) with a fixed UTC offset to
// produce Anchors: the local instants of today's events, and for each
// event the next occurrence that has not yet passed.
//
// # Twilight
//
// SunriseCalculator reports the times the sun crosses a chosen elevation.
// The default is civil twilight (-6°), so "sunrise" is first light
// rather than the moment the disc clears the horizon. Daylight, nautical,
// astronomical and arbitrary angles are available via
// NewTwilightCalculator.
//
// # Time Zones
//
// The offset is a fixed number of hours, not an IANA zone, so anchors are
// not adjusted across a daylight-saving transition until they are next
// recomputed with a new offset.
//
// # Precision
//
// Anchors have minute precision. Fractional hours are truncated to whole
// minutes and seconds are always zero.
//
// # Usage
//
//	loc := solar.Location{Latitude: 51.5, Longitude: -0.12, UTCOffsetHours: 1}
//	anchors, err := solar.Recompute(solar.NewSunriseCalculator(), loc, time.Now())
//	if err != nil {
//	    return err
//	}
//	fmt.Println("next sunset", anchors.NextSunset)
package solar
