package influxdb

import (
	"context"
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
)

// Measurement names.
const (
	MeasurementFirings = "camera_firings"
	MeasurementAnchors = "solar_anchors"
)

// FiringPoint builds the camera_firings point for f, timestamped at the
// firing time.
func FiringPoint(f schedule.Firing) *write.Point {
	return write.NewPoint(
		MeasurementFirings,
		map[string]string{
			"camera":  strconv.Itoa(f.CameraID),
			"action":  f.Action.String(),
			"dry_run": strconv.FormatBool(f.DryRun),
		},
		map[string]interface{}{
			"status_code":      f.StatusCode,
			"success":          f.Succeeded(),
			"lateness_seconds": f.FiredAt.Sub(f.Deadline).Seconds(),
			"expression":       f.Expression,
		},
		f.FiredAt,
	)
}

// AnchorPoints builds one solar_anchors point per day in a, timestamped
// at the reference time.
func AnchorPoints(a solar.Anchors) []*write.Point {
	days := []struct {
		name  string
		times solar.Times
	}{
		{"today", a.Today},
		{"tomorrow", a.Tomorrow},
	}

	points := make([]*write.Point, 0, len(days))
	for _, d := range days {
		points = append(points, write.NewPoint(
			MeasurementAnchors,
			map[string]string{"day": d.name},
			map[string]interface{}{
				"sunrise_hour":     d.times.Sunrise,
				"noon_hour":        d.times.Noon,
				"sunset_hour":      d.times.Sunset,
				"day_length_hours": d.times.Sunset - d.times.Sunrise,
				"day_type":         string(d.times.DayType),
			},
			a.Reference,
		))
	}
	return points
}

// WriteFiring queues the point for f.
func (c *Client) WriteFiring(f schedule.Firing) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(FiringPoint(f))
}

// WriteAnchors queues the points for a.
func (c *Client) WriteAnchors(a solar.Anchors) {
	if !c.IsConnected() || a.IsZero() {
		return
	}
	for _, p := range AnchorPoints(a) {
		c.writer.WritePoint(p)
	}
}

// EventFired implements schedule.Observer.
func (c *Client) EventFired(_ context.Context, f schedule.Firing) {
	c.WriteFiring(f)
}

// AnchorsRecomputed implements schedule.Observer.
func (c *Client) AnchorsRecomputed(_ context.Context, a solar.Anchors) {
	c.WriteAnchors(a)
}
