// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
)

const (
	metricPrefix = "sunspy_"

	resultSuccess = "success"
	resultError   = "error"
)

// Collector is a schedule.Observer that keeps Prometheus metrics on its
// own registry.
type Collector struct {
	registry *prometheus.Registry

	firings       *prometheus.CounterVec
	lateness      prometheus.Histogram
	lastFired     *prometheus.GaugeVec
	anchorHours   *prometheus.GaugeVec
	anchorTimes   *prometheus.GaugeVec
	recomputes    prometheus.Counter
	queuedEvents  prometheus.GaugeFunc
	nextDeadline  prometheus.GaugeFunc
	schedulerInfo *prometheus.GaugeVec
}

// StatusFunc returns the current scheduler status. It is called on every
// scrape.
type StatusFunc func() schedule.Status

// NewCollector creates and registers the metrics. status may be nil, in
// which case the queue gauges report zero.
func NewCollector(version string, status StatusFunc) *Collector {
	if status == nil {
		status = func() schedule.Status { return schedule.Status{} }
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		firings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "firings_total",
				Help: "Camera mode changes by camera, action and result",
			},
			[]string{"camera", "action", "result"},
		),
		lateness: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "firing_lateness_seconds",
				Help:    "Delay between an event's deadline and its execution",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300},
			},
		),
		lastFired: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_firing_timestamp_seconds",
				Help: "Unix time of the last mode change per camera",
			},
			[]string{"camera"},
		),
		anchorHours: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "solar_anchor_hour",
				Help: "Local fractional hour of today's solar anchors",
			},
			[]string{"anchor"},
		),
		anchorTimes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "anchor_timestamp_seconds",
				Help: "Unix time of the current and next solar anchors",
			},
			[]string{"anchor"},
		),
		recomputes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "anchor_recomputations_total",
				Help: "Number of times the solar anchors were recomputed",
			},
		),
		schedulerInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}

	c.queuedEvents = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "queued_events",
			Help: "Events waiting in the schedule",
		},
		func() float64 { return float64(len(status().Events)) },
	)
	c.nextDeadline = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "next_deadline_timestamp_seconds",
			Help: "Unix time of the earliest queued event, 0 when empty",
		},
		func() float64 {
			events := status().Events
			if len(events) == 0 {
				return 0
			}
			return float64(events[0].Deadline.Unix())
		},
	)

	c.registry.MustRegister(
		c.firings,
		c.lateness,
		c.lastFired,
		c.anchorHours,
		c.anchorTimes,
		c.recomputes,
		c.queuedEvents,
		c.nextDeadline,
		c.schedulerInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.schedulerInfo.WithLabelValues(version).Set(1)

	return c
}

// EventFired implements schedule.Observer.
func (c *Collector) EventFired(_ context.Context, f schedule.Firing) {
	result := resultSuccess
	if !f.Succeeded() {
		result = resultError
	}
	cam := strconv.Itoa(f.CameraID)

	c.firings.WithLabelValues(cam, f.Action.String(), result).Inc()
	if late := f.FiredAt.Sub(f.Deadline).Seconds(); late >= 0 {
		c.lateness.Observe(late)
	}
	c.lastFired.WithLabelValues(cam).Set(float64(f.FiredAt.Unix()))
}

// AnchorsRecomputed implements schedule.Observer.
func (c *Collector) AnchorsRecomputed(_ context.Context, a solar.Anchors) {
	c.recomputes.Inc()
	c.anchorHours.WithLabelValues("sunrise").Set(a.Today.Sunrise)
	c.anchorHours.WithLabelValues("noon").Set(a.Today.Noon)
	c.anchorHours.WithLabelValues("sunset").Set(a.Today.Sunset)

	for name, t := range map[string]time.Time{
		"sunrise":      a.Sunrise,
		"noon":         a.Noon,
		"sunset":       a.Sunset,
		"next_sunrise": a.NextSunrise,
		"next_noon":    a.NextNoon,
		"next_sunset":  a.NextSunset,
	} {
		c.anchorTimes.WithLabelValues(name).Set(float64(t.Unix()))
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
