package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/nerrad567/sunspy/internal/history"
	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 3 * time.Second

const bytesPerMB = 1024 * 1024

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// ScheduleResponse is the body of GET /schedule.
type ScheduleResponse struct {
	State     schedule.State  `json:"state"`
	DryRun    bool            `json:"dry_run"`
	Immediate bool            `json:"immediate"`
	Location  solar.Location  `json:"location"`
	Events    []EventResponse `json:"events"`
	Count     int             `json:"count"`
	Next      *EventResponse  `json:"next,omitempty"`
}

// EventResponse is one queued event.
type EventResponse struct {
	ID         string    `json:"id"`
	CameraID   int       `json:"camera_id"`
	CameraName string    `json:"camera_name"`
	Action     string    `json:"action"`
	Mode       string    `json:"mode"`
	Expression string    `json:"expression"`
	Deadline   time.Time `json:"deadline"`
	In         string    `json:"in"`
}

// AnchorsResponse is the body of GET /anchors.
type AnchorsResponse struct {
	Reference   time.Time   `json:"reference"`
	Sunrise     time.Time   `json:"sunrise"`
	Noon        time.Time   `json:"noon"`
	Sunset      time.Time   `json:"sunset"`
	NextSunrise time.Time   `json:"next_sunrise"`
	NextNoon    time.Time   `json:"next_noon"`
	NextSunset  time.Time   `json:"next_sunset"`
	Today       DayResponse `json:"today"`
	Tomorrow    DayResponse `json:"tomorrow"`
}

// DayResponse is a day's anchors as local fractional hours.
type DayResponse struct {
	Sunrise string        `json:"sunrise"`
	Noon    string        `json:"noon"`
	Sunset  string        `json:"sunset"`
	DayType solar.DayType `json:"day_type"`
}

// SystemResponse is the body of GET /system.
type SystemResponse struct {
	Timestamp     string  `json:"timestamp"`
	Version       string  `json:"version"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`

	// MQTTSubscriptions is present when the MQTT client is enabled.
	MQTTSubscriptions *int `json:"mqtt_subscriptions,omitempty"`
}

// handleHealth runs every component check. Any failure makes the
// response 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}
	status := http.StatusOK

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		for _, name := range s.componentNames() {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()
	now := time.Now()

	resp := ScheduleResponse{
		State:     snap.State,
		DryRun:    snap.DryRun,
		Immediate: snap.Immediate,
		Location:  snap.Location,
		Events:    make([]EventResponse, 0, len(snap.Events)),
		Count:     len(snap.Events),
	}
	for _, e := range snap.Events {
		resp.Events = append(resp.Events, EventResponse{
			ID:         e.ID,
			CameraID:   e.CameraID,
			CameraName: e.CameraName,
			Action:     e.Action.String(),
			Mode:       e.Action.Mode(),
			Expression: e.Expression,
			Deadline:   e.Deadline,
			In:         e.Deadline.Sub(now).Truncate(time.Second).String(),
		})
	}
	if len(resp.Events) > 0 {
		next := resp.Events[0]
		resp.Next = &next
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnchors(w http.ResponseWriter, _ *http.Request) {
	a := s.status.Snapshot().Anchors
	if a.IsZero() {
		fail(w, http.StatusServiceUnavailable, "solar anchors not computed yet")
		return
	}

	writeJSON(w, http.StatusOK, AnchorsResponse{
		Reference:   a.Reference,
		Sunrise:     a.Sunrise,
		Noon:        a.Noon,
		Sunset:      a.Sunset,
		NextSunrise: a.NextSunrise,
		NextNoon:    a.NextNoon,
		NextSunset:  a.NextSunset,
		Today:       dayResponse(a.Today),
		Tomorrow:    dayResponse(a.Tomorrow),
	})
}

func dayResponse(t solar.Times) DayResponse {
	return DayResponse{
		Sunrise: solar.FormatHour(t.Sunrise),
		Noon:    solar.FormatHour(t.Noon),
		Sunset:  solar.FormatHour(t.Sunset),
		DayType: t.DayType,
	}
}

// handleFirings lists firing history. Query parameters camera, limit and
// offset are integers; since is RFC 3339.
func (s *Server) handleFirings(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		fail(w, http.StatusNotFound, "firing history is disabled")
		return
	}

	var filter history.Filter
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"camera", &filter.CameraID},
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(w, http.StatusBadRequest, "invalid "+p.name+": "+v)
			return
		}
		*p.dst = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid since: "+v)
			return
		}
		filter.Since = t
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing firings failed", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list firings")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := SystemResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
		NumGC:         mem.NumGC,
	}
	if s.subs != nil {
		n := s.subs.SubscriptionCount()
		resp.MQTTSubscriptions = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// componentNames returns the health check names in sorted order.
func (s *Server) componentNames() []string {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
