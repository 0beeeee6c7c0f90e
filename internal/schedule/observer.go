package schedule

import (
	"context"
	"time"

	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/solar"
)

// Firing describes one executed (or simulated) event.
type Firing struct {
	ID         string        `json:"id"`
	EventID    string        `json:"event_id"`
	CameraID   int           `json:"camera_id"`
	CameraName string        `json:"camera_name"`
	Action     camera.Action `json:"action"`
	Expression string        `json:"expression"`
	Deadline   time.Time     `json:"deadline"`
	FiredAt    time.Time     `json:"fired_at"`
	StatusCode int           `json:"status_code"`
	Err        error         `json:"-"`
	DryRun     bool          `json:"dry_run"`
}

// Succeeded reports whether the executor accepted the change.
func (f Firing) Succeeded() bool {
	return f.Err == nil && f.StatusCode == camera.StatusOK
}

// Observer is notified synchronously from the scheduler loop. Implementations
// must return promptly and must not call back into the Scheduler's Run.
type Observer interface {
	// EventFired is called after every executor invocation.
	EventFired(ctx context.Context, f Firing)

	// AnchorsRecomputed is called whenever the solar anchors change.
	AnchorsRecomputed(ctx context.Context, a solar.Anchors)
}

// ObserverFuncs adapts optional functions to the Observer interface.
type ObserverFuncs struct {
	OnFired   func(ctx context.Context, f Firing)
	OnAnchors func(ctx context.Context, a solar.Anchors)
}

// EventFired implements Observer.
func (o ObserverFuncs) EventFired(ctx context.Context, f Firing) {
	if o.OnFired != nil {
		o.OnFired(ctx, f)
	}
}

// AnchorsRecomputed implements Observer.
func (o ObserverFuncs) AnchorsRecomputed(ctx context.Context, a solar.Anchors) {
	if o.OnAnchors != nil {
		o.OnAnchors(ctx, a)
	}
}
