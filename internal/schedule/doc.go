// Package schedule owns the event queue and the daemon loop that fires
// camera mode changes at solar-relative deadlines.
//
// Each camera contributes two events: Activate at its start expression and
// Deactivate at its stop expression. The Scheduler repeatedly takes the
// earliest event, waits for its deadline, applies the action through a
// camera.Executor, then recomputes the solar anchors and re-derives the
// event's next deadline from its source expression before putting it back.
// In the steady state the queue therefore never empties.
//
// # Modes
//
// In dry-run and immediate modes the Scheduler does not wait: each event is
// treated as due, fired once and dropped, so Run returns when the queue
// drains. Dry-run additionally marks firings as simulated; pairing it with
// camera.DryRunExecutor is the caller's job.
//
// # Ordering
//
// Events fire in non-decreasing deadline order. Among events with the same
// deadline the most recently inserted fires first.
//
// # Thread Safety
//
// Run must be called from a single goroutine. Snapshot, State and Anchors
// are safe to call concurrently with Run.
package schedule
