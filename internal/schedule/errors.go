package schedule

import "errors"

// Domain errors for the schedule package.
var (
	// ErrInvariantViolation marks programming or configuration errors that
	// must stop the scheduler: removing an event that is not queued,
	// queueing the same event twice, or invalid solar inputs.
	ErrInvariantViolation = errors.New("schedule: invariant violation")

	// ErrEventNotQueued is returned when removing an event that is not in the queue.
	ErrEventNotQueued = errors.New("schedule: event not in queue")

	// ErrDuplicateEvent is returned when inserting an event that is already queued.
	ErrDuplicateEvent = errors.New("schedule: event already queued")

	// ErrNoCameras is returned by Load when given no cameras.
	ErrNoCameras = errors.New("schedule: no cameras to schedule")

	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("schedule: missing dependency")
)
