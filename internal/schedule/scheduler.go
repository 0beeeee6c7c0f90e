package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/clock"
	"github.com/nerrad567/sunspy/internal/solar"
	"github.com/nerrad567/sunspy/internal/timeexpr"
)

// simulatedAdvance is how far the simulated clock moves past each event
// fired in dry-run or immediate mode.
const simulatedAdvance = time.Hour

// maxRescheduleDays bounds how many days ahead a fired event's next
// deadline is searched for before falling back to fired+24h.
const maxRescheduleDays = 2

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Scheduler.
type Options struct {
	Location   solar.Location
	Calculator solar.Calculator
	Executor   camera.Executor

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger may be nil.
	Logger Logger

	Observers []Observer

	// UTCOffset, if set, is asked for the site's offset before every
	// recompute so that DST changes are picked up. Location.UTCOffsetHours
	// is used when it is nil or fails.
	UTCOffset func(time.Time) (float64, error)

	// DryRun marks firings as simulated and disables waiting and
	// rescheduling.
	DryRun bool

	// Immediate disables waiting and rescheduling.
	Immediate bool
}

// Scheduler owns the event queue and the current solar anchors and runs
// the fire/recompute/reschedule loop.
type Scheduler struct {
	loc       solar.Location
	calc      solar.Calculator
	exec      camera.Executor
	clock     clock.Clock
	logger    Logger
	observers []Observer
	offset    func(time.Time) (float64, error)
	dryRun    bool
	immediate bool

	mu      sync.RWMutex
	queue   *Queue
	anchors solar.Anchors
	state   State

	// simNow is the simulated current time in dry-run and immediate modes.
	simNow time.Time
}

// New creates a Scheduler.
//
// Returns:
//   - *Scheduler: Ready for Load
//   - error: ErrMissingDependency, or ErrInvariantViolation wrapping
//     solar.ErrInvalidLocation
func New(opts Options) (*Scheduler, error) {
	if opts.Calculator == nil {
		return nil, fmt.Errorf("%w: solar calculator", ErrMissingDependency)
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("%w: camera executor", ErrMissingDependency)
	}
	if err := opts.Location.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Scheduler{
		loc:       opts.Location,
		calc:      opts.Calculator,
		exec:      opts.Executor,
		clock:     clk,
		logger:    logger,
		observers: opts.Observers,
		offset:    opts.UTCOffset,
		dryRun:    opts.DryRun,
		immediate: opts.Immediate,
		queue:     NewQueue(),
		state:     StateIdle,
	}, nil
}

// simulated reports whether the loop skips waits and rescheduling.
func (s *Scheduler) simulated() bool {
	return s.dryRun || s.immediate
}

// Load computes anchors at the current time and queues an Activate event
// (start expression) and a Deactivate event (stop expression) for every
// camera.
//
// Expression warnings are logged and the partial expression is used.
//
// Returns:
//   - error: ErrNoCameras, camera validation errors, or ErrInvariantViolation
//     when the anchors cannot be computed
func (s *Scheduler) Load(ctx context.Context, cameras []camera.Camera) error {
	if len(cameras) == 0 {
		return ErrNoCameras
	}
	for _, cam := range cameras {
		if err := cam.Validate(); err != nil {
			return err
		}
	}

	now := s.clock.Now()
	loc := s.locationAt(now)
	anchors, err := s.recompute(loc, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loc = loc
	s.anchors = anchors
	s.simNow = now
	events := make([]*Event, 0, 2*len(cameras))
	for _, cam := range cameras {
		start := NewEvent(cam, camera.Activate, cam.Start, s.resolve(cam.Start, cam, anchors, now))
		stop := NewEvent(cam, camera.Deactivate, cam.Stop, s.resolve(cam.Stop, cam, anchors, now))
		for _, e := range []*Event{start, stop} {
			if err := s.queue.Insert(e); err != nil {
				s.mu.Unlock()
				return err
			}
			events = append(events, e)
		}
	}
	s.mu.Unlock()

	s.notifyAnchors(ctx, anchors)
	for _, e := range events {
		s.logger.Info("event scheduled",
			"camera", e.CameraID,
			"name", e.CameraName,
			"action", e.Action.String(),
			"expression", e.Expression,
			"deadline", e.Deadline,
		)
	}
	return nil
}

// resolve parses and resolves an expression, logging parse warnings.
func (s *Scheduler) resolve(expression string, cam camera.Camera, anchors solar.Anchors, now time.Time) time.Time {
	deadline, err := timeexpr.Resolve(expression, anchors, now)
	if err != nil {
		s.logger.Warn("time expression partially parsed",
			"camera", cam.Number,
			"expression", expression,
			"error", err,
		)
	}
	return deadline
}

// locationAt returns the site with its UTC offset as of ref.
func (s *Scheduler) locationAt(ref time.Time) solar.Location {
	s.mu.RLock()
	loc := s.loc
	s.mu.RUnlock()
	if s.offset == nil {
		return loc
	}

	offset, err := s.offset(ref)
	if err != nil {
		s.logger.Warn("resolving utc offset failed, keeping previous",
			"utc_offset_hours", loc.UTCOffsetHours,
			"error", err,
		)
		return loc
	}
	if offset != loc.UTCOffsetHours {
		s.logger.Info("utc offset changed", "from", loc.UTCOffsetHours, "to", offset)
		loc.UTCOffsetHours = offset
	}
	return loc
}

// recompute derives anchors for loc at ref and logs them.
func (s *Scheduler) recompute(loc solar.Location, ref time.Time) (solar.Anchors, error) {
	anchors, err := solar.Recompute(s.calc, loc, ref)
	if err != nil {
		if errors.Is(err, solar.ErrInvalidLocation) || errors.Is(err, solar.ErrNoCalculator) {
			return solar.Anchors{}, fmt.Errorf("%w: %w", ErrInvariantViolation, err)
		}
		return solar.Anchors{}, fmt.Errorf("recomputing solar anchors: %w", err)
	}

	s.logger.Debug("solar anchors",
		"today", anchors.Today.String(),
		"tomorrow", anchors.Tomorrow.String(),
		"day_type", string(anchors.Today.DayType),
	)
	return anchors, nil
}

// Run executes the loop until the queue drains, ctx is cancelled, or an
// invariant is violated.
//
// Returns:
//   - nil when the queue drained (dry-run and immediate modes)
//   - ctx.Err() on cancellation; the queue is left untouched
//   - an error wrapping ErrInvariantViolation
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "events", s.Len(), "dry_run", s.dryRun, "immediate", s.immediate)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		e, ok := s.queue.Peek()
		if !ok {
			s.state = StateDrained
			s.mu.Unlock()
			s.logger.Info("schedule drained")
			return nil
		}
		s.state = StateWaiting
		s.mu.Unlock()

		if !s.simulated() {
			if wait := e.Deadline.Sub(s.clock.Now()); wait > 0 {
				s.logger.Debug("waiting for next event",
					"camera", e.CameraID,
					"action", e.Action.String(),
					"deadline", e.Deadline,
					"wait", wait.String(),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-s.clock.After(wait):
				}
				// Re-check the queue with the new time.
				continue
			}
		}

		if err := s.fire(ctx, e); err != nil {
			return err
		}
	}
}

// fire executes e, removes it and, in normal mode, reschedules it.
func (s *Scheduler) fire(ctx context.Context, e *Event) error {
	s.setState(StateFiring)

	firedAt := s.clock.Now()
	if s.simulated() {
		firedAt = e.Deadline
	}

	status, err := s.exec.Apply(ctx, e.CameraID, e.Action)
	if err == nil && status != camera.StatusOK {
		err = fmt.Errorf("%w: status %d", camera.ErrExecutionFailed, status)
	}
	if err != nil {
		s.logger.Warn("camera command failed",
			"camera", e.CameraID,
			"action", e.Action.String(),
			"status", status,
			"error", err,
		)
	} else {
		s.logger.Info("camera mode set",
			"camera", e.CameraID,
			"name", e.CameraName,
			"mode", e.Action.Mode(),
			"dry_run", s.dryRun,
		)
	}

	s.notifyFired(ctx, Firing{
		ID:         uuid.New().String(),
		EventID:    e.ID,
		CameraID:   e.CameraID,
		CameraName: e.CameraName,
		Action:     e.Action,
		Expression: e.Expression,
		Deadline:   e.Deadline,
		FiredAt:    firedAt,
		StatusCode: status,
		Err:        err,
		DryRun:     s.dryRun,
	})

	s.mu.Lock()
	removeErr := s.queue.Remove(e)
	if removeErr == nil && s.simulated() {
		s.simNow = e.Deadline.Add(simulatedAdvance)
	}
	s.mu.Unlock()
	if removeErr != nil {
		return removeErr
	}

	if s.simulated() {
		return nil
	}
	return s.reschedule(ctx, e)
}

// reschedule recomputes the anchors at the current time and puts e back
// with the next deadline of its expression. The new deadline is always
// after the one that just fired.
//
// If the anchors cannot be computed the event goes back at fired+24h and
// the previous anchors are kept. Only invariant violations are returned.
func (s *Scheduler) reschedule(ctx context.Context, e *Event) error {
	s.setState(StateRecomputing)

	expr, parseErr := timeexpr.Parse(e.Expression)
	if parseErr != nil {
		s.logger.Debug("rescheduling partially parsed expression", "expression", e.Expression, "error", parseErr)
	}

	now := s.clock.Now()
	fired := e.Deadline
	next := fired.Add(24 * time.Hour)

	loc := s.locationAt(now)
	anchors, err := s.recompute(loc, now)
	recomputed := err == nil
	switch {
	case errors.Is(err, ErrInvariantViolation):
		return err
	case err != nil:
		s.logger.Warn("solar recompute failed, keeping previous anchors",
			"camera", e.CameraID,
			"action", e.Action.String(),
			"error", err,
		)
	default:
		next = expr.Resolve(anchors, now)

		// An event that fires before its anchor (e.g. "sunrise-30m") can
		// resolve to the same instant again; look at the following days.
		ref := now
		for day := 0; !next.After(fired) && day < maxRescheduleDays; day++ {
			ref = ref.Add(24 * time.Hour)
			ahead, err := s.recompute(s.locationAt(ref), ref)
			if errors.Is(err, ErrInvariantViolation) {
				return err
			}
			if err != nil {
				s.logger.Warn("solar recompute failed", "reference", ref, "error", err)
				break
			}
			next = expr.Resolve(ahead, ref)
		}
		if !next.After(fired) {
			next = fired.Add(24 * time.Hour)
		}
	}

	s.mu.Lock()
	if recomputed {
		s.loc = loc
		s.anchors = anchors
	}
	e.Deadline = next
	insertErr := s.queue.Insert(e)
	if insertErr == nil {
		s.state = StateRescheduled
	}
	s.mu.Unlock()
	if insertErr != nil {
		return insertErr
	}

	if recomputed {
		s.notifyAnchors(ctx, anchors)
	}
	s.logger.Info("event rescheduled",
		"camera", e.CameraID,
		"action", e.Action.String(),
		"expression", e.Expression,
		"deadline", next,
	)
	return nil
}

func (s *Scheduler) notifyFired(ctx context.Context, f Firing) {
	for _, o := range s.observers {
		o.EventFired(ctx, f)
	}
}

func (s *Scheduler) notifyAnchors(ctx context.Context, a solar.Anchors) {
	for _, o := range s.observers {
		o.AnchorsRecomputed(ctx, a)
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current loop state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Anchors returns the most recently computed anchors.
func (s *Scheduler) Anchors() solar.Anchors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anchors
}

// Len returns the number of queued events.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Len()
}

// SimulatedNow returns the simulated clock used in dry-run and immediate
// modes: the load time, then one hour past the last fired deadline.
func (s *Scheduler) SimulatedNow() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simNow
}

// Snapshot returns a copy of the scheduler's state and queue.
func (s *Scheduler) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:     s.state,
		Location:  s.loc,
		Anchors:   s.anchors,
		Events:    s.queue.Snapshot(),
		DryRun:    s.dryRun,
		Immediate: s.immediate,
	}
}
