package schedule

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/clock"
	"github.com/nerrad567/sunspy/internal/solar"
)

// t0 is midnight UTC, before the fixed sunrise.
var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

var greenwich = solar.Location{Latitude: 51.48, Longitude: 0, UTCOffsetHours: 0}

// fixedTimes returns sunrise 06:00, noon 12:00 and sunset 18:00 every day.
var fixedTimes = solar.CalculatorFunc(func(_, _ float64, _ time.Time) (solar.Times, error) {
	return solar.Times{Sunrise: 6, Noon: 12, Sunset: 18, DayType: solar.DayNormal}, nil
})

// recordingExecutor records Apply calls and returns a fixed result.
type recordingExecutor struct {
	mu     sync.Mutex
	calls  []camera.DryRunCall
	status int
	err    error
}

func (r *recordingExecutor) Apply(_ context.Context, n int, a camera.Action) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, camera.DryRunCall{CameraNumber: n, Action: a})
	return r.status, r.err
}

func (r *recordingExecutor) Calls() []camera.DryRunCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]camera.DryRunCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// recordingObserver collects notifications.
type recordingObserver struct {
	mu      sync.Mutex
	firings []Firing
	anchors []solar.Anchors
}

func (o *recordingObserver) EventFired(_ context.Context, f Firing) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.firings = append(o.firings, f)
}

func (o *recordingObserver) AnchorsRecomputed(_ context.Context, a solar.Anchors) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.anchors = append(o.anchors, a)
}

func (o *recordingObserver) Firings() []Firing {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Firing(nil), o.firings...)
}

var frontDoor = camera.Camera{Number: 1, Name: "Front Door", Start: "sunrise", Stop: "sunset"}

func newTestScheduler(t *testing.T, fake *clock.FakeClock, exec camera.Executor, mutate func(*Options)) *Scheduler {
	t.Helper()
	opts := Options{
		Location:   greenwich,
		Calculator: fixedTimes,
		Executor:   exec,
		Clock:      fake,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNew_Errors(t *testing.T) {
	exec := &recordingExecutor{status: http.StatusOK}

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name:    "missing calculator",
			opts:    Options{Location: greenwich, Executor: exec},
			wantErr: ErrMissingDependency,
		},
		{
			name:    "missing executor",
			opts:    Options{Location: greenwich, Calculator: fixedTimes},
			wantErr: ErrMissingDependency,
		},
		{
			name:    "invalid latitude",
			opts:    Options{Location: solar.Location{Latitude: 91}, Calculator: fixedTimes, Executor: exec},
			wantErr: ErrInvariantViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_QueuesStartAndStop(t *testing.T) {
	fake := clock.Fake(t0)
	obs := &recordingObserver{}
	s := newTestScheduler(t, fake, &recordingExecutor{status: http.StatusOK}, func(o *Options) {
		o.Observers = []Observer{obs}
	})

	if err := s.Load(context.Background(), []camera.Camera{frontDoor}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Events) != 2 {
		t.Fatalf("queued %d events, want 2", len(snap.Events))
	}
	if snap.Events[0].Action != camera.Activate || !snap.Events[0].Deadline.Equal(t0.Add(6*time.Hour)) {
		t.Errorf("first event = %+v, want activate at 06:00", snap.Events[0])
	}
	if snap.Events[1].Action != camera.Deactivate || !snap.Events[1].Deadline.Equal(t0.Add(18*time.Hour)) {
		t.Errorf("second event = %+v, want deactivate at 18:00", snap.Events[1])
	}
	if snap.State != StateIdle {
		t.Errorf("State = %q, want idle", snap.State)
	}
	if len(obs.anchors) != 1 {
		t.Errorf("AnchorsRecomputed called %d times, want 1", len(obs.anchors))
	}
	if s.Anchors().IsZero() {
		t.Error("Anchors() is zero after Load")
	}
}

func TestLoad_Errors(t *testing.T) {
	s := newTestScheduler(t, clock.Fake(t0), &recordingExecutor{status: http.StatusOK}, nil)

	if err := s.Load(context.Background(), nil); !errors.Is(err, ErrNoCameras) {
		t.Errorf("Load(nil) error = %v, want ErrNoCameras", err)
	}

	bad := camera.Camera{Number: 0, Start: "sunrise", Stop: "sunset"}
	if err := s.Load(context.Background(), []camera.Camera{bad}); !errors.Is(err, camera.ErrInvalidCamera) {
		t.Errorf("Load(bad) error = %v, want ErrInvalidCamera", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after failed Load, want 0", s.Len())
	}
}

func TestLoad_PartialExpressionStillQueued(t *testing.T) {
	s := newTestScheduler(t, clock.Fake(t0), &recordingExecutor{status: http.StatusOK}, nil)

	cam := camera.Camera{Number: 2, Start: "sunrise+1hx", Stop: "sunset"}
	if err := s.Load(context.Background(), []camera.Camera{cam}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// "sunrise+1hx" stops at "hx" and keeps the sunrise anchor.
	first := s.Snapshot().Events[0]
	if !first.Deadline.Equal(t0.Add(6 * time.Hour)) {
		t.Errorf("partial expression deadline = %v, want 06:00", first.Deadline)
	}
}

func TestRun_DryRunFiresEachEventOnce(t *testing.T) {
	fake := clock.Fake(t0)
	exec := camera.NewDryRunExecutor(nil)
	obs := &recordingObserver{}
	s := newTestScheduler(t, fake, exec, func(o *Options) {
		o.DryRun = true
		o.Observers = []Observer{obs}
	})
	ctx := context.Background()

	for cycle := 1; cycle <= 2; cycle++ {
		if err := s.Load(ctx, []camera.Camera{frontDoor}); err != nil {
			t.Fatalf("cycle %d: Load() error = %v", cycle, err)
		}
		if err := s.Run(ctx); err != nil {
			t.Fatalf("cycle %d: Run() error = %v", cycle, err)
		}
		if got := len(exec.Calls()); got != 2*cycle {
			t.Fatalf("cycle %d: executor called %d times, want %d", cycle, got, 2*cycle)
		}
		if s.Len() != 0 {
			t.Errorf("cycle %d: queue has %d events after drain", cycle, s.Len())
		}
		if s.State() != StateDrained {
			t.Errorf("cycle %d: State = %q, want drained", cycle, s.State())
		}
	}

	calls := exec.Calls()
	if calls[0].Action != camera.Activate || calls[1].Action != camera.Deactivate {
		t.Errorf("call order = %+v, want activate then deactivate", calls[:2])
	}

	firings := obs.Firings()
	if len(firings) != 4 {
		t.Fatalf("observer saw %d firings, want 4", len(firings))
	}
	for _, f := range firings {
		if !f.DryRun || !f.Succeeded() {
			t.Errorf("firing = %+v, want successful dry run", f)
		}
		if !f.FiredAt.Equal(f.Deadline) {
			t.Errorf("dry-run FiredAt = %v, want deadline %v", f.FiredAt, f.Deadline)
		}
	}

	if want := t0.Add(19 * time.Hour); !s.SimulatedNow().Equal(want) {
		t.Errorf("SimulatedNow() = %v, want %v", s.SimulatedNow(), want)
	}
	if fake.Pending() != 0 {
		t.Errorf("dry run registered %d timers", fake.Pending())
	}
}

func TestRun_ImmediateFailuresDoNotStopLoop(t *testing.T) {
	tests := []struct {
		name string
		exec *recordingExecutor
	}{
		{name: "non-200 status", exec: &recordingExecutor{status: http.StatusInternalServerError}},
		{name: "transport error", exec: &recordingExecutor{status: 0, err: camera.ErrUnreachable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			s := newTestScheduler(t, clock.Fake(t0), tt.exec, func(o *Options) {
				o.Immediate = true
				o.Observers = []Observer{obs}
			})
			ctx := context.Background()

			if err := s.Load(ctx, []camera.Camera{frontDoor}); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if err := s.Run(ctx); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := len(tt.exec.Calls()); got != 2 {
				t.Errorf("executor called %d times, want 2", got)
			}
			for _, f := range obs.Firings() {
				if f.Succeeded() {
					t.Errorf("firing %+v reported success", f)
				}
				if f.Err == nil {
					t.Error("firing has no error")
				}
				if f.DryRun {
					t.Error("immediate firing marked as dry run")
				}
			}
		})
	}
}

func startRun(ctx context.Context, s *Scheduler) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func TestRun_NormalFiresAndReschedules(t *testing.T) {
	fake := clock.Fake(t0)
	exec := &recordingExecutor{status: http.StatusOK}
	obs := &recordingObserver{}
	s := newTestScheduler(t, fake, exec, func(o *Options) {
		o.Observers = []Observer{obs}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Load(ctx, []camera.Camera{frontDoor}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	done := startRun(ctx, s)

	fake.WaitForWaiters(1)
	if got := len(exec.Calls()); got != 0 {
		t.Fatalf("executor called %d times before sunrise", got)
	}

	fake.Set(t0.Add(6 * time.Hour))
	// Rescheduled and now sleeping until sunset.
	fake.WaitForWaiters(1)

	calls := exec.Calls()
	if len(calls) != 1 || calls[0].Action != camera.Activate || calls[0].CameraNumber != 1 {
		t.Fatalf("calls = %+v, want one activate of camera 1", calls)
	}

	snap := s.Snapshot()
	if len(snap.Events) != 2 {
		t.Fatalf("queue has %d events, want 2", len(snap.Events))
	}
	if !snap.Events[0].Deadline.Equal(t0.Add(18 * time.Hour)) {
		t.Errorf("next event at %v, want sunset 18:00", snap.Events[0].Deadline)
	}
	if !snap.Events[1].Deadline.Equal(t0.Add(30 * time.Hour)) {
		t.Errorf("rescheduled event at %v, want next sunrise", snap.Events[1].Deadline)
	}
	if snap.State != StateWaiting {
		t.Errorf("State = %q, want waiting", snap.State)
	}

	firings := obs.Firings()
	if len(firings) != 1 || !firings[0].FiredAt.Equal(t0.Add(6*time.Hour)) {
		t.Errorf("firings = %+v, want one at 06:00", firings)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_CancelLeavesQueueUntouched(t *testing.T) {
	fake := clock.Fake(t0)
	exec := &recordingExecutor{status: http.StatusOK}
	s := newTestScheduler(t, fake, exec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Load(ctx, []camera.Camera{frontDoor}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before := s.Snapshot().Events

	done := startRun(ctx, s)
	fake.WaitForWaiters(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	after := s.Snapshot().Events
	if len(after) != len(before) {
		t.Fatalf("queue has %d events after cancel, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID || !after[i].Deadline.Equal(before[i].Deadline) {
			t.Errorf("event %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
	if len(exec.Calls()) != 0 {
		t.Errorf("executor called %d times", len(exec.Calls()))
	}
}

func TestRun_RescheduleMovesPastFiredDeadline(t *testing.T) {
	fake := clock.Fake(t0)
	exec := &recordingExecutor{status: http.StatusOK}
	s := newTestScheduler(t, fake, exec, nil)

	cam := camera.Camera{Number: 3, Name: "Garden", Start: "sunrise-30m", Stop: "sunset+2h"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Load(ctx, []camera.Camera{cam}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	done := startRun(ctx, s)

	fake.WaitForWaiters(1)
	fake.Set(time.Date(2024, 6, 1, 5, 30, 0, 0, time.UTC))
	fake.WaitForWaiters(1)

	snap := s.Snapshot()
	var start Event
	for _, e := range snap.Events {
		if e.Action == camera.Activate {
			start = e
		}
	}
	want := time.Date(2024, 6, 2, 5, 30, 0, 0, time.UTC)
	if !start.Deadline.Equal(want) {
		t.Errorf("rescheduled start = %v, want %v", start.Deadline, want)
	}
	if len(exec.Calls()) != 1 {
		t.Errorf("executor called %d times, want 1", len(exec.Calls()))
	}

	cancel()
	<-done
}

func TestRun_RecomputeFailureKeepsEvent(t *testing.T) {
	// Load makes two calls (today and tomorrow); everything after fails.
	var calls atomic.Int32
	flaky := solar.CalculatorFunc(func(lat, lon float64, date time.Time) (solar.Times, error) {
		if calls.Add(1) > 2 {
			return solar.Times{}, errors.New("ephemeris unavailable")
		}
		return fixedTimes(lat, lon, date)
	})

	fake := clock.Fake(t0)
	exec := &recordingExecutor{status: http.StatusOK}
	s := newTestScheduler(t, fake, exec, func(o *Options) {
		o.Calculator = flaky
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Load(ctx, []camera.Camera{frontDoor}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	loaded := s.Anchors()
	done := startRun(ctx, s)

	fake.WaitForWaiters(1)
	fake.Set(t0.Add(6 * time.Hour))
	fake.WaitForWaiters(1)

	select {
	case err := <-done:
		t.Fatalf("Run() returned %v after a failed recompute", err)
	default:
	}

	snap := s.Snapshot()
	if len(snap.Events) != 2 {
		t.Fatalf("queue has %d events, want 2", len(snap.Events))
	}
	if !snap.Events[1].Deadline.Equal(t0.Add(30 * time.Hour)) {
		t.Errorf("rescheduled event at %v, want fired+24h", snap.Events[1].Deadline)
	}
	if !snap.Anchors.Sunrise.Equal(loaded.Sunrise) {
		t.Errorf("anchors changed to %v, want previous %v", snap.Anchors.Sunrise, loaded.Sunrise)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_UTCOffsetFollowsClock(t *testing.T) {
	// Clocks go forward an hour at 03:00.
	change := t0.Add(3 * time.Hour)
	offset := func(at time.Time) (float64, error) {
		if at.Before(change) {
			return 0, nil
		}
		return 1, nil
	}

	fake := clock.Fake(t0)
	s := newTestScheduler(t, fake, &recordingExecutor{status: http.StatusOK}, func(o *Options) {
		o.UTCOffset = offset
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Load(ctx, []camera.Camera{frontDoor}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Snapshot().Location.UTCOffsetHours; got != 0 {
		t.Fatalf("offset after Load = %v, want 0", got)
	}
	done := startRun(ctx, s)

	fake.WaitForWaiters(1)
	fake.Set(t0.Add(6 * time.Hour))
	fake.WaitForWaiters(1)

	snap := s.Snapshot()
	if snap.Location.UTCOffsetHours != 1 {
		t.Errorf("offset after reschedule = %v, want 1", snap.Location.UTCOffsetHours)
	}
	if _, off := snap.Anchors.Sunrise.Zone(); off != 3600 {
		t.Errorf("anchor zone offset = %ds, want 3600", off)
	}

	cancel()
	<-done
}

func TestLoad_UTCOffsetErrorKeepsConfigured(t *testing.T) {
	s := newTestScheduler(t, clock.Fake(t0), &recordingExecutor{status: http.StatusOK}, func(o *Options) {
		o.Location.UTCOffsetHours = 2
		o.UTCOffset = func(time.Time) (float64, error) {
			return 0, errors.New("unknown time zone")
		}
	})

	if err := s.Load(context.Background(), []camera.Camera{frontDoor}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Snapshot().Location.UTCOffsetHours; got != 2 {
		t.Errorf("offset = %v, want configured 2", got)
	}
}

func TestRun_EmptyQueueDrains(t *testing.T) {
	s := newTestScheduler(t, clock.Fake(t0), &recordingExecutor{status: http.StatusOK}, nil)

	if err := s.Run(context.Background()); err != nil {
		t.Errorf("Run() on empty queue error = %v", err)
	}
	if s.State() != StateDrained {
		t.Errorf("State = %q, want drained", s.State())
	}
}
