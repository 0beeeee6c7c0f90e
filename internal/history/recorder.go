package history

import (
	"context"
	"time"

	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
)

// writeTimeout bounds each insert so a locked database cannot stall the
// scheduler loop.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder is a schedule.Observer that writes each firing to a Repository.
// Write failures are logged and otherwise ignored.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// EventFired implements schedule.Observer.
func (r *Recorder) EventFired(ctx context.Context, f schedule.Firing) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	rec := FromFiring(f)
	if err := r.repo.Create(ctx, &rec); err != nil {
		r.logger.Warn("recording firing failed", "camera", f.CameraID, "error", err)
	}
}

// AnchorsRecomputed implements schedule.Observer.
func (r *Recorder) AnchorsRecomputed(context.Context, solar.Anchors) {}
