package camera

import (
	"context"
	"sync"
)

// DryRunExecutor logs each mode change instead of performing it and
// always reports success.
type DryRunExecutor struct {
	logger Logger

	mu    sync.Mutex
	calls []DryRunCall
}

// DryRunCall records one Apply.
type DryRunCall struct {
	CameraNumber int
	Action       Action
}

// NewDryRunExecutor creates a DryRunExecutor.
func NewDryRunExecutor(logger Logger) *DryRunExecutor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DryRunExecutor{logger: logger}
}

// Apply implements Executor.
func (e *DryRunExecutor) Apply(_ context.Context, cameraNumber int, action Action) (int, error) {
	e.mu.Lock()
	e.calls = append(e.calls, DryRunCall{CameraNumber: cameraNumber, Action: action})
	e.mu.Unlock()

	e.logger.Info("dry run: would set camera mode", "camera", cameraNumber, "mode", action.Mode())
	return StatusOK, nil
}

// Calls returns a copy of every Apply made so far.
func (e *DryRunExecutor) Calls() []DryRunCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DryRunCall, len(e.calls))
	copy(out, e.calls)
	return out
}
