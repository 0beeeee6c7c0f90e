package camera

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// StatusOK is the status code executors return on success.
const StatusOK = http.StatusOK

// Camera is one camera and its daily window. Start switches it to active
// mode and Stop back to passive; both are relative time expressions.
// Cameras are immutable once loaded.
type Camera struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Start  string `json:"start"`
	Stop   string `json:"stop"`
}

// Validate checks the camera has a usable number and both expressions.
func (c Camera) Validate() error {
	if c.Number <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCamera, c.Number)
	}
	if strings.TrimSpace(c.Start) == "" || strings.TrimSpace(c.Stop) == "" {
		return fmt.Errorf("camera %d (%s): start and stop are required", c.Number, c.Name)
	}
	return nil
}

// Action is the mode change applied when an event fires.
type Action int

// Actions.
const (
	Activate Action = iota + 1
	Deactivate
)

// Mode returns the SecuritySpy mode name: "active" or "passive".
func (a Action) Mode() string {
	switch a {
	case Activate:
		return "active"
	case Deactivate:
		return "passive"
	default:
		return "unknown"
	}
}

func (a Action) String() string {
	switch a {
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Valid reports whether a is Activate or Deactivate.
func (a Action) Valid() bool {
	return a == Activate || a == Deactivate
}

// MarshalText renders the action name.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText parses "activate" or "deactivate".
func (a *Action) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "activate":
		*a = Activate
	case "deactivate":
		*a = Deactivate
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, string(text))
	}
	return nil
}

// Executor applies a mode change to a camera.
//
// Apply returns the status code reported by the control API. A code other
// than StatusOK, or a non-nil error, is an execution failure.
type Executor interface {
	Apply(ctx context.Context, cameraNumber int, action Action) (int, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cameraNumber int, action Action) (int, error)

// Apply calls f.
func (f ExecutorFunc) Apply(ctx context.Context, cameraNumber int, action Action) (int, error) {
	return f(ctx, cameraNumber, action)
}

// Logger is the logging interface used by executors.
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
