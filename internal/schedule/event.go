package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sunspy/internal/camera"
)

// Event is one pending mode change.
//
// An Event is created when its camera is loaded and then recycled: after
// it fires, its Deadline is re-derived from Expression and the same Event
// goes back into the queue.
type Event struct {
	ID         string        `json:"id"`
	Action     camera.Action `json:"action"`
	CameraID   int           `json:"camera_id"`
	CameraName string        `json:"camera_name"`
	Expression string        `json:"expression"`
	Deadline   time.Time     `json:"deadline"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(cam camera.Camera, action camera.Action, expression string, deadline time.Time) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Action:     action,
		CameraID:   cam.Number,
		CameraName: cam.Name,
		Expression: expression,
		Deadline:   deadline,
	}
}
