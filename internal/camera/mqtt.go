package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sunspy/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client the executor needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// commandQoS is at-least-once: a duplicate mode change is harmless.
const commandQoS byte = 1

// MQTTExecutor publishes mode changes to sunspy/command/camera/{number}
// for a bridge to apply.
//
// Status codes mirror HTTP: 200 once the broker accepted the publish,
// 503 when the client is disconnected, 500 for any other publish error.
type MQTTExecutor struct {
	publisher Publisher
	source    string
	now       func() time.Time
	logger    Logger
}

// NewMQTTExecutor creates an executor publishing through p.
func NewMQTTExecutor(p Publisher, logger Logger) *MQTTExecutor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTExecutor{
		publisher: p,
		source:    "sunspy",
		now:       time.Now,
		logger:    logger,
	}
}

// commandPayload is the JSON published for each mode change.
type commandPayload struct {
	ID           string    `json:"id"`
	CameraNumber int       `json:"camera_number"`
	Action       Action    `json:"action"`
	Mode         string    `json:"mode"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// Apply implements Executor.
func (e *MQTTExecutor) Apply(_ context.Context, cameraNumber int, action Action) (int, error) {
	if !action.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAction, int(action))
	}
	if !e.publisher.IsConnected() {
		return http.StatusServiceUnavailable, fmt.Errorf("%w: camera %d: %w", ErrExecutionFailed, cameraNumber, mqtt.ErrNotConnected)
	}

	payload, err := json.Marshal(commandPayload{
		ID:           uuid.New().String(),
		CameraNumber: cameraNumber,
		Action:       action,
		Mode:         action.Mode(),
		Source:       e.source,
		Timestamp:    e.now().UTC(),
	})
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("marshalling command: %w", err)
	}

	topic := mqtt.Topics{}.CameraCommand(cameraNumber)
	if err := e.publisher.Publish(topic, payload, commandQoS, false); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mqtt.ErrNotConnected) {
			status = http.StatusServiceUnavailable
		}
		return status, fmt.Errorf("%w: publishing to %q: %w", ErrExecutionFailed, topic, err)
	}

	e.logger.Debug("camera command published", "camera", cameraNumber, "mode", action.Mode(), "topic", topic)
	return StatusOK, nil
}
