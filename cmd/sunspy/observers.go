package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/infrastructure/logging"
	"github.com/nerrad567/sunspy/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
)

// jsonPublisher is the part of the MQTT client statePublisher uses.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// statePublisher mirrors scheduler activity onto MQTT: a retained state
// topic per camera and an event topic for firings and anchor changes.
type statePublisher struct {
	pub    jsonPublisher
	log    *logging.Logger
	topics mqtt.Topics
}

func newStatePublisher(pub jsonPublisher, log *logging.Logger) *statePublisher {
	return &statePublisher{pub: pub, log: log}
}

// cameraState is the retained payload on sunspy/core/camera/{n}/state.
type cameraState struct {
	CameraID  int           `json:"camera_id"`
	Name      string        `json:"name"`
	Action    camera.Action `json:"action"`
	Mode      string        `json:"mode"`
	EventID   string        `json:"event_id"`
	ChangedAt time.Time     `json:"changed_at"`
}

// firedMessage is the payload on sunspy/core/event/fired.
type firedMessage struct {
	schedule.Firing
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EventFired implements schedule.Observer. Camera state is only published
// for real, successful changes.
func (p *statePublisher) EventFired(_ context.Context, f schedule.Firing) {
	if f.Succeeded() && !f.DryRun {
		state := cameraState{
			CameraID:  f.CameraID,
			Name:      f.CameraName,
			Action:    f.Action,
			Mode:      f.Action.Mode(),
			EventID:   f.EventID,
			ChangedAt: f.FiredAt.UTC(),
		}
		if err := p.pub.PublishJSON(p.topics.CameraState(f.CameraID), state, true); err != nil {
			p.log.Warn("publishing camera state failed", "camera", f.CameraID, "error", err)
		}
	}

	msg := firedMessage{Firing: f, Success: f.Succeeded()}
	if f.Err != nil {
		msg.Error = f.Err.Error()
	}
	if err := p.pub.PublishJSON(p.topics.CoreEvent(mqtt.EventFired), msg, false); err != nil {
		p.log.Warn("publishing fired event failed", "camera", f.CameraID, "error", err)
	}
}

// AnchorsRecomputed implements schedule.Observer.
func (p *statePublisher) AnchorsRecomputed(_ context.Context, a solar.Anchors) {
	if err := p.pub.PublishJSON(p.topics.CoreEvent(mqtt.EventAnchorsRecomputed), a, true); err != nil {
		p.log.Warn("publishing anchors failed", "error", err)
	}
}

// commandAck is what a bridge sends on sunspy/ack/camera/{n} after
// applying a command from the MQTT executor.
type commandAck struct {
	ID           string `json:"id"`
	CameraNumber int    `json:"camera_number"`
	Mode         string `json:"mode"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// ackHandler logs bridge acknowledgements. Malformed acks are logged and
// dropped.
func ackHandler(log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		var ack commandAck
		if err := json.Unmarshal(payload, &ack); err != nil {
			log.Warn("malformed camera ack", "topic", topic, "error", err)
			return nil
		}
		if !ack.Success {
			log.Warn("bridge rejected camera command",
				"camera", ack.CameraNumber,
				"command_id", ack.ID,
				"mode", ack.Mode,
				"error", ack.Error,
			)
			return nil
		}
		log.Debug("camera command acknowledged",
			"camera", ack.CameraNumber,
			"command_id", ack.ID,
			"mode", ack.Mode,
		)
		return nil
	}
}
