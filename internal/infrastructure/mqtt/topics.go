package mqtt

import "fmt"

// Topic prefixes for sunspy MQTT traffic.
//
// Commands and acks use the flat scheme: sunspy/{category}/camera/{number}.
// State and events published by the scheduler live under sunspy/core.
const (
	// TopicPrefix is the base for all sunspy topics.
	TopicPrefix = "sunspy"

	// TopicPrefixCore is the base for state and events published by the scheduler.
	TopicPrefixCore = "sunspy/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "sunspy/system"
)

// Event types published under sunspy/core/event/{type}.
const (
	EventFired             = "fired"
	EventAnchorsRecomputed = "anchors_recomputed"
)

// Topics provides builders for sunspy MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmd := topics.CameraCommand(3)
//	// Returns: "sunspy/command/camera/3"
type Topics struct{}

// CameraCommand returns the topic a bridge listens on for mode changes.
//
// Example: sunspy/command/camera/3
func (Topics) CameraCommand(number int) string {
	return fmt.Sprintf("%s/command/camera/%d", TopicPrefix, number)
}

// CameraAck returns the topic a bridge acknowledges commands on.
//
// Example: sunspy/ack/camera/3
func (Topics) CameraAck(number int) string {
	return fmt.Sprintf("%s/ack/camera/%d", TopicPrefix, number)
}

// CameraState returns the retained topic holding a camera's last mode.
//
// Example: sunspy/core/camera/3/state
func (Topics) CameraState(number int) string {
	return fmt.Sprintf("%s/camera/%d/state", TopicPrefixCore, number)
}

// CoreEvent returns the topic for scheduler events.
//
// Example: sunspy/core/event/fired
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: sunspy/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCameraAcks returns a pattern matching acks for every camera.
//
// Pattern: sunspy/ack/camera/+
func (Topics) AllCameraAcks() string {
	return fmt.Sprintf("%s/ack/camera/+", TopicPrefix)
}
