// Package mqtt is sunspy's broker client: paho with auto-reconnect,
// remembered subscriptions and a retained online/offline status (the
// offline message doubles as the Last Will).
//
// # Architecture
//
// MQTT is optional. When enabled, sunspy publishes each camera's last mode
// and every firing so other systems can follow the schedule. With
// executor.type set to "mqtt" it also replaces the SecuritySpy HTTP API:
// mode changes are published as commands for a bridge, which may
// acknowledge them on sunspy/ack/camera/{number}.
//
//	sunspy ↔ MQTT Broker ↔ camera bridge
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on the same host (cfg.Broker.TLS=true)
//   - Credentials belong in SUNSPY_MQTT_USERNAME / SUNSPY_MQTT_PASSWORD
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCameraAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        logger.Debug("ack", "topic", topic)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.CameraCommand(3), []byte(`{"mode":"active"}`), 1, false)
package mqtt
