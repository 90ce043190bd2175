// Package mqtt provides the MQTT transport used by the telemetry sink.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing events and retained device state
//   - A retained online/offline status with Last Will and Testament
//
// # Topics
//
//	bluehydra/{sensor}/status
//	bluehydra/{sensor}/events/{key}
//	bluehydra/{sensor}/devices/{address}
//	bluehydra/{sensor}/signals
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Sensor.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Event("blue_hydra_sync_reset")
//	err = client.PublishEvent(topic, payload)
//
// The sensor never subscribes; it is a pure publisher.
package mqtt
