package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic this sensor publishes.
const TopicPrefix = "bluehydra"

// Topics builds the topic hierarchy for one sensor:
//
//	bluehydra/{sensor}/status              retained online/offline, LWT
//	bluehydra/{sensor}/events/{key}        telemetry events
//	bluehydra/{sensor}/devices/{address}   retained device state
//	bluehydra/{sensor}/signals             RSSI observations
type Topics struct {
	Sensor string
}

// Status returns the retained sensor status topic.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, t.Sensor)
}

// Event returns the topic for a telemetry event key.
//
// Example: bluehydra/sensor-1/events/blue_hydra_btmon_exited
func (t Topics) Event(key string) string {
	return fmt.Sprintf("%s/%s/events/%s", TopicPrefix, t.Sensor, key)
}

// Device returns the retained state topic for a device. Colons are replaced
// so the address is a single readable level.
//
// Example: bluehydra/sensor-1/devices/AA-BB-CC-DD-EE-FF
func (t Topics) Device(address string) string {
	return fmt.Sprintf("%s/%s/devices/%s", TopicPrefix, t.Sensor, strings.ReplaceAll(address, ":", "-"))
}

// Signals returns the topic carrying individual RSSI observations.
func (t Topics) Signals() string {
	return fmt.Sprintf("%s/%s/signals", TopicPrefix, t.Sensor)
}

// AllEvents returns a wildcard matching every event of the sensor.
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/%s/events/#", TopicPrefix, t.Sensor)
}
