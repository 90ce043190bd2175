// Package telemetry delivers operator events and device state off the sensor.
//
// Events are fire-and-forget: SendEvent encodes and enqueues, a single
// goroutine publishes, and nothing is retried. A LogSink is always present
// so events reach the log even without a broker; MQTTSink adds the broker
// transport. Use Multi to combine them.
//
// MQTTSink also implements device.StatusNotifier (retained per-device state
// on every status change). SignalForwarder implements device.SignalObserver
// and streams RSSI observations under a rate limit when aggressive RSSI
// reporting is enabled.
package telemetry
