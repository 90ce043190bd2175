package telemetry

import "errors"

// Sentinel errors for telemetry delivery.
var (
	// ErrQueueFull is returned when the outbound buffer is full and the
	// message was dropped.
	ErrQueueFull = errors.New("telemetry: queue full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("telemetry: sink closed")

	// ErrInvalidEvent is returned for an event without key or severity.
	ErrInvalidEvent = errors.New("telemetry: invalid event")
)
