package telemetry

import (
	"context"
	"time"
)

// Source is the event source name used for every event of this sensor.
const Source = "blue_hydra"

// Severity is the urgency of an Event.
type Severity string

// Severity levels, in increasing order of urgency.
const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
	SeverityFatal Severity = "FATAL"
)

// Event keys sent by the sensor.
const (
	KeyBtmonExited        = "blue_hydra_btmon_exited"
	KeyBtmonRestarted     = "blue_hydra_btmon_restarted"
	KeyInfoScanFailed     = "blue_hydra_info_scan_failed"
	KeyMacReadError       = "blue_hydra_bt_device_mac_read_error"
	KeyDBCorrupt          = "blue_hydra_db_corrupt"
	KeyDBError            = "blue_hydra_db_error"
	KeySyncReset          = "blue_hydra_sync_reset"
	KeyStoreUnavailable   = "blue_hydra_store_unavailable"
	KeyDeviceStatusChange = "blue_hydra_device_status"
)

// Event is a single operator-facing notification.
type Event struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Sensor   string    `json:"sensor,omitempty"`
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Time     time.Time `json:"time"`
}

// Sink receives events. SendEvent never blocks on the transport: a failed or
// dropped delivery is reported through the returned error and is never
// retried.
type Sink interface {
	SendEvent(ctx context.Context, source string, ev Event) error
}

// Logger defines the logging interface for telemetry sinks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LogSink writes every event to the structured log. It is always installed
// so events survive a missing broker.
type LogSink struct {
	logger Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger Logger) *LogSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogSink{logger: logger}
}

// SendEvent logs ev at the level matching its severity.
func (s *LogSink) SendEvent(_ context.Context, source string, ev Event) error {
	args := []any{"source", source, "key", ev.Key, "title", ev.Title, "message", ev.Message}
	switch ev.Severity {
	case SeverityFatal, SeverityError:
		s.logger.Error("telemetry event", args...)
	case SeverityWarn:
		s.logger.Warn("telemetry event", args...)
	default:
		s.logger.Info("telemetry event", args...)
	}
	return nil
}

// Multi fans an event out to several sinks. Every sink is tried; the first
// error is returned.
type Multi []Sink

// SendEvent implements Sink.
func (m Multi) SendEvent(ctx context.Context, source string, ev Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.SendEvent(ctx, source, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard is a Sink that drops every event.
type Discard struct{}

// SendEvent implements Sink.
func (Discard) SendEvent(context.Context, string, Event) error { return nil }
