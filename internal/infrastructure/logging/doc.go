// Package logging provides structured logging for the Blue Hydra sensor.
//
// This package wraps Go's standard log/slog package so every component
// emits records with the same default fields.
//
// # Features
//
//   - JSON output for deployment (machine-parsable)
//   - Text output for bench work (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("monitor started", "device", cfg.Bluetooth.Device)
//
// Per-chunk parse and filter outcomes are logged at debug level only; the
// pipeline counters carry the totals.
package logging
