// Package api implements the local HTTP API and signal WebSocket for Blue Hydra.
//
// This package provides:
//   - Read-only REST endpoints for the device catalog and status history
//   - Tracker and pipeline counters for monitoring
//   - A WebSocket hub that streams every RSSI observation
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The server reads the Tracker's in-memory catalog; it never writes to it.
// The Hub is registered with the Tracker as a SignalObserver and fans each
// observation out to connected clients without blocking the ingest path.
//
// # Endpoints
//
//	GET /api/v1/health
//	GET /api/v1/stats
//	GET /api/v1/devices?status=&mode=
//	GET /api/v1/devices/{address}
//	GET /api/v1/devices/{address}/history?limit=&since=
//	GET /api/v1/signals?address=        (WebSocket)
//
// # Security
//
// There is no authentication. The server binds to 127.0.0.1 by default and
// is disabled unless api.enabled is set.
package api
