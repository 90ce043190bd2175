// Package device maintains the catalog of every Bluetooth device the sensor
// has observed.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                              Tracker                              │
//	│                                                                   │
//	│  Observe ──▶ Filter ──▶ Merge ──▶ Repository.Upsert ──▶ cache     │
//	│                                        │                          │
//	│  Sweep ───▶ statusFor ──▶ Repository.UpdateStatus ──▶ notifiers   │
//	│                                                                   │
//	│  DueForRefresh / MarkRefreshed (active scan selection)            │
//	└───────────────────────────────────────────────────────────────────┘
//	                         │
//	                         ▼
//	              SQLite (devices, status_history, sync_version)
//
// # Invariants
//
// The canonical address is the identity. Merge is monotonic: scalars are
// replaced only by newer present values, sets only grow, Classic and LE
// only turn on and LastSeen only advances. Observe never changes Status;
// the sweep alone moves devices between new, online, offline and old.
// Devices are never deleted.
//
// A filtered record changes nothing, LastSeen included, so "seen but
// filtered" stays distinguishable from "not seen".
//
// # Range
//
// When an observation carries both RSSI and TX power, the distance is
// estimated with the log-distance path loss model (see EstimateRange).
// Observations lacking either leave the previous estimate untouched.
//
// # Thread Safety
//
// Every Tracker method is safe for concurrent use. Accessors return deep
// copies.
package device
