// Package scanner runs the Blue Hydra pipeline.
//
// The Scheduler pulls monitor lines from a LineSource (the supervised btmon
// process, or a capture file in replay mode), reassembles them into chunks,
// parses each chunk into an attribute record and feeds the device catalog.
// On timers it sweeps device status, dispatches active info scans and runs
// the scheduled catalog resync.
//
// Architecture:
//
//	LineSource ──lines──► ingest goroutine ──► Chunker ──► Parser ──► Catalog.Observe
//	                                                            (single owner)
//	timer goroutine ──► Catalog.Sweep
//	                 ├─► Catalog.DueForRefresh ──TryGo──► worker pool ──► hcitool
//	                 └─► cron resync ──► Resyncer
//
// Failure handling:
//   - parse outcomes, filtered and address-less records are counted only
//   - an active scan is retried with exponential backoff behind a circuit
//     breaker; exhaustion sends an info-scan-failed event
//   - one monitor restart is allowed per restart window; the next failure
//     ends Run with ErrFatal
//   - a store failure ends Run with ErrFatal
//
// On cancellation the source is stopped, buffered lines and the final
// partial chunk are processed, and in-flight commands get their grace
// period before being killed.
package scanner
