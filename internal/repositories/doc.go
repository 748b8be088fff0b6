// Package repositories implements SQLite persistence for cached canvases and lookup history.
//
// Key Implementations:
//   - [CanvasRepository] : Canvas caching keyed by track URI with soft deletes
//   - [CanvasCacheAdapter] : Lookup/Store view over [CanvasRepository] used by batch fetches
//   - [FetchLogRepository] : Append-only log of lookup outcomes
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
