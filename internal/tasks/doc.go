// Package tasks runs canvas lookups for one or many tracks with real-time progress reporting.
//
// # Core Operations
//
// [CanvasEngine] exposes two operations:
//
//  1. [CanvasEngine.Fetch] : Single track lookup
//     - Consults the optional [CanvasCache] first
//     - Calls the [Fetcher] on a miss and stores the result
//
//  2. [CanvasEngine.BatchFetch] : Concurrent lookup of many tracks
//     - Worker pool sized by [BatchOpts.NumWorkers]
//     - Requests paced by a shared [rate.Limiter]
//     - Dispatch stops on the first rate limit response; remaining tracks are reported as skipped
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values over a channel using select with default,
// so a slow or absent reader never blocks a lookup.
//
// # Fetch History
//
// The optional [FetchRecorder] receives one entry per track outcome (repositories.FetchLogRepository).
// Recorder failures are logged and otherwise ignored.
package tasks
