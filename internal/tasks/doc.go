// Package tasks reconciles local podcast state with a sync server and keeps
// feeds fresh, with real-time progress reporting.
//
// # The Sync Pass
//
// The [SyncEngine] interface defines one operation, [SyncEngine.Sync], which
// runs four phases in a fixed order on the calling goroutine:
//
//  1. Subscriptions : pull the server's subscription delta
//     - Materializes remote additions (feed fetch + episode rows, deduped by GUID)
//     - Deactivates remote removals without a remote call
//     - Pushes local dirty subscribes and unsubscribes
//
//  2. Episode linking : fill server-assigned episode IDs
//     - Only for backends implementing [services.EpisodeResolver]
//     - Maps local GUIDs and audio URLs through the server's directory
//
//  3. Progress : reconcile listening positions
//     - Applies remote records under the [ConflictResolver] (last write wins,
//       ties go remote)
//     - Uploads unsynced [models.PendingAction] rows and settles confirmed ones
//
//  4. Queue : reconcile the play queue
//     - Only for backends implementing [services.QueueService]
//     - Remote adds, removes, and ordering apply first; local queue_dirty
//       rows push up afterwards
//
// Each phase persists its cursor before the next begins, so a failed pass
// never repeats confirmed work. A concurrent Sync call returns immediately
// with a Skipped report; the single-flight mutex keeps passes from
// overlapping.
//
// # Error Policy
//
// Remote call failures run through one classification table (policy.go)
// producing abort, skip, or success verdicts. Conflicts on pushes and
// missing resources on unsubscribes count as success; dead sessions abort;
// everything else skips the record, leaving its dirty flag for the next
// pass. Phase-boundary pulls treat transport and decoding faults as fatal.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and
// optional data for advanced UI rendering. Updates use select with default
// to prevent blocking.
//
// # Recording and Refreshing
//
// [ProgressRecorder] is the local write path: it stores playback positions,
// marks rows dirty, and queues pending actions without touching the network.
//
// [RefreshEngine] re-fetches subscribed feeds over a rate-limited worker
// pool and materializes new episodes through the [EpisodeCacher]. Store
// writes stay on the draining goroutine so SQLite sees a single writer.
//
// # Implementation
//
// [Orchestrator] implements [SyncEngine] with dependencies on:
//   - [services.SyncService] : the gpodder or Podhaven backend adapter
//   - [feeds.Fetcher] : feed download and parsing
//   - [Store] : the repository set over one SQLite handle
package tasks
