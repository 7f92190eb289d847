// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Subscriptions support soft deletes via deleted_at timestamps (the explicit purge path) and exclude
// deleted records from queries by default.
//
// Key Implementations:
//   - [SubscriptionRepository] : Followed podcasts with feed URL lookups
//   - [EpisodeRepository] : Feed entries with remote ID and audio URL resolution
//   - [PendingActionRepository] : The append-only queue of unconfirmed progress writes
//   - [SyncStateRepository] : Singleton reconciliation state with get-or-create semantics
//   - [ServerConfigRepository] : Singleton backend settings with get-or-create semantics
//
// Sequence numbers provide stable, human-readable ordering (e.g., subscription #42, episode #1337)
// independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
