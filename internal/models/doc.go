// Package models defines domain entities and persistence interfaces for the Podhaven sync client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs for parsed feed data
//   - [Feed] : Podcast metadata parsed from an RSS/Atom feed
//   - [FeedEpisode] : One feed entry with playback metadata
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Subscription] : A followed podcast, keyed by feed URL
//   - [Episode] : A feed entry owned by one subscription, deduped by GUID
//   - [PendingAction] : A queued, not-yet-confirmed progress write
//   - [SyncState] : Singleton reconciliation status, cursors, and timestamps
//   - [ServerConfig] : Singleton remote backend settings and session
//
// Subscription, Episode, and PendingAction implement the Model interface providing
// ID generation, timestamps, and validation. The Repository[T] interface defines
// standard CRUD operations for database access; the two singletons use dedicated
// get-or-create repositories instead.
package models
