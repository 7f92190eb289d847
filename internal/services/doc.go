// Package services defines the [SyncService] interface for podcast sync
// servers and implements it for gpodder.net and Podhaven.
//
// # SyncService Interface
//
// All sync backends implement a common abstraction, so the reconciliation
// engine works uniformly across protocols. Backends normalize their wire
// formats into [SubscriptionDelta], [ProgressDelta], and friends; cursors
// are opaque strings the backend alone interprets.
//
// # gpodder Implementation
//
// [GPodderService] speaks the gpodder.net device API: Basic-auth login
// captures a session cookie, and subscription changes and episode actions
// are fetched as server-side deltas with a since timestamp. The cursor is
// that timestamp in decimal. Episodes have no server IDs; progress records
// are keyed by podcast and media URL.
//
// # Podhaven Implementation
//
// [PodhavenService] speaks a stateless REST API authenticated with OAuth2.
// The server returns full snapshots, so the adapter carries the previous
// snapshot inside the cursor and diffs against it. Episodes carry
// server-assigned IDs resolved through [PodhavenService.ResolveEpisodes].
//
// # Capability Extensions
//
// Optional interfaces are detected by type assertion:
//   - [EpisodeResolver] : guid/audio URL → remote episode ID directory
//   - [QueueService] : play queue delta fetch and push
//   - [OAuthService] : browser and code-exchange auth flows
//
// [PodhavenService] implements all three; [GPodderService] implements none.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNoSession] : Authenticate() not called
//   - [shared.ErrTokenExpired] : session or token rejected, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrConflict] : resource already exists on the server
//   - [shared.ErrNotFound] : resource missing on the server
//
// Push operations map "already exists" and "already removed" onto
// [shared.ErrConflict] and [shared.ErrNotFound] so callers can treat both
// as applied.
package services
