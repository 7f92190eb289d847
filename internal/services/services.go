// package services defines interface SyncService for podcast sync servers
//
// gpodder.net (delta protocol), Podhaven (REST)
package services

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// SyncService defines the interface for podcast sync providers (gpodder.net,
// Podhaven) that reconcile subscriptions and listening progress.
type SyncService interface {
	// Name returns the name of the service (e.g., "gpodder", "Podhaven")
	Name() string

	// Authenticate establishes a session with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetSubscriptions retrieves subscription changes since the cursor.
	// An empty cursor requests the full picture.
	GetSubscriptions(ctx context.Context, cursor string) (*SubscriptionDelta, error)

	// PushSubscriptionChanges uploads local subscribe and unsubscribe events.
	// Idempotent: "already exists" and "already removed" count as success.
	PushSubscriptionChanges(ctx context.Context, add, remove []string) error

	// Subscribe registers a feed with the service and returns its remote ID.
	Subscribe(ctx context.Context, feedURL string) (string, error)

	// Unsubscribe removes a feed from the service.
	Unsubscribe(ctx context.Context, remoteID string) error

	// GetProgress retrieves listening progress changes since the cursor.
	GetProgress(ctx context.Context, cursor string) (*ProgressDelta, error)

	// PushProgress uploads recorded playback actions.
	// Returns one result per action; a transport-level failure returns an
	// error and no results.
	PushProgress(ctx context.Context, actions []ProgressAction) ([]ProgressResult, error)

	// RefreshFeed asks the service to re-crawl a feed.
	RefreshFeed(ctx context.Context, remoteID string) error
}

// EpisodeResolver is implemented by services that assign their own episode
// IDs and expose a per-subscription episode directory.
type EpisodeResolver interface {
	// ResolveEpisodes returns a map from episode GUID or audio URL to the
	// service's episode ID for one subscription.
	ResolveEpisodes(ctx context.Context, subscriptionRemoteID string) (map[string]string, error)
}

// QueueService is implemented by services that track a play queue.
type QueueService interface {
	// GetQueue retrieves queue changes since the cursor.
	GetQueue(ctx context.Context, cursor string) (*QueueDelta, error)

	// PushQueueChanges uploads local queue adds and removes.
	PushQueueChanges(ctx context.Context, add, remove []string) error
}

// OAuthService extends SyncService for providers that log in through a
// browser-based OAuth2 code flow.
type OAuthService interface {
	SyncService

	// GetAuthURL returns the OAuth2 authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the OAuth2 client configuration for the
	// callback server.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate exchanges an authorization code for tokens, installs
	// them on the service, and returns the serialized token for storage.
	OAuthenticate(ctx context.Context, code string) (string, error)
}

// SubscriptionDelta represents subscription changes reported by a service,
// normalized to feed URL adds and removes plus an opaque resume cursor.
type SubscriptionDelta struct {
	Added   []string
	Removed []string
	Cursor  string
}

// ProgressRecord represents one episode's playback state on the server.
// Services that key episodes by media URL leave RemoteEpisodeID empty.
type ProgressRecord struct {
	RemoteEpisodeID string
	PodcastURL      string
	EpisodeURL      string
	Position        int // Position in seconds
	Duration        int // Duration in seconds
	Completed       bool
	Timestamp       time.Time
}

// ProgressDelta represents progress changes reported by a service.
type ProgressDelta struct {
	Records []ProgressRecord
	Cursor  string
}

// ProgressAction is one locally recorded playback event queued for upload.
type ProgressAction struct {
	ActionID        string
	RemoteEpisodeID string
	PodcastURL      string
	EpisodeURL      string
	Position        int
	Duration        int
	Completed       bool
	Timestamp       time.Time
}

// ProgressResult reports the service's verdict on one uploaded action.
type ProgressResult struct {
	ActionID string
	Err      error
}

// QueueDelta represents play queue changes reported by a service. Entries
// are remote episode IDs; Order carries the full queue ordering.
type QueueDelta struct {
	Added   []string
	Removed []string
	Order   []string
	Cursor  string
}
