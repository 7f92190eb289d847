package models

import (
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// Episode represents one feed entry owned by exactly one subscription.
// The (subscription, GUID) pair is unique; refreshes never duplicate rows.
//
// Playback state lives here: position and played are what the player writes,
// lastSynced is the server's authoritative timestamp for this episode, and
// the dirty flag marks unconfirmed local progress. Queue membership for
// backends that support it is carried by queued/queuePosition/queueDirty.
type Episode struct {
	id             string
	sequence       int
	subscriptionID string
	guid           string
	title          string
	description    string
	audioURL       string
	artworkURL     string
	publishDate    time.Time
	duration       int
	remoteID       string
	position       int
	played         bool
	lastPlayed     *time.Time
	lastSynced     *time.Time
	dirty          bool
	queued         bool
	queuePosition  *int
	queueDirty     bool
	createdAt      time.Time
	updatedAt      time.Time
}

// NewEpisode creates an episode from a parsed feed entry.
func NewEpisode(sequence int, subscriptionID string, entry FeedEpisode) *Episode {
	now := time.Now()
	return &Episode{
		sequence:       sequence,
		subscriptionID: subscriptionID,
		guid:           entry.GUID,
		title:          entry.Title,
		description:    entry.Description,
		audioURL:       entry.AudioURL,
		artworkURL:     entry.ArtworkURL,
		publishDate:    entry.PublishDate,
		duration:       entry.Duration,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (e *Episode) ID() string             { return e.id }
func (e *Episode) Sequence() int          { return e.sequence }
func (e *Episode) SubscriptionID() string { return e.subscriptionID }
func (e *Episode) GUID() string           { return e.guid }
func (e *Episode) Title() string          { return e.title }
func (e *Episode) Description() string    { return e.description }
func (e *Episode) AudioURL() string       { return e.audioURL }
func (e *Episode) ArtworkURL() string     { return e.artworkURL }
func (e *Episode) PublishDate() time.Time { return e.publishDate }
func (e *Episode) Duration() int          { return e.duration }
func (e *Episode) RemoteID() string       { return e.remoteID }
func (e *Episode) Position() int          { return e.position }
func (e *Episode) Played() bool           { return e.played }
func (e *Episode) Dirty() bool            { return e.dirty }
func (e *Episode) Queued() bool           { return e.queued }
func (e *Episode) QueueDirty() bool       { return e.queueDirty }
func (e *Episode) CreatedAt() time.Time   { return e.createdAt }
func (e *Episode) UpdatedAt() time.Time   { return e.updatedAt }

// LastPlayed returns when the player last touched this episode, or nil.
func (e *Episode) LastPlayed() *time.Time { return e.lastPlayed }

// LastSynced returns the server's authoritative timestamp for this episode's
// progress, or nil if the episode has never synced.
func (e *Episode) LastSynced() *time.Time { return e.lastSynced }

// QueuePosition returns the episode's slot in the ordered queue, or nil.
func (e *Episode) QueuePosition() *int { return e.queuePosition }

func (e *Episode) SetID(id string)              { e.id = id }
func (e *Episode) SetTitle(title string)        { e.title = title }
func (e *Episode) SetDescription(d string)      { e.description = d }
func (e *Episode) SetAudioURL(u string)         { e.audioURL = u }
func (e *Episode) SetArtworkURL(u string)       { e.artworkURL = u }
func (e *Episode) SetPublishDate(t time.Time)   { e.publishDate = t }
func (e *Episode) SetDuration(d int)            { e.duration = d }
func (e *Episode) SetRemoteID(id string)        { e.remoteID = id }
func (e *Episode) SetPosition(p int)            { e.position = p }
func (e *Episode) SetPlayed(v bool)             { e.played = v }
func (e *Episode) SetLastPlayed(t *time.Time)   { e.lastPlayed = t }
func (e *Episode) SetLastSynced(t *time.Time)   { e.lastSynced = t }
func (e *Episode) SetDirty(v bool)              { e.dirty = v }
func (e *Episode) SetQueued(v bool)             { e.queued = v }
func (e *Episode) SetQueuePosition(p *int)      { e.queuePosition = p }
func (e *Episode) SetQueueDirty(v bool)         { e.queueDirty = v }
func (e *Episode) SetCreatedAt(t time.Time)     { e.createdAt = t }
func (e *Episode) SetUpdatedAt(t time.Time)     { e.updatedAt = t }

// Validate checks ownership and identity fields.
func (e *Episode) Validate() error {
	if e.subscriptionID == "" {
		return fmt.Errorf("%w: episode requires a subscription", shared.ErrValidation)
	}
	if e.guid == "" {
		return fmt.Errorf("%w: episode requires a GUID", shared.ErrValidation)
	}
	if e.position < 0 {
		return fmt.Errorf("%w: episode position must not be negative", shared.ErrValidation)
	}
	return nil
}
