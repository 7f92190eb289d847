package models

import (
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// Subscription represents a followed podcast. The feed URL is its stable
// identity; a remote ID is attached once the server has confirmed it.
//
// Unsubscribing flips the subscribed flag and keeps the row for history.
// The needsSync flag marks local changes the server has not confirmed yet.
type Subscription struct {
	id            string
	sequence      int
	feedURL       string
	title         string
	author        string
	description   string
	artworkURL    string
	remoteID      string
	subscribed    bool
	needsSync     bool
	lastRefreshed *time.Time
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

// NewSubscription creates a subscribed podcast from parsed feed metadata.
func NewSubscription(sequence int, feedURL string, feed Feed) *Subscription {
	now := time.Now()
	return &Subscription{
		sequence:    sequence,
		feedURL:     feedURL,
		title:       feed.Title,
		author:      feed.Author,
		description: feed.Description,
		artworkURL:  feed.ArtworkURL,
		subscribed:  true,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (s *Subscription) ID() string            { return s.id }
func (s *Subscription) Sequence() int         { return s.sequence }
func (s *Subscription) FeedURL() string       { return s.feedURL }
func (s *Subscription) Title() string         { return s.title }
func (s *Subscription) Author() string        { return s.author }
func (s *Subscription) Description() string   { return s.description }
func (s *Subscription) ArtworkURL() string    { return s.artworkURL }
func (s *Subscription) RemoteID() string      { return s.remoteID }
func (s *Subscription) Subscribed() bool      { return s.subscribed }
func (s *Subscription) NeedsSync() bool       { return s.needsSync }
func (s *Subscription) CreatedAt() time.Time  { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time  { return s.updatedAt }
func (s *Subscription) DeletedAt() *time.Time { return s.deletedAt }

// LastRefreshed returns when the feed was last fetched, or nil if never.
func (s *Subscription) LastRefreshed() *time.Time { return s.lastRefreshed }

func (s *Subscription) SetID(id string)               { s.id = id }
func (s *Subscription) SetTitle(title string)         { s.title = title }
func (s *Subscription) SetAuthor(author string)       { s.author = author }
func (s *Subscription) SetDescription(d string)       { s.description = d }
func (s *Subscription) SetArtworkURL(u string)        { s.artworkURL = u }
func (s *Subscription) SetRemoteID(id string)         { s.remoteID = id }
func (s *Subscription) SetSubscribed(v bool)          { s.subscribed = v }
func (s *Subscription) SetNeedsSync(v bool)           { s.needsSync = v }
func (s *Subscription) SetLastRefreshed(t *time.Time) { s.lastRefreshed = t }
func (s *Subscription) SetCreatedAt(t time.Time)  { s.createdAt = t }
func (s *Subscription) SetUpdatedAt(t time.Time)  { s.updatedAt = t }
func (s *Subscription) SetDeletedAt(t *time.Time) { s.deletedAt = t }

// ApplyFeed refreshes the display metadata from a newly parsed feed.
func (s *Subscription) ApplyFeed(feed Feed) {
	s.title = feed.Title
	s.author = feed.Author
	s.description = feed.Description
	s.artworkURL = feed.ArtworkURL
}

// Validate checks that the subscription has its stable identity.
func (s *Subscription) Validate() error {
	if s.feedURL == "" {
		return fmt.Errorf("%w: subscription requires a feed URL", shared.ErrValidation)
	}
	return nil
}
