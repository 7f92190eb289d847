// RSS and Atom feed parsing via gofeed
package feeds

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// Fetcher retrieves and parses a podcast feed into its catalog form.
type Fetcher interface {
	// Parse downloads the feed at feedURL and returns its metadata and
	// episode entries. Safe to call repeatedly for the same URL.
	Parse(ctx context.Context, feedURL string) (*models.Feed, error)
}

// GofeedFetcher parses RSS and Atom feeds with gofeed, stripping markup
// from descriptions before they reach the store.
type GofeedFetcher struct {
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
}

// NewFetcher creates a feed fetcher with a 30 second request timeout.
func NewFetcher() *GofeedFetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	parser.UserAgent = "podhaven/1.0"

	return &GofeedFetcher{
		parser:    parser,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Parse downloads and parses the feed at feedURL. Items without an
// enclosure are not episodes and are dropped.
func (f *GofeedFetcher) Parse(ctx context.Context, feedURL string) (*models.Feed, error) {
	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var urlErr *url.Error
		var httpErr gofeed.HTTPError
		if errors.As(err, &urlErr) || errors.As(err, &httpErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrFeedUnreachable, feedURL, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrFeedParse, feedURL, err)
	}

	feed := &models.Feed{
		FeedURL:     feedURL,
		Title:       strings.TrimSpace(parsed.Title),
		Author:      feedAuthor(parsed),
		Description: f.strip(parsed.Description),
		ArtworkURL:  feedArtwork(parsed),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if episode, ok := f.episodeFromItem(item); ok {
			feed.Episodes = append(feed.Episodes, episode)
		}
	}

	return feed, nil
}

// episodeFromItem maps a feed item to an episode entry. The GUID falls
// back to the item link and then the audio URL when the feed omits one.
func (f *GofeedFetcher) episodeFromItem(item *gofeed.Item) (models.FeedEpisode, bool) {
	audioURL := pickEnclosure(item.Enclosures)
	if audioURL == "" {
		return models.FeedEpisode{}, false
	}

	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		guid = audioURL
	}

	episode := models.FeedEpisode{
		GUID:     guid,
		Title:    strings.TrimSpace(item.Title),
		AudioURL: audioURL,
	}

	description := item.Description
	if description == "" && item.ITunesExt != nil {
		description = item.ITunesExt.Summary
	}
	episode.Description = f.strip(description)

	if item.PublishedParsed != nil {
		episode.PublishDate = *item.PublishedParsed
	}

	if item.ITunesExt != nil {
		episode.Duration = parseItunesDuration(item.ITunesExt.Duration)
		episode.ArtworkURL = item.ITunesExt.Image
	}
	if episode.ArtworkURL == "" && item.Image != nil {
		episode.ArtworkURL = item.Image.URL
	}

	return episode, true
}

// strip removes markup from feed-provided HTML, leaving plain text.
func (f *GofeedFetcher) strip(raw string) string {
	return strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(raw)))
}

func feedAuthor(parsed *gofeed.Feed) string {
	if parsed.ITunesExt != nil && parsed.ITunesExt.Author != "" {
		return parsed.ITunesExt.Author
	}
	for _, author := range parsed.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	return ""
}

func feedArtwork(parsed *gofeed.Feed) string {
	if parsed.Image != nil && parsed.Image.URL != "" {
		return parsed.Image.URL
	}
	if parsed.ITunesExt != nil {
		return parsed.ITunesExt.Image
	}
	return ""
}

// pickEnclosure prefers an audio enclosure but accepts any with a URL,
// since some feeds omit the MIME type.
func pickEnclosure(enclosures []*gofeed.Enclosure) string {
	for _, enclosure := range enclosures {
		if enclosure != nil && enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "audio/") {
			return enclosure.URL
		}
	}
	for _, enclosure := range enclosures {
		if enclosure != nil && enclosure.URL != "" {
			return enclosure.URL
		}
	}
	return ""
}

// parseItunesDuration handles the formats seen in the wild: plain
// seconds, MM:SS, and HH:MM:SS. Anything else counts as unknown.
func parseItunesDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	total := 0
	for _, part := range strings.Split(raw, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
