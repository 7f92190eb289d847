// Package feeds fetches and parses podcast RSS feeds and reads and writes
// OPML subscription lists.
//
// # Fetching
//
// [GofeedFetcher] implements the [Fetcher] interface with mmcdole/gofeed,
// mapping feed items to [models.FeedEpisode] entries. iTunes extensions
// supply author, artwork, and duration where the plain RSS fields are
// missing. Feed items without an enclosure are dropped; podcasts without
// audio are just blogs.
//
// HTML in feed and episode descriptions is flattened to plain text with a
// bluemonday strict policy before anything reaches the store.
//
// # Errors
//
//   - [shared.ErrFeedUnreachable] : network failure or non-2xx response
//   - [shared.ErrFeedParse] : the body is not a recognizable feed
//
// # OPML
//
// [ParseOPML] flattens an OPML subscription list, including nested folder
// outlines, into [Outline] values. [WriteOPML] renders subscriptions back
// out as OPML 2.0 for other podcast clients.
package feeds
