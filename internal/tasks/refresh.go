// Feed refresh over a bounded worker pool.
package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/feeds"
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// RefreshOpts contains configuration for a refresh run.
type RefreshOpts struct {
	FeedURL      string  // Refresh only the subscription with this feed URL
	NumWorkers   int     // Concurrent fetchers (default: 5)
	RateLimit    float64 // Feed fetches per second (default: 5)
	NotifyServer bool    // Ask the sync server to re-crawl each feed too
}

// RefreshResult reports one subscription's refresh outcome.
type RefreshResult struct {
	FeedURL     string // Subscription feed URL
	Title       string // Subscription title
	NewEpisodes int    // Episode rows created
	Err         error  // Fetch or store failure
}

// RefreshSummary aggregates a refresh run.
type RefreshSummary struct {
	Subscriptions int           // Subscriptions considered
	Refreshed     int           // Feeds fetched and stored
	NewEpisodes   int           // Episode rows created across all feeds
	Failed        int           // Feeds that could not be refreshed
	Errors        []SyncError   // Per-feed failures
	Duration      time.Duration // Wall-clock time for the run
}

// refreshFetch carries one worker's parsed feed back to the writer.
type refreshFetch struct {
	sub  *models.Subscription
	feed *models.Feed
	err  error
}

// RefreshEngine re-fetches subscribed feeds concurrently and materializes
// new episodes. Fetching fans out across rate-limited workers; all store
// writes happen on the draining goroutine so SQLite sees a single writer.
type RefreshEngine struct {
	fetcher feeds.Fetcher
	store   Store
	remote  services.SyncService
	logger  *log.Logger
}

// NewRefreshEngine creates a RefreshEngine. remote may be nil; when set and
// opts.NotifyServer is true, each refreshed feed also asks the server to
// re-crawl it. A nil logger discards diagnostics.
func NewRefreshEngine(fetcher feeds.Fetcher, store Store, remote services.SyncService, logger *log.Logger) *RefreshEngine {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &RefreshEngine{
		fetcher: fetcher,
		store:   store,
		remote:  remote,
		logger:  logger,
	}
}

// Refresh fetches feeds for the selected subscriptions with rate limiting
// and progress tracking, and returns a summary of the run. Per-feed
// failures never fail the run.
func (e *RefreshEngine) Refresh(ctx context.Context, progress chan<- ProgressUpdate, opts RefreshOpts) (*RefreshSummary, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: feed fetcher not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	subs, err := e.subscriptions(opts)
	if err != nil {
		return nil, err
	}

	summary := &RefreshSummary{Subscriptions: len(subs)}
	if len(subs) == 0 {
		return summary, nil
	}
	started := time.Now()

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan *models.Subscription, len(subs))
	fetches := make(chan refreshFetch, len(subs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.fetchWorker(ctx, &wg, jobs, fetches)
	}

	go func() {
		defer close(jobs)
		for i, sub := range subs {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(progress, refreshingFeedUpdate(i+1, len(subs), sub.Title()))
			jobs <- sub
		}
	}()

	go func() {
		wg.Wait()
		close(fetches)
	}()

	completed := 0
	for fetch := range fetches {
		completed++
		result := e.persist(ctx, fetch, opts)

		if result.Err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, SyncError{Stage: "refresh", Key: result.FeedURL, Err: result.Err})
			sendProgress(progress, refreshFailedUpdate(completed, len(subs), result.Title, result.Err))
			continue
		}

		summary.Refreshed++
		summary.NewEpisodes += result.NewEpisodes
		sendProgress(progress, refreshCompletedUpdate(completed, len(subs), result.Title, result.NewEpisodes))
	}

	summary.Duration = time.Since(started)
	return summary, nil
}

// subscriptions selects what to refresh: one subscription by feed URL, or
// every subscribed one.
func (e *RefreshEngine) subscriptions(opts RefreshOpts) ([]*models.Subscription, error) {
	if opts.FeedURL != "" {
		sub, err := e.store.Subscriptions.GetByFeedURL(opts.FeedURL)
		if err != nil {
			return nil, err
		}
		return []*models.Subscription{sub}, nil
	}

	subs, err := e.store.Subscriptions.List(map[string]any{"subscribed": true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list subscriptions: %v", shared.ErrLocalStore, err)
	}
	return subs, nil
}

// fetchWorker is a worker goroutine that parses feeds from the jobs channel.
func (e *RefreshEngine) fetchWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.Subscription, fetches chan<- refreshFetch) {
	defer wg.Done()

	for sub := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		feed, err := e.fetcher.Parse(ctx, sub.FeedURL())
		fetches <- refreshFetch{sub: sub, feed: feed, err: err}
	}
}

// persist writes one fetched feed: new episode rows, refreshed subscription
// metadata, and the optional server re-crawl hint.
func (e *RefreshEngine) persist(ctx context.Context, fetch refreshFetch, opts RefreshOpts) RefreshResult {
	result := RefreshResult{FeedURL: fetch.sub.FeedURL(), Title: fetch.sub.Title()}
	if fetch.err != nil {
		result.Err = fetch.err
		return result
	}
	if result.Title == "" {
		result.Title = fetch.feed.Title
	}

	created := 0
	for _, entry := range fetch.feed.Episodes {
		fresh, err := e.store.Cache.CacheEpisode(fetch.sub.ID(), entry)
		if err != nil {
			result.Err = fmt.Errorf("%w: failed to cache episode %s: %v", shared.ErrLocalStore, entry.GUID, err)
			return result
		}
		if fresh {
			created++
		}
	}

	fetch.sub.ApplyFeed(*fetch.feed)
	now := time.Now()
	fetch.sub.SetLastRefreshed(&now)
	if err := e.store.Subscriptions.Update(fetch.sub); err != nil {
		result.Err = fmt.Errorf("%w: failed to update subscription: %v", shared.ErrLocalStore, err)
		return result
	}

	if opts.NotifyServer && e.remote != nil {
		// Best effort: the server crawls on its own schedule anyway.
		if err := e.remote.RefreshFeed(ctx, resolveRemoteID(fetch.sub)); err != nil {
			e.logger.Debug("server refresh hint failed", "feed", fetch.sub.FeedURL(), "error", err)
		}
	}

	result.NewEpisodes = created
	return result
}
