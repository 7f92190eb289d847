package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/feeds"
	"github.com/Magniswerfer/Podhaven-sub000/internal/formatter"
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PodcastsSubscribe fetches a feed, stores the subscription, and caches
// its episodes. Resubscribing a previously dropped feed reactivates the
// existing row instead of creating a duplicate.
func (r *Runner) PodcastsSubscribe(ctx context.Context, cmd *cli.Command) error {
	feedURL := strings.TrimSpace(cmd.StringArg("url"))
	if feedURL == "" {
		return fmt.Errorf("%w: feed url", shared.ErrMissingArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	existing, err := store.Subscriptions.GetByFeedURL(feedURL)
	switch {
	case err == nil:
		if existing.Subscribed() {
			return r.writePlain("Already subscribed to %s\n", existing.Title())
		}
		existing.SetSubscribed(true)
		existing.SetNeedsSync(true)
		if err := store.Subscriptions.Update(existing); err != nil {
			return fmt.Errorf("failed to resubscribe: %w", err)
		}
		r.logger.Info("resubscribed", "title", existing.Title(), "feed", feedURL)
		r.writePlain("✓ Resubscribed to %s\n", existing.Title())
		r.writePlain("  Will upload on the next sync pass\n")
		return nil
	case !errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("failed to look up subscription: %w", err)
	}

	r.logger.Info("fetching feed", "url", feedURL)
	feed, err := feeds.NewFetcher().Parse(ctx, feedURL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	sub := models.NewSubscription(0, feedURL, *feed)
	sub.SetNeedsSync(true)
	now := time.Now().UTC()
	sub.SetLastRefreshed(&now)
	if err := store.Subscriptions.Create(sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	cached := 0
	for _, entry := range feed.Episodes {
		fresh, err := store.Cache.CacheEpisode(sub.ID(), entry)
		if err != nil {
			r.logger.Warn("failed to cache episode", "title", entry.Title, "error", err)
			continue
		}
		if fresh {
			cached++
		}
	}

	r.logger.Info("subscribed", "title", sub.Title(), "episodes", cached)
	r.writePlain("✓ Subscribed to %s\n", sub.Title())
	r.writePlain("  Episodes: %d\n", cached)
	r.writePlain("  Will upload on the next sync pass\n")
	return nil
}

// PodcastsUnsubscribe marks a subscription dropped. The row and its
// episodes stay so progress history survives a resubscribe.
func (r *Runner) PodcastsUnsubscribe(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("podcast"))
	if query == "" {
		return fmt.Errorf("%w: podcast", shared.ErrMissingArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sub, err := r.findSubscription(store, query)
	if err != nil {
		return err
	}
	if !sub.Subscribed() {
		return r.writePlain("Not subscribed to %s\n", sub.Title())
	}

	sub.SetSubscribed(false)
	sub.SetNeedsSync(true)
	if err := store.Subscriptions.Update(sub); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	r.logger.Info("unsubscribed", "title", sub.Title())
	r.writePlain("✓ Unsubscribed from %s\n", sub.Title())
	r.writePlain("  Will upload on the next sync pass\n")
	return nil
}

// PodcastsList prints stored subscriptions. Dropped feeds are hidden
// unless --all is passed.
func (r *Runner) PodcastsList(ctx context.Context, cmd *cli.Command) error {
	showAll := cmd.Bool("all")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"subscribed": true}
	if showAll {
		criteria = nil
	}
	subs, err := store.Subscriptions.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	if useJSON {
		records := make([]formatter.SubscriptionRecord, 0, len(subs))
		for _, sub := range subs {
			records = append(records, formatter.NewSubscriptionRecord(sub))
		}
		return r.writeJSON(records, pretty)
	}

	if len(subs) == 0 {
		r.writePlain("No subscriptions yet, run 'podcasts subscribe <feed-url>'\n")
		return nil
	}

	r.writePlain("\nFound %d subscriptions:\n\n", len(subs))
	for i, sub := range subs {
		r.writePlain("%d. %s\n", i+1, sub.Title())
		if sub.Author() != "" {
			r.writePlain("   Author: %s\n", sub.Author())
		}
		r.writePlain("   Feed: %s\n", sub.FeedURL())
		if !sub.Subscribed() {
			r.writePlain("   Status: unsubscribed\n")
		}
		if sub.NeedsSync() {
			r.writePlain("   Pending upload\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// PodcastsRefresh re-crawls subscribed feeds and caches anything new.
// With --url only that feed is crawled, with --notify the backend is
// asked to re-crawl it too.
func (r *Runner) PodcastsRefresh(ctx context.Context, cmd *cli.Command) error {
	feedURL := cmd.String("url")
	notify := cmd.Bool("notify")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var remote services.SyncService
	if notify {
		svc, _, err := r.buildRemote(ctx, store)
		if err != nil {
			return err
		}
		remote = svc
	}

	engine := tasks.NewRefreshEngine(feeds.NewFetcher(), store, remote, r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			r.writePlain("🔄 %s\n", update.Message)
		}
	}()

	summary, err := engine.Refresh(ctx, progressCh, tasks.RefreshOpts{
		FeedURL:      feedURL,
		NumWorkers:   r.config.Sync.Workers,
		RateLimit:    r.config.Sync.RateLimit,
		NotifyServer: notify,
	})
	close(progressCh)
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Refresh Complete!")
	r.writePlain("Feeds: %d\n", summary.Subscriptions)
	r.writePlain("Refreshed: %d\n", summary.Refreshed)
	r.writePlain("New episodes: %d\n", summary.NewEpisodes)
	r.writePlain("Duration: %s\n", summary.Duration.Round(time.Millisecond))
	if summary.Failed > 0 {
		r.writePlain("\nFailed %d feeds:\n", summary.Failed)
		for _, failure := range summary.Errors {
			r.writePlain("  - %s: %v\n", failure.Key, failure.Err)
		}
	}
	return nil
}

// PodcastsImport loads feeds from an OPML file. Feeds already
// subscribed are skipped, everything else is marked for upload.
func (r *Runner) PodcastsImport(ctx context.Context, cmd *cli.Command) error {
	path := strings.TrimSpace(cmd.StringArg("path"))
	if path == "" {
		return fmt.Errorf("%w: opml path", shared.ErrMissingArgument)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open OPML file: %w", err)
	}
	defer file.Close()

	outlines, err := feeds.ParseOPML(file)
	if err != nil {
		return fmt.Errorf("failed to parse OPML: %w", err)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	imported, skipped := 0, 0
	for _, outline := range outlines {
		existing, err := store.Subscriptions.GetByFeedURL(outline.FeedURL)
		switch {
		case err == nil:
			if existing.Subscribed() {
				skipped++
				continue
			}
			existing.SetSubscribed(true)
			existing.SetNeedsSync(true)
			if err := store.Subscriptions.Update(existing); err != nil {
				r.logger.Warn("failed to resubscribe", "feed", outline.FeedURL, "error", err)
				continue
			}
			imported++
		case errors.Is(err, shared.ErrNotFound):
			sub := models.NewSubscription(0, outline.FeedURL, models.Feed{Title: outline.Title})
			sub.SetNeedsSync(true)
			if err := store.Subscriptions.Create(sub); err != nil {
				r.logger.Warn("failed to import feed", "feed", outline.FeedURL, "error", err)
				continue
			}
			imported++
		default:
			return fmt.Errorf("failed to look up subscription: %w", err)
		}
	}

	r.logger.Info("import finished", "imported", imported, "skipped", skipped)
	r.writePlain("✓ Imported %d feeds from %s\n", imported, path)
	if skipped > 0 {
		r.writePlain("  Skipped %d already subscribed\n", skipped)
	}
	if imported > 0 {
		r.writePlain("  Run 'podcasts refresh' to fetch episodes\n")
	}
	return nil
}

// PodcastsExport writes subscriptions as OPML (the default) or any
// formatter format.
func (r *Runner) PodcastsExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	output := cmd.String("output")
	save := cmd.Bool("save")
	showAll := cmd.Bool("all")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"subscribed": true}
	if showAll {
		criteria = nil
	}
	subs, err := store.Subscriptions.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	if format == "opml" {
		if output == "" && save {
			output = "subscriptions.opml"
		}
		if output == "" {
			return feeds.WriteOPML(r.output, subs)
		}
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		if err := feeds.WriteOPML(file, subs); err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d subscriptions to %s\n", len(subs), output)
	}

	if output == "" && !save {
		return formatter.WriteSubscriptions(r.output, format, subs)
	}
	path, err := formatter.WriteSubscriptionsFile(format, output, subs)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Exported %d subscriptions to %s\n", len(subs), path)
}

// findSubscription resolves a query to one subscription. It tries the
// feed URL, then the ID, then a case-insensitive title match.
func (r *Runner) findSubscription(store tasks.Store, query string) (*models.Subscription, error) {
	if sub, err := store.Subscriptions.GetByFeedURL(query); err == nil {
		return sub, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if sub, err := store.Subscriptions.Get(query); err == nil {
		return sub, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	subs, err := store.Subscriptions.List(nil)
	if err != nil {
		return nil, err
	}
	var matches []*models.Subscription
	needle := strings.ToLower(query)
	for _, sub := range subs {
		if strings.Contains(strings.ToLower(sub.Title()), needle) {
			matches = append(matches, sub)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: no subscription matches %q", shared.ErrNotFound, query)
	default:
		return nil, fmt.Errorf("%w: %d subscriptions match %q, use the feed URL", shared.ErrInvalidArgument, len(matches), query)
	}
}

// podcastsCommand manages the local subscription list
func podcastsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "podcasts",
		Aliases: []string{"subscriptions"},
		Usage:   "Manage podcast subscriptions",
		Commands: []*cli.Command{
			{
				Name:      "subscribe",
				Usage:     "Subscribe to a feed URL",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Action:    r.PodcastsSubscribe,
			},
			{
				Name:      "unsubscribe",
				Usage:     "Unsubscribe from a podcast (feed URL, ID, or title)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "podcast"}},
				Action:    r.PodcastsUnsubscribe,
			},
			{
				Name:  "list",
				Usage: "List subscriptions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include unsubscribed feeds",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PodcastsList,
			},
			{
				Name:  "refresh",
				Usage: "Re-crawl subscribed feeds for new episodes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Refresh only this feed URL",
					},
					&cli.BoolFlag{
						Name:  "notify",
						Usage: "Ask the sync backend to re-crawl too",
					},
				},
				Action: r.PodcastsRefresh,
			},
			{
				Name:      "import",
				Usage:     "Import feeds from an OPML file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Action:    r.PodcastsImport,
			},
			{
				Name:  "export",
				Usage: "Export subscriptions as OPML, JSON, CSV, markdown, or a table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (opml, json, csv, markdown, table)",
						Value:   "opml",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write to a generated filename",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include unsubscribed feeds",
					},
				},
				Action: r.PodcastsExport,
			},
		},
	}
}
