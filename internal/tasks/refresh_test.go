package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	tu "github.com/Magniswerfer/Podhaven-sub000/internal/testing"
)

func TestRefreshEngine(t *testing.T) {
	ctx := context.Background()
	feedX := "https://feeds.example.com/x.xml"
	feedY := "https://feeds.example.com/y.xml"

	newFetcher := func() *tu.MockFetcher {
		return &tu.MockFetcher{
			Feeds: map[string]*models.Feed{
				feedX: {
					Title:  "Refreshed X",
					Author: "Author X",
					Episodes: []models.FeedEpisode{
						{GUID: "x-1", Title: "X One", AudioURL: "https://cdn.example.com/x1.mp3", Duration: 600},
						{GUID: "x-2", Title: "X Two", AudioURL: "https://cdn.example.com/x2.mp3", Duration: 900},
					},
				},
				feedY: {
					Title: "Refreshed Y",
					Episodes: []models.FeedEpisode{
						{GUID: "y-1", Title: "Y One", AudioURL: "https://cdn.example.com/y1.mp3", Duration: 300},
					},
				},
			},
		}
	}

	t.Run("Refreshes All Subscribed Feeds", func(t *testing.T) {
		store := newTestStore(t)
		subX := createSubscription(t, store, feedX)
		createSubscription(t, store, feedY)
		engine := NewRefreshEngine(newFetcher(), store, nil, nil)

		progress := make(chan ProgressUpdate, 32)
		summary, err := engine.Refresh(ctx, progress, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		close(progress)

		if summary.Subscriptions != 2 {
			t.Errorf("expected 2 subscriptions considered, got %d", summary.Subscriptions)
		}
		if summary.Refreshed != 2 {
			t.Errorf("expected 2 feeds refreshed, got %d", summary.Refreshed)
		}
		if summary.NewEpisodes != 3 {
			t.Errorf("expected 3 new episodes, got %d", summary.NewEpisodes)
		}
		if summary.Failed != 0 {
			t.Errorf("expected no failures, got %d", summary.Failed)
		}

		stored, err := store.Subscriptions.Get(subX.ID())
		if err != nil {
			t.Fatalf("failed to reload subscription: %v", err)
		}
		if stored.Title() != "Refreshed X" {
			t.Errorf("expected feed metadata applied, got title %q", stored.Title())
		}
		if stored.LastRefreshed() == nil {
			t.Error("expected last refreshed to be stamped")
		}

		episodes, err := store.Episodes.List(map[string]any{"subscription_id": subX.ID()})
		if err != nil {
			t.Fatalf("failed to list episodes: %v", err)
		}
		if len(episodes) != 2 {
			t.Errorf("expected 2 episodes for feed X, got %d", len(episodes))
		}

		sawRefresh := false
		for update := range progress {
			if update.Phase == RefreshFeeds {
				sawRefresh = true
			}
		}
		if !sawRefresh {
			t.Error("expected refresh progress updates")
		}
	})

	t.Run("Second Run Creates Nothing", func(t *testing.T) {
		store := newTestStore(t)
		createSubscription(t, store, feedX)
		engine := NewRefreshEngine(newFetcher(), store, nil, nil)

		if _, err := engine.Refresh(ctx, nil, RefreshOpts{RateLimit: 100}); err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}
		summary, err := engine.Refresh(ctx, nil, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("second refresh failed: %v", err)
		}

		if summary.Refreshed != 1 {
			t.Errorf("expected the feed fetched again, got %d", summary.Refreshed)
		}
		if summary.NewEpisodes != 0 {
			t.Errorf("expected no new episodes on the second run, got %d", summary.NewEpisodes)
		}
	})

	t.Run("Skips Unsubscribed Feeds", func(t *testing.T) {
		store := newTestStore(t)
		createSubscription(t, store, feedX)
		inactive := createSubscription(t, store, feedY)
		inactive.SetSubscribed(false)
		if err := store.Subscriptions.Update(inactive); err != nil {
			t.Fatalf("failed to update subscription: %v", err)
		}
		fetcher := newFetcher()
		engine := NewRefreshEngine(fetcher, store, nil, nil)

		summary, err := engine.Refresh(ctx, nil, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if summary.Subscriptions != 1 {
			t.Errorf("expected 1 subscription considered, got %d", summary.Subscriptions)
		}
		if calls := fetcher.Calls(); len(calls) != 1 || calls[0] != feedX {
			t.Errorf("expected only %s fetched, got %v", feedX, calls)
		}
	})

	t.Run("Records Per Feed Failures", func(t *testing.T) {
		store := newTestStore(t)
		createSubscription(t, store, feedX)
		broken := "https://feeds.example.com/broken.xml"
		createSubscription(t, store, broken)
		engine := NewRefreshEngine(newFetcher(), store, nil, nil)

		summary, err := engine.Refresh(ctx, nil, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("per-feed failures must not fail the run: %v", err)
		}
		if summary.Refreshed != 1 {
			t.Errorf("expected 1 feed refreshed, got %d", summary.Refreshed)
		}
		if summary.Failed != 1 {
			t.Errorf("expected 1 failure, got %d", summary.Failed)
		}
		if len(summary.Errors) != 1 || summary.Errors[0].Key != broken {
			t.Errorf("expected the broken feed recorded, got %+v", summary.Errors)
		}
		if !errors.Is(summary.Errors[0].Err, shared.ErrFeedUnreachable) {
			t.Errorf("expected ErrFeedUnreachable, got %v", summary.Errors[0].Err)
		}
	})

	t.Run("Limits To One Feed", func(t *testing.T) {
		store := newTestStore(t)
		createSubscription(t, store, feedX)
		createSubscription(t, store, feedY)
		fetcher := newFetcher()
		engine := NewRefreshEngine(fetcher, store, nil, nil)

		summary, err := engine.Refresh(ctx, nil, RefreshOpts{FeedURL: feedY, RateLimit: 100})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if summary.Subscriptions != 1 {
			t.Errorf("expected 1 subscription considered, got %d", summary.Subscriptions)
		}
		if calls := fetcher.Calls(); len(calls) != 1 || calls[0] != feedY {
			t.Errorf("expected only %s fetched, got %v", feedY, calls)
		}
	})

	t.Run("Rejects Unknown Feed URLs", func(t *testing.T) {
		store := newTestStore(t)
		engine := NewRefreshEngine(newFetcher(), store, nil, nil)

		_, err := engine.Refresh(ctx, nil, RefreshOpts{FeedURL: "https://feeds.example.com/nope.xml"})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Handles An Empty Store", func(t *testing.T) {
		store := newTestStore(t)
		engine := NewRefreshEngine(newFetcher(), store, nil, nil)

		summary, err := engine.Refresh(ctx, nil, RefreshOpts{})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if summary.Subscriptions != 0 || summary.Refreshed != 0 {
			t.Errorf("expected an empty summary, got %+v", summary)
		}
	})

	t.Run("Notifies The Server", func(t *testing.T) {
		store := newTestStore(t)
		sub := createSubscription(t, store, feedX)
		sub.SetRemoteID("sub-77")
		if err := store.Subscriptions.Update(sub); err != nil {
			t.Fatalf("failed to update subscription: %v", err)
		}
		remote := &MockRemote{}
		engine := NewRefreshEngine(newFetcher(), store, remote, nil)

		if _, err := engine.Refresh(ctx, nil, RefreshOpts{NotifyServer: true, RateLimit: 100}); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if len(remote.RefreshCalls) != 1 || remote.RefreshCalls[0] != "sub-77" {
			t.Errorf("expected the server asked to re-crawl sub-77, got %v", remote.RefreshCalls)
		}
	})
}
