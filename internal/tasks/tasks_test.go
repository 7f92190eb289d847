package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/feeds"
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	tu "github.com/Magniswerfer/Podhaven-sub000/internal/testing"
)

// newTestStore creates a Store over an in-memory SQLite database with
// migrations applied.
func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return NewStore(db)
}

// authenticateStore marks the server config logged in so passes can start.
func authenticateStore(t *testing.T, store Store) {
	t.Helper()

	config, err := store.Config.GetOrCreate()
	if err != nil {
		t.Fatalf("failed to load server config: %v", err)
	}
	config.SetBackend(models.BackendGPodder)
	config.SetBaseURL("https://sync.example.com")
	config.SetSession("tester", "token-1")
	if err := store.Config.Save(config); err != nil {
		t.Fatalf("failed to save server config: %v", err)
	}
}

// newTestEngine builds an authenticated Orchestrator over a fresh store.
func newTestEngine(t *testing.T, remote services.SyncService, fetcher feeds.Fetcher) (*Orchestrator, Store) {
	t.Helper()

	store := newTestStore(t)
	authenticateStore(t, store)
	if fetcher == nil {
		fetcher = &tu.MockFetcher{}
	}
	return NewOrchestrator(remote, fetcher, store, nil), store
}

func createSubscription(t *testing.T, store Store, feedURL string) *models.Subscription {
	t.Helper()

	sub := models.NewSubscription(0, feedURL, models.Feed{Title: "Show at " + feedURL, Author: "Tester"})
	if err := store.Subscriptions.Create(sub); err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}
	return sub
}

func createEpisode(t *testing.T, store Store, subscriptionID, guid, audioURL string) *models.Episode {
	t.Helper()

	ep := models.NewEpisode(0, subscriptionID, models.FeedEpisode{
		GUID:     guid,
		Title:    "Episode " + guid,
		AudioURL: audioURL,
		Duration: 600,
	})
	if err := store.Episodes.Create(ep); err != nil {
		t.Fatalf("failed to create episode: %v", err)
	}
	return ep
}

func updateEpisode(t *testing.T, store Store, ep *models.Episode) {
	t.Helper()
	if err := store.Episodes.Update(ep); err != nil {
		t.Fatalf("failed to update episode: %v", err)
	}
}

func createAction(t *testing.T, store Store, episodeID string, position int, completed bool) *models.PendingAction {
	t.Helper()

	action := models.NewPendingAction(0, episodeID, position, 600, completed)
	if err := store.Actions.Create(action); err != nil {
		t.Fatalf("failed to create pending action: %v", err)
	}
	return action
}

func TestOrchestratorSync(t *testing.T) {
	ctx := context.Background()
	feedA := "https://feeds.example.com/a.xml"

	feedsA := &tu.MockFetcher{
		Feeds: map[string]*models.Feed{
			feedA: {
				Title:  "Show A",
				Author: "Author A",
				Episodes: []models.FeedEpisode{
					{GUID: "a-1", Title: "One", AudioURL: "https://cdn.example.com/a1.mp3", Duration: 600},
					{GUID: "a-2", Title: "Two", AudioURL: "https://cdn.example.com/a2.mp3", Duration: 900},
				},
			},
		},
	}

	t.Run("Requires Authentication", func(t *testing.T) {
		remote := &MockRemote{}
		store := newTestStore(t)
		engine := NewOrchestrator(remote, &tu.MockFetcher{}, store, nil)

		_, err := engine.Sync(ctx, nil)
		if !errors.Is(err, shared.ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
		if remote.GetSubsCalls != 0 {
			t.Errorf("expected no remote calls, got %d", remote.GetSubsCalls)
		}

		state, err := store.State.GetOrCreate()
		if err != nil {
			t.Fatalf("failed to load sync state: %v", err)
		}
		if state.Status() != models.SyncIdle {
			t.Errorf("expected idle state, got %s", state.Status())
		}
	})

	t.Run("Skips When A Pass Is Running", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		remote := &MockRemote{Entered: entered, Gate: release}
		engine, _ := newTestEngine(t, remote, nil)

		done := make(chan *SyncReport, 1)
		go func() {
			report, err := engine.Sync(ctx, nil)
			if err != nil {
				t.Errorf("first pass failed: %v", err)
			}
			done <- report
		}()

		<-entered

		second, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("second pass errored: %v", err)
		}
		if !second.Skipped {
			t.Error("expected second pass to be skipped")
		}
		if remote.GetSubsCalls != 1 {
			t.Errorf("expected 1 remote call, got %d", remote.GetSubsCalls)
		}

		close(release)
		first := <-done
		if first.Skipped {
			t.Error("first pass should not be skipped")
		}
	})

	t.Run("Materializes Remote Additions", func(t *testing.T) {
		remote := &MockRemote{
			Subs: &services.SubscriptionDelta{Added: []string{feedA}, Cursor: "curs-1"},
		}
		engine, store := newTestEngine(t, remote, feedsA)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.SubscriptionsAdded != 1 {
			t.Errorf("expected 1 subscription added, got %d", report.SubscriptionsAdded)
		}
		if report.EpisodesCreated != 2 {
			t.Errorf("expected 2 episodes created, got %d", report.EpisodesCreated)
		}

		sub, err := store.Subscriptions.GetByFeedURL(feedA)
		if err != nil {
			t.Fatalf("subscription was not materialized: %v", err)
		}
		if !sub.Subscribed() {
			t.Error("materialized subscription should be subscribed")
		}
		if sub.NeedsSync() {
			t.Error("materialized subscription should not be dirty")
		}
		if sub.Title() != "Show A" {
			t.Errorf("expected feed metadata applied, got title %q", sub.Title())
		}

		episodes, err := store.Episodes.List(map[string]any{"subscription_id": sub.ID()})
		if err != nil {
			t.Fatalf("failed to list episodes: %v", err)
		}
		if len(episodes) != 2 {
			t.Errorf("expected 2 episodes, got %d", len(episodes))
		}

		state, err := store.State.GetOrCreate()
		if err != nil {
			t.Fatalf("failed to load sync state: %v", err)
		}
		if state.Status() != models.SyncCompleted {
			t.Errorf("expected completed state, got %s", state.Status())
		}
		if state.SubscriptionCursor() != "curs-1" {
			t.Errorf("expected cursor curs-1, got %q", state.SubscriptionCursor())
		}
		if state.SubscriptionSyncedAt() == nil {
			t.Error("expected subscription synced timestamp to be set")
		}
	})

	t.Run("Two Passes Create No Duplicates", func(t *testing.T) {
		remote := &MockRemote{
			Subs: &services.SubscriptionDelta{Added: []string{feedA}, Cursor: "curs-1"},
		}
		engine, store := newTestEngine(t, remote, feedsA)

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}
		second, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("second sync failed: %v", err)
		}

		if second.Changed() {
			t.Errorf("second pass should be a no-op, got %+v", second)
		}

		subs, err := store.Subscriptions.List(map[string]any{"subscribed": true})
		if err != nil {
			t.Fatalf("failed to list subscriptions: %v", err)
		}
		if len(subs) != 1 {
			t.Fatalf("expected 1 subscription, got %d", len(subs))
		}
		episodes, err := store.Episodes.List(map[string]any{"subscription_id": subs[0].ID()})
		if err != nil {
			t.Fatalf("failed to list episodes: %v", err)
		}
		if len(episodes) != 2 {
			t.Errorf("expected 2 episodes, got %d", len(episodes))
		}
	})

	t.Run("Passes Cursors Through", func(t *testing.T) {
		remote := &MockRemote{
			Subs:     &services.SubscriptionDelta{Cursor: "curs-2"},
			Progress: &services.ProgressDelta{Cursor: "prog-2"},
		}
		engine, store := newTestEngine(t, remote, nil)

		state, err := store.State.GetOrCreate()
		if err != nil {
			t.Fatalf("failed to load sync state: %v", err)
		}
		state.SetSubscriptionCursor("curs-1")
		state.SetProgressCursor("prog-1")
		if err := store.State.Save(state); err != nil {
			t.Fatalf("failed to save sync state: %v", err)
		}

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if remote.GetSubsCursor != "curs-1" {
			t.Errorf("expected subscription cursor curs-1, got %q", remote.GetSubsCursor)
		}
		if remote.GetProgressCursor != "prog-1" {
			t.Errorf("expected progress cursor prog-1, got %q", remote.GetProgressCursor)
		}

		state, err = store.State.GetOrCreate()
		if err != nil {
			t.Fatalf("failed to reload sync state: %v", err)
		}
		if state.SubscriptionCursor() != "curs-2" {
			t.Errorf("expected stored cursor curs-2, got %q", state.SubscriptionCursor())
		}
		if state.ProgressCursor() != "prog-2" {
			t.Errorf("expected stored cursor prog-2, got %q", state.ProgressCursor())
		}
	})

	t.Run("Fetch Failure Skips The URL", func(t *testing.T) {
		missing := "https://feeds.example.com/missing.xml"
		remote := &MockRemote{
			Subs: &services.SubscriptionDelta{Added: []string{missing}, Cursor: "curs-1"},
		}
		engine, store := newTestEngine(t, remote, &tu.MockFetcher{})

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.SubscriptionsAdded != 0 {
			t.Errorf("expected no subscriptions added, got %d", report.SubscriptionsAdded)
		}
		if len(report.Errors) != 1 {
			t.Fatalf("expected 1 skipped error, got %d", len(report.Errors))
		}
		if report.Errors[0].Stage != "subscriptions" || report.Errors[0].Key != missing {
			t.Errorf("unexpected error context: %+v", report.Errors[0])
		}

		if _, err := store.Subscriptions.GetByFeedURL(missing); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected no row for the failed feed, got %v", err)
		}

		state, _ := store.State.GetOrCreate()
		if state.Status() != models.SyncCompleted {
			t.Errorf("expected completed state, got %s", state.Status())
		}
	})

	t.Run("Aborts On Expired Session", func(t *testing.T) {
		remote := &MockRemote{
			SubsErr: fmt.Errorf("%w: session rejected", shared.ErrTokenExpired),
		}
		engine, store := newTestEngine(t, remote, nil)

		_, err := engine.Sync(ctx, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}

		state, loadErr := store.State.GetOrCreate()
		if loadErr != nil {
			t.Fatalf("failed to load sync state: %v", loadErr)
		}
		if state.Status() != models.SyncFailed {
			t.Errorf("expected failed state, got %s", state.Status())
		}
		if state.LastError() == "" {
			t.Error("expected last error to be recorded")
		}
	})

	t.Run("Reports Progress Updates", func(t *testing.T) {
		remote := &MockRemote{
			Subs: &services.SubscriptionDelta{Added: []string{feedA}},
		}
		engine, _ := newTestEngine(t, remote, feedsA)

		progress := make(chan ProgressUpdate, 32)
		if _, err := engine.Sync(ctx, progress); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		close(progress)

		phases := make(map[Phase]bool)
		for update := range progress {
			phases[update.Phase] = true
		}
		if !phases[SyncSubscriptions] {
			t.Error("expected a subscription phase update")
		}
		if !phases[SyncProgress] {
			t.Error("expected a progress phase update")
		}
	})
}

func TestSubscriptionPush(t *testing.T) {
	ctx := context.Background()
	feedB := "https://feeds.example.com/b.xml"
	feedC := "https://feeds.example.com/c.xml"

	dirtySubscribe := func(t *testing.T, store Store, feedURL string) *models.Subscription {
		t.Helper()
		sub := models.NewSubscription(0, feedURL, models.Feed{Title: "Show " + feedURL})
		sub.SetNeedsSync(true)
		if err := store.Subscriptions.Create(sub); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
		return sub
	}

	t.Run("Pushes Dirty Subscribes", func(t *testing.T) {
		remote := &MockRemote{SubscribeIDs: map[string]string{feedB: "sub-9"}}
		engine, store := newTestEngine(t, remote, nil)
		sub := dirtySubscribe(t, store, feedB)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.SubscriptionsPushed != 1 {
			t.Errorf("expected 1 push, got %d", report.SubscriptionsPushed)
		}
		if len(remote.SubscribeCalls) != 1 || remote.SubscribeCalls[0] != feedB {
			t.Errorf("expected Subscribe(%s), got %v", feedB, remote.SubscribeCalls)
		}

		stored, err := store.Subscriptions.Get(sub.ID())
		if err != nil {
			t.Fatalf("failed to reload subscription: %v", err)
		}
		if stored.NeedsSync() {
			t.Error("expected dirty flag cleared after push")
		}
		if stored.RemoteID() != "sub-9" {
			t.Errorf("expected stored remote ID sub-9, got %q", stored.RemoteID())
		}
	})

	t.Run("Clears Dirty When Already On Server", func(t *testing.T) {
		remote := &MockRemote{
			Subs: &services.SubscriptionDelta{Added: []string{feedB}},
		}
		engine, store := newTestEngine(t, remote, nil)
		sub := dirtySubscribe(t, store, feedB)

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(remote.SubscribeCalls) != 0 {
			t.Errorf("expected no Subscribe calls, got %v", remote.SubscribeCalls)
		}

		stored, _ := store.Subscriptions.Get(sub.ID())
		if stored.NeedsSync() {
			t.Error("expected dirty flag cleared without a call")
		}
	})

	t.Run("Isolates Partial Failures", func(t *testing.T) {
		remote := &MockRemote{
			SubscribeIDs:  map[string]string{feedC: "sub-3"},
			SubscribeErrs: map[string]error{feedB: fmt.Errorf("%w: connection reset", shared.ErrNetwork)},
		}
		engine, store := newTestEngine(t, remote, nil)
		subB := dirtySubscribe(t, store, feedB)
		subC := dirtySubscribe(t, store, feedC)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync should complete despite the failed record: %v", err)
		}
		if report.SubscriptionsPushed != 1 {
			t.Errorf("expected 1 successful push, got %d", report.SubscriptionsPushed)
		}
		if len(report.Errors) != 1 {
			t.Fatalf("expected 1 skipped error, got %d", len(report.Errors))
		}
		if report.Errors[0].Stage != "subscriptions" || report.Errors[0].Key != feedB {
			t.Errorf("unexpected error context: %+v", report.Errors[0])
		}

		storedB, _ := store.Subscriptions.Get(subB.ID())
		if !storedB.NeedsSync() {
			t.Error("failed push should leave the flag dirty")
		}
		storedC, _ := store.Subscriptions.Get(subC.ID())
		if storedC.NeedsSync() {
			t.Error("successful push should clear the flag")
		}

		state, _ := store.State.GetOrCreate()
		if state.Status() != models.SyncCompleted {
			t.Errorf("expected completed state, got %s", state.Status())
		}
	})

	t.Run("Applies Remote Removals", func(t *testing.T) {
		remote := &MockRemote{
			Subs: &services.SubscriptionDelta{Removed: []string{feedB}},
		}
		engine, store := newTestEngine(t, remote, nil)
		sub := createSubscription(t, store, feedB)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.SubscriptionsRemoved != 1 {
			t.Errorf("expected 1 removal, got %d", report.SubscriptionsRemoved)
		}

		stored, _ := store.Subscriptions.Get(sub.ID())
		if stored.Subscribed() {
			t.Error("expected subscription deactivated")
		}
		if stored.NeedsSync() {
			t.Error("server removals must not mark the row dirty")
		}
		if len(remote.UnsubscribeCalls) != 0 {
			t.Errorf("expected no remote calls for server removals, got %v", remote.UnsubscribeCalls)
		}
	})

	t.Run("Pushes Dirty Unsubscribes With The Stored Remote ID", func(t *testing.T) {
		remote := &MockRemote{}
		engine, store := newTestEngine(t, remote, nil)

		sub := models.NewSubscription(0, feedB, models.Feed{Title: "Show B"})
		sub.SetRemoteID("sub-1")
		sub.SetSubscribed(false)
		sub.SetNeedsSync(true)
		if err := store.Subscriptions.Create(sub); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.SubscriptionsPushed != 1 {
			t.Errorf("expected 1 push, got %d", report.SubscriptionsPushed)
		}
		if len(remote.UnsubscribeCalls) != 1 || remote.UnsubscribeCalls[0] != "sub-1" {
			t.Errorf("expected Unsubscribe(sub-1), got %v", remote.UnsubscribeCalls)
		}

		stored, _ := store.Subscriptions.Get(sub.ID())
		if stored.NeedsSync() {
			t.Error("expected dirty flag cleared after push")
		}
	})

	t.Run("Falls Back To The Feed URL", func(t *testing.T) {
		remote := &MockRemote{}
		engine, store := newTestEngine(t, remote, nil)

		sub := models.NewSubscription(0, feedB, models.Feed{Title: "Show B"})
		sub.SetSubscribed(false)
		sub.SetNeedsSync(true)
		if err := store.Subscriptions.Create(sub); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(remote.UnsubscribeCalls) != 1 || remote.UnsubscribeCalls[0] != feedB {
			t.Errorf("expected Unsubscribe(%s), got %v", feedB, remote.UnsubscribeCalls)
		}
	})

	t.Run("Tolerates Already Removed", func(t *testing.T) {
		remote := &MockRemote{
			UnsubscribeErrs: map[string]error{"sub-1": fmt.Errorf("%w: no subscription", shared.ErrNotFound)},
		}
		engine, store := newTestEngine(t, remote, nil)

		sub := models.NewSubscription(0, feedB, models.Feed{Title: "Show B"})
		sub.SetRemoteID("sub-1")
		sub.SetSubscribed(false)
		sub.SetNeedsSync(true)
		if err := store.Subscriptions.Create(sub); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.SubscriptionsPushed != 1 {
			t.Errorf("expected the removal to count as pushed, got %d", report.SubscriptionsPushed)
		}

		stored, _ := store.Subscriptions.Get(sub.ID())
		if stored.NeedsSync() {
			t.Error("already-removed must clear the dirty flag")
		}
	})
}

func TestEpisodeLinking(t *testing.T) {
	ctx := context.Background()
	feedD := "https://feeds.example.com/d.xml"

	t.Run("Fills Missing Remote IDs", func(t *testing.T) {
		remote := &MockDirectoryRemote{
			Episodes: map[string]map[string]string{
				"sub-9": {
					"d-1":                            "e-1",
					"https://cdn.example.com/d2.mp3": "e-2",
				},
			},
		}
		engine, store := newTestEngine(t, remote, nil)

		sub := models.NewSubscription(0, feedD, models.Feed{Title: "Show D"})
		sub.SetRemoteID("sub-9")
		if err := store.Subscriptions.Create(sub); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
		byGUID := createEpisode(t, store, sub.ID(), "d-1", "https://cdn.example.com/d1.mp3")
		byURL := createEpisode(t, store, sub.ID(), "d-x", "https://cdn.example.com/d2.mp3")

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.EpisodesLinked != 2 {
			t.Errorf("expected 2 linked episodes, got %d", report.EpisodesLinked)
		}
		if len(remote.ResolveCalls) != 1 || remote.ResolveCalls[0] != "sub-9" {
			t.Errorf("expected ResolveEpisodes(sub-9), got %v", remote.ResolveCalls)
		}

		stored, _ := store.Episodes.Get(byGUID.ID())
		if stored.RemoteID() != "e-1" {
			t.Errorf("expected GUID match to link e-1, got %q", stored.RemoteID())
		}
		stored, _ = store.Episodes.Get(byURL.ID())
		if stored.RemoteID() != "e-2" {
			t.Errorf("expected audio URL match to link e-2, got %q", stored.RemoteID())
		}
	})

	t.Run("Uses The Feed URL For Unconfirmed Subscriptions", func(t *testing.T) {
		remote := &MockDirectoryRemote{
			Episodes: map[string]map[string]string{
				feedD: {"d-1": "e-1"},
			},
		}
		engine, store := newTestEngine(t, remote, nil)

		sub := createSubscription(t, store, feedD)
		ep := createEpisode(t, store, sub.ID(), "d-1", "https://cdn.example.com/d1.mp3")

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(remote.ResolveCalls) != 1 || remote.ResolveCalls[0] != feedD {
			t.Errorf("expected the feed URL as reference, got %v", remote.ResolveCalls)
		}

		stored, _ := store.Episodes.Get(ep.ID())
		if stored.RemoteID() != "e-1" {
			t.Errorf("expected episode linked through the feed URL, got %q", stored.RemoteID())
		}
	})

	t.Run("Skips Failed Subscriptions", func(t *testing.T) {
		remote := &MockDirectoryRemote{
			EpisodesErr: fmt.Errorf("%w: no subscription for %s", shared.ErrNotFound, feedD),
		}
		engine, store := newTestEngine(t, remote, nil)

		sub := createSubscription(t, store, feedD)
		createEpisode(t, store, sub.ID(), "d-1", "https://cdn.example.com/d1.mp3")

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("linking failures must not abort the pass: %v", err)
		}
		if report.EpisodesLinked != 0 {
			t.Errorf("expected no links, got %d", report.EpisodesLinked)
		}
		if len(report.Errors) != 1 || report.Errors[0].Stage != "linking" {
			t.Errorf("expected one linking error, got %+v", report.Errors)
		}
	})

	t.Run("Skips When Nothing To Link", func(t *testing.T) {
		remote := &MockDirectoryRemote{}
		engine, store := newTestEngine(t, remote, nil)

		sub := createSubscription(t, store, feedD)
		ep := createEpisode(t, store, sub.ID(), "d-1", "https://cdn.example.com/d1.mp3")
		ep.SetRemoteID("e-1")
		updateEpisode(t, store, ep)

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(remote.ResolveCalls) != 0 {
			t.Errorf("expected no directory lookups, got %v", remote.ResolveCalls)
		}
	})
}

func TestProgressReconciliation(t *testing.T) {
	ctx := context.Background()
	feedE := "https://feeds.example.com/e.xml"
	audioURL := "https://cdn.example.com/e1.mp3"
	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	syncedEpisode := func(t *testing.T, store Store) *models.Episode {
		t.Helper()
		sub := createSubscription(t, store, feedE)
		ep := createEpisode(t, store, sub.ID(), "e-guid-1", audioURL)
		ep.SetPosition(120)
		ep.SetLastSynced(&t1)
		updateEpisode(t, store, ep)
		return ep
	}

	t.Run("Applies Newer Remote Records", func(t *testing.T) {
		t2 := t1.Add(time.Hour)
		remote := &MockRemote{
			Progress: &services.ProgressDelta{
				Records: []services.ProgressRecord{
					{EpisodeURL: audioURL, Position: 300, Duration: 600, Timestamp: t2},
				},
				Cursor: "prog-1",
			},
		}
		engine, store := newTestEngine(t, remote, nil)
		ep := syncedEpisode(t, store)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.ProgressApplied != 1 {
			t.Errorf("expected 1 record applied, got %d", report.ProgressApplied)
		}

		stored, _ := store.Episodes.Get(ep.ID())
		if stored.Position() != 300 {
			t.Errorf("expected position 300, got %d", stored.Position())
		}
		if stored.Played() {
			t.Error("incomplete record must not mark the episode played")
		}
		if stored.LastSynced() == nil || !stored.LastSynced().Equal(t2) {
			t.Errorf("expected last synced %v, got %v", t2, stored.LastSynced())
		}
	})

	t.Run("Marks Completions Played", func(t *testing.T) {
		t2 := t1.Add(time.Hour)
		remote := &MockRemote{
			Progress: &services.ProgressDelta{
				Records: []services.ProgressRecord{
					{EpisodeURL: audioURL, Position: 600, Duration: 600, Completed: true, Timestamp: t2},
				},
			},
		}
		engine, store := newTestEngine(t, remote, nil)
		ep := syncedEpisode(t, store)

		if _, err := engine.Sync(ctx, nil); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		stored, _ := store.Episodes.Get(ep.ID())
		if !stored.Played() {
			t.Error("expected completion to mark the episode played")
		}
		if stored.LastPlayed() == nil || !stored.LastPlayed().Equal(t2) {
			t.Errorf("expected last played %v, got %v", t2, stored.LastPlayed())
		}
	})

	t.Run("Keeps Newer Local State And Uploads It Next Pass", func(t *testing.T) {
		t0 := t1.Add(-time.Hour)
		remote := &MockRemote{
			Progress: &services.ProgressDelta{
				Records: []services.ProgressRecord{
					{EpisodeURL: audioURL, Position: 999, Duration: 600, Timestamp: t0},
				},
			},
			PushErr: fmt.Errorf("%w: connection reset", shared.ErrNetwork),
		}
		engine, store := newTestEngine(t, remote, nil)
		ep := syncedEpisode(t, store)
		ep.SetDirty(true)
		updateEpisode(t, store, ep)
		action := createAction(t, store, ep.ID(), 120, false)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("upload failure must not abort the pass: %v", err)
		}
		if report.ProgressApplied != 0 {
			t.Errorf("stale remote record must not apply, got %d applied", report.ProgressApplied)
		}
		if report.ActionsPending != 1 {
			t.Errorf("expected 1 action still pending, got %d", report.ActionsPending)
		}

		stored, _ := store.Episodes.Get(ep.ID())
		if stored.Position() != 120 {
			t.Errorf("expected local position kept, got %d", stored.Position())
		}
		storedAction, _ := store.Actions.Get(action.ID())
		if storedAction.Synced() {
			t.Error("action must stay pending after a failed upload")
		}

		// The following pass uploads the held value.
		remote.PushErr = nil
		report, err = engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("second sync failed: %v", err)
		}
		if report.ActionsPushed != 1 {
			t.Errorf("expected 1 action pushed, got %d", report.ActionsPushed)
		}

		storedAction, _ = store.Actions.Get(action.ID())
		if !storedAction.Synced() {
			t.Error("expected action confirmed on the following pass")
		}
		stored, _ = store.Episodes.Get(ep.ID())
		if stored.Dirty() {
			t.Error("expected dirty flag cleared after confirmation")
		}
		if stored.LastSynced() == nil || !stored.LastSynced().Equal(storedAction.RecordedAt()) {
			t.Errorf("expected last synced %v, got %v", storedAction.RecordedAt(), stored.LastSynced())
		}
	})

	t.Run("Confirms Uploaded Actions", func(t *testing.T) {
		remote := &MockRemote{}
		engine, store := newTestEngine(t, remote, nil)
		ep := syncedEpisode(t, store)
		ep.SetDirty(true)
		updateEpisode(t, store, ep)
		action := createAction(t, store, ep.ID(), 240, false)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.ActionsPushed != 1 {
			t.Errorf("expected 1 action pushed, got %d", report.ActionsPushed)
		}
		if report.ActionsPending != 0 {
			t.Errorf("expected no pending actions, got %d", report.ActionsPending)
		}

		if len(remote.PushedActions) != 1 || len(remote.PushedActions[0]) != 1 {
			t.Fatalf("expected one upload of one action, got %v", remote.PushedActions)
		}
		uploaded := remote.PushedActions[0][0]
		if uploaded.ActionID != action.ID() {
			t.Errorf("expected action ID %s, got %s", action.ID(), uploaded.ActionID)
		}
		if uploaded.EpisodeURL != audioURL {
			t.Errorf("expected episode URL %s, got %s", audioURL, uploaded.EpisodeURL)
		}
		if uploaded.PodcastURL != feedE {
			t.Errorf("expected podcast URL %s, got %s", feedE, uploaded.PodcastURL)
		}
		if uploaded.Position != 240 {
			t.Errorf("expected position 240, got %d", uploaded.Position)
		}
	})

	t.Run("Keeps Rejected Actions Pending", func(t *testing.T) {
		remote := &MockRemote{}
		engine, store := newTestEngine(t, remote, nil)
		ep := syncedEpisode(t, store)
		action := createAction(t, store, ep.ID(), 240, false)
		remote.PushResults = []services.ProgressResult{
			{ActionID: action.ID(), Err: fmt.Errorf("%w: no remote episode ID", shared.ErrNotFound)},
		}

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.ActionsPushed != 0 {
			t.Errorf("expected no confirmations, got %d", report.ActionsPushed)
		}
		if report.ActionsPending != 1 {
			t.Errorf("expected 1 pending action, got %d", report.ActionsPending)
		}
		if len(report.Errors) != 1 || report.Errors[0].Key != action.ID() {
			t.Errorf("expected the rejection recorded, got %+v", report.Errors)
		}

		storedAction, _ := store.Actions.Get(action.ID())
		if storedAction.Synced() {
			t.Error("rejected action must stay pending")
		}
	})

	t.Run("Skips Unknown Episodes", func(t *testing.T) {
		remote := &MockRemote{
			Progress: &services.ProgressDelta{
				Records: []services.ProgressRecord{
					{EpisodeURL: "https://cdn.example.com/unknown.mp3", Position: 10, Timestamp: t1},
				},
			},
		}
		engine, _ := newTestEngine(t, remote, nil)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.ProgressApplied != 0 {
			t.Errorf("expected no records applied, got %d", report.ProgressApplied)
		}
	})
}

func TestQueueReconciliation(t *testing.T) {
	ctx := context.Background()
	feedF := "https://feeds.example.com/f.xml"

	t.Run("Applies Remote Queue State", func(t *testing.T) {
		remote := &MockDirectoryRemote{
			Queue: &services.QueueDelta{
				Added:   []string{"r-1"},
				Removed: []string{"r-2"},
				Order:   []string{"r-1"},
				Cursor:  "q-9",
			},
		}
		engine, store := newTestEngine(t, remote, nil)
		sub := createSubscription(t, store, feedF)

		addTarget := createEpisode(t, store, sub.ID(), "f-1", "https://cdn.example.com/f1.mp3")
		addTarget.SetRemoteID("r-1")
		updateEpisode(t, store, addTarget)

		removeTarget := createEpisode(t, store, sub.ID(), "f-2", "https://cdn.example.com/f2.mp3")
		removeTarget.SetRemoteID("r-2")
		removeTarget.SetQueued(true)
		pos := 5
		removeTarget.SetQueuePosition(&pos)
		updateEpisode(t, store, removeTarget)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.QueueApplied != 2 {
			t.Errorf("expected 2 queue rows changed, got %d", report.QueueApplied)
		}

		stored, _ := store.Episodes.Get(addTarget.ID())
		if !stored.Queued() {
			t.Error("expected remote add to queue the episode")
		}
		if stored.QueuePosition() == nil || *stored.QueuePosition() != 0 {
			t.Errorf("expected queue position 0, got %v", stored.QueuePosition())
		}
		if stored.QueueDirty() {
			t.Error("remote changes must not mark rows queue-dirty")
		}

		stored, _ = store.Episodes.Get(removeTarget.ID())
		if stored.Queued() {
			t.Error("expected remote remove to dequeue the episode")
		}
		if stored.QueuePosition() != nil {
			t.Errorf("expected cleared queue position, got %v", stored.QueuePosition())
		}

		state, _ := store.State.GetOrCreate()
		if state.QueueCursor() != "q-9" {
			t.Errorf("expected queue cursor q-9, got %q", state.QueueCursor())
		}
	})

	t.Run("Pushes Local Queue Changes", func(t *testing.T) {
		remote := &MockDirectoryRemote{}
		engine, store := newTestEngine(t, remote, nil)
		sub := createSubscription(t, store, feedF)

		queued := createEpisode(t, store, sub.ID(), "f-3", "https://cdn.example.com/f3.mp3")
		queued.SetRemoteID("r-3")
		queued.SetQueued(true)
		queued.SetQueueDirty(true)
		updateEpisode(t, store, queued)

		dequeued := createEpisode(t, store, sub.ID(), "f-4", "https://cdn.example.com/f4.mp3")
		dequeued.SetRemoteID("r-4")
		dequeued.SetQueueDirty(true)
		updateEpisode(t, store, dequeued)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.QueuePushed != 2 {
			t.Errorf("expected 2 queue rows pushed, got %d", report.QueuePushed)
		}
		if len(remote.QueuePushedAdd) != 1 || remote.QueuePushedAdd[0] != "r-3" {
			t.Errorf("expected queue add r-3, got %v", remote.QueuePushedAdd)
		}
		if len(remote.QueuePushedRemove) != 1 || remote.QueuePushedRemove[0] != "r-4" {
			t.Errorf("expected queue remove r-4, got %v", remote.QueuePushedRemove)
		}

		stored, _ := store.Episodes.Get(queued.ID())
		if stored.QueueDirty() {
			t.Error("expected queue-dirty cleared after push")
		}
	})

	t.Run("Holds Rows Without Remote IDs", func(t *testing.T) {
		remote := &MockDirectoryRemote{}
		engine, store := newTestEngine(t, remote, nil)
		sub := createSubscription(t, store, feedF)

		unlinked := createEpisode(t, store, sub.ID(), "f-5", "https://cdn.example.com/f5.mp3")
		unlinked.SetQueued(true)
		unlinked.SetQueueDirty(true)
		updateEpisode(t, store, unlinked)

		report, err := engine.Sync(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if report.QueuePushed != 0 {
			t.Errorf("expected no pushes for unlinked rows, got %d", report.QueuePushed)
		}
		if len(remote.QueuePushedAdd)+len(remote.QueuePushedRemove) != 0 {
			t.Error("unlinked rows must not reach the server")
		}

		stored, _ := store.Episodes.Get(unlinked.ID())
		if !stored.QueueDirty() {
			t.Error("unlinked rows must stay queue-dirty for the next pass")
		}
	})

	t.Run("Skips Backends Without A Queue", func(t *testing.T) {
		remote := &MockRemote{}
		engine, store := newTestEngine(t, remote, nil)

		progress := make(chan ProgressUpdate, 16)
		if _, err := engine.Sync(ctx, progress); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		close(progress)

		found := false
		for update := range progress {
			if update.Phase == SyncQueue {
				found = true
			}
		}
		if !found {
			t.Error("expected a queue-skipped progress message")
		}

		state, _ := store.State.GetOrCreate()
		if state.QueueCursor() != "" {
			t.Errorf("expected untouched queue cursor, got %q", state.QueueCursor())
		}
	})
}

// MockRemote implements [services.SyncService] for engine tests, with
// injectable deltas, per-key errors, and call counters. The zero value
// behaves like a quiet server that confirms everything.
type MockRemote struct {
	NameValue string

	Subs          *services.SubscriptionDelta
	SubsErr       error
	GetSubsCalls  int
	GetSubsCursor string

	SubscribeIDs     map[string]string
	SubscribeErrs    map[string]error
	SubscribeCalls   []string
	UnsubscribeErrs  map[string]error
	UnsubscribeCalls []string

	Progress          *services.ProgressDelta
	ProgressErr       error
	GetProgressCursor string

	PushedActions [][]services.ProgressAction
	PushResults   []services.ProgressResult
	PushErr       error

	RefreshErr   error
	RefreshCalls []string

	// Entered signals (by closing) that GetSubscriptions has been reached;
	// Gate then blocks it until closed. Both are nil outside locking tests.
	Entered chan struct{}
	Gate    chan struct{}
}

func (m *MockRemote) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockRemote) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockRemote) GetSubscriptions(ctx context.Context, cursor string) (*services.SubscriptionDelta, error) {
	m.GetSubsCalls++
	m.GetSubsCursor = cursor
	if m.Entered != nil {
		close(m.Entered)
		m.Entered = nil
	}
	if m.Gate != nil {
		<-m.Gate
	}
	if m.SubsErr != nil {
		return nil, m.SubsErr
	}
	if m.Subs == nil {
		return &services.SubscriptionDelta{}, nil
	}
	return m.Subs, nil
}

func (m *MockRemote) PushSubscriptionChanges(ctx context.Context, add, remove []string) error {
	return nil
}

func (m *MockRemote) Subscribe(ctx context.Context, feedURL string) (string, error) {
	m.SubscribeCalls = append(m.SubscribeCalls, feedURL)
	if err := m.SubscribeErrs[feedURL]; err != nil {
		return "", err
	}
	return m.SubscribeIDs[feedURL], nil
}

func (m *MockRemote) Unsubscribe(ctx context.Context, remoteID string) error {
	m.UnsubscribeCalls = append(m.UnsubscribeCalls, remoteID)
	return m.UnsubscribeErrs[remoteID]
}

func (m *MockRemote) GetProgress(ctx context.Context, cursor string) (*services.ProgressDelta, error) {
	m.GetProgressCursor = cursor
	if m.ProgressErr != nil {
		return nil, m.ProgressErr
	}
	if m.Progress == nil {
		return &services.ProgressDelta{}, nil
	}
	return m.Progress, nil
}

func (m *MockRemote) PushProgress(ctx context.Context, actions []services.ProgressAction) ([]services.ProgressResult, error) {
	m.PushedActions = append(m.PushedActions, actions)
	if m.PushErr != nil {
		return nil, m.PushErr
	}
	if m.PushResults != nil {
		return m.PushResults, nil
	}
	results := make([]services.ProgressResult, len(actions))
	for i, action := range actions {
		results[i] = services.ProgressResult{ActionID: action.ActionID}
	}
	return results, nil
}

func (m *MockRemote) RefreshFeed(ctx context.Context, remoteID string) error {
	m.RefreshCalls = append(m.RefreshCalls, remoteID)
	return m.RefreshErr
}

// MockDirectoryRemote extends [MockRemote] with the episode directory and
// queue contracts, like the REST backend.
type MockDirectoryRemote struct {
	MockRemote

	Episodes     map[string]map[string]string
	EpisodesErr  error
	ResolveCalls []string

	Queue             *services.QueueDelta
	QueueErr          error
	QueuePushedAdd    []string
	QueuePushedRemove []string
	QueuePushErr      error
}

func (m *MockDirectoryRemote) ResolveEpisodes(ctx context.Context, subscriptionRemoteID string) (map[string]string, error) {
	m.ResolveCalls = append(m.ResolveCalls, subscriptionRemoteID)
	if m.EpisodesErr != nil {
		return nil, m.EpisodesErr
	}
	return m.Episodes[subscriptionRemoteID], nil
}

func (m *MockDirectoryRemote) GetQueue(ctx context.Context, cursor string) (*services.QueueDelta, error) {
	if m.QueueErr != nil {
		return nil, m.QueueErr
	}
	if m.Queue == nil {
		return &services.QueueDelta{}, nil
	}
	return m.Queue, nil
}

func (m *MockDirectoryRemote) PushQueueChanges(ctx context.Context, add, remove []string) error {
	m.QueuePushedAdd = append(m.QueuePushedAdd, add...)
	m.QueuePushedRemove = append(m.QueuePushedRemove, remove...)
	return m.QueuePushErr
}
