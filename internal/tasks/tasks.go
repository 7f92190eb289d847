// package tasks implements reconciliation between the local store and a
// podcast sync server.
//
// The core abstraction is SyncEngine, which runs a four-phase pass over
// subscriptions, episode links, listening progress, and the play queue.
// Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/feeds"
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/repositories"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/charmbracelet/log"
)

// EpisodeCacher materializes parsed feed entries into the local store,
// deduplicating by (subscription, GUID).
// This abstraction allows for easier testing and decoupling from the
// concrete repository.
type EpisodeCacher interface {
	CacheEpisode(subscriptionID string, entry models.FeedEpisode) (bool, error)
}

// Store groups the repositories a pass reads and writes.
type Store struct {
	Subscriptions *repositories.SubscriptionRepository
	Episodes      *repositories.EpisodeRepository
	Actions       *repositories.PendingActionRepository
	State         *repositories.SyncStateRepository
	Config        *repositories.ServerConfigRepository
	Cache         EpisodeCacher
}

// NewStore wires the repository set over one database handle.
func NewStore(db *sql.DB) Store {
	episodes := repositories.NewEpisodeRepository(db)
	return Store{
		Subscriptions: repositories.NewSubscriptionRepository(db),
		Episodes:      episodes,
		Actions:       repositories.NewPendingActionRepository(db),
		State:         repositories.NewSyncStateRepository(db),
		Config:        repositories.NewServerConfigRepository(db),
		Cache:         repositories.NewEpisodeCacheAdapter(episodes),
	}
}

// SyncError records one record-level failure the pass skipped over.
type SyncError struct {
	Stage string // Phase the failure occurred in
	Key   string // Feed URL, episode ID, or action ID involved
	Err   error  // Underlying error
}

// SyncReport contains all counts from a full sync pass.
type SyncReport struct {
	Skipped              bool          // True when another pass already held the lock
	SubscriptionsAdded   int           // Subscriptions materialized or re-activated from the server
	SubscriptionsRemoved int           // Subscriptions deactivated by the server
	SubscriptionsPushed  int           // Local subscribes and unsubscribes confirmed upstream
	EpisodesCreated      int           // Episode rows created from materialized feeds
	EpisodesLinked       int           // Episodes assigned a remote ID
	ProgressApplied      int           // Remote progress records written locally
	ActionsPushed        int           // Recorded actions confirmed upstream
	ActionsPending       int           // Actions still waiting after the pass
	QueueApplied         int           // Queue rows changed by the remote
	QueuePushed          int           // Local queue changes confirmed upstream
	Errors               []SyncError   // Record-level failures skipped by policy
	Duration             time.Duration // Wall-clock time for the pass
}

func (r *SyncReport) recordError(stage, key string, err error) {
	r.Errors = append(r.Errors, SyncError{Stage: stage, Key: key, Err: err})
}

// Changed reports whether the pass touched any local or remote state.
func (r *SyncReport) Changed() bool {
	return r.SubscriptionsAdded+r.SubscriptionsRemoved+r.SubscriptionsPushed+
		r.EpisodesCreated+r.EpisodesLinked+r.ProgressApplied+
		r.ActionsPushed+r.QueueApplied+r.QueuePushed > 0
}

// SyncEngine defines the reconciliation operation against a sync server.
type SyncEngine interface {
	// Sync runs one reconciliation pass: subscriptions, episode linking,
	// listening progress, then the play queue. A pass already in flight
	// makes a concurrent call return immediately with a Skipped report.
	Sync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncReport, error)
}

// Orchestrator implements SyncEngine over a sync service, a feed fetcher,
// and the local store.
type Orchestrator struct {
	remote   services.SyncService
	fetcher  feeds.Fetcher
	store    Store
	resolver ConflictResolver
	logger   *log.Logger
	mu       sync.Mutex
}

// NewOrchestrator creates an Orchestrator for the given backend.
// A nil logger discards engine diagnostics.
func NewOrchestrator(remote services.SyncService, fetcher feeds.Fetcher, store Store, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Orchestrator{
		remote:  remote,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Sync runs one reconciliation pass on the calling goroutine.
//
// The pass checkpoints after every phase: cursors and timestamps persist as
// soon as a phase completes, so a later failure never rolls back confirmed
// work. Record-level failures are logged, counted in the report, and left
// dirty for the next pass; structural failures mark the persisted state
// failed and return an error.
func (o *Orchestrator) Sync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncReport, error) {
	if o.remote == nil {
		return nil, fmt.Errorf("%w: sync service not initialized", shared.ErrServiceUnavailable)
	}

	config, err := o.store.Config.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load server config: %v", shared.ErrLocalStore, err)
	}
	if !config.Authenticated() {
		return nil, fmt.Errorf("%w: not logged in to %s", shared.ErrNoSession, o.remote.Name())
	}

	if !o.mu.TryLock() {
		return &SyncReport{Skipped: true}, nil
	}
	defer o.mu.Unlock()

	state, err := o.store.State.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load sync state: %v", shared.ErrLocalStore, err)
	}

	started := time.Now()
	state.SetStatus(models.SyncRunning)
	state.SetLastError("")
	if err := o.store.State.Save(state); err != nil {
		return nil, fmt.Errorf("%w: failed to mark sync running: %v", shared.ErrLocalStore, err)
	}

	report := &SyncReport{}
	err = o.runPass(ctx, progress, state, report)
	report.Duration = time.Since(started)

	if err != nil {
		state.SetStatus(models.SyncFailed)
		state.SetLastError(err.Error())
		if saveErr := o.store.State.Save(state); saveErr != nil {
			o.logger.Error("failed to persist sync state", "error", saveErr)
		}
		return report, fmt.Errorf("sync failed: %w", err)
	}

	if pending, err := o.store.Actions.List(map[string]any{"synced": false}); err == nil {
		report.ActionsPending = len(pending)
	}

	state.SetStatus(models.SyncCompleted)
	if err := o.store.State.Save(state); err != nil {
		return report, fmt.Errorf("%w: failed to mark sync completed: %v", shared.ErrLocalStore, err)
	}

	return report, nil
}

// runPass executes the phases in order. Later phases consume rows earlier
// phases create, so the order is fixed.
func (o *Orchestrator) runPass(ctx context.Context, progress chan<- ProgressUpdate, state *models.SyncState, report *SyncReport) error {
	if err := o.syncSubscriptions(ctx, progress, state, report); err != nil {
		return err
	}
	if err := o.linkEpisodes(ctx, progress, report); err != nil {
		return err
	}
	if err := o.syncProgress(ctx, progress, state, report); err != nil {
		return err
	}
	return o.syncQueue(ctx, progress, state, report)
}

// syncSubscriptions reconciles the subscription set with the server.
//
// Remote additions and removals apply unconditionally; the needsSync flag
// alone governs what still gets pushed afterwards.
func (o *Orchestrator) syncSubscriptions(ctx context.Context, progress chan<- ProgressUpdate, state *models.SyncState, report *SyncReport) error {
	sendProgress(progress, pullSubscriptionsUpdate(o.remote.Name()))

	delta, err := o.remote.GetSubscriptions(ctx, state.SubscriptionCursor())
	if verdict := classify(err, opPull, true); verdict != treatSuccess {
		if verdict == abortPass {
			return fmt.Errorf("failed to pull subscriptions: %w", err)
		}
		o.logger.Warn("skipping subscription sync", "error", err)
		report.recordError("subscriptions", "pull", err)
		return nil
	}

	subscribed, err := o.store.Subscriptions.List(map[string]any{"subscribed": true})
	if err != nil {
		return fmt.Errorf("%w: failed to list subscriptions: %v", shared.ErrLocalStore, err)
	}
	localSet := make(map[string]bool, len(subscribed))
	for _, sub := range subscribed {
		localSet[sub.FeedURL()] = true
	}

	for i, feedURL := range delta.Added {
		if localSet[feedURL] {
			continue
		}
		sendProgress(progress, materializeUpdate(i+1, len(delta.Added), feedURL))
		created, err := o.materializeSubscription(ctx, feedURL)
		if err != nil {
			// The URL stays absent locally and re-appears in the next delta.
			o.logger.Warn("failed to materialize subscription", "feed", feedURL, "error", err)
			report.recordError("subscriptions", feedURL, err)
			continue
		}
		report.SubscriptionsAdded++
		report.EpisodesCreated += created
	}

	for _, feedURL := range delta.Removed {
		sub, err := o.store.Subscriptions.GetByFeedURL(feedURL)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: failed to load subscription %s: %v", shared.ErrLocalStore, feedURL, err)
		}
		if !sub.Subscribed() {
			continue
		}
		sub.SetSubscribed(false)
		sub.SetNeedsSync(false)
		if err := o.store.Subscriptions.Update(sub); err != nil {
			return fmt.Errorf("%w: failed to deactivate subscription %s: %v", shared.ErrLocalStore, feedURL, err)
		}
		report.SubscriptionsRemoved++
	}

	dirty, err := o.store.Subscriptions.List(map[string]any{"needs_sync": true})
	if err != nil {
		return fmt.Errorf("%w: failed to list dirty subscriptions: %v", shared.ErrLocalStore, err)
	}
	if len(dirty) > 0 {
		sendProgress(progress, pushSubscriptionsUpdate(len(dirty)))
	}

	added := toSet(delta.Added)
	for _, sub := range dirty {
		if sub.Subscribed() {
			err = o.pushSubscribe(ctx, sub, added, report)
		} else {
			err = o.pushUnsubscribe(ctx, sub, report)
		}
		if err != nil {
			return err
		}
	}

	state.SetSubscriptionCursor(delta.Cursor)
	now := time.Now()
	state.SetSubscriptionSyncedAt(&now)
	if err := o.store.State.Save(state); err != nil {
		return fmt.Errorf("%w: failed to persist subscription cursor: %v", shared.ErrLocalStore, err)
	}
	return nil
}

// materializeSubscription fetches a remote-added feed and creates (or
// re-activates) its local row plus episode rows deduplicated by GUID.
// Returns the number of episode rows created.
func (o *Orchestrator) materializeSubscription(ctx context.Context, feedURL string) (int, error) {
	feed, err := o.fetcher.Parse(ctx, feedURL)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	sub, err := o.store.Subscriptions.GetByFeedURL(feedURL)
	switch {
	case err == nil:
		sub.SetSubscribed(true)
		sub.SetNeedsSync(false)
		sub.ApplyFeed(*feed)
		sub.SetLastRefreshed(&now)
		if err := o.store.Subscriptions.Update(sub); err != nil {
			return 0, fmt.Errorf("%w: failed to reactivate subscription: %v", shared.ErrLocalStore, err)
		}
	case errors.Is(err, shared.ErrNotFound):
		sub = models.NewSubscription(0, feedURL, *feed)
		sub.SetLastRefreshed(&now)
		if err := o.store.Subscriptions.Create(sub); err != nil {
			return 0, fmt.Errorf("%w: failed to create subscription: %v", shared.ErrLocalStore, err)
		}
	default:
		return 0, fmt.Errorf("%w: failed to load subscription: %v", shared.ErrLocalStore, err)
	}

	created := 0
	for _, entry := range feed.Episodes {
		fresh, err := o.store.Cache.CacheEpisode(sub.ID(), entry)
		if err != nil {
			return created, fmt.Errorf("%w: failed to cache episode %s: %v", shared.ErrLocalStore, entry.GUID, err)
		}
		if fresh {
			created++
		}
	}
	return created, nil
}

func (o *Orchestrator) pushSubscribe(ctx context.Context, sub *models.Subscription, added map[string]bool, report *SyncReport) error {
	if added[sub.FeedURL()] {
		// The server already reported this URL; nothing to push.
		sub.SetNeedsSync(false)
		if err := o.store.Subscriptions.Update(sub); err != nil {
			return fmt.Errorf("%w: failed to update subscription %s: %v", shared.ErrLocalStore, sub.FeedURL(), err)
		}
		report.SubscriptionsPushed++
		return nil
	}

	remoteID, err := o.remote.Subscribe(ctx, sub.FeedURL())
	switch classify(err, opPush, false) {
	case treatSuccess:
		if remoteID != "" {
			sub.SetRemoteID(remoteID)
		}
		sub.SetNeedsSync(false)
		if err := o.store.Subscriptions.Update(sub); err != nil {
			return fmt.Errorf("%w: failed to update subscription %s: %v", shared.ErrLocalStore, sub.FeedURL(), err)
		}
		report.SubscriptionsPushed++
	case abortPass:
		return fmt.Errorf("failed to subscribe %s: %w", sub.FeedURL(), err)
	case skipRecord:
		o.logger.Warn("failed to push subscribe", "feed", sub.FeedURL(), "error", err)
		report.recordError("subscriptions", sub.FeedURL(), err)
	}
	return nil
}

func (o *Orchestrator) pushUnsubscribe(ctx context.Context, sub *models.Subscription, report *SyncReport) error {
	err := o.remote.Unsubscribe(ctx, resolveRemoteID(sub))
	switch classify(err, opUnsubscribe, false) {
	case treatSuccess:
		sub.SetNeedsSync(false)
		if err := o.store.Subscriptions.Update(sub); err != nil {
			return fmt.Errorf("%w: failed to update subscription %s: %v", shared.ErrLocalStore, sub.FeedURL(), err)
		}
		report.SubscriptionsPushed++
	case abortPass:
		return fmt.Errorf("failed to unsubscribe %s: %w", sub.FeedURL(), err)
	case skipRecord:
		o.logger.Warn("failed to push unsubscribe", "feed", sub.FeedURL(), "error", err)
		report.recordError("subscriptions", sub.FeedURL(), err)
	}
	return nil
}

// linkEpisodes fills missing remote episode IDs for backends that expose a
// per-subscription episode directory. Backends that identify episodes by
// media URL skip the phase entirely.
func (o *Orchestrator) linkEpisodes(ctx context.Context, progress chan<- ProgressUpdate, report *SyncReport) error {
	resolver, ok := o.remote.(services.EpisodeResolver)
	if !ok {
		return nil
	}

	subs, err := o.store.Subscriptions.List(map[string]any{"subscribed": true})
	if err != nil {
		return fmt.Errorf("%w: failed to list subscriptions: %v", shared.ErrLocalStore, err)
	}

	for i, sub := range subs {
		missing, err := o.store.Episodes.List(map[string]any{
			"subscription_id":   sub.ID(),
			"missing_remote_id": true,
		})
		if err != nil {
			return fmt.Errorf("%w: failed to list unlinked episodes: %v", shared.ErrLocalStore, err)
		}
		if len(missing) == 0 {
			continue
		}

		sendProgress(progress, linkEpisodesUpdate(i+1, len(subs), sub.Title()))

		ids, err := resolver.ResolveEpisodes(ctx, resolveRemoteID(sub))
		if err != nil {
			if classify(err, opPull, false) == abortPass {
				return fmt.Errorf("failed to resolve episodes for %s: %w", sub.FeedURL(), err)
			}
			o.logger.Warn("failed to resolve episodes", "feed", sub.FeedURL(), "error", err)
			report.recordError("linking", sub.FeedURL(), err)
			continue
		}

		for _, ep := range missing {
			id := ids[ep.GUID()]
			if id == "" {
				id = ids[ep.AudioURL()]
			}
			if id == "" {
				continue
			}
			ep.SetRemoteID(id)
			if err := o.store.Episodes.Update(ep); err != nil {
				return fmt.Errorf("%w: failed to link episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
			}
			report.EpisodesLinked++
		}
	}
	return nil
}

// syncProgress applies remote progress records under the conflict resolver,
// then uploads unsynced pending actions.
func (o *Orchestrator) syncProgress(ctx context.Context, progress chan<- ProgressUpdate, state *models.SyncState, report *SyncReport) error {
	sendProgress(progress, pullProgressUpdate(o.remote.Name()))

	delta, err := o.remote.GetProgress(ctx, state.ProgressCursor())
	if verdict := classify(err, opPull, true); verdict != treatSuccess {
		if verdict == abortPass {
			return fmt.Errorf("failed to pull progress: %w", err)
		}
		o.logger.Warn("skipping progress sync", "error", err)
		report.recordError("progress", "pull", err)
		return nil
	}

	for _, record := range delta.Records {
		ep := o.resolveLocalEpisode(record)
		if ep == nil {
			// Not materialized locally yet; linking establishes the mapping
			// on a later pass.
			continue
		}
		if o.resolver.Resolve(ep, record) != RemoteWins {
			continue
		}

		ep.SetPosition(record.Position)
		ep.SetPlayed(record.Completed)
		if record.Completed {
			played := record.Timestamp
			ep.SetLastPlayed(&played)
		}
		synced := record.Timestamp
		ep.SetLastSynced(&synced)
		if err := o.store.Episodes.Update(ep); err != nil {
			return fmt.Errorf("%w: failed to apply progress to episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
		}
		report.ProgressApplied++
	}

	pending, err := o.store.Actions.List(map[string]any{"synced": false})
	if err != nil {
		return fmt.Errorf("%w: failed to list pending actions: %v", shared.ErrLocalStore, err)
	}
	if len(pending) > 0 {
		sendProgress(progress, pushActionsUpdate(len(pending)))
		if err := o.pushActions(ctx, pending, report); err != nil {
			return err
		}
	}

	state.SetProgressCursor(delta.Cursor)
	now := time.Now()
	state.SetProgressSyncedAt(&now)
	if err := o.store.State.Save(state); err != nil {
		return fmt.Errorf("%w: failed to persist progress cursor: %v", shared.ErrLocalStore, err)
	}
	return nil
}

// resolveLocalEpisode finds the local row a progress record refers to, by
// remote episode ID first and media URL second.
func (o *Orchestrator) resolveLocalEpisode(record services.ProgressRecord) *models.Episode {
	if record.RemoteEpisodeID != "" {
		if ep, err := o.store.Episodes.GetByRemoteID(record.RemoteEpisodeID); err == nil {
			return ep
		}
	}
	if record.EpisodeURL != "" {
		if ep, err := o.store.Episodes.GetByAudioURL(record.EpisodeURL); err == nil {
			return ep
		}
	}
	return nil
}

// pushActions uploads pending actions and confirms the accepted ones. A
// wholesale transport failure leaves every action pending; the pass carries
// on and retries next time.
func (o *Orchestrator) pushActions(ctx context.Context, pending []*models.PendingAction, report *SyncReport) error {
	actions := make([]services.ProgressAction, 0, len(pending))
	byID := make(map[string]*models.PendingAction, len(pending))

	for _, action := range pending {
		ep, err := o.store.Episodes.Get(action.EpisodeID())
		if err != nil {
			o.logger.Warn("pending action has no episode", "action", action.ID(), "error", err)
			report.recordError("progress", action.ID(), err)
			continue
		}
		var podcastURL string
		if sub, err := o.store.Subscriptions.Get(ep.SubscriptionID()); err == nil {
			podcastURL = sub.FeedURL()
		}
		actions = append(actions, services.ProgressAction{
			ActionID:        action.ID(),
			RemoteEpisodeID: ep.RemoteID(),
			PodcastURL:      podcastURL,
			EpisodeURL:      ep.AudioURL(),
			Position:        action.Position(),
			Duration:        action.Duration(),
			Completed:       action.Completed(),
			Timestamp:       action.RecordedAt(),
		})
		byID[action.ID()] = action
	}

	if len(actions) == 0 {
		return nil
	}

	results, err := o.remote.PushProgress(ctx, actions)
	if err != nil {
		if classify(err, opPush, false) == abortPass {
			return fmt.Errorf("failed to push progress: %w", err)
		}
		o.logger.Warn("progress upload failed, actions stay pending", "count", len(actions), "error", err)
		report.recordError("progress", "push", err)
		return nil
	}

	for _, result := range results {
		action := byID[result.ActionID]
		if action == nil {
			continue
		}
		switch classify(result.Err, opPush, false) {
		case treatSuccess:
			if err := o.confirmAction(action); err != nil {
				return err
			}
			report.ActionsPushed++
		case abortPass:
			return fmt.Errorf("failed to push action %s: %w", action.ID(), result.Err)
		case skipRecord:
			o.logger.Warn("action rejected", "action", action.ID(), "error", result.Err)
			report.recordError("progress", action.ID(), result.Err)
		}
	}
	return nil
}

// confirmAction marks an uploaded action synced and settles its episode:
// dirty clears and last_synced advances to the action's recorded-at time.
func (o *Orchestrator) confirmAction(action *models.PendingAction) error {
	if err := o.store.Actions.MarkSynced(action.ID()); err != nil {
		return fmt.Errorf("%w: failed to mark action %s synced: %v", shared.ErrLocalStore, action.ID(), err)
	}

	ep, err := o.store.Episodes.Get(action.EpisodeID())
	if err != nil {
		return fmt.Errorf("%w: failed to load episode for action %s: %v", shared.ErrLocalStore, action.ID(), err)
	}
	ep.SetDirty(false)
	recorded := action.RecordedAt()
	ep.SetLastSynced(&recorded)
	if err := o.store.Episodes.Update(ep); err != nil {
		return fmt.Errorf("%w: failed to update episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
	}
	return nil
}

// syncQueue reconciles the play queue for backends that track one. Remote
// adds and removes apply unconditionally, the remote order re-numbers
// positions, and local queue_dirty rows push up afterwards.
func (o *Orchestrator) syncQueue(ctx context.Context, progress chan<- ProgressUpdate, state *models.SyncState, report *SyncReport) error {
	queue, ok := o.remote.(services.QueueService)
	if !ok {
		sendProgress(progress, queueSkippedUpdate(o.remote.Name()))
		return nil
	}
	sendProgress(progress, syncQueueUpdate(o.remote.Name()))

	delta, err := queue.GetQueue(ctx, state.QueueCursor())
	if verdict := classify(err, opPull, true); verdict != treatSuccess {
		if verdict == abortPass {
			return fmt.Errorf("failed to pull queue: %w", err)
		}
		o.logger.Warn("skipping queue sync", "error", err)
		report.recordError("queue", "pull", err)
		return nil
	}

	for _, remoteID := range delta.Added {
		ep, err := o.store.Episodes.GetByRemoteID(remoteID)
		if err != nil {
			continue
		}
		if ep.Queued() {
			continue
		}
		ep.SetQueued(true)
		ep.SetQueueDirty(false)
		if err := o.store.Episodes.Update(ep); err != nil {
			return fmt.Errorf("%w: failed to queue episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
		}
		report.QueueApplied++
	}

	for _, remoteID := range delta.Removed {
		ep, err := o.store.Episodes.GetByRemoteID(remoteID)
		if err != nil {
			continue
		}
		if !ep.Queued() {
			continue
		}
		ep.SetQueued(false)
		ep.SetQueuePosition(nil)
		ep.SetQueueDirty(false)
		if err := o.store.Episodes.Update(ep); err != nil {
			return fmt.Errorf("%w: failed to dequeue episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
		}
		report.QueueApplied++
	}

	position := 0
	for _, remoteID := range delta.Order {
		ep, err := o.store.Episodes.GetByRemoteID(remoteID)
		if err != nil || !ep.Queued() {
			continue
		}
		pos := position
		ep.SetQueuePosition(&pos)
		if err := o.store.Episodes.Update(ep); err != nil {
			return fmt.Errorf("%w: failed to renumber episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
		}
		position++
	}

	if err := o.pushQueue(ctx, queue, report); err != nil {
		return err
	}

	state.SetQueueCursor(delta.Cursor)
	if err := o.store.State.Save(state); err != nil {
		return fmt.Errorf("%w: failed to persist queue cursor: %v", shared.ErrLocalStore, err)
	}
	return nil
}

func (o *Orchestrator) pushQueue(ctx context.Context, queue services.QueueService, report *SyncReport) error {
	dirty, err := o.store.Episodes.List(map[string]any{"queue_dirty": true})
	if err != nil {
		return fmt.Errorf("%w: failed to list queue changes: %v", shared.ErrLocalStore, err)
	}

	var add, remove []string
	var pushed []*models.Episode
	for _, ep := range dirty {
		if ep.RemoteID() == "" {
			// Not addressable remotely yet; linking fills the ID in on a
			// later pass.
			continue
		}
		if ep.Queued() {
			add = append(add, ep.RemoteID())
		} else {
			remove = append(remove, ep.RemoteID())
		}
		pushed = append(pushed, ep)
	}

	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	err = queue.PushQueueChanges(ctx, add, remove)
	switch classify(err, opPush, false) {
	case treatSuccess:
		for _, ep := range pushed {
			ep.SetQueueDirty(false)
			if err := o.store.Episodes.Update(ep); err != nil {
				return fmt.Errorf("%w: failed to update episode %s: %v", shared.ErrLocalStore, ep.ID(), err)
			}
			report.QueuePushed++
		}
	case abortPass:
		return fmt.Errorf("failed to push queue changes: %w", err)
	case skipRecord:
		o.logger.Warn("failed to push queue changes", "error", err)
		report.recordError("queue", "push", err)
	}
	return nil
}

// resolveRemoteID returns the reference a backend addresses a subscription
// by: the stored remote ID when the server assigned one, else the feed URL.
func resolveRemoteID(sub *models.Subscription) string {
	if sub.RemoteID() != "" {
		return sub.RemoteID()
	}
	return sub.FeedURL()
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
