package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SyncSubscriptions Phase = iota
	LinkEpisodes
	SyncProgress
	SyncQueue
	RefreshFeeds
)

func (p Phase) String() string {
	switch p {
	case SyncSubscriptions:
		return "sync_subscriptions"
	case LinkEpisodes:
		return "link_episodes"
	case SyncProgress:
		return "sync_progress"
	case SyncQueue:
		return "sync_queue"
	case RefreshFeeds:
		return "refresh_feeds"
	default:
		return ""
	}
}

func pullSubscriptionsUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncSubscriptions,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pulling subscription changes from %s...", name),
	}
}

func materializeUpdate(step, total int, feedURL string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncSubscriptions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding: %s", step, total, feedURL),
	}
}

func pushSubscriptionsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncSubscriptions,
		Step:    1,
		Total:   count,
		Message: fmt.Sprintf("Pushing %d local subscription changes...", count),
	}
}

func linkEpisodesUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LinkEpisodes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Linking episodes: %s...", step, total, title),
	}
}

func pullProgressUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncProgress,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pulling listening progress from %s...", name),
	}
}

func pushActionsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncProgress,
		Step:    1,
		Total:   count,
		Message: fmt.Sprintf("Uploading %d recorded actions...", count),
	}
}

func syncQueueUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncQueue,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Syncing play queue with %s...", name),
	}
}

func queueSkippedUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncQueue,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s does not track a play queue, skipping", name),
	}
}

func refreshingFeedUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshFeeds,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Refreshing: %s...", step, total, title),
	}
}

func refreshCompletedUpdate(step, total int, title string, newEpisodes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshFeeds,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d new)", step, total, title, newEpisodes),
	}
}

func refreshFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshFeeds,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}
