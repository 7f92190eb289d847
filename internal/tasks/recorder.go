// Local playback recording.
package tasks

import (
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// ProgressRecorder writes playback positions to the local store and queues
// them for upload. It never talks to the network: the dirty flag and the
// PendingAction row are the contract the next sync pass picks up.
type ProgressRecorder struct {
	store Store
}

// NewProgressRecorder creates a ProgressRecorder over the local store.
func NewProgressRecorder(store Store) *ProgressRecorder {
	return &ProgressRecorder{store: store}
}

// RecordPosition stores a playback position for an episode, marks the row
// dirty, and queues a pending action recorded at the current time.
// Completion also flips played and stamps last_played.
func (r *ProgressRecorder) RecordPosition(episodeID string, position int, completed bool) (*models.PendingAction, error) {
	if position < 0 {
		return nil, fmt.Errorf("%w: position must not be negative", shared.ErrInvalidArgument)
	}

	ep, err := r.store.Episodes.Get(episodeID)
	if err != nil {
		return nil, err
	}

	ep.SetPosition(position)
	ep.SetDirty(true)
	if completed {
		ep.SetPlayed(true)
		now := time.Now()
		ep.SetLastPlayed(&now)
	}
	if err := r.store.Episodes.Update(ep); err != nil {
		return nil, fmt.Errorf("%w: failed to update episode %s: %v", shared.ErrLocalStore, episodeID, err)
	}

	action := models.NewPendingAction(0, ep.ID(), position, ep.Duration(), completed)
	if err := r.store.Actions.Create(action); err != nil {
		return nil, fmt.Errorf("%w: failed to queue action for %s: %v", shared.ErrLocalStore, episodeID, err)
	}
	return action, nil
}

// MarkPlayed records a completion at the episode's full duration.
func (r *ProgressRecorder) MarkPlayed(episodeID string) (*models.PendingAction, error) {
	ep, err := r.store.Episodes.Get(episodeID)
	if err != nil {
		return nil, err
	}
	return r.RecordPosition(episodeID, ep.Duration(), true)
}

// Prune deletes synced pending actions recorded before the cutoff and
// returns how many rows went away. Unsynced actions are never pruned.
func (r *ProgressRecorder) Prune(before time.Time) (int, error) {
	pruned, err := r.store.Actions.PruneSynced(before)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prune actions: %v", shared.ErrLocalStore, err)
	}
	return pruned, nil
}
