// Conflict resolution for listening progress.
package tasks

import (
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
)

// Resolution indicates which side of a progress conflict wins.
type Resolution int

const (
	RemoteWins Resolution = iota
	LocalWins
)

func (r Resolution) String() string {
	switch r {
	case RemoteWins:
		return "remote"
	case LocalWins:
		return "local"
	default:
		return ""
	}
}

// ConflictResolver decides between a local episode row and a remote progress
// record using last-write-wins ordering. It is pure: applying the decision is
// the engine's job.
type ConflictResolver struct{}

// Resolve returns RemoteWins when the local episode has never been synced, or
// when the remote record's timestamp is not before the local last-synced
// timestamp. Ties go to the remote so replicas converge. Otherwise the local
// row wins and its queued PendingAction carries the value up on a later pass.
func (ConflictResolver) Resolve(local *models.Episode, remote services.ProgressRecord) Resolution {
	if local == nil {
		return RemoteWins
	}

	lastSynced := local.LastSynced()
	if lastSynced == nil {
		return RemoteWins
	}

	if remote.Timestamp.Before(*lastSynced) {
		return LocalWins
	}
	return RemoteWins
}
