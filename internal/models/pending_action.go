package models

import (
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// PendingAction is one queued progress write awaiting server confirmation.
// Rows are append-only: they are marked synced after a confirmed upload and
// only removed by pruning synced rows or by their episode's deletion.
type PendingAction struct {
	id         string
	sequence   int
	episodeID  string
	position   int
	duration   int
	completed  bool
	recordedAt time.Time
	synced     bool
	createdAt  time.Time
	updatedAt  time.Time
}

// NewPendingAction queues a progress write recorded at the current time.
func NewPendingAction(sequence int, episodeID string, position, duration int, completed bool) *PendingAction {
	now := time.Now()
	return &PendingAction{
		sequence:   sequence,
		episodeID:  episodeID,
		position:   position,
		duration:   duration,
		completed:  completed,
		recordedAt: now,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (a *PendingAction) ID() string            { return a.id }
func (a *PendingAction) Sequence() int         { return a.sequence }
func (a *PendingAction) EpisodeID() string     { return a.episodeID }
func (a *PendingAction) Position() int         { return a.position }
func (a *PendingAction) Duration() int         { return a.duration }
func (a *PendingAction) Completed() bool       { return a.completed }
func (a *PendingAction) RecordedAt() time.Time { return a.recordedAt }
func (a *PendingAction) Synced() bool          { return a.synced }
func (a *PendingAction) CreatedAt() time.Time  { return a.createdAt }
func (a *PendingAction) UpdatedAt() time.Time  { return a.updatedAt }

func (a *PendingAction) SetID(id string)            { a.id = id }
func (a *PendingAction) SetRecordedAt(t time.Time)  { a.recordedAt = t }
func (a *PendingAction) SetSynced(v bool)           { a.synced = v }
func (a *PendingAction) SetCreatedAt(t time.Time)   { a.createdAt = t }
func (a *PendingAction) SetUpdatedAt(t time.Time)   { a.updatedAt = t }

// Validate checks the action references an episode and carries sane progress.
func (a *PendingAction) Validate() error {
	if a.episodeID == "" {
		return fmt.Errorf("%w: pending action requires an episode", shared.ErrValidation)
	}
	if a.position < 0 {
		return fmt.Errorf("%w: pending action position must not be negative", shared.ErrValidation)
	}
	if a.recordedAt.IsZero() {
		return fmt.Errorf("%w: pending action requires a recorded timestamp", shared.ErrValidation)
	}
	return nil
}
