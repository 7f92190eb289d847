package models

import "time"

// SyncStatus is the orchestrator's observable state.
type SyncStatus string

const (
	SyncIdle      SyncStatus = "idle"
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncState is the singleton reconciliation record: status, per-phase
// cursors, completion timestamps, and the last pass-level error.
// Only the sync engine writes it.
type SyncState struct {
	status               SyncStatus
	subscriptionSyncedAt *time.Time
	progressSyncedAt     *time.Time
	subscriptionCursor   string
	progressCursor       string
	queueCursor          string
	lastError            string
	updatedAt            time.Time
}

// NewSyncState returns an idle state with no history.
func NewSyncState() *SyncState {
	return &SyncState{status: SyncIdle, updatedAt: time.Now()}
}

func (s *SyncState) Status() SyncStatus         { return s.status }
func (s *SyncState) SubscriptionCursor() string { return s.subscriptionCursor }
func (s *SyncState) ProgressCursor() string     { return s.progressCursor }
func (s *SyncState) QueueCursor() string        { return s.queueCursor }
func (s *SyncState) LastError() string          { return s.lastError }
func (s *SyncState) UpdatedAt() time.Time       { return s.updatedAt }

// SubscriptionSyncedAt returns when subscriptions last reconciled, or nil.
func (s *SyncState) SubscriptionSyncedAt() *time.Time { return s.subscriptionSyncedAt }

// ProgressSyncedAt returns when progress last reconciled, or nil.
func (s *SyncState) ProgressSyncedAt() *time.Time { return s.progressSyncedAt }

func (s *SyncState) SetStatus(v SyncStatus)               { s.status = v }
func (s *SyncState) SetSubscriptionSyncedAt(t *time.Time) { s.subscriptionSyncedAt = t }
func (s *SyncState) SetProgressSyncedAt(t *time.Time)     { s.progressSyncedAt = t }
func (s *SyncState) SetSubscriptionCursor(c string)       { s.subscriptionCursor = c }
func (s *SyncState) SetProgressCursor(c string)           { s.progressCursor = c }
func (s *SyncState) SetQueueCursor(c string)              { s.queueCursor = c }
func (s *SyncState) SetLastError(msg string)              { s.lastError = msg }
func (s *SyncState) SetUpdatedAt(t time.Time)             { s.updatedAt = t }

// Running reports whether a pass is currently marked in flight.
func (s *SyncState) Running() bool { return s.status == SyncRunning }
