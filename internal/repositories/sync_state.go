package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
)

// SyncStateRepository persists the singleton [models.SyncState] row.
//
// The row is keyed to id 1 and never duplicated; GetOrCreate inserts the
// idle default and reads it back inside one transaction so two code paths
// racing on first access still observe a single row.
type SyncStateRepository struct {
	db *sql.DB
}

// NewSyncStateRepository creates a new SyncStateRepository with the given database connection
func NewSyncStateRepository(db *sql.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// GetOrCreate fetches the singleton state, creating the idle default if absent.
func (r *SyncStateRepository) GetOrCreate() (*models.SyncState, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT OR IGNORE INTO sync_state (id, status) VALUES (1, 'idle')")
	if err != nil {
		return nil, fmt.Errorf("failed to seed sync state: %w", err)
	}

	query := `
		SELECT status, subscription_synced_at, progress_synced_at,
			subscription_cursor, progress_cursor, queue_cursor, last_error, updated_at
		FROM sync_state
		WHERE id = 1
	`

	var (
		status               string
		subscriptionSyncedAt sql.NullTime
		progressSyncedAt     sql.NullTime
		subscriptionCursor   string
		progressCursor       string
		queueCursor          string
		lastError            string
		updatedAt            time.Time
	)

	err = tx.QueryRow(query).Scan(&status, &subscriptionSyncedAt, &progressSyncedAt,
		&subscriptionCursor, &progressCursor, &queueCursor, &lastError, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync state transaction: %w", err)
	}

	state := models.NewSyncState()
	state.SetStatus(models.SyncStatus(status))
	state.SetSubscriptionCursor(subscriptionCursor)
	state.SetProgressCursor(progressCursor)
	state.SetQueueCursor(queueCursor)
	state.SetLastError(lastError)
	state.SetUpdatedAt(updatedAt)
	if subscriptionSyncedAt.Valid {
		state.SetSubscriptionSyncedAt(&subscriptionSyncedAt.Time)
	}
	if progressSyncedAt.Valid {
		state.SetProgressSyncedAt(&progressSyncedAt.Time)
	}

	return state, nil
}

// Save persists the singleton state.
func (r *SyncStateRepository) Save(state *models.SyncState) error {
	now := time.Now()
	state.SetUpdatedAt(now)

	query := `
		UPDATE sync_state
		SET status = ?, subscription_synced_at = ?, progress_synced_at = ?,
			subscription_cursor = ?, progress_cursor = ?, queue_cursor = ?,
			last_error = ?, updated_at = ?
		WHERE id = 1
	`

	result, err := r.db.Exec(query,
		string(state.Status()),
		state.SubscriptionSyncedAt(),
		state.ProgressSyncedAt(),
		state.SubscriptionCursor(),
		state.ProgressCursor(),
		state.QueueCursor(),
		state.LastError(),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync state row missing, run GetOrCreate first")
	}

	return nil
}
