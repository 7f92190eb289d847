package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// PendingActionRepository implements models.Repository[*models.PendingAction]
// for the queue of unconfirmed progress writes.
//
// Rows are never silently dropped: Delete exists for pruning synced rows and
// the episodes cascade; the engine only ever flips the synced flag.
type PendingActionRepository struct {
	db *sql.DB
}

// NewPendingActionRepository creates a new PendingActionRepository with the given database connection
func NewPendingActionRepository(db *sql.DB) *PendingActionRepository {
	return &PendingActionRepository{db: db}
}

// Create appends a new pending action with generated ID and sequence
func (r *PendingActionRepository) Create(action *models.PendingAction) error {
	sequence, err := NextSequence(r.db, "pending_actions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	action.SetID(id)

	if err := action.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO pending_actions (
			id, sequence, episode_id, position, duration, completed,
			recorded_at, synced, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		action.EpisodeID(),
		action.Position(),
		action.Duration(),
		action.Completed(),
		action.RecordedAt(),
		action.Synced(),
		action.CreatedAt(),
		action.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending action: %w", err)
	}

	return nil
}

// Get retrieves a pending action by ID
func (r *PendingActionRepository) Get(id string) (*models.PendingAction, error) {
	query := pendingActionSelect + ` WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update modifies an existing pending action in the database
func (r *PendingActionRepository) Update(action *models.PendingAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	action.SetUpdatedAt(now)

	query := `
		UPDATE pending_actions
		SET synced = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, action.Synced(), now, action.ID())
	if err != nil {
		return fmt.Errorf("failed to update pending action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: pending action: %s", shared.ErrNotFound, action.ID())
	}

	return nil
}

// MarkSynced flips one action's synced flag after a confirmed upload.
func (r *PendingActionRepository) MarkSynced(id string) error {
	result, err := r.db.Exec("UPDATE pending_actions SET synced = 1, updated_at = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark pending action synced: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: pending action: %s", shared.ErrNotFound, id)
	}

	return nil
}

// Delete removes a pending action by ID.
// Only synced rows should reach this; unsynced rows leave via the episode cascade.
func (r *PendingActionRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM pending_actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pending action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: pending action: %s", shared.ErrNotFound, id)
	}

	return nil
}

// PruneSynced deletes confirmed actions recorded before the cutoff and
// returns how many rows went away.
func (r *PendingActionRepository) PruneSynced(before time.Time) (int, error) {
	result, err := r.db.Exec("DELETE FROM pending_actions WHERE synced = 1 AND recorded_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune pending actions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

// List retrieves all pending actions matching the given criteria in record order.
//
// Supported criteria: "synced" (bool), "episode_id" (string).
func (r *PendingActionRepository) List(criteria map[string]any) ([]*models.PendingAction, error) {
	query := pendingActionSelect + ` WHERE 1 = 1`

	args := []any{}

	if synced, ok := criteria["synced"].(bool); ok {
		query += " AND synced = ?"
		args = append(args, synced)
	}

	if episodeID, ok := criteria["episode_id"].(string); ok && episodeID != "" {
		query += " AND episode_id = ?"
		args = append(args, episodeID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.PendingAction
	for rows.Next() {
		action, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return actions, nil
}

const pendingActionSelect = `
	SELECT id, sequence, episode_id, position, duration, completed,
		recorded_at, synced, created_at, updated_at
	FROM pending_actions`

// scanOne scans a single row into a [models.PendingAction]
func (r *PendingActionRepository) scanOne(row *sql.Row) (*models.PendingAction, error) {
	action, err := scanPendingAction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: pending action", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending action: %w", err)
	}
	return action, nil
}

// scanRow scans a row from [sql.Rows] into a [models.PendingAction]
func (r *PendingActionRepository) scanRow(rows *sql.Rows) (*models.PendingAction, error) {
	action, err := scanPendingAction(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending action: %w", err)
	}
	return action, nil
}

func scanPendingAction(scan func(dest ...any) error) (*models.PendingAction, error) {
	var (
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
	)

	err := scan(&id, &sequence, &episodeID, &position, &duration, &completed,
		&recordedAt, &synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	action := models.NewPendingAction(sequence, episodeID, position, duration, completed)
	action.SetID(id)
	action.SetRecordedAt(recordedAt)
	action.SetSynced(synced)
	action.SetCreatedAt(createdAt)
	action.SetUpdatedAt(updatedAt)

	return action, nil
}
