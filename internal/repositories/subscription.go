package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// SubscriptionRepository implements models.Repository[*models.Subscription] for followed podcasts.
//
// Handles subscription CRUD with soft delete support (the explicit purge path)
// and feed URL lookups. Unsubscribing is a flag flip, never a delete.
type SubscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository with the given database connection
func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription into the database with generated ID and sequence
func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	sequence, err := NextSequence(r.db, "subscriptions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	sub.SetID(id)

	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO subscriptions (
			id, sequence, feed_url, title, author, description, artwork_url,
			remote_id, subscribed, needs_sync, last_refreshed, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var artworkURL any = sub.ArtworkURL()
	if artworkURL == "" {
		artworkURL = nil
	}

	var remoteID any = sub.RemoteID()
	if remoteID == "" {
		remoteID = nil
	}

	_, err = r.db.Exec(query,
		id,
		sequence,
		sub.FeedURL(),
		sub.Title(),
		sub.Author(),
		sub.Description(),
		artworkURL,
		remoteID,
		sub.Subscribed(),
		sub.NeedsSync(),
		sub.LastRefreshed(),
		sub.CreatedAt(),
		sub.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	return nil
}

// Get retrieves a subscription by ID, excluding purged subscriptions
func (r *SubscriptionRepository) Get(id string) (*models.Subscription, error) {
	query := `
		SELECT id, sequence, feed_url, title, author, description, artwork_url,
			remote_id, subscribed, needs_sync, last_refreshed, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByFeedURL retrieves a subscription by its stable feed URL identity
func (r *SubscriptionRepository) GetByFeedURL(feedURL string) (*models.Subscription, error) {
	query := `
		SELECT id, sequence, feed_url, title, author, description, artwork_url,
			remote_id, subscribed, needs_sync, last_refreshed, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE feed_url = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, feedURL))
}

// Update modifies an existing subscription in the database
func (r *SubscriptionRepository) Update(sub *models.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	sub.SetUpdatedAt(now)

	query := `
		UPDATE subscriptions
		SET title = ?, author = ?, description = ?, artwork_url = ?, remote_id = ?,
			subscribed = ?, needs_sync = ?, last_refreshed = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	var artworkURL any = sub.ArtworkURL()
	if artworkURL == "" {
		artworkURL = nil
	}

	var remoteID any = sub.RemoteID()
	if remoteID == "" {
		remoteID = nil
	}

	result, err := r.db.Exec(query,
		sub.Title(),
		sub.Author(),
		sub.Description(),
		artworkURL,
		remoteID,
		sub.Subscribed(),
		sub.NeedsSync(),
		sub.LastRefreshed(),
		now,
		sub.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: subscription not found or already purged: %s", shared.ErrNotFound, sub.ID())
	}

	return nil
}

// Delete purges a subscription by ID (soft delete)
func (r *SubscriptionRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE subscriptions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to purge subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: subscription not found or already purged: %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all subscriptions matching the given criteria, excluding purged subscriptions.
//
// Supported criteria: "subscribed" (bool), "needs_sync" (bool).
func (r *SubscriptionRepository) List(criteria map[string]any) ([]*models.Subscription, error) {
	query := `
		SELECT id, sequence, feed_url, title, author, description, artwork_url,
			remote_id, subscribed, needs_sync, last_refreshed, created_at, updated_at, deleted_at
		FROM subscriptions
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if subscribed, ok := criteria["subscribed"].(bool); ok {
		query += " AND subscribed = ?"
		args = append(args, subscribed)
	}

	if needsSync, ok := criteria["needs_sync"].(bool); ok {
		query += " AND needs_sync = ?"
		args = append(args, needsSync)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return subs, nil
}

// scanOne scans a single row into a [models.Subscription]
func (r *SubscriptionRepository) scanOne(row *sql.Row) (*models.Subscription, error) {
	sub, err := scanSubscription(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: subscription", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return sub, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Subscription]
func (r *SubscriptionRepository) scanRow(rows *sql.Rows) (*models.Subscription, error) {
	sub, err := scanSubscription(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(scan func(dest ...any) error) (*models.Subscription, error) {
	var (
		id            string
		sequence      int
		feedURL       string
		title         string
		author        string
		description   string
		artworkURL    sql.NullString
		remoteID      sql.NullString
		subscribed    bool
		needsSync     bool
		lastRefreshed sql.NullTime
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := scan(&id, &sequence, &feedURL, &title, &author, &description, &artworkURL,
		&remoteID, &subscribed, &needsSync, &lastRefreshed, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	feed := models.Feed{
		Title:       title,
		Author:      author,
		Description: description,
		ArtworkURL:  artworkURL.String,
	}

	sub := models.NewSubscription(sequence, feedURL, feed)
	sub.SetID(id)
	sub.SetSubscribed(subscribed)
	sub.SetNeedsSync(needsSync)
	sub.SetCreatedAt(createdAt)
	sub.SetUpdatedAt(updatedAt)
	if remoteID.Valid {
		sub.SetRemoteID(remoteID.String)
	}
	if lastRefreshed.Valid {
		sub.SetLastRefreshed(&lastRefreshed.Time)
	}
	if deletedAt.Valid {
		sub.SetDeletedAt(&deletedAt.Time)
	}

	return sub, nil
}
