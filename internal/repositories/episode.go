package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// EpisodeRepository implements models.Repository[*models.Episode] for feed entries.
//
// Episodes are owned by one subscription, deduped by (subscription, GUID),
// and deleted only through their subscription's cascade. Lookups by remote ID
// and audio URL back the engine's record resolution.
type EpisodeRepository struct {
	db *sql.DB
}

// NewEpisodeRepository creates a new EpisodeRepository with the given database connection
func NewEpisodeRepository(db *sql.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// Create inserts a new episode into the database with generated ID and sequence
func (r *EpisodeRepository) Create(episode *models.Episode) error {
	sequence, err := NextSequence(r.db, "episodes")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	episode.SetID(id)

	if err := episode.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO episodes (
			id, sequence, subscription_id, guid, title, description, audio_url,
			artwork_url, publish_date, duration, remote_id, position, played,
			last_played, last_synced, dirty, queued, queue_position, queue_dirty,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var artworkURL any = episode.ArtworkURL()
	if artworkURL == "" {
		artworkURL = nil
	}

	var remoteID any = episode.RemoteID()
	if remoteID == "" {
		remoteID = nil
	}

	var publishDate any
	if !episode.PublishDate().IsZero() {
		publishDate = episode.PublishDate()
	}

	_, err = r.db.Exec(query,
		id,
		sequence,
		episode.SubscriptionID(),
		episode.GUID(),
		episode.Title(),
		episode.Description(),
		episode.AudioURL(),
		artworkURL,
		publishDate,
		episode.Duration(),
		remoteID,
		episode.Position(),
		episode.Played(),
		episode.LastPlayed(),
		episode.LastSynced(),
		episode.Dirty(),
		episode.Queued(),
		episode.QueuePosition(),
		episode.QueueDirty(),
		episode.CreatedAt(),
		episode.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}

	return nil
}

// Get retrieves an episode by ID
func (r *EpisodeRepository) Get(id string) (*models.Episode, error) {
	query := episodeSelect + ` WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByGUID retrieves an episode by its (subscription, GUID) identity
func (r *EpisodeRepository) GetByGUID(subscriptionID, guid string) (*models.Episode, error) {
	query := episodeSelect + ` WHERE subscription_id = ? AND guid = ?`
	return r.scanOne(r.db.QueryRow(query, subscriptionID, guid))
}

// GetByRemoteID retrieves an episode by its server-assigned ID
func (r *EpisodeRepository) GetByRemoteID(remoteID string) (*models.Episode, error) {
	query := episodeSelect + ` WHERE remote_id = ?`
	return r.scanOne(r.db.QueryRow(query, remoteID))
}

// GetByAudioURL retrieves an episode by its media URL.
// The delta backend identifies episodes this way before a remote ID exists.
func (r *EpisodeRepository) GetByAudioURL(audioURL string) (*models.Episode, error) {
	query := episodeSelect + ` WHERE audio_url = ?`
	return r.scanOne(r.db.QueryRow(query, audioURL))
}

// Update modifies an existing episode in the database
func (r *EpisodeRepository) Update(episode *models.Episode) error {
	if err := episode.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	episode.SetUpdatedAt(now)

	query := `
		UPDATE episodes
		SET title = ?, description = ?, audio_url = ?, artwork_url = ?,
			publish_date = ?, duration = ?, remote_id = ?, position = ?, played = ?,
			last_played = ?, last_synced = ?, dirty = ?, queued = ?,
			queue_position = ?, queue_dirty = ?, updated_at = ?
		WHERE id = ?
	`

	var artworkURL any = episode.ArtworkURL()
	if artworkURL == "" {
		artworkURL = nil
	}

	var remoteID any = episode.RemoteID()
	if remoteID == "" {
		remoteID = nil
	}

	var publishDate any
	if !episode.PublishDate().IsZero() {
		publishDate = episode.PublishDate()
	}

	result, err := r.db.Exec(query,
		episode.Title(),
		episode.Description(),
		episode.AudioURL(),
		artworkURL,
		publishDate,
		episode.Duration(),
		remoteID,
		episode.Position(),
		episode.Played(),
		episode.LastPlayed(),
		episode.LastSynced(),
		episode.Dirty(),
		episode.Queued(),
		episode.QueuePosition(),
		episode.QueueDirty(),
		now,
		episode.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: episode: %s", shared.ErrNotFound, episode.ID())
	}

	return nil
}

// Delete removes an episode by ID. Cascades take its pending actions with it.
func (r *EpisodeRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM episodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete episode: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: episode: %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all episodes matching the given criteria.
//
// Supported criteria: "subscription_id" (string), "dirty" (bool),
// "played" (bool), "queued" (bool), "queue_dirty" (bool),
// "missing_remote_id" (bool).
func (r *EpisodeRepository) List(criteria map[string]any) ([]*models.Episode, error) {
	query := episodeSelect + ` WHERE 1 = 1`

	args := []any{}

	if subscriptionID, ok := criteria["subscription_id"].(string); ok && subscriptionID != "" {
		query += " AND subscription_id = ?"
		args = append(args, subscriptionID)
	}

	if dirty, ok := criteria["dirty"].(bool); ok {
		query += " AND dirty = ?"
		args = append(args, dirty)
	}

	if played, ok := criteria["played"].(bool); ok {
		query += " AND played = ?"
		args = append(args, played)
	}

	if queued, ok := criteria["queued"].(bool); ok {
		query += " AND queued = ?"
		args = append(args, queued)
	}

	if queueDirty, ok := criteria["queue_dirty"].(bool); ok {
		query += " AND queue_dirty = ?"
		args = append(args, queueDirty)
	}

	if missing, ok := criteria["missing_remote_id"].(bool); ok && missing {
		query += " AND remote_id IS NULL"
	}

	query += " ORDER BY sequence ASC"

	return r.queryEpisodes(query, args...)
}

// ListQueue retrieves queued episodes in queue order.
func (r *EpisodeRepository) ListQueue() ([]*models.Episode, error) {
	query := episodeSelect + ` WHERE queued = 1 ORDER BY queue_position ASC, sequence ASC`
	return r.queryEpisodes(query)
}

func (r *EpisodeRepository) queryEpisodes(query string, args ...any) ([]*models.Episode, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*models.Episode
	for rows.Next() {
		episode, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return episodes, nil
}

const episodeSelect = `
	SELECT id, sequence, subscription_id, guid, title, description, audio_url,
		artwork_url, publish_date, duration, remote_id, position, played,
		last_played, last_synced, dirty, queued, queue_position, queue_dirty,
		created_at, updated_at
	FROM episodes`

// scanOne scans a single row into a [models.Episode]
func (r *EpisodeRepository) scanOne(row *sql.Row) (*models.Episode, error) {
	episode, err := scanEpisode(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: episode", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan episode: %w", err)
	}
	return episode, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Episode]
func (r *EpisodeRepository) scanRow(rows *sql.Rows) (*models.Episode, error) {
	episode, err := scanEpisode(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan episode: %w", err)
	}
	return episode, nil
}

func scanEpisode(scan func(dest ...any) error) (*models.Episode, error) {
	var (
		id             string
		sequence       int
		subscriptionID string
		guid           string
		title          string
		description    string
		audioURL       string
		artworkURL     sql.NullString
		publishDate    sql.NullTime
		duration       int
		remoteID       sql.NullString
		position       int
		played         bool
		lastPlayed     sql.NullTime
		lastSynced     sql.NullTime
		dirty          bool
		queued         bool
		queuePosition  sql.NullInt64
		queueDirty     bool
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := scan(&id, &sequence, &subscriptionID, &guid, &title, &description, &audioURL,
		&artworkURL, &publishDate, &duration, &remoteID, &position, &played,
		&lastPlayed, &lastSynced, &dirty, &queued, &queuePosition, &queueDirty,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	entry := models.FeedEpisode{
		GUID:        guid,
		Title:       title,
		Description: description,
		AudioURL:    audioURL,
		ArtworkURL:  artworkURL.String,
		Duration:    duration,
	}

	episode := models.NewEpisode(sequence, subscriptionID, entry)
	episode.SetID(id)
	episode.SetPosition(position)
	episode.SetPlayed(played)
	episode.SetDirty(dirty)
	episode.SetQueued(queued)
	episode.SetQueueDirty(queueDirty)
	episode.SetCreatedAt(createdAt)
	episode.SetUpdatedAt(updatedAt)
	if publishDate.Valid {
		episode.SetPublishDate(publishDate.Time)
	}
	if remoteID.Valid {
		episode.SetRemoteID(remoteID.String)
	}
	if lastPlayed.Valid {
		episode.SetLastPlayed(&lastPlayed.Time)
	}
	if lastSynced.Valid {
		episode.SetLastSynced(&lastSynced.Time)
	}
	if queuePosition.Valid {
		qp := int(queuePosition.Int64)
		episode.SetQueuePosition(&qp)
	}

	return episode, nil
}
