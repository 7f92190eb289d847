package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
)

// ServerConfigRepository persists the singleton [models.ServerConfig] row.
//
// Same singleton discipline as [SyncStateRepository]: one row keyed to id 1,
// created on first access inside the reading transaction.
type ServerConfigRepository struct {
	db *sql.DB
}

// NewServerConfigRepository creates a new ServerConfigRepository with the given database connection
func NewServerConfigRepository(db *sql.DB) *ServerConfigRepository {
	return &ServerConfigRepository{db: db}
}

// GetOrCreate fetches the singleton config, creating an empty row if absent.
func (r *ServerConfigRepository) GetOrCreate() (*models.ServerConfig, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT OR IGNORE INTO server_config (id) VALUES (1)")
	if err != nil {
		return nil, fmt.Errorf("failed to seed server config: %w", err)
	}

	query := `
		SELECT backend, base_url, username, device_id, token, authenticated, updated_at
		FROM server_config
		WHERE id = 1
	`

	var (
		backend       string
		baseURL       string
		username      string
		deviceID      string
		token         string
		authenticated bool
		updatedAt     time.Time
	)

	err = tx.QueryRow(query).Scan(&backend, &baseURL, &username, &deviceID, &token, &authenticated, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan server config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit server config transaction: %w", err)
	}

	config := models.NewServerConfig(models.Backend(backend), baseURL, deviceID)
	config.SetUpdatedAt(updatedAt)
	if authenticated {
		config.SetSession(username, token)
	}

	return config, nil
}

// Save persists the singleton config.
func (r *ServerConfigRepository) Save(config *models.ServerConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	config.SetUpdatedAt(now)

	query := `
		UPDATE server_config
		SET backend = ?, base_url = ?, username = ?, device_id = ?,
			token = ?, authenticated = ?, updated_at = ?
		WHERE id = 1
	`

	result, err := r.db.Exec(query,
		string(config.Backend()),
		config.BaseURL(),
		config.Username(),
		config.DeviceID(),
		config.Token(),
		config.Authenticated(),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save server config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("server config row missing, run GetOrCreate first")
	}

	return nil
}
