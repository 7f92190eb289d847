package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Remote   RemoteConfig   `toml:"remote"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Sync     SyncConfig     `toml:"sync"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the loopback callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RemoteConfig contains the default sync backend settings applied on setup.
type RemoteConfig struct {
	Backend string `toml:"backend"`
	BaseURL string `toml:"base_url"`
	Device  string `toml:"device"`
}

// OAuthConfig contains client credentials for the REST backend's login flow.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// SyncConfig contains tuning knobs for reconciliation and feed refresh.
type SyncConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
	PageSize  int     `toml:"page_size"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// PODHAVEN_DB_PATH and PODHAVEN_SERVER_URL override the file's values when set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&config)
	return &config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("PODHAVEN_DB_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("PODHAVEN_SERVER_URL"); v != "" {
		config.Remote.BaseURL = v
	}
}

// Validate checks the loaded configuration for values the runner cannot work around.
func (c *Config) Validate() error {
	switch c.Remote.Backend {
	case "", "gpodder", "podhaven":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Remote.Backend)
	}
	if c.Remote.Backend != "" && c.Remote.BaseURL == "" {
		return fmt.Errorf("%w: remote backend %q has no base_url", ErrInvalidConfig, c.Remote.Backend)
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("%w: sync workers must not be negative", ErrInvalidConfig)
	}
	if c.Sync.RateLimit < 0 {
		return fmt.Errorf("%w: sync rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
