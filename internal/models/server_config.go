package models

import (
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// Backend names a remote protocol implementation.
type Backend string

const (
	BackendGPodder  Backend = "gpodder"
	BackendPodhaven Backend = "podhaven"
)

// ServerConfig is the singleton remote backend record: which protocol to
// speak, where, and the current session. Written by login/logout flows,
// read-only to the sync engine.
type ServerConfig struct {
	backend       Backend
	baseURL       string
	username      string
	deviceID      string
	token         string
	authenticated bool
	updatedAt     time.Time
}

// NewServerConfig creates an unauthenticated backend record.
func NewServerConfig(backend Backend, baseURL, deviceID string) *ServerConfig {
	return &ServerConfig{
		backend:   backend,
		baseURL:   baseURL,
		deviceID:  deviceID,
		updatedAt: time.Now(),
	}
}

func (c *ServerConfig) Backend() Backend     { return c.backend }
func (c *ServerConfig) BaseURL() string      { return c.baseURL }
func (c *ServerConfig) Username() string     { return c.username }
func (c *ServerConfig) DeviceID() string     { return c.deviceID }
func (c *ServerConfig) Token() string        { return c.token }
func (c *ServerConfig) Authenticated() bool  { return c.authenticated }
func (c *ServerConfig) UpdatedAt() time.Time { return c.updatedAt }

func (c *ServerConfig) SetBackend(b Backend)      { c.backend = b }
func (c *ServerConfig) SetBaseURL(u string)       { c.baseURL = u }
func (c *ServerConfig) SetDeviceID(id string)     { c.deviceID = id }
func (c *ServerConfig) SetUpdatedAt(t time.Time)  { c.updatedAt = t }

// SetSession stores a confirmed login.
func (c *ServerConfig) SetSession(username, token string) {
	c.username = username
	c.token = token
	c.authenticated = true
}

// ClearSession drops the stored credentials on logout.
func (c *ServerConfig) ClearSession() {
	c.username = ""
	c.token = ""
	c.authenticated = false
}

// Validate checks the backend name and address.
func (c *ServerConfig) Validate() error {
	switch c.backend {
	case "", BackendGPodder, BackendPodhaven:
	default:
		return fmt.Errorf("%w: unknown backend %q", shared.ErrValidation, c.backend)
	}
	if c.backend != "" && c.baseURL == "" {
		return fmt.Errorf("%w: backend %q requires a base URL", shared.ErrValidation, c.backend)
	}
	return nil
}
