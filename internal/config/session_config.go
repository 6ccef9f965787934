package config

import "time"

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

// SessionConfig controls token storage for one tab.
type SessionConfig interface {
	GetTabID() string
	GetRefreshTokenKey() string
	GetRefreshTokenTTL() time.Duration
	GetExpiryBuffer() time.Duration
	GetStorageDriver() string
}

type Session struct {
	TabID           string        `env:"TAB_ID"`
	RefreshTokenKey string        `env:"REFRESH_TOKEN_KEY, default=refresh_token"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=24h"`
	ExpiryBuffer    time.Duration `env:"TOKEN_EXPIRY_BUFFER, default=30s"`
	StorageDriver   string        `env:"STORAGE_DRIVER, default=memory"`
}

var _ SessionConfig = Session{}

func (s Session) GetTabID() string                  { return s.TabID }
func (s Session) GetRefreshTokenKey() string        { return s.RefreshTokenKey }
func (s Session) GetRefreshTokenTTL() time.Duration { return s.RefreshTokenTTL }
func (s Session) GetExpiryBuffer() time.Duration    { return s.ExpiryBuffer }
func (s Session) GetStorageDriver() string          { return s.StorageDriver }
