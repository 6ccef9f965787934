package config

import (
	"fmt"
	"strings"
	"time"
)

// MockAPIConfig configures the local stand-in for the remote auth API.
type MockAPIConfig interface {
	GetMockAPIPort() string
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetSeedUser() (email, password string)
}

type MockAPI struct {
	Port           string        `env:"MOCK_API_PORT, default=8080"`
	JWTSecret      string        `env:"MOCK_API_JWT_SECRET, default=dev-secret-change-me"`
	AccessTokenTTL time.Duration `env:"MOCK_API_ACCESS_TOKEN_TTL, default=15m"`
	SeedEmail      string        `env:"MOCK_API_SEED_EMAIL, default=admin@sakai.dev"`
	SeedPassword   string        `env:"MOCK_API_SEED_PASSWORD, default=changeme123"`
}

var _ MockAPIConfig = MockAPI{}

// GetMockAPIPort returns the listen address in ":port" form.
func (m MockAPI) GetMockAPIPort() string {
	port := m.Port
	if port != "" && !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (m MockAPI) GetJWTSecret() string             { return m.JWTSecret }
func (m MockAPI) GetAccessTokenTTL() time.Duration { return m.AccessTokenTTL }

func (m MockAPI) GetSeedUser() (email, password string) {
	return m.SeedEmail, m.SeedPassword
}
