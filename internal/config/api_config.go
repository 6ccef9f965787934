package config

import "time"

// APIConfig describes how the gateway reaches the remote API.
type APIConfig interface {
	GetBaseURL() string
	GetVersion() string
	GetTimeout() time.Duration
	GetRetryAttempts() int
	GetRetryDelay() time.Duration
	GetDebug() bool
}

type API struct {
	BaseURL       string        `env:"API_BASE_URL, default=http://localhost:8080/api"`
	Version       string        `env:"API_VERSION, default=v1"`
	Timeout       time.Duration `env:"API_TIMEOUT, default=30s"`
	RetryAttempts int           `env:"API_RETRY_ATTEMPTS, default=3"`
	RetryDelay    time.Duration `env:"API_RETRY_DELAY, default=1s"`
	Debug         bool          `env:"API_DEBUG, default=false"`
}

var _ APIConfig = API{}

func (a API) GetBaseURL() string           { return a.BaseURL }
func (a API) GetVersion() string           { return a.Version }
func (a API) GetTimeout() time.Duration    { return a.Timeout }
func (a API) GetRetryAttempts() int        { return a.RetryAttempts }
func (a API) GetRetryDelay() time.Duration { return a.RetryDelay }
func (a API) GetDebug() bool               { return a.Debug }
