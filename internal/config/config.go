package config

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

// Config is the full set of settings for the auth client and its tooling.
type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	BroadcastConfig
	RedisConfig
	MockAPIConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogPretty() bool
}

type RedisConfig interface {
	GetRedisAddr() string
	GetRedisDB() int
}

type mainConfig struct {
	EnvVars
	API
	Session
	Broadcast
	Redis
	MockAPI
}

// EnvVars holds the process level settings.
type EnvVars struct {
	AppName   string `env:"APP_NAME, default=Sakai Auth"`
	Env       string `env:"ENV, default=DEV"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string  { return e.AppName }
func (e EnvVars) GetEnv() string      { return e.Env }
func (e EnvVars) GetLogLevel() string { return e.LogLevel }
func (e EnvVars) GetLogPretty() bool  { return e.LogPretty }

// Redis holds the connection settings shared by the redis storage and broadcast drivers.
type Redis struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB, default=0"`
}

var _ RedisConfig = Redis{}

func (r Redis) GetRedisAddr() string { return r.Addr }
func (r Redis) GetRedisDB() int      { return r.DB }

var _ Config = mainConfig{}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from the given lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg mainConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, errors.Wrap(err, "[config.LoadFrom] envconfig.ProcessWith")
	}
	if cfg.Session.TabID == "" {
		cfg.Session.TabID = uuid.New().String()
	}
	return cfg, nil
}
