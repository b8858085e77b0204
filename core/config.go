package core

import (
	"fmt"
	"strings"
)

const (
	StateDriverFile     = "file"
	StateDriverSQLite   = "sqlite"
	StateDriverPostgres = "postgres"
	StateDriverRedis    = "redis"

	DefaultSignatureHeader  = "X-Signature"
	DefaultTelegramBaseURL  = "https://api.telegram.org"
	DefaultStateFileName    = "state.json"
	DefaultMaxBodyBytes     = 1 << 20
	DefaultRedisKeyPrefix   = "relay:"
	defaultReadTimeoutSec   = 15
	defaultWriteTimeoutSec  = 15
	defaultIdleTimeoutSec   = 60
	defaultListenHost       = "0.0.0.0"
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultServiceName      = "unifi-relay"
	defaultIngestRoutePath  = "/ingest/unifi"
	defaultHealthRoutePath  = "/healthz"
	defaultMetricsRoutePath = "/metrics"
)

type ServerConfig struct {
	Host            string `koanf:"host" mapstructure:"host"`
	Port            int    `koanf:"port" mapstructure:"port"`
	ReadTimeoutSec  int    `koanf:"read_timeout_sec" mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `koanf:"write_timeout_sec" mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int    `koanf:"idle_timeout_sec" mapstructure:"idle_timeout_sec"`
	MaxBodyBytes    int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	IngestPath      string `koanf:"ingest_path" mapstructure:"ingest_path"`
	HealthPath      string `koanf:"health_path" mapstructure:"health_path"`
	MetricsPath     string `koanf:"metrics_path" mapstructure:"metrics_path"`
}

type AuthConfig struct {
	SharedSecret    string `koanf:"shared_secret" mapstructure:"shared_secret"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
}

type TelegramConfig struct {
	BotToken string `koanf:"bot_token" mapstructure:"bot_token"`
	ChatID   string `koanf:"chat_id" mapstructure:"chat_id"`
	BaseURL  string `koanf:"base_url" mapstructure:"base_url"`
}

type StateConfig struct {
	Driver         string `koanf:"driver" mapstructure:"driver"`
	Dir            string `koanf:"dir" mapstructure:"dir"`
	FileName       string `koanf:"file_name" mapstructure:"file_name"`
	DSN            string `koanf:"dsn" mapstructure:"dsn"`
	RedisURL       string `koanf:"redis_url" mapstructure:"redis_url"`
	RedisKeyPrefix string `koanf:"redis_key_prefix" mapstructure:"redis_key_prefix"`
	CacheTTLSec    int    `koanf:"cache_ttl_sec" mapstructure:"cache_ttl_sec"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Server      ServerConfig   `koanf:"server" mapstructure:"server"`
	Auth        AuthConfig     `koanf:"auth" mapstructure:"auth"`
	Telegram    TelegramConfig `koanf:"telegram" mapstructure:"telegram"`
	State       StateConfig    `koanf:"state" mapstructure:"state"`
	Log         LogConfig      `koanf:"log" mapstructure:"log"`
	Metrics     MetricsConfig  `koanf:"metrics" mapstructure:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		Server: ServerConfig{
			Host:            defaultListenHost,
			ReadTimeoutSec:  defaultReadTimeoutSec,
			WriteTimeoutSec: defaultWriteTimeoutSec,
			IdleTimeoutSec:  defaultIdleTimeoutSec,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			IngestPath:      defaultIngestRoutePath,
			HealthPath:      defaultHealthRoutePath,
			MetricsPath:     defaultMetricsRoutePath,
		},
		Auth: AuthConfig{
			SignatureHeader: DefaultSignatureHeader,
		},
		Telegram: TelegramConfig{
			BaseURL: DefaultTelegramBaseURL,
		},
		State: StateConfig{
			Driver:         StateDriverFile,
			FileName:       DefaultStateFileName,
			RedisKeyPrefix: DefaultRedisKeyPrefix,
		},
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate fails on the first missing required setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.SharedSecret) == "" {
		return fmt.Errorf("core: auth.shared_secret is required")
	}
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("core: telegram.bot_token is required")
	}
	if strings.TrimSpace(c.Telegram.ChatID) == "" {
		return fmt.Errorf("core: telegram.chat_id is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("core: server.port is required (got %d)", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("core: server.max_body_bytes must not be negative")
	}

	switch strings.ToLower(strings.TrimSpace(c.State.Driver)) {
	case "", StateDriverFile:
		if strings.TrimSpace(c.State.Dir) == "" {
			return fmt.Errorf("core: state.dir is required")
		}
	case StateDriverSQLite, StateDriverPostgres:
		if strings.TrimSpace(c.State.DSN) == "" {
			return fmt.Errorf("core: state.dsn is required for driver %q", c.State.Driver)
		}
	case StateDriverRedis:
		if strings.TrimSpace(c.State.RedisURL) == "" {
			return fmt.Errorf("core: state.redis_url is required for driver redis")
		}
	default:
		return fmt.Errorf("core: unsupported state.driver %q", c.State.Driver)
	}
	if c.State.CacheTTLSec < 0 {
		return fmt.Errorf("core: state.cache_ttl_sec must not be negative")
	}
	return nil
}

func (c Config) StateDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.State.Driver))
	if driver == "" {
		return StateDriverFile
	}
	return driver
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(c.Server.Host), c.Server.Port)
}
