package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap/zapcore"

	"github.com/leafsii/appconfig/pkg/kv"
)

type Config struct {
	Env      string   `mapstructure:"APPCONFIG_ENV"`
	HTTPAddr string   `mapstructure:"APPCONFIG_HTTP_ADDR"`
	LogLevel string   `mapstructure:"APPCONFIG_LOG_LEVEL"`
	EnvFiles []string `mapstructure:"APPCONFIG_ENV_FILES"`

	Remote   RemoteConfig   `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type RemoteConfig struct {
	// Backend is "redis", "memory" or "none".
	Backend         string        `mapstructure:"APPCONFIG_REMOTE_BACKEND"`
	RedisURL        string        `mapstructure:"APPCONFIG_REDIS_URL"`
	Host            string        `mapstructure:"APPCONFIG_REDIS_HOST"`
	Port            int           `mapstructure:"APPCONFIG_REDIS_PORT"`
	Password        string        `mapstructure:"APPCONFIG_REDIS_PASSWORD"`
	DB              int           `mapstructure:"APPCONFIG_REDIS_DB"`
	ProbeTimeout    time.Duration `mapstructure:"APPCONFIG_REMOTE_PROBE_TIMEOUT"`
	JanitorInterval time.Duration `mapstructure:"APPCONFIG_JANITOR_INTERVAL"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"APPCONFIG_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"APPCONFIG_CORS_ALLOWED_ORIGINS"`
}

// Enabled reports whether a remote store should be connected. A redis
// backend needs a host or URL; without one remote items are unavailable.
func (r RemoteConfig) Enabled() bool {
	switch r.Backend {
	case string(kv.BackendMemory):
		return true
	case string(kv.BackendRedis):
		return r.RedisURL != "" || r.Host != ""
	default:
		return false
	}
}

// KV converts the settings into a kv.Config.
func (r RemoteConfig) KV() kv.Config {
	return kv.Config{
		Backend:             kv.Backend(r.Backend),
		RedisURL:            r.RedisURL,
		Host:                r.Host,
		Port:                r.Port,
		Password:            r.Password,
		DB:                  r.DB,
		StartupProbeTimeout: r.ProbeTimeout,
		JanitorInterval:     r.JanitorInterval,
	}
}

func loadDotEnvFiles() {
	for _, path := range []string{".env", ".env.local"} {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			_ = gotenv.Load(abs) // variables already set take precedence
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APPCONFIG_ENV", "dev")
	v.SetDefault("APPCONFIG_HTTP_ADDR", ":8080")
	v.SetDefault("APPCONFIG_LOG_LEVEL", "")
	v.SetDefault("APPCONFIG_ENV_FILES", "")
	v.SetDefault("APPCONFIG_REMOTE_BACKEND", string(kv.BackendRedis))
	v.SetDefault("APPCONFIG_REDIS_URL", "")
	v.SetDefault("APPCONFIG_REDIS_HOST", "")
	v.SetDefault("APPCONFIG_REDIS_PORT", kv.DefaultRedisPort)
	v.SetDefault("APPCONFIG_REDIS_PASSWORD", "")
	v.SetDefault("APPCONFIG_REDIS_DB", 0)
	v.SetDefault("APPCONFIG_REMOTE_PROBE_TIMEOUT", "5s")
	v.SetDefault("APPCONFIG_JANITOR_INTERVAL", "1m")
	v.SetDefault("APPCONFIG_RATE_LIMIT_RPM", 600)
	v.SetDefault("APPCONFIG_CORS_ALLOWED_ORIGINS", "*")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads .env files, then APPCONFIG_* variables, into a Config using the
// global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance, e.g. one with CLI
// flags bound to it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	loadDotEnvFiles()

	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Handle array parsing for comma-separated values
	for _, key := range []string{"APPCONFIG_CORS_ALLOWED_ORIGINS", "APPCONFIG_ENV_FILES"} {
		if raw, ok := v.Get(key).(string); ok {
			v.Set(key, splitList(raw))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Remote.Backend = strings.ToLower(strings.TrimSpace(cfg.Remote.Backend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "staging", "prod":
	default:
		return fmt.Errorf("invalid APPCONFIG_ENV %q (must be dev, staging, or prod)", c.Env)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("APPCONFIG_HTTP_ADDR is required")
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid APPCONFIG_LOG_LEVEL: %w", err)
		}
	}
	if c.Remote.Backend != "none" {
		if _, err := kv.ParseBackend(c.Remote.Backend); err != nil {
			return fmt.Errorf("invalid APPCONFIG_REMOTE_BACKEND: %w", err)
		}
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("invalid APPCONFIG_REDIS_PORT %d", c.Remote.Port)
	}
	if c.Remote.DB < 0 {
		return fmt.Errorf("invalid APPCONFIG_REDIS_DB %d", c.Remote.DB)
	}
	if c.Security.RateLimitRPM < 0 {
		return fmt.Errorf("APPCONFIG_RATE_LIMIT_RPM must not be negative")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
