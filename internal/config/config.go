// Package config loads and validates agent configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all agent configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	API           APIConfig           `mapstructure:"api"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	State         StateConfig         `mapstructure:"state"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig controls the local view API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// APIConfig points the agent at the remote progress store.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SessionCookie string        `mapstructure:"session_cookie"`
	SessionToken  string        `mapstructure:"session_token"`
	UserAgent     string        `mapstructure:"user_agent"`
	MaxRPS        float64       `mapstructure:"max_rps"`
	Burst         int           `mapstructure:"burst"`
}

// SyncConfig tunes the debounce, timeouts and cache lifetimes of the core.
type SyncConfig struct {
	Debounce      time.Duration `mapstructure:"debounce"`
	FlushTimeout  time.Duration `mapstructure:"flush_timeout"`
	ProgressTTL   time.Duration `mapstructure:"progress_ttl"`
	StatsTTL      time.Duration `mapstructure:"stats_ttl"`
	BeaconTimeout time.Duration `mapstructure:"beacon_timeout"`
}

// RetryConfig configures automatic flush retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CatalogConfig locates the declared goal counts. Watch reloads the file
// when it changes.
type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// StateConfig locates the on-device state directory.
type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

// NotificationsConfig bounds the notice history served to the view.
type NotificationsConfig struct {
	History int `mapstructure:"history"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STUDYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7420)
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.session_cookie", "session")
	v.SetDefault("api.session_token", "")
	v.SetDefault("api.user_agent", "studysync/0.1")
	v.SetDefault("api.max_rps", 5.0)
	v.SetDefault("api.burst", 5)
	v.SetDefault("sync.debounce", "3s")
	v.SetDefault("sync.flush_timeout", "10s")
	v.SetDefault("sync.progress_ttl", "60s")
	v.SetDefault("sync.stats_ttl", "30s")
	v.SetDefault("sync.beacon_timeout", "5s")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.watch", true)
	v.SetDefault("state.dir", ".studysync")
	v.SetDefault("notifications.history", 50)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.MaxRPS < 0 {
		return fmt.Errorf("api.max_rps must be >= 0")
	}
	if c.API.SessionToken != "" && c.API.SessionCookie == "" {
		return fmt.Errorf("api.session_cookie must be set when a session token is configured")
	}
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be > 0")
	}
	if c.Sync.FlushTimeout <= 0 {
		return fmt.Errorf("sync.flush_timeout must be > 0")
	}
	if c.Sync.ProgressTTL <= 0 || c.Sync.StatsTTL <= 0 {
		return fmt.Errorf("sync cache TTLs must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay must be >= retry.base_delay")
	}
	if strings.TrimSpace(c.State.Dir) == "" {
		return fmt.Errorf("state.dir is required")
	}
	return nil
}
