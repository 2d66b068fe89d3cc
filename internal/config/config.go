package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/subosito/gotenv"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	Env      string `mapstructure:"env"` // local, dev or prod
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"` // public URL used in redirects
}

// DBConfig selects and configures the storage backend.
type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // sqlite database file
	URL    string `mapstructure:"url"`    // postgres DSN
}

// AuthConfig holds the OpenID Connect provider credentials and the
// session signing secret.
type AuthConfig struct {
	Domain        string `mapstructure:"domain"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	CallbackURL   string `mapstructure:"callback_url"`
	SessionSecret string `mapstructure:"session_secret"`
	SessionTTL    string `mapstructure:"session_ttl"` // duration string, e.g., "24h"
}

// IngestConfig controls the background news collector.
type IngestConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseAPI  string `mapstructure:"base_api"`
	Interval string `mapstructure:"interval"` // duration string, e.g., "30m"
	Limit    int    `mapstructure:"limit"`    // stories per collection run
}

// RedisConfig holds redis connection settings. When Addr is empty the
// rate limiter falls back to in-process buckets.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig caps per-client request rates.
type RateLimitConfig struct {
	ReactionPerMinute int `mapstructure:"reaction_per_minute"`
	LoginPerMinute    int `mapstructure:"login_per_minute"`
}

// Config is the top-level configuration structure.
type Config struct {
	App        AppConfig       `mapstructure:"app"`
	Server     ServerConfig    `mapstructure:"server"`
	DB         DBConfig        `mapstructure:"db"`
	Auth       AuthConfig      `mapstructure:"auth"`
	Ingest     IngestConfig    `mapstructure:"ingest"`
	Redis      RedisConfig     `mapstructure:"redis"`
	RateLimits RateLimitConfig `mapstructure:"rate_limits"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "newswire.db"
	}
	if c.Auth.CallbackURL == "" {
		c.Auth.CallbackURL = c.Server.BaseURL + "/callback"
	}
	if c.Auth.SessionTTL == "" {
		c.Auth.SessionTTL = "24h"
	}
	if c.Ingest.BaseAPI == "" {
		c.Ingest.BaseAPI = "https://hacker-news.firebaseio.com/v0"
	}
	if c.Ingest.Interval == "" {
		c.Ingest.Interval = "30m"
	}
	if c.Ingest.Limit == 0 {
		c.Ingest.Limit = 50
	}
	if c.RateLimits.ReactionPerMinute == 0 {
		c.RateLimits.ReactionPerMinute = 30
	}
	if c.RateLimits.LoginPerMinute == 0 {
		c.RateLimits.LoginPerMinute = 10
	}
}

// ApplyEnv overlays NEWSWIRE_* environment variables on top of the
// file-based configuration. Secrets usually arrive this way rather
// than through config files.
func (c *Config) ApplyEnv() {
	if addr := envString("NEWSWIRE_ADDR", ""); addr != "" {
		c.Server.Addr = addr
	} else if port := os.Getenv("PORT"); port != "" && c.Server.Addr == "" {
		c.Server.Addr = ":" + port
	}
	c.Server.BaseURL = envString("NEWSWIRE_BASE_URL", c.Server.BaseURL)
	c.DB.Driver = envString("NEWSWIRE_DB_DRIVER", c.DB.Driver)
	c.DB.Path = envString("NEWSWIRE_DB_PATH", c.DB.Path)
	c.DB.URL = envString("NEWSWIRE_DB_URL", c.DB.URL)
	c.Auth.Domain = envString("NEWSWIRE_AUTH_DOMAIN", c.Auth.Domain)
	c.Auth.ClientID = envString("NEWSWIRE_AUTH_CLIENT_ID", c.Auth.ClientID)
	c.Auth.ClientSecret = envString("NEWSWIRE_AUTH_CLIENT_SECRET", c.Auth.ClientSecret)
	c.Auth.CallbackURL = envString("NEWSWIRE_AUTH_CALLBACK_URL", c.Auth.CallbackURL)
	c.Auth.SessionSecret = envString("NEWSWIRE_SESSION_SECRET", c.Auth.SessionSecret)
	c.Redis.Addr = envString("NEWSWIRE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envString("NEWSWIRE_REDIS_PASSWORD", c.Redis.Password)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SessionTTLDuration parses the configured session lifetime.
func (c AuthConfig) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// IntervalDuration parses the configured collection interval.
func (c IngestConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// LoadDotenv pulls a local .env file into the process environment so
// secrets stay out of checked-in config files.
func LoadDotenv() {
	if err := gotenv.Load(); err != nil {
		slog.Warn("No .env file found, using OS environment")
	}
}
