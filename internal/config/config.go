// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/weerwacht/weerwacht/internal/weather"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig  `mapstructure:"server"`
	Auth      AuthConfig    `mapstructure:"auth"`
	Scrape    ScrapeConfig  `mapstructure:"scrape"`
	HTTP      HTTPConfig    `mapstructure:"http"`
	MQTT      MQTTConfig    `mapstructure:"mqtt"`
	Logging   LoggingConfig `mapstructure:"logging"`
	Locations []Location    `mapstructure:"locations"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScrapeConfig governs the provider page and refresh cadence bounds.
type ScrapeConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	UserAgent          string `mapstructure:"user_agent"`
	DefaultIntervalSec int    `mapstructure:"default_interval_seconds"`
	MinIntervalSec     int    `mapstructure:"min_interval_seconds"`
}

// HTTPConfig configures the outbound HTTP client and its circuit breaker.
type HTTPConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
	BreakerMinRequests    int `mapstructure:"breaker_min_requests"`
	BreakerCooldownSec    int `mapstructure:"breaker_cooldown_seconds"`
	BreakerFailureRatePct int `mapstructure:"breaker_failure_rate_pct"`
}

// MQTTConfig holds broker settings for entity publication.
type MQTTConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Broker          string `mapstructure:"broker"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	TopicPrefix     string `mapstructure:"topic_prefix"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Location is one configured weather page to scrape.
type Location struct {
	Name            string  `mapstructure:"name"`
	Path            string  `mapstructure:"path"`
	IntervalSeconds int     `mapstructure:"interval_seconds"`
	Latitude        float64 `mapstructure:"latitude"`
	Longitude       float64 `mapstructure:"longitude"`
}

// Slug returns the entity slug derived from the location name.
func (l Location) Slug() string {
	return weather.Slugify(l.Name)
}

// HasCoordinates reports whether lat/lon were configured for this location.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Interval resolves the per-location refresh interval, falling back to the
// scrape defaults and clamping to the configured minimum.
func (c Config) Interval(l Location) time.Duration {
	secs := l.IntervalSeconds
	if secs <= 0 {
		secs = c.Scrape.DefaultIntervalSec
	}
	if secs < c.Scrape.MinIntervalSec {
		secs = c.Scrape.MinIntervalSec
	}
	return time.Duration(secs) * time.Second
}

// Timeout returns the outbound HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEERWACHT")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scrape.base_url", "https://www.weerplaza.nl/")
	v.SetDefault("scrape.user_agent", "weerwacht/0.1 (+https://github.com/weerwacht/weerwacht)")
	v.SetDefault("scrape.default_interval_seconds", 300)
	v.SetDefault("scrape.min_interval_seconds", 60)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.breaker_min_requests", 3)
	v.SetDefault("http.breaker_cooldown_seconds", 120)
	v.SetDefault("http.breaker_failure_rate_pct", 60)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.client_id", "weerwacht")
	v.SetDefault("mqtt.topic_prefix", "weerwacht")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Scrape.BaseURL == "" {
		return fmt.Errorf("scrape.base_url must be set")
	}
	if c.Scrape.MinIntervalSec <= 0 {
		return fmt.Errorf("scrape.min_interval_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when mqtt is enabled")
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("at least one location must be configured")
	}
	seen := make(map[string]string, len(c.Locations))
	for i, loc := range c.Locations {
		if loc.Name == "" {
			return fmt.Errorf("locations[%d].name must be set", i)
		}
		if loc.Path == "" {
			return fmt.Errorf("locations[%d].path must be set", i)
		}
		slug := loc.Slug()
		if slug == "" {
			return fmt.Errorf("locations[%d].name %q yields an empty slug", i, loc.Name)
		}
		if prior, dup := seen[slug]; dup {
			return fmt.Errorf("locations %q and %q collide on slug %q", prior, loc.Name, slug)
		}
		seen[slug] = loc.Name
	}
	return nil
}
