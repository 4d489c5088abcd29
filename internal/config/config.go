// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-content/internal/model"
)

// MinWebhookSecretLength is the shortest webhook signing secret accepted in production.
const MinWebhookSecretLength = 16

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver   string `env:"OCMS_DB_DRIVER" envDefault:"sqlite"`
	DBPath     string `env:"OCMS_DB_PATH" envDefault:"./data/ocms-content.db"` // sqlite file or MySQL DSN
	Env        string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel   string `env:"OCMS_LOG_LEVEL" envDefault:"info"`
	ServerHost string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`

	// Cache configuration
	RedisURL     string `env:"OCMS_REDIS_URL"`                         // Redis when set, memory otherwise
	CachePrefix  string `env:"OCMS_CACHE_PREFIX" envDefault:"ocms:"`   // Redis key prefix
	CacheTTL     int    `env:"OCMS_CACHE_TTL" envDefault:"300"`        // seconds
	CacheMaxSize int    `env:"OCMS_CACHE_MAX_SIZE" envDefault:"10000"` // memory cache entries

	// Content subsystem
	ConflictThreshold    int    `env:"OCMS_CONFLICT_THRESHOLD" envDefault:"50"`
	ConflictPreviewLines int    `env:"OCMS_CONFLICT_PREVIEW_LINES" envDefault:"10"`
	VersionCodec         string `env:"OCMS_VERSION_CODEC" envDefault:"zstd"`
	SanitizeBodies       bool   `env:"OCMS_SANITIZE_BODIES" envDefault:"false"`

	// Maintenance
	VersionRetention   int    `env:"OCMS_VERSION_RETENTION" envDefault:"50"`
	PruneSchedule      string `env:"OCMS_PRUNE_SCHEDULE" envDefault:"@daily"`
	EventRetentionDays int    `env:"OCMS_EVENT_RETENTION_DAYS" envDefault:"90"`

	// Webhooks
	WebhookURLs    []string `env:"OCMS_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret  string   `env:"OCMS_WEBHOOK_SECRET"`
	WebhookWorkers int      `env:"OCMS_WEBHOOK_WORKERS" envDefault:"3"`
	WebhookRate    float64  `env:"OCMS_WEBHOOK_RATE" envDefault:"5"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// WebhooksEnabled returns true if at least one webhook endpoint is configured.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// CacheTTLDuration returns CacheTTL as a duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// EventRetention returns the audit event purge age.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level. Load guarantees it is valid.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom is Load over an explicit environment instead of the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("OCMS_DB_DRIVER must be sqlite or mysql, got %q", c.DBDriver)
	}
	if c.DBPath == "" {
		return fmt.Errorf("OCMS_DB_PATH must not be empty")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("OCMS_LOG_LEVEL: %w", err)
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("OCMS_SERVER_PORT out of range: %d", c.ServerPort)
	}

	if c.CacheTTL < 0 || c.CacheMaxSize < 0 {
		return fmt.Errorf("OCMS_CACHE_TTL and OCMS_CACHE_MAX_SIZE must not be negative")
	}

	if c.ConflictThreshold < 0 {
		return fmt.Errorf("OCMS_CONFLICT_THRESHOLD must not be negative, got %d", c.ConflictThreshold)
	}
	if c.ConflictPreviewLines < 0 {
		return fmt.Errorf("OCMS_CONFLICT_PREVIEW_LINES must not be negative, got %d", c.ConflictPreviewLines)
	}
	switch model.Encoding(c.VersionCodec) {
	case model.EncodingNone, model.EncodingZstd, model.EncodingGzip:
	default:
		return fmt.Errorf("OCMS_VERSION_CODEC must be none, zstd or gzip, got %q", c.VersionCodec)
	}

	if c.VersionRetention < 0 {
		return fmt.Errorf("OCMS_VERSION_RETENTION must not be negative, got %d", c.VersionRetention)
	}
	if c.EventRetentionDays < 0 {
		return fmt.Errorf("OCMS_EVENT_RETENTION_DAYS must not be negative, got %d", c.EventRetentionDays)
	}
	if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
		return fmt.Errorf("OCMS_PRUNE_SCHEDULE: %w", err)
	}

	return c.validateWebhooks()
}

func (c *Config) validateWebhooks() error {
	if c.WebhookWorkers < 1 {
		return fmt.Errorf("OCMS_WEBHOOK_WORKERS must be at least 1, got %d", c.WebhookWorkers)
	}
	if c.WebhookRate < 0 {
		return fmt.Errorf("OCMS_WEBHOOK_RATE must not be negative")
	}

	urls := c.WebhookURLs[:0]
	for _, raw := range c.WebhookURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("OCMS_WEBHOOK_URLS: %q is not an http(s) URL", raw)
		}
		urls = append(urls, raw)
	}
	c.WebhookURLs = urls

	if !c.WebhooksEnabled() || c.IsDevelopment() {
		return nil
	}
	if len(c.WebhookSecret) < MinWebhookSecretLength {
		return fmt.Errorf("OCMS_WEBHOOK_SECRET must be at least %d bytes when webhooks are enabled; "+
			"generate one with: openssl rand -base64 32", MinWebhookSecretLength)
	}
	if !hasMinimumEntropy(c.WebhookSecret) {
		slog.Warn("OCMS_WEBHOOK_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
