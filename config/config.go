// Package config provides configuration management for news-cli.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator"
)

// Environment variable names.
const (
	EnvFeedURL      = "NEWS_CLI_FEED_URL"
	EnvFeedFormat   = "NEWS_CLI_FEED_FORMAT"
	EnvFetchTimeout = "NEWS_CLI_FETCH_TIMEOUT"
	EnvRedisURL     = "NEWS_CLI_REDIS_URL"
	EnvTopic        = "NEWS_CLI_TOPIC"
	EnvDBPath       = "NEWS_CLI_DB"
	EnvLogLevel     = "NEWS_CLI_LOG_LEVEL"
	EnvTimezone     = "NEWS_CLI_TZ"
)

// Defaults.
const (
	DefaultFeedURL      = "https://candidate-test-data-moengage.s3.amazonaws.com/Android/news-api-feed/staticResponse.json"
	DefaultFeedFormat   = "json"
	DefaultFetchTimeout = 15 * time.Second
	DefaultRedisURL     = "redis://localhost:6379/0"
	DefaultTopic        = "news"
	DefaultLogLevel     = "info"
	DefaultTimezone     = "Local"
)

var validate = validator.New()

// Config holds the configuration for news-cli.
type Config struct {
	// FeedURL is the news feed endpoint.
	FeedURL string `validate:"required,url"`
	// FeedFormat is json (native feed) or rss (RSS/Atom/JSON Feed).
	FeedFormat string `validate:"required,oneof=json rss atom"`
	// FetchTimeout bounds one feed fetch.
	FetchTimeout time.Duration `validate:"gt=0"`
	// RedisURL locates the pub/sub server carrying push messages.
	RedisURL string `validate:"omitempty,url"`
	// Topic is the push topic to subscribe to.
	Topic string `validate:"required"`
	// DBPath is the archive database. Empty disables the archive.
	DBPath string
	// LogLevel is the logging level.
	LogLevel string `validate:"required,oneof=debug info warn warning error"`
	// Timezone is the IANA zone used for feed timestamps, or "Local".
	Timezone string `validate:"required"`
}

// NewConfig creates a new Config from environment variables.
func NewConfig() *Config {
	timeout, err := time.ParseDuration(getEnvOrDefault(EnvFetchTimeout, DefaultFetchTimeout.String()))
	if err != nil {
		timeout = DefaultFetchTimeout
	}

	return &Config{
		FeedURL:      getEnvOrDefault(EnvFeedURL, DefaultFeedURL),
		FeedFormat:   getEnvOrDefault(EnvFeedFormat, DefaultFeedFormat),
		FetchTimeout: timeout,
		RedisURL:     getEnvOrDefault(EnvRedisURL, DefaultRedisURL),
		Topic:        getEnvOrDefault(EnvTopic, DefaultTopic),
		DBPath:       os.Getenv(EnvDBPath),
		LogLevel:     getEnvOrDefault(EnvLogLevel, DefaultLogLevel),
		Timezone:     getEnvOrDefault(EnvTimezone, DefaultTimezone),
	}
}

// Validate checks field constraints and that the timezone exists.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
