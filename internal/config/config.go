package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	CMCAPIKey       string `env:"CMC_API_KEY"`
	CMCBaseURL      string `env:"CMC_BASE_URL" envDefault:"https://pro-api.coinmarketcap.com"`
	CMCKeyHeader    string `env:"CMC_API_KEY_HEADER" envDefault:"X-CMC_PRO_API_KEY"`
	Symbol          string `env:"SYMBOL" envDefault:"WBTC"`
	Convert         string `env:"CONVERT" envDefault:"USDC"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  int    `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec  int    `env:"REQUESTS_PER_SEC" envDefault:"5"`
	MaxRetries      int    `env:"MAX_RETRIES" envDefault:"0"`
	RetryIntervalMs int    `env:"RETRY_INTERVAL_MS" envDefault:"500"`
	SinkTimeout     int    `env:"SINK_TIMEOUT" envDefault:"10"` // seconds

	Database DatabaseConfig
	Telegram TelegramConfig
}

// DatabaseConfig holds PostgreSQL settings for the audit store.
// The store is disabled when Host is empty.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Enabled reports whether an audit database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// TelegramConfig holds settings for outcome notifications.
// Notifications are disabled when BotToken is empty.
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `env:"TELEGRAM_CHAT_ID"`
}

// Enabled reports whether notifications are configured
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// SinkSetupTimeout bounds connecting to the audit store and Telegram
func (c *Config) SinkSetupTimeout() time.Duration {
	if c.SinkTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SinkTimeout) * time.Second
}

// Timeout returns the request timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// RetryInterval returns the initial backoff interval as a duration
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMs) * time.Millisecond
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	return FromEnv(), nil
}

// FromEnv reads the configuration from the current environment
func FromEnv() *Config {
	var cfg Config

	cfg.CMCAPIKey = os.Getenv("CMC_API_KEY")
	cfg.CMCBaseURL = getEnvWithDefault("CMC_BASE_URL", "https://pro-api.coinmarketcap.com")
	cfg.CMCKeyHeader = getEnvWithDefault("CMC_API_KEY_HEADER", "X-CMC_PRO_API_KEY")
	cfg.Symbol = getEnvWithDefault("SYMBOL", "WBTC")
	cfg.Convert = getEnvWithDefault("CONVERT", "USDC")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)
	cfg.MaxRetries = getEnvIntWithDefault("MAX_RETRIES", 0)
	cfg.RetryIntervalMs = getEnvIntWithDefault("RETRY_INTERVAL_MS", 500)
	cfg.SinkTimeout = getEnvIntWithDefault("SINK_TIMEOUT", 10)

	cfg.Database = DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	cfg.Telegram = TelegramConfig{
		BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID:   getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),
	}

	return &cfg
}

// Validate checks the settings the execution phase cannot run without
func (c *Config) Validate() error {
	var errs []error

	if c.CMCAPIKey == "" {
		errs = append(errs, errors.New("CMC_API_KEY is not set"))
	}
	if c.Symbol == "" {
		errs = append(errs, errors.New("SYMBOL must not be empty"))
	}
	if c.Convert == "" {
		errs = append(errs, errors.New("CONVERT must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout))
	}
	if c.RequestsPerSec <= 0 {
		errs = append(errs, fmt.Errorf("REQUESTS_PER_SEC must be positive, got %d", c.RequestsPerSec))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set"))
	}

	return errors.Join(errs...)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
