package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr      string        `mapstructure:"HTTP_ADDR"`
	DBURL         string        `mapstructure:"DB_URL"`
	GithubBaseURL string        `mapstructure:"GITHUB_BASE_URL"`

	// Caching and retention policy.
	RepoCacheTTL   time.Duration `mapstructure:"REPO_CACHE_TTL"`
	CommitCacheTTL time.Duration `mapstructure:"COMMIT_CACHE_TTL"`
	RetentionDays  int           `mapstructure:"RETENTION_DAYS"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`

	// Outbound call behavior.
	GithubTimeout       time.Duration `mapstructure:"GITHUB_TIMEOUT"`
	GithubCommitTimeout time.Duration `mapstructure:"GITHUB_COMMIT_TIMEOUT"`
	GithubRateLimit     int           `mapstructure:"GITHUB_RATE_LIMIT"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("GITHUB_BASE_URL", "https://api.github.com")
	viper.SetDefault("REPO_CACHE_TTL", "1h")
	viper.SetDefault("COMMIT_CACHE_TTL", "30m")
	viper.SetDefault("RETENTION_DAYS", 30)
	viper.SetDefault("SWEEP_INTERVAL", "24h")
	viper.SetDefault("GITHUB_TIMEOUT", "10s")
	viper.SetDefault("GITHUB_COMMIT_TIMEOUT", "15s")
	viper.SetDefault("GITHUB_RATE_LIMIT", 10)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.RetentionDays <= 0 {
		return nil, errors.New("RETENTION_DAYS must be a positive number of days")
	}
	if cfg.GithubRateLimit <= 0 {
		return nil, errors.New("GITHUB_RATE_LIMIT must be a positive requests-per-second value")
	}

	return &cfg, nil
}
