package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
	Training   TrainingConfig   `mapstructure:"training"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Database   DatabaseConfig   `mapstructure:"database"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig selects the zap level and encoder
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// CacheConfig holds prediction cache configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// ArtifactsConfig locates persisted model bundles
type ArtifactsConfig struct {
	Dir          string `mapstructure:"dir"`
	KeepVersions int    `mapstructure:"keep_versions"`
}

// TrainingConfig tunes offline training runs
type TrainingConfig struct {
	MinRows         int                `mapstructure:"min_rows"`
	TestFraction    float64            `mapstructure:"test_fraction"`
	Seed            int64              `mapstructure:"seed"`
	TargetTransform string             `mapstructure:"target_transform"`
	Weights         map[string]float64 `mapstructure:"weights"`
	Source          string             `mapstructure:"source"` // "csv" or "postgres"
	CSVPath         string             `mapstructure:"csv_path"`
	ZScoreThreshold float64            `mapstructure:"zscore_threshold"`
	// PriceBounds overrides the default price window per category name
	PriceBounds map[string]PriceBounds `mapstructure:"price_bounds"`
}

// PriceBounds is a plausible price window used to filter training rows
type PriceBounds struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// PredictionConfig tunes the serving path
type PredictionConfig struct {
	PriceBand float64 `mapstructure:"price_band"`
}

// DatabaseConfig holds the listings database connection
type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	ListingsTable string `mapstructure:"listings_table"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricewise/")

	v.SetEnvPrefix("PRICEWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present.
// Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults registers every key so environment overrides are picked up by Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("artifacts.dir", "./models")
	v.SetDefault("artifacts.keep_versions", 5)

	v.SetDefault("training.min_rows", 50)
	v.SetDefault("training.test_fraction", 0.2)
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.target_transform", "log1p")
	v.SetDefault("training.weights", map[string]float64{})
	v.SetDefault("training.source", "csv")
	v.SetDefault("training.csv_path", "./data/listings.csv")
	v.SetDefault("training.zscore_threshold", 3.0)
	v.SetDefault("training.price_bounds", map[string]interface{}{})

	v.SetDefault("prediction.price_band", 0.10)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.listings_table", "listings")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" {
		if config.Cache.RedisURL == "" {
			return errors.New("redis URL is required when cache type is 'redis'")
		}
		u, err := url.Parse(config.Cache.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("redis URL must use redis:// or rediss://, got: %s", config.Cache.RedisURL)
		}
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got: %s", config.Logging.Format)
	}

	if config.RateLimit.PerIP <= 0 || config.RateLimit.Burst <= 0 {
		return errors.New("rate limit per_ip and burst must be positive")
	}

	if config.Artifacts.Dir == "" {
		return errors.New("artifacts directory is required")
	}

	if tf := config.Training.TestFraction; tf <= 0 || tf >= 1 {
		return fmt.Errorf("training test fraction must be in (0, 1), got: %g", tf)
	}

	switch config.Training.TargetTransform {
	case "none", "log1p":
	default:
		return fmt.Errorf("training target transform must be 'none' or 'log1p', got: %s", config.Training.TargetTransform)
	}

	if len(config.Training.Weights) > 0 {
		var sum float64
		for name, w := range config.Training.Weights {
			if w < 0 {
				return fmt.Errorf("blend weight for %s is negative", name)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("blend weights must sum to 1, got: %g", sum)
		}
	}

	if config.Training.ZScoreThreshold <= 0 {
		return fmt.Errorf("training zscore threshold must be positive, got: %g", config.Training.ZScoreThreshold)
	}

	for name, b := range config.Training.PriceBounds {
		switch name {
		case "mobile", "laptop", "furniture":
		default:
			return fmt.Errorf("price bounds given for unknown category: %s", name)
		}
		if b.Min < 0 || b.Max <= b.Min {
			return fmt.Errorf("price bounds for %s must satisfy 0 <= min < max, got [%g, %g]", name, b.Min, b.Max)
		}
	}

	switch config.Training.Source {
	case "csv":
	case "postgres":
		if config.Database.DSN == "" {
			return errors.New("database DSN is required when training source is 'postgres'")
		}
	default:
		return fmt.Errorf("training source must be 'csv' or 'postgres', got: %s", config.Training.Source)
	}

	if p := config.Prediction.PriceBand; p <= 0 || p >= 1 {
		return fmt.Errorf("prediction price band must be in (0, 1), got: %g", p)
	}

	return nil
}
