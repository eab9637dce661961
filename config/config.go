package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Kafka     KafkaConfig
	Refresh   RefreshConfig
	Retailers RetailersConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// DatabaseConfig holds the category and product store configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"` // sqlite://path or a postgres DSN
}

// CacheConfig holds catalog snapshot cache configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig holds event publishing configuration; no brokers disables publishing
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RefreshConfig controls scheduled refreshes in the server
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables the schedule
	OnStart  bool          `mapstructure:"on_start"`
}

// RetailersConfig holds retailer adapter configuration
type RetailersConfig struct {
	Enabled   []string        `mapstructure:"enabled"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit float64         `mapstructure:"rate_limit"` // requests per second per retailer
	Burst     int             `mapstructure:"burst"`
	Parallel  int             `mapstructure:"parallel"`
	AH        AHConfig        `mapstructure:"ah"`
	Jumbo     JumboConfig     `mapstructure:"jumbo"`
	Dekamarkt DekamarktConfig `mapstructure:"dekamarkt"`
}

// AHConfig holds Albert Heijn API configuration
type AHConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// JumboConfig holds Jumbo API configuration
type JumboConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// DekamarktConfig holds Dekamarkt API configuration
type DekamarktConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SiteURL   string `mapstructure:"site_url"`
	APIKey    string `mapstructure:"api_key"`
	StoreID   int    `mapstructure:"store_id"`
	FormulaID int    `mapstructure:"formula_id"`
}

// knownRetailers are the retailer adapters this build ships with
var knownRetailers = map[string]bool{"ah": true, "jumbo": true, "dekamarkt": true}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	// A missing .env file is fine; the environment and config file still apply
	_ = godotenv.Load()

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// Environment variable settings
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Database defaults
	v.SetDefault("database.url", "sqlite://pricelens.db")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "48h")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "catalog.refreshed")

	// Refresh defaults
	v.SetDefault("refresh.interval", "24h")
	v.SetDefault("refresh.on_start", false)

	// Retailer defaults
	v.SetDefault("retailers.enabled", []string{"ah", "jumbo", "dekamarkt"})
	v.SetDefault("retailers.timeout", "30s")
	v.SetDefault("retailers.rate_limit", 10.0)
	v.SetDefault("retailers.burst", 20)
	v.SetDefault("retailers.parallel", 20)
	v.SetDefault("retailers.ah.base_url", "https://www.ah.nl")
	v.SetDefault("retailers.jumbo.base_url", "https://www.jumbo.com")
	v.SetDefault("retailers.dekamarkt.base_url", "https://api.dekamarkt.nl/v1")
	v.SetDefault("retailers.dekamarkt.site_url", "https://www.dekamarkt.nl")
	v.SetDefault("retailers.dekamarkt.api_key", "6d3a42a3-6d93-4f98-838d-bcc0ab2307fd")
	v.SetDefault("retailers.dekamarkt.store_id", 283)
	v.SetDefault("retailers.dekamarkt.formula_id", 1)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Log.Format != "json" && config.Log.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text', got: %s", config.Log.Format)
	}

	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required (set PRICELENS_DATABASE_URL)")
	}

	if len(config.Retailers.Enabled) == 0 {
		return fmt.Errorf("at least one retailer must be enabled")
	}
	for _, name := range config.Retailers.Enabled {
		if !knownRetailers[name] {
			return fmt.Errorf("unknown retailer %q", name)
		}
	}

	if config.Retailers.Parallel < 1 {
		return fmt.Errorf("retailers.parallel must be at least 1, got: %d", config.Retailers.Parallel)
	}

	if config.Retailers.RateLimit <= 0 {
		return fmt.Errorf("retailers.rate_limit must be positive, got: %v", config.Retailers.RateLimit)
	}

	if len(config.Kafka.Brokers) > 0 && config.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are configured")
	}

	return nil
}
