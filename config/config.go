package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Driver    DriverConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	List      ListConfig
	Session   SessionConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// DriverConfig holds the automation driver channel configuration
type DriverConfig struct {
	Transport      string        `mapstructure:"transport"` // "file", "redis" or "memory"
	Dir            string        `mapstructure:"dir"`
	RedisURL       string        `mapstructure:"redis_url"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MachineTimeout time.Duration `mapstructure:"machine_timeout"`
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout"`
}

// CatalogConfig holds catalog and ledger store configuration
type CatalogConfig struct {
	Driver         string        `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN            string        `mapstructure:"dsn"`
	ReadOnly       bool          `mapstructure:"read_only"`
	ProductHost    string        `mapstructure:"product_host"`
	LookupCacheTTL time.Duration `mapstructure:"lookup_cache_ttl"`
}

// CacheConfig holds lookup cache configuration
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
	Prefix   string `mapstructure:"prefix"`
}

// ListConfig holds the shopping list source configuration
type ListConfig struct {
	Path string `mapstructure:"path"`
}

// SessionConfig holds shopping session behaviour switches
type SessionConfig struct {
	PostListActions    bool `mapstructure:"post_list_actions"`
	PromptMissingPrice bool `mapstructure:"prompt_missing_price"`
	CleanSearchTerms   bool `mapstructure:"clean_search_terms"`
	DebugMatching      bool `mapstructure:"debug_matching"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the default locations.
func LoadFile(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/grocerybot/")
	}

	// Environment variable settings
	v.SetEnvPrefix("GROCERYBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
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

// loadEnvFile loads a .env file from the working directory if there is one.
// Variables already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Driver defaults
	v.SetDefault("driver.transport", "file")
	v.SetDefault("driver.dir", ".")
	v.SetDefault("driver.redis_url", "")
	v.SetDefault("driver.redis_prefix", "grocerybot:driver:")
	v.SetDefault("driver.poll_interval", "250ms")
	v.SetDefault("driver.machine_timeout", "5m")
	v.SetDefault("driver.ready_timeout", "2m")

	// Catalog defaults
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.dsn", "grocerybot.db")
	v.SetDefault("catalog.read_only", false)
	v.SetDefault("catalog.product_host", "walmart.com")
	v.SetDefault("catalog.lookup_cache_ttl", "10m")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "grocerybot:cache:")

	// List defaults
	v.SetDefault("list.path", "shopping_list.yaml")

	// Session defaults
	v.SetDefault("session.post_list_actions", true)
	v.SetDefault("session.prompt_missing_price", false)
	v.SetDefault("session.clean_search_terms", true)
	v.SetDefault("session.debug_matching", false)

	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.burst", 20)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Driver.Transport {
	case "file":
		if config.Driver.Dir == "" {
			return fmt.Errorf("driver dir is required for the file transport")
		}
	case "redis":
		if config.Driver.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when driver transport is 'redis' (set GROCERYBOT_DRIVER_REDIS_URL)")
		}
	case "memory":
	default:
		return fmt.Errorf("driver transport must be 'file', 'redis' or 'memory', got: %s", config.Driver.Transport)
	}

	if config.Driver.PollInterval <= 0 {
		return fmt.Errorf("driver poll interval must be positive, got: %s", config.Driver.PollInterval)
	}

	if config.Catalog.Driver != "sqlite" && config.Catalog.Driver != "postgres" {
		return fmt.Errorf("catalog driver must be 'sqlite' or 'postgres', got: %s", config.Catalog.Driver)
	}

	if config.Catalog.DSN == "" {
		return fmt.Errorf("catalog DSN is required (set GROCERYBOT_CATALOG_DSN)")
	}

	if config.Catalog.ProductHost == "" {
		return fmt.Errorf("catalog product host is required")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis' (set GROCERYBOT_CACHE_REDIS_URL)")
	}

	if config.List.Path == "" {
		return fmt.Errorf("list path is required (set GROCERYBOT_LIST_PATH)")
	}

	return nil
}
