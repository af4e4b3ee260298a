package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Storage backend selection: "postgres" or "memory"
	Storage StorageConfig `mapstructure:"storage"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Outbound email webhook configuration
	Email EmailConfig `mapstructure:"email"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// StorageConfig selects the storage backend
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
}

// EmailConfig holds the Make-style webhook delivery channel settings.
// An empty WebhookURL means the channel is unconfigured; code-gated
// flows must fail closed rather than skip delivery.
type EmailConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	AppName        string `mapstructure:"app_name"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	BurstSize      int  `mapstructure:"burst_size"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/healthcard")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "healthcard")
	viper.SetDefault("database.user", "healthcard")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Storage defaults
	viper.SetDefault("storage.backend", "postgres")

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 7*24*3600)
	viper.SetDefault("jwt.issuer", "healthcard-api")

	// Email defaults
	viper.SetDefault("email.timeout_seconds", 10)
	viper.SetDefault("email.app_name", "HealthCard")

	// Rate limiting defaults
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_min", 60)
	viper.SetDefault("rate_limit.burst_size", 10)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with well-known environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if webhookURL := os.Getenv("MAKE_WEBHOOK_URL"); webhookURL != "" {
		config.Email.WebhookURL = strings.TrimSpace(webhookURL)
	}

	if apiKey := os.Getenv("MAKE_WEBHOOK_API_KEY"); apiKey != "" {
		config.Email.APIKey = apiKey
	} else if token := os.Getenv("MAKE_WEBHOOK_TOKEN"); token != "" {
		config.Email.APIKey = token
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid storage backend: %s", config.Storage.Backend)
	}

	if config.Storage.Backend == "postgres" && config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	return nil
}
