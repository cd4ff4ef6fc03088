package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App           AppConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Booking       BookingConfig
}

type AppConfig struct {
	Name    string
	Port    int
	Timeout time.Duration
}

type StorageConfig struct {
	SQLiteFile    string
	MaxConnection int
}

type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // "json" or "text"
	MetricsEnabled bool
	TracingEnabled bool
	ZipkinEndpoint string
}

type BookingConfig struct {
	HoldTTL                 time.Duration
	RetryMaxAttempts        int
	RetryBackoffMs          int
	WebhookURL              string
	CircuitBreakerThreshold float64
	CircuitBreakerTimeout   time.Duration
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "booking-engine",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			SQLiteFile:    "data/booking.db",
			MaxConnection: 25,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
			TracingEnabled: false,
			ZipkinEndpoint: "http://localhost:9411/api/v2/spans",
		},
		Booking: BookingConfig{
			HoldTTL:                 15 * time.Minute,
			RetryMaxAttempts:        3,
			RetryBackoffMs:          100,
			WebhookURL:              "",
			CircuitBreakerThreshold: 0.5,
			CircuitBreakerTimeout:   10 * time.Second,
		},
	}
}

// LoadConfig loads configuration from YAML file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	// Environment variable overrides
	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	if sqliteFile := os.Getenv("APP_STORAGE_SQLITE_FILE"); sqliteFile != "" {
		cfg.Storage.SQLiteFile = sqliteFile
	}
	if logLevel := os.Getenv("APP_LOG_LEVEL"); logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if holdTTL := os.Getenv("APP_BOOKING_HOLD_TTL"); holdTTL != "" {
		if d, err := time.ParseDuration(holdTTL); err == nil {
			cfg.Booking.HoldTTL = d
		}
	}
	if webhookURL := os.Getenv("APP_BOOKING_WEBHOOK_URL"); webhookURL != "" {
		cfg.Booking.WebhookURL = webhookURL
	}
	if tracingEnabled := os.Getenv("APP_TRACING_ENABLED"); tracingEnabled != "" {
		cfg.Observability.TracingEnabled = tracingEnabled == "true"
	}
	if zipkinEndpoint := os.Getenv("APP_ZIPKIN_ENDPOINT"); zipkinEndpoint != "" {
		cfg.Observability.ZipkinEndpoint = zipkinEndpoint
	}

	return cfg, nil
}
