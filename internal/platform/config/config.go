package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	ProviderRedis = "redis"
	ProviderAMQP  = "amqp"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`

	Provider string `env:"PROVIDER" default:"redis"`
	RedisURL string `env:"REDIS_URL"`
	AMQPURL  string `env:"AMQP_URL"`

	// Fan signals out through redis so several instances share subscribers
	WebSocketRedisBroker bool `env:"WEBSOCKET_REDIS_BROKER" default:"false"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"20"`

	// Initial session settings
	LocationAccuracy       string  `env:"LOCATION_ACCURACY" default:"best"`
	LocationUpdateInterval int     `env:"LOCATION_UPDATE_INTERVAL" default:"1"`
	LocationMaxWait        int     `env:"LOCATION_MAX_WAIT" default:"1"`
	LocationDistanceFilter float64 `env:"LOCATION_DISTANCE_FILTER" default:"0"`
	LocationReturnStrings  bool    `env:"LOCATION_RETURN_STRINGS" default:"true"`
	LocationFailureTimeout int     `env:"LOCATION_FAILURE_TIMEOUT" default:"20"`
	LocationAutoCheck      bool    `env:"LOCATION_AUTO_CHECK" default:"false"`
	LocationDebugLog       bool    `env:"LOCATION_DEBUG_LOG" default:"false"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Settings builds the initial session settings.
func (c *Config) Settings() (domain.Settings, error) {
	accuracy, err := domain.ParseAccuracy(c.LocationAccuracy)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("LOCATION_ACCURACY: %w", err)
	}

	s := domain.Settings{
		Accuracy:                accuracy,
		UpdateIntervalSeconds:   c.LocationUpdateInterval,
		MaxWaitSeconds:          c.LocationMaxWait,
		DistanceFilterMeters:    c.LocationDistanceFilter,
		ReturnStringCoordinates: c.LocationReturnStrings,
		FailureTimeoutSeconds:   c.LocationFailureTimeout,
		AutoCheckCapability:     c.LocationAutoCheck,
		DebugLogEnabled:         c.LocationDebugLog,
	}
	if err := s.Validate(); err != nil {
		return domain.Settings{}, fmt.Errorf("invalid location settings: %w", err)
	}
	return s, nil
}

func validate(cfg *Config) error {
	if !slices.Contains([]string{ProviderRedis, ProviderAMQP}, cfg.Provider) {
		return fmt.Errorf("PROVIDER must be %q or %q, got %q", ProviderRedis, ProviderAMQP, cfg.Provider)
	}

	// Permissions always live in redis; the amqp provider only replaces the location transport
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if cfg.Provider == ProviderAMQP && cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required when PROVIDER is amqp")
	}

	if cfg.RateLimitPerSecond <= 0 {
		return errors.New("RATE_LIMIT_PER_SECOND must be positive")
	}
	if cfg.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_BURST must be at least 1")
	}

	if _, err := cfg.Settings(); err != nil {
		return err
	}

	return nil
}
