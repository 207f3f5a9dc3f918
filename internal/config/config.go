package config

import (
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/config"
	"github.com/go-playground/validator/v10"
)

// Run store backends.
const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

// Sample sources.
const (
	SourcePush  = "push"
	SourceKafka = "kafka"
)

// ServiceConfig holds all configuration for the tracking service.
type ServiceConfig struct {
	Port           string `validate:"required"`
	AppEnv         string `validate:"required,oneof=development staging production"`
	Store          string `validate:"oneof=postgres bolt"`
	BoltPath       string `validate:"required_if=Store bolt"`
	MigrationsPath string `validate:"required"`
	DBConfig       config.DatabaseConfig
	KafkaConfig    config.KafkaConfig
	RedisConfig    config.RedisConfig

	SampleSource       string `validate:"oneof=push kafka"`
	EventsEnabled      bool
	LocationAuthorized bool
	MinInterval        time.Duration `validate:"gte=0"`
	MinDistanceMeters  float64       `validate:"gte=0"`
	FirstFixTimeout    time.Duration `validate:"gte=0"`
}

// Load reads configuration from TRACKING_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("TRACKING")
	if err != nil {
		return nil, err
	}

	v.SetDefault("DB_NAME", "kilat_tracking")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("BOLT_PATH", "tracking.db")
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("SAMPLE_SOURCE", SourcePush)
	v.SetDefault("EVENTS_ENABLED", true)
	v.SetDefault("LOCATION_AUTHORIZED", true)
	v.SetDefault("MIN_DISTANCE_METERS", session.DefaultMinDistanceMeters)

	cfg := &ServiceConfig{
		Port:               config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:             config.GetAppEnv(v),
		Store:              v.GetString("STORE"),
		BoltPath:           v.GetString("BOLT_PATH"),
		MigrationsPath:     v.GetString("MIGRATIONS_PATH"),
		DBConfig:           config.LoadDatabaseConfig(v, "DB_NAME"),
		KafkaConfig:        config.LoadKafkaConfig(v),
		RedisConfig:        config.LoadRedisConfig(v),
		SampleSource:       v.GetString("SAMPLE_SOURCE"),
		EventsEnabled:      v.GetBool("EVENTS_ENABLED"),
		LocationAuthorized: v.GetBool("LOCATION_AUTHORIZED"),
		MinInterval:        config.GetDuration(v, "MIN_INTERVAL", session.DefaultMinInterval),
		MinDistanceMeters:  v.GetFloat64("MIN_DISTANCE_METERS"),
		FirstFixTimeout:    config.GetDuration(v, "FIRST_FIX_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *ServiceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid tracking configuration: %w", err)
	}
	return nil
}

// SubscribeOptions returns the sample delivery thresholds.
func (c *ServiceConfig) SubscribeOptions() session.SubscribeOptions {
	return session.SubscribeOptions{
		MinInterval:       c.MinInterval,
		MinDistanceMeters: c.MinDistanceMeters,
	}
}

// KafkaGroupID returns the consumer group for the location sample source.
func (c *ServiceConfig) KafkaGroupID() string {
	return c.KafkaConfig.GroupPrefix + "service-tracking"
}
