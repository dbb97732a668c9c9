package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
// The env tag names the variable a field is read from; validation errors
// report it.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	APIAddr         string        `env:"API_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// Scheduling and retention.
	FetchInterval   time.Duration `env:"FETCH_INTERVAL" validate:"min=1s"`
	RetentionWindow time.Duration `env:"RETENTION_WINDOW" validate:"min=1m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" validate:"min=1s"`

	// Snapshot storage.
	StoreBackend string `env:"STORE_BACKEND" validate:"oneof=memory sqlite postgres"`
	SQLitePath   string `env:"SQLITE_PATH" validate:"required_if=StoreBackend sqlite"`
	DatabaseURL  string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`

	// Sources.
	MRMSBaseURL        string        `env:"MRMS_BASE_URL" validate:"required,url"`
	ViewerURL          string        `env:"VIEWER_URL" validate:"required,url"`
	NWSBaseURL         string        `env:"NWS_BASE_URL" validate:"required,url"`
	NWSUserAgent       string        `env:"NWS_USER_AGENT" validate:"required"`
	ListingTimeout     time.Duration `env:"LISTING_TIMEOUT" validate:"min=1ms"`
	DownloadTimeout    time.Duration `env:"DOWNLOAD_TIMEOUT" validate:"min=1ms"`
	APITimeout         time.Duration `env:"API_TIMEOUT" validate:"min=1ms"`
	StationConcurrency int           `env:"STATION_CONCURRENCY" validate:"min=1,max=32"`
	NWSRateLimit       float64       `env:"NWS_RATE_LIMIT" validate:"gt=0"`
	ForecastCacheSize  int           `env:"FORECAST_CACHE_SIZE" validate:"min=1"`
	BreakerEnabled     bool          `env:"BREAKER_ENABLED"`
	SyntheticMode      string        `env:"SYNTHETIC_MODE" validate:"oneof=regional stations"`

	// Snapshot publishing (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled bool     `env:"KAFKA_ENABLED"`
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" validate:"required_if=KafkaEnabled true"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		APIAddr:         sharedcfg.EnvOrDefault("API_ADDR", ":8081"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FetchInterval:   p.duration("FETCH_INTERVAL", "10m"),
		RetentionWindow: p.duration("RETENTION_WINDOW", "24h"),
		CleanupInterval: p.duration("CLEANUP_INTERVAL", "1h"),

		StoreBackend: sharedcfg.EnvOrDefault("STORE_BACKEND", BackendSQLite),
		SQLitePath:   sharedcfg.EnvOrDefault("SQLITE_PATH", "radar.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		MRMSBaseURL:        sharedcfg.EnvOrDefault("MRMS_BASE_URL", "https://mrms.ncep.noaa.gov/data/2D/BREF_1HR_MAX/"),
		ViewerURL:          sharedcfg.EnvOrDefault("VIEWER_URL", "https://mrms.ncep.noaa.gov/viewer/api/products"),
		NWSBaseURL:         sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent:       sharedcfg.EnvOrDefault("NWS_USER_AGENT", "storm-radar-service (github.com/couchcryptid/storm-radar-service)"),
		ListingTimeout:     p.duration("LISTING_TIMEOUT", "10s"),
		DownloadTimeout:    p.duration("DOWNLOAD_TIMEOUT", "60s"),
		APITimeout:         p.duration("API_TIMEOUT", "10s"),
		StationConcurrency: p.integer("STATION_CONCURRENCY", 4),
		NWSRateLimit:       p.float("NWS_RATE_LIMIT", 5),
		ForecastCacheSize:  p.integer("FORECAST_CACHE_SIZE", 64),
		BreakerEnabled:     p.boolean("BREAKER_ENABLED", true),
		SyntheticMode:      sharedcfg.EnvOrDefault("SYNTHETIC_MODE", "regional"),

		KafkaEnabled: p.boolean("KAFKA_ENABLED", false),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "radar-snapshots"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

// parser keeps the first conversion error so Load can build the struct in
// one literal.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) duration(key, def string) time.Duration {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
	}
	return b
}
