package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	Store       string
	RedisAddr   string
	// KafkaBrokers is empty when events are not published.
	KafkaBrokers []string

	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	JWTSecret string

	ServiceFeeCents    int64
	SearchCacheTTL     time.Duration
	ReserveMaxAttempts int

	ServiceName    string
	OtelEndpoint   string
	OtelAuthHeader string
	OtelInsecure   bool
	LogLevel       string

	SeedDemo bool
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:       getenv("DATABASE_URL", ""),
		Store:             strings.ToLower(getenv("STORE", StorePostgres)),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		KafkaBrokers:      splitCSV(getenv("KAFKA_BROKERS", "")),
		TemporalHost:      getenv("TEMPORAL_HOST", ""),
		TemporalNamespace: getenv("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue: getenv("TEMPORAL_TASK_QUEUE", "flight-reservation-queue"),
		JWTSecret:         getenv("JWT_SECRET", ""),
		ServiceName:       getenv("SERVICE_NAME", "reservation-api"),
		OtelEndpoint:      getenv("OTEL_ENDPOINT", ""),
		OtelAuthHeader:    getenv("OTEL_AUTH_HEADER", ""),
		LogLevel:          getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ServiceFeeCents, err = strconv.ParseInt(getenv("SERVICE_FEE_CENTS", "4550"), 10, 64); err != nil || cfg.ServiceFeeCents < 0 {
		errs = append(errs, fmt.Errorf("SERVICE_FEE_CENTS must be a non-negative integer"))
	}
	if cfg.SearchCacheTTL, err = time.ParseDuration(getenv("SEARCH_CACHE_TTL", "30s")); err != nil || cfg.SearchCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_CACHE_TTL must be a positive duration"))
	}
	if cfg.ReserveMaxAttempts, err = strconv.Atoi(getenv("RESERVE_MAX_ATTEMPTS", "3")); err != nil || cfg.ReserveMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RESERVE_MAX_ATTEMPTS must be at least 1"))
	}
	if cfg.OtelInsecure, err = strconv.ParseBool(getenv("OTEL_INSECURE", "false")); err != nil {
		errs = append(errs, fmt.Errorf("OTEL_INSECURE must be a boolean"))
	}
	if cfg.SeedDemo, err = strconv.ParseBool(getenv("SEED_DEMO", "false")); err != nil {
		errs = append(errs, fmt.Errorf("SEED_DEMO must be a boolean"))
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required when STORE=postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q", StorePostgres, StoreMemory))
	}

	return cfg, errors.Join(errs...)
}

// ValidateAPI checks the settings only the HTTP server needs.
func (c Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
