package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"abitudini/gridrange/internal/core/daterange"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App      AppSettings
	HTTP     HTTPSettings
	Auth     AuthSettings
	Log      LogSettings
	Database DatabaseSettings
	Audit    AuditSettings
	Grid     GridSettings
	HabitAPI HabitAPISettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuditSettings struct {
	Enabled         bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
}

// GridSettings controls how viewport widths map to contribution grid ranges.
type GridSettings struct {
	Bounds           daterange.Bounds
	Timezone         string
	Location         *time.Location
	InitialDelay     time.Duration // Delay before the first grid load
	ResizeDebounce   time.Duration // Quiet period after the last resize before reloading
	FetchConcurrency int           // Maximum concurrent grid fetches against the habit API
	CacheTTL         time.Duration // How long fetched grids are reused; 0 disables the cache
}

// HabitAPISettings points at the habit server that renders contribution grids.
type HabitAPISettings struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	// Missing .env is fine; containers pass plain environment variables.
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "gridrange"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", false),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            strings.TrimSpace(os.Getenv("DB_HOST")),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "gridrange"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Audit: AuditSettings{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", true),
			LogRequestBody:  getEnvAsBool("AUDIT_LOG_REQUEST_BODY", false),
			LogResponseBody: getEnvAsBool("AUDIT_LOG_RESPONSE_BODY", false),
			MaxBodySize:     getEnvAsInt("AUDIT_MAX_BODY_SIZE", 102400),
		},
		Grid: GridSettings{
			Bounds: daterange.Bounds{
				MinWidth:  getEnvAsInt("GRID_MIN_WIDTH", daterange.DefaultBounds.MinWidth),
				MaxWidth:  getEnvAsInt("GRID_MAX_WIDTH", daterange.DefaultBounds.MaxWidth),
				MinMonths: getEnvAsInt("GRID_MIN_MONTHS", daterange.DefaultBounds.MinMonths),
				MaxMonths: getEnvAsInt("GRID_MAX_MONTHS", daterange.DefaultBounds.MaxMonths),
			},
			Timezone:         getEnv("GRID_TIMEZONE", "UTC"),
			InitialDelay:     getEnvAsDuration("GRID_INITIAL_DELAY", 100*time.Millisecond),
			ResizeDebounce:   getEnvAsDuration("GRID_RESIZE_DEBOUNCE", 500*time.Millisecond),
			FetchConcurrency: getEnvAsInt("GRID_FETCH_CONCURRENCY", 8),
			CacheTTL:         getEnvAsDuration("GRID_CACHE_TTL", 30*time.Second),
		},
		HabitAPI: HabitAPISettings{
			BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("HABIT_API_BASE_URL")), "/"),
			Token:   strings.TrimSpace(os.Getenv("HABIT_API_TOKEN")),
			Timeout: getEnvAsDuration("HABIT_API_TIMEOUT", 15*time.Second),

			BreakerFailures: getEnvAsInt("HABIT_API_BREAKER_FAILURES", 5),
			BreakerCooldown: getEnvAsDuration("HABIT_API_BREAKER_COOLDOWN", 30*time.Second),
		},
	}

	if err := cfg.Grid.Bounds.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: GRID bounds: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Grid.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid config: GRID_TIMEZONE %q: %w", cfg.Grid.Timezone, err)
	}
	cfg.Grid.Location = loc

	if cfg.Grid.FetchConcurrency <= 0 {
		return cfg, errors.New("invalid config: GRID_FETCH_CONCURRENCY must be greater than 0")
	}
	if cfg.Grid.CacheTTL < 0 {
		return cfg, errors.New("invalid config: GRID_CACHE_TTL must not be negative")
	}
	if cfg.HabitAPI.BreakerFailures <= 0 {
		return cfg, errors.New("invalid config: HABIT_API_BREAKER_FAILURES must be greater than 0")
	}
	if cfg.Grid.InitialDelay < 0 || cfg.Grid.ResizeDebounce < 0 {
		return cfg, errors.New("invalid config: GRID_INITIAL_DELAY and GRID_RESIZE_DEBOUNCE must not be negative")
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

// Configured reports whether enough connection details exist to try the database.
func (d DatabaseSettings) Configured() bool {
	return d.Host != "" && d.Database != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
