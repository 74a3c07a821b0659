package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string
	LogLevel        slog.Level
	StoreDriver     string
	SQLitePath      string
	DatabaseURL     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	AuthMode        string
	AuthAPIKey      string
	AuthBearerToken string
	JWTSecret       string
	TraceExporter   string
	ServiceName     string
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        slog.LevelInfo,
		StoreDriver:     "sqlite",
		SQLitePath:      "data/tasks.db",
		RequestTimeout:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		RateLimitBurst:  10,
		AuthMode:        "none",
		TraceExporter:   "none",
		ServiceName:     "tasks-api",
	}
}

// Load reads an optional .env file from the working directory and then
// the process environment. Variables already set win over .env values.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := get("HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.LogLevel = ParseLevel(get("LOG_LEVEL"))

	if v := strings.ToLower(get("STORE_DRIVER")); v != "" {
		cfg.StoreDriver = v
	}
	switch cfg.StoreDriver {
	case "sqlite", "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER: unsupported value %q", cfg.StoreDriver)
	}
	if v := get("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	cfg.DatabaseURL = get("DATABASE_URL")
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL must be set when STORE_DRIVER=postgres")
	}

	var err error
	if cfg.RequestTimeout, err = duration(get, "REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = duration(get, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}

	if v := get("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
	}
	if v := get("RATE_LIMIT_BURST"); v != "" {
		if cfg.RateLimitBurst, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
	}

	if v := strings.ToLower(get("AUTH_MODE")); v != "" {
		cfg.AuthMode = v
	}
	cfg.AuthAPIKey = get("AUTH_API_KEY")
	cfg.AuthBearerToken = get("AUTH_BEARER_TOKEN")
	cfg.JWTSecret = get("JWT_SECRET")
	switch cfg.AuthMode {
	case "none":
	case "apikey":
		if cfg.AuthAPIKey == "" {
			return Config{}, errors.New("AUTH_API_KEY must be set when AUTH_MODE=apikey")
		}
	case "bearer":
		if cfg.AuthBearerToken == "" {
			return Config{}, errors.New("AUTH_BEARER_TOKEN must be set when AUTH_MODE=bearer")
		}
	case "jwt":
		if len(cfg.JWTSecret) < 32 {
			return Config{}, errors.New("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt")
		}
	default:
		return Config{}, fmt.Errorf("AUTH_MODE: unsupported value %q", cfg.AuthMode)
	}

	if v := strings.ToLower(get("TRACE_EXPORTER")); v != "" {
		cfg.TraceExporter = v
	}
	switch cfg.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		return Config{}, fmt.Errorf("TRACE_EXPORTER: unsupported value %q", cfg.TraceExporter)
	}
	if v := get("SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}

	return cfg, nil
}

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func duration(get func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
