// Package config loads the service configuration from the environment.
//
// A .env file in the working directory is read first (if present) with
// github.com/joho/godotenv; variables already set in the real environment win,
// because godotenv.Load never overrides them. Everything then comes from
// os.Getenv with a default, so the binary runs with no configuration at all:
// sqlite at data/parkplaces.db, port 8080, a throwaway JWT secret.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by PLACE_BACKEND.
const (
	BackendLocal    = "local"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is every setting the server and placectl read.
type Config struct {
	Port   int
	DBPath string

	// PlaceBackend selects where places live; users always live in sqlite.
	PlaceBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	GeoIPDBPath     string
	GeoTimeout      time.Duration
	DisplayTimezone *time.Location

	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	CookieSecure       bool

	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// GitHubEnabled reports whether GitHub login can be offered.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads the given .env files (default ".env") and then the environment.
// Missing .env files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		DBPath:             getEnv("DB_PATH", "data/parkplaces.db"),
		PlaceBackend:       strings.ToLower(getEnv("PLACE_BACKEND", BackendSQLite)),
		RedisAddr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
		CookieSecure:       strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	switch cfg.PlaceBackend {
	case BackendLocal, BackendSQLite, BackendRedis, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("config: PLACE_BACKEND %q is not one of local, sqlite, redis, postgres", cfg.PlaceBackend)
	}
	if cfg.PlaceBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: PLACE_BACKEND=postgres needs DATABASE_URL")
	}

	cfg.GeoTimeout = 10 * time.Second
	if v := os.Getenv("GEO_TIMEOUT"); v != "" {
		if cfg.GeoTimeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("config: GEO_TIMEOUT: %w", err)
		}
	}

	cfg.DisplayTimezone = time.Local
	if v := os.Getenv("DISPLAY_TIMEZONE"); v != "" {
		if cfg.DisplayTimezone, err = time.LoadLocation(v); err != nil {
			return Config{}, fmt.Errorf("config: DISPLAY_TIMEZONE: %w", err)
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	return cfg, nil
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number", key, v)
	}
	return n, nil
}
