package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stellarnodeN/recrusearch/internal/storage"
)

// Defaults for the storage retry surface.
const (
	DefaultStorageRetries = 3
	DefaultStorageTimeout = 30 * time.Second
)

// Config is everything the server consumes from its environment. Built once
// in main so the rest of the tree takes plain values, not env lookups.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL selects the postgres ledger reader when set; empty falls
	// back to the in-memory ledger (development mode).
	PostgresURL string

	// RedisURL enables the campaign snapshot cache when set.
	RedisURL string

	Storage storage.Settings
}

// FromEnv builds a Config from environment variables so main stays lean.
// Storage settings are validated here: an unrecognized provider or a bad
// retry count is a startup failure, not a first-request failure.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("RECRUSEARCH_ADDR", ":8080"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Storage: storage.Settings{
			Provider: envOr("STORAGE_PROVIDER", string(storage.ProviderMemory)),
			Endpoint: os.Getenv("STORAGE_ENDPOINT"),
			APIKey:   os.Getenv("STORAGE_API_KEY"),
			Retries:  DefaultStorageRetries,
			Timeout:  DefaultStorageTimeout,
		},
	}

	if cfg.JWTSigningKey == "" {
		// Development default; deployments must override.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if _, err := storage.ParseProvider(cfg.Storage.Provider); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("STORAGE_RETRIES"); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries < 0 {
			return Config{}, fmt.Errorf("STORAGE_RETRIES must be a non-negative integer, got %q", raw)
		}
		cfg.Storage.Retries = retries
	}

	if raw := os.Getenv("STORAGE_TIMEOUT_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("STORAGE_TIMEOUT_MS must be a positive integer, got %q", raw)
		}
		cfg.Storage.Timeout = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
