// Package config loads service configuration from KONSULT_* environment
// variables, with optional .env support for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvDevelopment relaxes cookie security flags and error redaction.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Config carries everything the binaries need to run.
type Config struct {
	Addr        string
	Env         string
	DatabaseDSN string

	// The two signing secrets are deliberately separate: possession of one
	// must not allow forging the other token class.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	RateLimitPerSec int
	RateLimitBurst  int
	MaxBodyBytes    int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:               getenv("KONSULT_ADDR", ":8080"),
		Env:                strings.ToLower(getenv("KONSULT_ENV", EnvDevelopment)),
		DatabaseDSN:        os.Getenv("KONSULT_PG_DSN"),
		AccessTokenSecret:  os.Getenv("KONSULT_ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("KONSULT_REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     defaultAccessTTL,
		RefreshTokenTTL:    defaultRefreshTTL,
		RateLimitPerSec:    10,
		RateLimitBurst:     20,
		MaxBodyBytes:       1 << 20,
	}

	var err error
	if cfg.AccessTokenTTL, err = durationEnv("KONSULT_ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("KONSULT_REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSec, err = intEnv("KONSULT_RATE_LIMIT_PER_SEC", cfg.RateLimitPerSec); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("KONSULT_RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.AccessTokenSecret) == "" {
		return errors.New("config: KONSULT_ACCESS_TOKEN_SECRET is required")
	}
	if strings.TrimSpace(c.RefreshTokenSecret) == "" {
		return errors.New("config: KONSULT_REFRESH_TOKEN_SECRET is required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}
