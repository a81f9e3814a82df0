package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KONSULT_ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("KONSULT_REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.Env != EnvDevelopment || !cfg.IsDevelopment() {
		t.Fatalf("expected development default, got %s", cfg.Env)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", cfg.RefreshTokenTTL)
	}
	if cfg.RateLimitPerSec != 10 || cfg.RateLimitBurst != 20 {
		t.Fatalf("unexpected rate limits: %d/%d", cfg.RateLimitPerSec, cfg.RateLimitBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("KONSULT_ADDR", ":9999")
	t.Setenv("KONSULT_ENV", "Production")
	t.Setenv("KONSULT_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("KONSULT_REFRESH_TOKEN_TTL", "168h")
	t.Setenv("KONSULT_RATE_LIMIT_PER_SEC", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.Env != EnvProduction || cfg.IsDevelopment() {
		t.Fatalf("expected production, got %s", cfg.Env)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 168*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", cfg.RefreshTokenTTL)
	}
	if cfg.RateLimitPerSec != 3 {
		t.Fatalf("unexpected rate limit: %d", cfg.RateLimitPerSec)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("KONSULT_ACCESS_TOKEN_SECRET", "")
	t.Setenv("KONSULT_REFRESH_TOKEN_SECRET", "refresh-secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing access secret")
	}

	t.Setenv("KONSULT_ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("KONSULT_REFRESH_TOKEN_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing refresh secret")
	}
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	t.Setenv("KONSULT_ACCESS_TOKEN_SECRET", "same")
	t.Setenv("KONSULT_REFRESH_TOKEN_SECRET", "same")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("KONSULT_ACCESS_TOKEN_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("KONSULT_ACCESS_TOKEN_TTL", "-1m")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative lifetime")
	}
}
