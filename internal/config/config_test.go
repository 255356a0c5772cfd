package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GATEWAY_BASE_URL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Fatalf("expected default gateway timeout, got %s", cfg.GatewayTimeout)
	}
	if cfg.HistoryWindow != 20 {
		t.Fatalf("expected default history window, got %d", cfg.HistoryWindow)
	}
	if cfg.DedupeTTL != 24*time.Hour {
		t.Fatalf("expected default dedupe TTL, got %s", cfg.DedupeTTL)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("GATEWAY_BASE_URL", "https://waha.internal")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("HISTORY_WINDOW", "10")
	t.Setenv("CLAIM_TTL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.GatewayBaseURL != "https://waha.internal" {
		t.Fatalf("expected gateway base override, got %s", cfg.GatewayBaseURL)
	}
	if cfg.GatewayTimeout != 3*time.Second {
		t.Fatalf("expected gateway timeout override, got %s", cfg.GatewayTimeout)
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Fatalf("expected model override, got %s", cfg.OpenAIModel)
	}
	if cfg.HistoryWindow != 10 {
		t.Fatalf("expected history window override, got %d", cfg.HistoryWindow)
	}
	if cfg.ClaimTTL != 30*time.Second {
		t.Fatalf("expected claim TTL override, got %s", cfg.ClaimTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("expected CORS origins parsed, got %v", cfg.CORSAllowedOrigins)
	}
}
