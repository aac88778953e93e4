package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRAMEZ_PORT", "")
	t.Setenv("FRAMEZ_REALTIME_MODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.ObjectStore.Bucket != "posts" {
		t.Fatalf("expected default bucket posts got %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Realtime.Mode != RealtimeModePostgres {
		t.Fatalf("expected postgres realtime mode got %q", cfg.Realtime.Mode)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development environment by default")
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("expected no trusted proxies by default got %v", cfg.TrustedProxies)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FRAMEZ_PORT", "9090")
	t.Setenv("FRAMEZ_ENV", "production")
	t.Setenv("FRAMEZ_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("FRAMEZ_REALTIME_MODE", "LOCAL")
	t.Setenv("FRAMEZ_S3_BUCKET", "framez-images")
	t.Setenv("FRAMEZ_TRUSTED_PROXIES", " 10.0.0.0/8, ,172.16.0.1 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9090 {
		t.Fatalf("expected port override got %d", cfg.AppPort)
	}
	if cfg.IsDevelopment() {
		t.Fatal("expected production environment")
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("expected access ttl override got %s", cfg.AccessTokenTTL)
	}
	if cfg.Realtime.Mode != RealtimeModeLocal {
		t.Fatalf("expected lower-cased realtime mode got %q", cfg.Realtime.Mode)
	}
	if cfg.ObjectStore.Bucket != "framez-images" {
		t.Fatalf("expected bucket override got %q", cfg.ObjectStore.Bucket)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "172.16.0.1" {
		t.Fatalf("unexpected trusted proxies %q", cfg.TrustedProxies)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("FRAMEZ_PORT", "not-a-port")
	t.Setenv("FRAMEZ_REFRESH_TOKEN_TTL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected fallback port got %d", cfg.AppPort)
	}
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("expected fallback refresh ttl got %s", cfg.RefreshTokenTTL)
	}
}
