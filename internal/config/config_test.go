package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.API.UploadTimeout != 5*time.Minute {
		t.Fatalf("unexpected upload timeout: %s", cfg.API.UploadTimeout)
	}
	if cfg.API.HealthTimeout != 10*time.Second {
		t.Fatalf("unexpected health timeout: %s", cfg.API.HealthTimeout)
	}
	if cfg.Server.Addr() != "0.0.0.0:8501" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr())
	}
	if cfg.Server.ShutdownTimeout != 5*time.Minute+ShutdownGrace {
		t.Fatalf("expected shutdown bound to cover an upload, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("expected redis to be disabled by default, got %q", cfg.Redis.Addr)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_URL", "https://claims.example.com/v1")
	t.Setenv("UPLOAD_TIMEOUT", "90s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "https://claims.example.com/v1" {
		t.Fatalf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.API.UploadTimeout != 90*time.Second {
		t.Fatalf("unexpected upload timeout: %s", cfg.API.UploadTimeout)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("unexpected redis addr: %s", cfg.Redis.Addr)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 90*time.Second+ShutdownGrace {
		t.Fatalf("expected shutdown bound derived from upload timeout, got %s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadKeepsExplicitShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "20s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ShutdownTimeout != 20*time.Second {
		t.Fatalf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadRejectsMalformedAPIURL(t *testing.T) {
	t.Setenv("API_URL", "localhost:8000")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for URL without http scheme")
	}
}

func TestValidateBaseURL(t *testing.T) {
	cases := map[string]bool{
		"http://localhost:8000":      true,
		"https://api.example.com/x/": true,
		"ftp://example.com":          false,
		"http://":                    false,
		"":                           false,
		"not a url":                  false,
	}
	for raw, ok := range cases {
		err := ValidateBaseURL(raw)
		if ok && err != nil {
			t.Fatalf("expected %q to be valid, got %v", raw, err)
		}
		if !ok && err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
