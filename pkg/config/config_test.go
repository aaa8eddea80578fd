package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DatabaseURL != "file:db.sqlite" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", cfg.RateLimitWindow)
	}
	if cfg.AdminAuthEnabled() {
		t.Error("admin auth should be disabled without JWT_SECRET")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ORIGINS", "https://example.org, https://admin.example.org")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,10.1.0.0/16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.DatabaseURL != "mongodb://localhost:27017" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if !cfg.AdminAuthEnabled() {
		t.Error("admin auth should be enabled")
	}
	if cfg.IsDevelopment() {
		t.Error("production env reported as development")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.org" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v", cfg.RateLimitWindow)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1] != "10.1.0.0/16" {
		t.Errorf("TrustedProxies = %v", cfg.TrustedProxies)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"7070\"\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want 7070", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "non numeric port", mutate: func(c *Config) { c.Port = "http" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, wantErr: true},
		{name: "empty database", mutate: func(c *Config) { c.DatabaseURL = " " }, wantErr: true},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimitRequests = 0 }, wantErr: true},
		{name: "trusted proxies", mutate: func(c *Config) { c.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12", "::1"} }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.TrustedProxies = []string{"proxy.local"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
