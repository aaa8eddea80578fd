package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML file layered between defaults and env.
const ConfigPathEnvVar = "CONFIG_PATH"

const defaultConfigFile = "config.yaml"

type Config struct {
	Port              string        `koanf:"port"`
	DatabaseURL       string        `koanf:"database_url"`
	DatabaseName      string        `koanf:"database_name"`
	AppEnv            string        `koanf:"app_env"`
	JWTSecret         string        `koanf:"jwt_secret"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	LogLevel          string        `koanf:"log_level"`
	LogFormat         string        `koanf:"log_format"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Port:              "8080",
		DatabaseURL:       "file:db.sqlite",
		DatabaseName:      "ngo_site",
		AppEnv:            "development",
		CORSOrigins:       []string{},
		TrustedProxies:    []string{},
		RateLimitRequests: 60,
		RateLimitWindow:   time.Minute,
		LogLevel:          "info",
		LogFormat:         "json",
		ShutdownTimeout:   10 * time.Second,
	}
}

// knownKeys limits which environment variables reach koanf.
var knownKeys = map[string]struct{}{
	"port":                {},
	"database_url":        {},
	"database_name":       {},
	"app_env":             {},
	"jwt_secret":          {},
	"cors_origins":        {},
	"trusted_proxies":     {},
	"rate_limit_requests": {},
	"rate_limit_window":   {},
	"log_level":           {},
	"log_format":          {},
	"shutdown_timeout":    {},
}

// Load layers struct defaults, an optional YAML file and the environment
// (including a local .env file) into a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.TrustedProxies = splitList(cfg.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.RateLimitRequests <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be positive")
	}
	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", proxy)
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// AdminAuthEnabled reports whether admin routes require a signed token.
func (c *Config) AdminAuthEnabled() bool {
	return c.JWTSecret != ""
}

// validProxy accepts a single address or a CIDR range.
func validProxy(entry string) bool {
	if _, err := netip.ParsePrefix(entry); err == nil {
		return true
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if _, ok := knownKeys[key]; !ok {
		return ""
	}
	return key
}

// splitList flattens comma-separated entries coming from env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
