// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// validConfig returns defaults that pass Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Detection.MinBatch != 40 {
		t.Errorf("Detection.MinBatch = %d, want 40", cfg.Detection.MinBatch)
	}
	if cfg.Detection.MaxStddevMs != 6 {
		t.Errorf("Detection.MaxStddevMs = %v, want 6", cfg.Detection.MaxStddevMs)
	}
	if cfg.Detection.MinMeanMs != 20 || cfg.Detection.MaxMeanMs != 80 {
		t.Errorf("Detection mean band = [%v, %v], want [20, 80]", cfg.Detection.MinMeanMs, cfg.Detection.MaxMeanMs)
	}
	if cfg.Detection.SuspicionTTL != 5*time.Minute {
		t.Errorf("Detection.SuspicionTTL = %v, want 5m", cfg.Detection.SuspicionTTL)
	}
	if cfg.Detection.AlertSampleLimit != 200 {
		t.Errorf("Detection.AlertSampleLimit = %d, want 200", cfg.Detection.AlertSampleLimit)
	}
	if cfg.Honeytoken.InventoryTimeout != 5*time.Second {
		t.Errorf("Honeytoken.InventoryTimeout = %v, want 5s", cfg.Honeytoken.InventoryTimeout)
	}
	if cfg.Honeytoken.InventoryMaxAttempts != 3 {
		t.Errorf("Honeytoken.InventoryMaxAttempts = %d, want 3", cfg.Honeytoken.InventoryMaxAttempts)
	}
	if cfg.Honeytoken.BeaconDomain != "cdn-docs-local.test" {
		t.Errorf("Honeytoken.BeaconDomain = %q", cfg.Honeytoken.BeaconDomain)
	}
	if cfg.InventoryEnabled() {
		t.Error("inventory should be disabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SUSPICION_TTL", "10m")
	t.Setenv("DETECTION_MIN_BATCH", "60")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUTH_USERS", "alice:password1:user,root:password2:admin")
	t.Setenv("INVENTORY_URL", "http://inventory.internal:5000")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Detection.SuspicionTTL != 10*time.Minute {
		t.Errorf("Detection.SuspicionTTL = %v, want 10m", cfg.Detection.SuspicionTTL)
	}
	if cfg.Detection.MinBatch != 60 {
		t.Errorf("Detection.MinBatch = %d, want 60", cfg.Detection.MinBatch)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if len(cfg.Security.Users) != 2 {
		t.Errorf("Security.Users = %v, want 2 entries", cfg.Security.Users)
	}
	if !cfg.InventoryEnabled() {
		t.Error("expected inventory to be enabled")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
security:
  jwt_secret: "` + testSecret + `"
honeytoken:
  beacon_domain: "static.example.test"
  storage_dir: "/tmp/honey"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Honeytoken.BeaconDomain != "static.example.test" {
		t.Errorf("BeaconDomain = %q", cfg.Honeytoken.BeaconDomain)
	}
	// Environment beats file.
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("Load() error = %v, want JWT_SECRET error", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"SUSPICION_TTL", "detection.suspicion_ttl"},
		{"INVENTORY_MAX_ATTEMPTS", "honeytoken.inventory_max_attempts"},
		{"NATS_URL", "events.nats_url"},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with secret", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "JWT_SECRET"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad user entry", func(c *Config) { c.Security.Users = []string{"alice"} }, "AUTH_USERS"},
		{"bad user role", func(c *Config) { c.Security.Users = []string{"alice:pw:root"} }, "AUTH_USERS"},
		{"admin short password", func(c *Config) {
			c.Security.AdminUsername = "admin"
			c.Security.AdminPassword = "short"
		}, "ADMIN_PASSWORD"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"min batch", func(c *Config) { c.Detection.MinBatch = 1 }, "DETECTION_MIN_BATCH"},
		{"inverted mean band", func(c *Config) { c.Detection.MinMeanMs = 90 }, "DETECTION_MIN_MEAN_MS"},
		{"zero ttl", func(c *Config) { c.Detection.SuspicionTTL = 0 }, "SUSPICION_TTL"},
		{"inventory scheme", func(c *Config) { c.Honeytoken.InventoryURL = "ftp://x" }, "INVENTORY_URL"},
		{"inventory attempts", func(c *Config) { c.Honeytoken.InventoryMaxAttempts = 0 }, "INVENTORY_MAX_ATTEMPTS"},
		{"beacon domain path", func(c *Config) { c.Honeytoken.BeaconDomain = "a.test/x" }, "BEACON_DOMAIN"},
		{"empty alert topic", func(c *Config) { c.Events.AlertTopic = " " }, "ALERT_EVENT_TOPIC"},
		{"nats url", func(c *Config) { c.Events.NATSURL = "localhost" }, "NATS_URL"},
		{"embedded nats port", func(c *Config) {
			c.Events.NATSEmbedded = true
			c.Events.NATSPort = 0
		}, "NATS_PORT"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestRedactUserEntry(t *testing.T) {
	t.Parallel()

	if got := redactUserEntry("alice:secret:user"); strings.Contains(got, "secret") {
		t.Errorf("redactUserEntry leaked the password: %s", got)
	}
}
