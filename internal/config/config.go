// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

// Package config loads Decoyshield configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
//
// See Load for the layering rules and envTransformFunc for the supported
// environment variables.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Detection  DetectionConfig  `koanf:"detection"`
	Honeytoken HoneytokenConfig `koanf:"honeytoken"`
	Events     EventsConfig     `koanf:"events"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// SecurityConfig holds authentication, authorization and request limiting settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername and AdminPassword seed a single admin account.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// Users holds extra accounts as "name:password:role". The password may
	// be plaintext or a bcrypt hash.
	Users []string `koanf:"users"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	Casbin CasbinConfig `koanf:"casbin"`
}

// CasbinConfig points at optional model and policy files. Empty paths use
// the embedded defaults.
type CasbinConfig struct {
	ModelPath  string        `koanf:"model_path"`
	PolicyPath string        `koanf:"policy_path"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// DetectionConfig holds anomaly scoring and alerting settings.
type DetectionConfig struct {
	MinBatch         int           `koanf:"min_batch"`
	MaxStddevMs      float64       `koanf:"max_stddev_ms"`
	MinMeanMs        float64       `koanf:"min_mean_ms"`
	MaxMeanMs        float64       `koanf:"max_mean_ms"`
	SuspicionTTL     time.Duration `koanf:"suspicion_ttl"`
	AlertSampleLimit int           `koanf:"alert_sample_limit"`

	// AlertDBPath is the DuckDB file for alerts. Empty keeps alerts in memory.
	AlertDBPath string `koanf:"alert_db_path"`

	// BatchRate limits event batches per second per websocket connection.
	BatchRate  float64 `koanf:"batch_rate"`
	BatchBurst int     `koanf:"batch_burst"`
}

// HoneytokenConfig holds honey document and inventory settings.
type HoneytokenConfig struct {
	BeaconDomain string `koanf:"beacon_domain"`
	StorageDir   string `koanf:"storage_dir"`

	// CatalogPath is the badger directory. Empty runs the catalogue in memory.
	CatalogPath string `koanf:"catalog_path"`

	// InventoryURL is the remote inventory base URL. Empty disables registration.
	InventoryURL         string        `koanf:"inventory_url"`
	InventoryTimeout     time.Duration `koanf:"inventory_timeout"`
	InventoryMaxAttempts int           `koanf:"inventory_max_attempts"`
	InventoryBackoff     time.Duration `koanf:"inventory_backoff"`

	// GeneratorCommand is an external document generator. Empty uses the
	// built-in HTML template generator.
	GeneratorCommand string        `koanf:"generator_command"`
	GeneratorTimeout time.Duration `koanf:"generator_timeout"`
}

// EventsConfig selects the alert event bus backend.
type EventsConfig struct {
	// NATSURL publishes alerts to NATS. Empty uses an in-process channel.
	NATSURL    string `koanf:"nats_url"`
	AlertTopic string `koanf:"alert_topic"`

	// NATSEmbedded starts an in-process NATS server on NATSPort and
	// publishes through it. NATSURL is ignored when set.
	NATSEmbedded bool `koanf:"nats_embedded"`
	NATSPort     int  `koanf:"nats_port"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether ENVIRONMENT is development.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// InventoryEnabled reports whether remote honeytoken registration is configured.
func (c *Config) InventoryEnabled() bool {
	return c.Honeytoken.InventoryURL != ""
}

// ShouldWarnAboutCORS reports a wildcard CORS origin.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
