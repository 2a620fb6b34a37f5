// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/decoyshield/config.yaml",
	"/etc/decoyshield/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			Casbin: CasbinConfig{
				CacheTTL: 5 * time.Minute,
			},
		},
		Detection: DetectionConfig{
			MinBatch:         40,
			MaxStddevMs:      6,
			MinMeanMs:        20,
			MaxMeanMs:        80,
			SuspicionTTL:     5 * time.Minute,
			AlertSampleLimit: 200,
			BatchRate:        5,
			BatchBurst:       10,
		},
		Honeytoken: HoneytokenConfig{
			BeaconDomain:         "cdn-docs-local.test",
			StorageDir:           "/data/decoydocs",
			InventoryTimeout:     5 * time.Second,
			InventoryMaxAttempts: 3,
			InventoryBackoff:     200 * time.Millisecond,
			GeneratorTimeout:     60 * time.Second,
		},
		Events: EventsConfig{
			AlertTopic: "ids.alerts",
			NATSPort:   4222,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration in layers:
//  1. Built-in defaults
//  2. Config file (CONFIG_PATH, or the first of DefaultConfigPaths that exists)
//  3. Environment variables
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.users",
}

// processSliceFields splits env-provided strings for known slice fields.
// Values already loaded as slices from YAML are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to config paths.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"admin_username":      "security.admin_username",
	"admin_password":      "security.admin_password",
	"auth_users":          "security.users",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"casbin_model_path":   "security.casbin.model_path",
	"casbin_policy_path":  "security.casbin.policy_path",
	"casbin_cache_ttl":    "security.casbin.cache_ttl",

	// Detection
	"detection_min_batch":     "detection.min_batch",
	"detection_max_stddev_ms": "detection.max_stddev_ms",
	"detection_min_mean_ms":   "detection.min_mean_ms",
	"detection_max_mean_ms":   "detection.max_mean_ms",
	"suspicion_ttl":           "detection.suspicion_ttl",
	"alert_sample_limit":      "detection.alert_sample_limit",
	"alert_db_path":           "detection.alert_db_path",
	"ws_batch_rate":           "detection.batch_rate",
	"ws_batch_burst":          "detection.batch_burst",

	// Honeytoken
	"beacon_domain":          "honeytoken.beacon_domain",
	"honeydoc_storage_dir":   "honeytoken.storage_dir",
	"honeydoc_catalog_path":  "honeytoken.catalog_path",
	"inventory_url":          "honeytoken.inventory_url",
	"inventory_timeout":      "honeytoken.inventory_timeout",
	"inventory_max_attempts": "honeytoken.inventory_max_attempts",
	"inventory_backoff":      "honeytoken.inventory_backoff",
	"generator_command":      "honeytoken.generator_command",
	"generator_timeout":      "honeytoken.generator_timeout",

	// Events
	"nats_url":          "events.nats_url",
	"alert_event_topic": "events.alert_topic",
	"nats_embedded":     "events.nats_embedded",
	"nats_port":         "events.nats_port",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped so unrelated environment
// variables never leak into configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - SUSPICION_TTL -> detection.suspicion_ttl
//   - INVENTORY_URL -> honeytoken.inventory_url
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
