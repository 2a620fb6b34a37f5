// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	minJWTSecretLength   = 32
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
	maxInventoryAttempts = 10
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validRoles = map[string]bool{
	"admin": true,
	"user":  true,
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateHoneytoken(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEvents() error {
	if strings.TrimSpace(c.Events.AlertTopic) == "" {
		return fmt.Errorf("ALERT_EVENT_TOPIC must not be empty")
	}
	if c.Events.NATSEmbedded && (c.Events.NATSPort < 1 || c.Events.NATSPort > 65535) {
		return fmt.Errorf("NATS_PORT must be between 1 and 65535")
	}
	if !c.Events.NATSEmbedded && c.Events.NATSURL != "" {
		u, err := url.Parse(c.Events.NATSURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("NATS_URL must be a valid URL such as nats://localhost:4222")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if c.Security.AdminUsername != "" && len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters when ADMIN_USERNAME is set")
	}
	if err := c.validateUsers(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	return c.validateCORS()
}

func (c *Config) validateUsers() error {
	for _, entry := range c.Security.Users {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("AUTH_USERS entries must be name:password:role, got %q", redactUserEntry(entry))
		}
		if !validRoles[parts[2]] {
			return fmt.Errorf("AUTH_USERS role for %q must be admin or user", parts[0])
		}
	}
	return nil
}

// redactUserEntry keeps the username for error messages and drops the secret.
func redactUserEntry(entry string) string {
	name, _, _ := strings.Cut(entry, ":")
	return name + ":***"
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %s and %s", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateCORS rejects a wildcard origin in production.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production; " +
			"set specific origins: CORS_ORIGINS=https://yourdomain.com")
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.MinBatch < 2 {
		return fmt.Errorf("DETECTION_MIN_BATCH must be at least 2")
	}
	if d.MaxStddevMs <= 0 {
		return fmt.Errorf("DETECTION_MAX_STDDEV_MS must be positive")
	}
	if d.MinMeanMs < 0 || d.MaxMeanMs < d.MinMeanMs {
		return fmt.Errorf("DETECTION_MIN_MEAN_MS must be >= 0 and <= DETECTION_MAX_MEAN_MS")
	}
	if d.SuspicionTTL <= 0 {
		return fmt.Errorf("SUSPICION_TTL must be positive")
	}
	if d.AlertSampleLimit < 1 {
		return fmt.Errorf("ALERT_SAMPLE_LIMIT must be at least 1")
	}
	if d.BatchRate <= 0 || d.BatchBurst < 1 {
		return fmt.Errorf("WS_BATCH_RATE must be positive and WS_BATCH_BURST at least 1")
	}
	return nil
}

func (c *Config) validateHoneytoken() error {
	h := c.Honeytoken
	if h.BeaconDomain == "" || strings.ContainsAny(h.BeaconDomain, "/?#") {
		return fmt.Errorf("BEACON_DOMAIN must be a bare host name")
	}
	if h.StorageDir == "" {
		return fmt.Errorf("HONEYDOC_STORAGE_DIR is required")
	}
	if h.InventoryURL != "" {
		if err := validateHTTPURL(h.InventoryURL, "INVENTORY_URL"); err != nil {
			return err
		}
	}
	if h.InventoryTimeout <= 0 {
		return fmt.Errorf("INVENTORY_TIMEOUT must be positive")
	}
	if h.InventoryMaxAttempts < 1 || h.InventoryMaxAttempts > maxInventoryAttempts {
		return fmt.Errorf("INVENTORY_MAX_ATTEMPTS must be between 1 and %d", maxInventoryAttempts)
	}
	if h.InventoryBackoff < 0 {
		return fmt.Errorf("INVENTORY_BACKOFF must not be negative")
	}
	if h.GeneratorTimeout <= 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// validateHTTPURL accepts a base http(s) URL without query parameters.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
