// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateMedia(); err != nil {
		return err
	}

	if err := c.validateTranscribe(); err != nil {
		return err
	}

	if err := c.validateLLM(); err != nil {
		return err
	}

	if err := c.validateTTS(); err != nil {
		return err
	}

	if err := c.validateTracker(); err != nil {
		return err
	}

	if err := c.validateSummary(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production', got %q", c.Server.Environment)
	}
	return nil
}

// validateSecurity validates authentication configuration.
// Production refuses to start with auth disabled or an empty JWT secret.
func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
		if c.Security.AdminUsername == "" {
			return fmt.Errorf("ADMIN_USERNAME is required when AUTH_MODE=jwt")
		}
		if len(c.Security.AdminPassword) < 8 {
			return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters when AUTH_MODE=jwt")
		}
	case "oidc":
		if c.Security.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if err := validateHTTPURL(c.Security.OIDC.IssuerURL, "OIDC_ISSUER_URL"); err != nil {
			return err
		}
		if c.Security.OIDC.Audience == "" {
			return fmt.Errorf("OIDC_AUDIENCE is required when AUTH_MODE=oidc")
		}
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be 'jwt', 'oidc', or 'none', got %q", c.Security.AuthMode)
	}

	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	return nil
}

// validateMedia validates Cloudinary configuration
func (c *Config) validateMedia() error {
	if c.Media.CloudName == "" {
		return nil // Media storage not configured; uploads are rejected at runtime
	}
	if c.Media.APIKey == "" {
		return fmt.Errorf("CLOUDINARY_API_KEY is required when CLOUDINARY_CLOUD_NAME is set")
	}
	if c.Media.APISecret == "" {
		return fmt.Errorf("CLOUDINARY_API_SECRET is required when CLOUDINARY_CLOUD_NAME is set")
	}
	if c.Media.MaxUploadMB < 1 || c.Media.MaxUploadMB > 500 {
		return fmt.Errorf("MEDIA_MAX_UPLOAD_MB must be between 1 and 500")
	}
	return nil
}

// validateTranscribe validates OnDemand configuration (only if enabled)
func (c *Config) validateTranscribe() error {
	if !c.Transcribe.Enabled {
		return nil
	}
	if c.Transcribe.APIKey == "" {
		return fmt.Errorf("ONDEMAND_API_KEY is required when TRANSCRIBE_ENABLED=true")
	}
	if err := validateHTTPURL(c.Transcribe.BaseURL, "ONDEMAND_BASE_URL"); err != nil {
		return err
	}
	if c.Transcribe.PollInterval <= 0 {
		return fmt.Errorf("TRANSCRIBE_POLL_INTERVAL must be positive")
	}
	if c.Transcribe.PollTimeout < c.Transcribe.PollInterval {
		return fmt.Errorf("TRANSCRIBE_POLL_TIMEOUT must be at least TRANSCRIBE_POLL_INTERVAL")
	}
	return nil
}

// validateLLM validates Gemini configuration
func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 10 {
		return fmt.Errorf("LLM_MAX_RETRIES must be between 0 and 10")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("LLM_RPM must not be negative")
	}
	return nil
}

// validateTTS validates ElevenLabs configuration (only if enabled)
func (c *Config) validateTTS() error {
	if !c.TTS.Enabled {
		return nil
	}
	if c.TTS.APIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_ENABLED=true")
	}
	if c.TTS.VoiceID == "" {
		return fmt.Errorf("ELEVENLABS_VOICE_ID is required when TTS_ENABLED=true")
	}
	return validateHTTPURL(c.TTS.BaseURL, "ELEVENLABS_BASE_URL")
}

// validateTracker validates tracker aggregation settings
func (c *Config) validateTracker() error {
	if c.Tracker.WindowSize < 1 || c.Tracker.WindowSize > 1000 {
		return fmt.Errorf("TRACKER_WINDOW_SIZE must be between 1 and 1000")
	}
	return nil
}

// validateSummary validates weekly summary scheduler settings
func (c *Config) validateSummary() error {
	if !c.Summary.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Summary.CronSchedule) == "" {
		return fmt.Errorf("SUMMARY_CRON must not be empty when SUMMARY_ENABLED=true")
	}
	if c.Summary.Timezone != "" {
		if _, err := time.LoadLocation(c.Summary.Timezone); err != nil {
			return fmt.Errorf("SUMMARY_TIMEZONE is invalid: %w", err)
		}
	}
	if c.Summary.CheckInterval <= 0 {
		return fmt.Errorf("SUMMARY_CHECK_INTERVAL must be positive")
	}
	if c.Summary.MaxConcurrent < 1 {
		return fmt.Errorf("SUMMARY_MAX_CONCURRENT must be at least 1")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a string parses as an absolute http(s) URL
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
