// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for all application components including
// the HTTP server, database, external AI services (transcription, LLM, TTS), media storage,
// activity tracking, and weekly summary generation.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Media      MediaConfig      `koanf:"media"`      // Cloudinary audio storage
	Transcribe TranscribeConfig `koanf:"transcribe"` // OnDemand speech-to-text
	LLM        LLMConfig        `koanf:"llm"`        // Gemini activity extraction and narratives
	TTS        TTSConfig        `koanf:"tts"`        // Optional: ElevenLabs summary narration
	Tracker    TrackerConfig    `koanf:"tracker"`
	Summary    SummaryConfig    `koanf:"summary"`
	Cache      CacheConfig      `koanf:"cache"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// DatabaseConfig contains DuckDB settings
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = use runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	SeedMockData           bool   `koanf:"seed_mock_data"`
}

// APIConfig contains API behavior settings
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig contains authentication and rate limiting settings
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // "jwt", "oidc", or "none"
	JWTSecret         string        `koanf:"jwt_secret"`
	AdminUsername     string        `koanf:"admin_username"` // local login, jwt mode only
	AdminPassword     string        `koanf:"admin_password"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	OIDC              OIDCConfig    `koanf:"oidc"`
}

// OIDCConfig contains OIDC resource-server validation settings.
// Tokens are validated against the issuer's JWKS endpoint; no login
// flow is hosted here, the SPA obtains tokens from the provider directly.
type OIDCConfig struct {
	IssuerURL    string        `koanf:"issuer_url"`
	Audience     string        `koanf:"audience"`
	JWKSCacheTTL time.Duration `koanf:"jwks_cache_ttl"`
	UserIDClaim  string        `koanf:"user_id_claim"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
	Caller bool   `koanf:"caller"`
}

// MediaConfig contains Cloudinary upload settings
type MediaConfig struct {
	CloudName    string        `koanf:"cloud_name"`
	APIKey       string        `koanf:"api_key"`
	APISecret    string        `koanf:"api_secret"`
	UploadFolder string        `koanf:"upload_folder"`
	MaxUploadMB  int64         `koanf:"max_upload_mb"`
	Timeout      time.Duration `koanf:"timeout"`
}

// TranscribeConfig contains OnDemand media API settings
type TranscribeConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	PollInterval time.Duration `koanf:"poll_interval"`
	PollTimeout  time.Duration `koanf:"poll_timeout"`
	Timeout      time.Duration `koanf:"timeout"` // per-request HTTP timeout
}

// LLMConfig contains Gemini settings for activity extraction and narratives
type LLMConfig struct {
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	Temperature float32       `koanf:"temperature"`
	// RequestsPerMinute throttles outbound Gemini calls to stay under
	// API quota. Zero disables the throttle.
	RequestsPerMinute int `koanf:"requests_per_minute"`
}

// TTSConfig contains ElevenLabs text-to-speech settings.
// TTS is best-effort; failures never fail summary generation.
type TTSConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	VoiceID string        `koanf:"voice_id"`
	ModelID string        `koanf:"model_id"`
	Timeout time.Duration `koanf:"timeout"`
}

// TrackerConfig contains activity tracker aggregation settings
type TrackerConfig struct {
	WindowSize int `koanf:"window_size"` // most recent N entries considered
}

// SummaryConfig contains weekly summary generation settings
type SummaryConfig struct {
	Enabled          bool          `koanf:"enabled"`
	CronSchedule     string        `koanf:"cron_schedule"` // standard 5-field cron expression
	Timezone         string        `koanf:"timezone"`      // IANA name, schedule and week math run here
	CheckInterval    time.Duration `koanf:"check_interval"`
	ExecutionTimeout time.Duration `koanf:"execution_timeout"`
	MaxConcurrent    int           `koanf:"max_concurrent"`
}

// CacheConfig contains persistent cache settings (BadgerDB)
type CacheConfig struct {
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
