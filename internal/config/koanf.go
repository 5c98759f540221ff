// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

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
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/echolog/config.yaml",
	"/etc/echolog/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/echolog.duckdb",
			MaxMemory:              "1GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
			SeedMockData:           false,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			OIDC: OIDCConfig{
				IssuerURL:    "",
				Audience:     "",
				JWKSCacheTTL: 1 * time.Hour,
				UserIDClaim:  "sub",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Media: MediaConfig{
			CloudName:    "",
			APIKey:       "",
			APISecret:    "",
			UploadFolder: "echolog/audio",
			MaxUploadMB:  25,
			Timeout:      60 * time.Second,
		},
		Transcribe: TranscribeConfig{
			Enabled:      true,
			BaseURL:      "https://api.on-demand.io/media/v1",
			APIKey:       "",
			PollInterval: 2 * time.Second,
			PollTimeout:  3 * time.Minute,
			Timeout:      30 * time.Second,
		},
		LLM: LLMConfig{
			APIKey:            "",
			Model:             "gemini-2.0-flash",
			Timeout:           45 * time.Second,
			MaxRetries:        2,
			CacheTTL:          24 * time.Hour,
			Temperature:       0.2,
			RequestsPerMinute: 15,
		},
		TTS: TTSConfig{
			Enabled: false, // Opt-in; narration is a nice-to-have
			BaseURL: "https://api.elevenlabs.io/v1",
			APIKey:  "",
			VoiceID: "",
			ModelID: "eleven_multilingual_v2",
			Timeout: 60 * time.Second,
		},
		Tracker: TrackerConfig{
			WindowSize: 20,
		},
		Summary: SummaryConfig{
			Enabled:          true,
			CronSchedule:     "0 7 * * 1", // Monday 07:00, covering the week just ended
			Timezone:         "UTC",
			CheckInterval:    time.Minute,
			ExecutionTimeout: 5 * time.Minute,
			MaxConcurrent:    3,
		},
		Cache: CacheConfig{
			Path:       "/data/cache",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence: ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
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

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - GEMINI_API_KEY -> llm.api_key
//   - CLOUDINARY_CLOUD_NAME -> media.cloud_name
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",
		"seed_mock_data":    "database.seed_mock_data",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security mappings
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"session_timeout":     "security.session_timeout",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// OIDC mappings
		"oidc_issuer_url":     "security.oidc.issuer_url",
		"oidc_audience":       "security.oidc.audience",
		"oidc_jwks_cache_ttl": "security.oidc.jwks_cache_ttl",
		"oidc_user_id_claim":  "security.oidc.user_id_claim",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Media (Cloudinary) mappings
		"cloudinary_cloud_name":    "media.cloud_name",
		"cloudinary_api_key":       "media.api_key",
		"cloudinary_api_secret":    "media.api_secret",
		"cloudinary_upload_folder": "media.upload_folder",
		"media_max_upload_mb":      "media.max_upload_mb",
		"media_timeout":            "media.timeout",

		// Transcription (OnDemand) mappings
		"transcribe_enabled":       "transcribe.enabled",
		"ondemand_base_url":        "transcribe.base_url",
		"ondemand_api_key":         "transcribe.api_key",
		"transcribe_poll_interval": "transcribe.poll_interval",
		"transcribe_poll_timeout":  "transcribe.poll_timeout",
		"transcribe_timeout":       "transcribe.timeout",

		// LLM (Gemini) mappings
		"gemini_api_key":  "llm.api_key",
		"gemini_model":    "llm.model",
		"llm_timeout":     "llm.timeout",
		"llm_max_retries": "llm.max_retries",
		"llm_cache_ttl":   "llm.cache_ttl",
		"llm_temperature": "llm.temperature",
		"llm_rpm":         "llm.requests_per_minute",

		// TTS (ElevenLabs) mappings
		"tts_enabled":         "tts.enabled",
		"elevenlabs_base_url": "tts.base_url",
		"elevenlabs_api_key":  "tts.api_key",
		"elevenlabs_voice_id": "tts.voice_id",
		"elevenlabs_model_id": "tts.model_id",
		"tts_timeout":         "tts.timeout",

		// Tracker mappings
		"tracker_window_size": "tracker.window_size",

		// Summary scheduler mappings
		"summary_enabled":        "summary.enabled",
		"summary_cron":           "summary.cron_schedule",
		"summary_timezone":       "summary.timezone",
		"summary_check_interval": "summary.check_interval",
		"summary_exec_timeout":   "summary.execution_timeout",
		"summary_max_concurrent": "summary.max_concurrent",

		// Cache mappings
		"cache_path":        "cache.path",
		"cache_in_memory":   "cache.in_memory",
		"cache_gc_interval": "cache.gc_interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables
	// do not pollute the config.
	return ""
}
