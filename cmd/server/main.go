// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package main is the entry point for the Echolog server.
//
// Echolog is a self-hosted voice journal backend. Users record voice
// notes or type entries; audio is stored in Cloudinary and transcribed,
// a Gemini model extracts categorized activities from each transcript,
// and a rolling activity tracker scores recent behavior. Every Monday a
// scheduler generates narrated weekly summaries that can be shared via
// public links.
//
// # Initialization Order
//
//  1. Configuration: Koanf v2 layered sources (env > file > defaults)
//  2. Logging: zerolog, configured from LOG_LEVEL / LOG_FORMAT
//  3. Database: embedded DuckDB with versioned migrations
//  4. Caches: BadgerDB for LLM response caching, in-process memory
//     cache for tracker reads
//  5. External clients: Cloudinary (media), OnDemand (transcription,
//     behind a circuit breaker), Gemini (classification and
//     narratives), ElevenLabs (optional summary narration)
//  6. Authentication: JWT (default), OIDC, or none for development
//  7. Services: entry pipeline, weekly summary generator and scheduler
//  8. Supervisor tree: suture v4 supervising the cache maintenance,
//     websocket hub, summary scheduler, and HTTP server
//
// # Configuration
//
// Required for JWT authentication (the default):
//   - JWT_SECRET: 32+ character signing secret
//   - ADMIN_USERNAME / ADMIN_PASSWORD: local login credentials
//
// Required for the entry pipeline:
//   - GEMINI_API_KEY: activity extraction and weekly narratives
//
// Optional integrations:
//   - CLOUDINARY_CLOUD_NAME / _API_KEY / _API_SECRET: voice uploads
//   - TRANSCRIBE_ENABLED + TRANSCRIBE_API_KEY: speech-to-text
//   - TTS_ENABLED + TTS_API_KEY + TTS_VOICE_ID: narrated summaries
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// connections, the scheduler finishes or abandons the current run, and
// the hub closes client connections before the process exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/echolog/internal/api"
	"github.com/tomtom215/echolog/internal/auth"
	"github.com/tomtom215/echolog/internal/cache"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/llm"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/media"
	"github.com/tomtom215/echolog/internal/summary"
	"github.com/tomtom215/echolog/internal/supervisor"
	"github.com/tomtom215/echolog/internal/supervisor/services"
	"github.com/tomtom215/echolog/internal/tracker"
	"github.com/tomtom215/echolog/internal/transcribe"
	"github.com/tomtom215/echolog/internal/tts"
	ws "github.com/tomtom215/echolog/internal/websocket"
)

//nolint:gocyclo // Sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("summary_enabled", cfg.Summary.Enabled).
		Msg("Starting Echolog")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// BadgerDB cache for LLM responses. Best-effort: the app runs
	// without it, every LLM call just hits the API.
	var badgerCache *cache.Cache
	if c, err := cache.Open(cfg.Cache); err != nil {
		logging.Warn().Err(err).Msg("Failed to open persistent cache, LLM caching disabled")
	} else {
		badgerCache = c
		defer func() {
			if err := badgerCache.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing cache")
			}
		}()
	}

	memCache := cache.NewMemory()

	// External clients. Media and transcription are optional; the LLM
	// is required since classification and narratives depend on it.
	var mediaClient *media.Client
	if mc, err := media.New(&cfg.Media); err != nil {
		if errors.Is(err, media.ErrNotConfigured) {
			logging.Info().Msg("Cloudinary not configured, voice uploads disabled")
		} else {
			logging.Fatal().Err(err).Msg("Failed to create media client")
		}
	} else {
		mediaClient = mc
		logging.Info().Int64("max_upload_bytes", mc.MaxUploadBytes()).Msg("Cloudinary media storage enabled")
	}

	var transcriber *transcribe.BreakerClient
	if tc, err := transcribe.NewClient(&cfg.Transcribe); err != nil {
		if errors.Is(err, transcribe.ErrDisabled) {
			logging.Info().Msg("Transcription disabled, voice entries will not transcribe")
		} else {
			logging.Fatal().Err(err).Msg("Failed to create transcription client")
		}
	} else {
		transcriber = transcribe.NewBreakerClient(tc)
		logging.Info().Msg("Transcription enabled with circuit breaker")
	}

	llmClient, err := llm.New(ctx, &cfg.LLM, badgerCache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create LLM client (GEMINI_API_KEY is required)")
	}
	logging.Info().Msg("Gemini client initialized")

	var ttsClient *tts.Client
	if sc, err := tts.New(&cfg.TTS); err != nil {
		if errors.Is(err, tts.ErrDisabled) {
			logging.Info().Msg("TTS disabled, summaries will not be narrated")
		} else {
			logging.Fatal().Err(err).Msg("Failed to create TTS client")
		}
	} else {
		ttsClient = sc
		logging.Info().Msg("ElevenLabs narration enabled")
	}

	// Authentication
	var authenticator auth.Authenticator
	var loginManager *auth.LoginManager

	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err := auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		loginManager, err = auth.NewLoginManager(&cfg.Security, jwtManager)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize login manager")
		}
		authenticator = jwtManager
		logging.Info().Msg("JWT authentication enabled")

	case "oidc":
		oidcAuth, err := auth.NewOIDCAuthenticator(ctx, &cfg.Security.OIDC)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize OIDC authenticator")
		}
		authenticator = oidcAuth
		logging.Info().Str("issuer", cfg.Security.OIDC.IssuerURL).Msg("OIDC authentication enabled")

	case "none":
		authenticator = auth.NoneAuthenticator{}
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  Every request is treated as the local development user.")
		logging.Warn().Msg("  NEVER use AUTH_MODE=none in production or on public networks!")
		logging.Warn().Msg("============================================================")

	default:
		logging.Fatal().Str("auth_mode", cfg.Security.AuthMode).Msg("Unknown auth mode")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	wsHub := ws.NewHub()

	// Entry pipeline. Interface fields are assigned conditionally so a
	// nil *Client never becomes a non-nil interface.
	trackerDeps := tracker.Deps{
		DB:        db,
		Extractor: llmClient,
		Notifier:  wsHub,
		Memory:    memCache,
	}
	if mediaClient != nil {
		trackerDeps.Uploader = mediaClient
	}
	if transcriber != nil {
		trackerDeps.Transcriber = transcriber
	}
	trackerSvc := tracker.NewService(trackerDeps, &cfg.Tracker)

	// Weekly summaries
	summaryDeps := summary.Deps{
		DB:       db,
		Narrator: llmClient,
		Notifier: wsHub,
	}
	if ttsClient != nil {
		summaryDeps.Synthesizer = ttsClient
	}
	if mediaClient != nil {
		summaryDeps.Uploader = mediaClient
	}
	summarySvc, err := summary.NewService(summaryDeps, &cfg.Summary)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create summary service")
	}

	scheduler, err := summary.NewScheduler(summarySvc, summary.SchedulerConfig{
		Enabled:          cfg.Summary.Enabled,
		CronSchedule:     cfg.Summary.CronSchedule,
		CheckInterval:    cfg.Summary.CheckInterval,
		ExecutionTimeout: cfg.Summary.ExecutionTimeout,
		MaxConcurrent:    cfg.Summary.MaxConcurrent,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create summary scheduler")
	}

	// HTTP surface
	handler := api.NewHandler(api.HandlerDeps{
		DB:        db,
		Tracker:   trackerSvc,
		Summaries: summarySvc,
		Hub:       wsHub,
		Login:     loginManager,
		Config:    cfg,
	})
	router := api.NewRouter(handler, authenticator)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervisor tree
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewCacheGCService(badgerCacheOrNil(badgerCache), memCache, cfg.Cache.GCInterval))
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddMessagingService(services.NewSummarySchedulerService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// badgerCacheOrNil avoids handing a typed nil *cache.Cache to the GC
// service's interface field.
func badgerCacheOrNil(c *cache.Cache) services.CacheGC {
	if c == nil {
		return nil
	}
	return c
}
