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

	"github.com/voxforge/speech-gateway/internal/audio"
	"github.com/voxforge/speech-gateway/internal/config"
	"github.com/voxforge/speech-gateway/internal/mistral"
	"github.com/voxforge/speech-gateway/internal/observability"
	"github.com/voxforge/speech-gateway/internal/pitch"
	"github.com/voxforge/speech-gateway/internal/server"
	"github.com/voxforge/speech-gateway/internal/storage"
	"github.com/voxforge/speech-gateway/internal/synthesis"
	"github.com/voxforge/speech-gateway/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("engine_command", cfg.EngineCommand).
		Str("audio_dir", cfg.AudioDir).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Gateway Service starting")

	// The chat client is optional: without an API key the service runs
	// degraded (no rewrite, no chat, heuristic-only pitch).
	chatClient, err := mistral.NewClient(cfg)
	if err != nil {
		if !errors.Is(err, mistral.ErrNotConfigured) {
			logger.Fatal().Err(err).Msg("Failed to create Mistral client")
		}
		logger.Warn().Msg("MISTRAL_API_KEY not set, chat endpoints disabled")
		chatClient = nil
	}

	engine, err := tts.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create synthesis engine")
	}
	if ok, reason := engine.Available(); !ok {
		logger.Warn().Str("reason", reason).Msg("Synthesis engine not available at startup")
	}

	store, err := storage.NewStore(cfg.AudioDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create artifact store")
	}

	processor := audio.NewProcessor(cfg.AudioProcessingEnabled, logger)

	// Assign through the interface only when the client exists, so the
	// estimator sees a true nil and falls back to the heuristic.
	var suggester pitch.Suggester
	if chatClient != nil {
		suggester = chatClient
	}
	estimator := pitch.NewEstimator(suggester, logger)

	orch := synthesis.NewOrchestrator(engine, estimator, processor, store, logger)

	srv := server.New(cfg, chatClient, orch, store, engine, processor, logger)

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // synthesis can be slow on long texts
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
