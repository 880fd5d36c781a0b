// Package server maps the HTTP surface onto the synthesis
// orchestrator and the chat pass-through client.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voxforge/speech-gateway/internal/config"
	"github.com/voxforge/speech-gateway/internal/mistral"
	"github.com/voxforge/speech-gateway/internal/observability"
	"github.com/voxforge/speech-gateway/internal/storage"
	"github.com/voxforge/speech-gateway/internal/synthesis"
	"github.com/voxforge/speech-gateway/internal/tts"
)

const (
	serviceName    = "speech-gateway"
	serviceVersion = "1.0.0"
)

// Server holds the shared, request-independent dependencies. The chat
// client may be nil when no API key is configured; affected endpoints
// then report the dependency as unavailable.
type Server struct {
	cfg       *config.Config
	chat      *mistral.Client
	orch      *synthesis.Orchestrator
	store     *storage.Store
	engine    *tts.Engine
	processor processingCapability
	logger    zerolog.Logger
}

type processingCapability interface {
	Enabled() bool
}

// New creates a Server from its dependencies
func New(cfg *config.Config, chat *mistral.Client, orch *synthesis.Orchestrator, store *storage.Store, engine *tts.Engine, processor processingCapability, logger zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		chat:      chat,
		orch:      orch,
		store:     store,
		engine:    engine,
		processor: processor,
		logger:    logger,
	}
}

// Routes registers all handlers on a fresh mux
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth())
	mux.HandleFunc("POST /api/v1/tts", s.handleTTS)
	mux.HandleFunc("POST /api/v1/tts/mistral", s.handleTTSMistral)
	mux.HandleFunc("POST /api/v1/tts/audio", s.handleTTSAudio)
	mux.HandleFunc("GET /api/v1/audio/{filename}", s.handleAudioFile)
	mux.HandleFunc("GET /api/v1/languages", s.handleLanguages)
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/models", s.handleModels)

	if s.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return mux
}

// Handler wraps the routed mux with per-request logging. Every request
// gets a correlation ID, echoed back in X-Request-ID.
func (s *Server) Handler() http.Handler {
	mux := s.Routes()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := observability.NewRequestID()
		logger := observability.WithRequestID(requestID)
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		mux.ServeHTTP(w, r)

		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) handleHealth() http.HandlerFunc {
	optional := map[string]observability.DependencyCheck{
		"mistral": func() (bool, string) {
			if s.chat == nil {
				return false, "client not initialized"
			}
			return true, ""
		},
		"synthesis_engine": func() (bool, string) {
			return s.engine.Available()
		},
		"audio_processing": func() (bool, string) {
			if !s.processor.Enabled() {
				return false, "disabled by configuration"
			}
			return true, ""
		},
	}

	return observability.HealthCheckHandler(serviceName, serviceVersion, nil, optional)
}
