package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/voxforge/speech-gateway/internal/mistral"
	"github.com/voxforge/speech-gateway/internal/observability"
	"github.com/voxforge/speech-gateway/internal/pitch"
	"github.com/voxforge/speech-gateway/internal/storage"
	"github.com/voxforge/speech-gateway/internal/synthesis"
	"github.com/voxforge/speech-gateway/internal/tts"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// ttsRequest is the body of /api/v1/tts, /api/v1/tts/mistral and
// /api/v1/tts/audio.
type ttsRequest struct {
	Text          string   `json:"text"`
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Lang          string   `json:"lang,omitempty"`
	UseMistral    bool     `json:"use_mistral,omitempty"`
	ReturnAudio   bool     `json:"return_audio,omitempty"`
	OptimizePitch bool     `json:"optimize_pitch,omitempty"`
	PitchFactor   *float64 `json:"pitch_factor,omitempty"`
}

type ttsResponse struct {
	Success       bool           `json:"success"`
	Text          string         `json:"text"`
	ProcessedText string         `json:"processed_text"`
	Lang          string         `json:"lang"`
	Usage         *mistral.Usage `json:"usage"`
	AudioFile     *string        `json:"audio_file"`
	AudioURL      *string        `json:"audio_url"`
	PitchFactor   *float64       `json:"pitch_factor"`
}

type chatRequest struct {
	Message     string   `json:"message"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Speech Gateway",
		"version": serviceVersion,
		"status":  "running",
		"endpoints": map[string]string{
			"health":      "/health",
			"tts":         "/api/v1/tts",
			"tts_mistral": "/api/v1/tts/mistral",
			"tts_audio":   "/api/v1/tts/audio",
			"audio":       "/api/v1/audio/{filename}",
			"languages":   "/api/v1/languages",
			"chat":        "/api/v1/chat",
			"models":      "/api/v1/models",
		},
	})
}

// handleTTS runs the optional text-rewrite pass and, when requested,
// the synthesis pipeline. The rewrite result never feeds into
// synthesis: the engine always receives the original text.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	if err := validatePitchOverride(req.PitchFactor); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lang == "" {
		req.Lang = "en"
	}

	resp := ttsResponse{
		Success:       true,
		Text:          req.Text,
		ProcessedText: req.Text,
		Lang:          req.Lang,
	}

	if req.UseMistral {
		processed, usage, err := s.rewriteText(r, req)
		if err != nil {
			s.writeChatError(w, err)
			return
		}
		resp.ProcessedText = processed
		resp.Usage = usage
	}

	if req.ReturnAudio {
		result, err := s.orch.Run(r.Context(), synthesis.Request{
			Text:          req.Text,
			Language:      req.Lang,
			PitchFactor:   req.PitchFactor,
			OptimizePitch: req.OptimizePitch,
		})
		if err != nil {
			s.writeSynthesisError(w, err)
			return
		}

		audioURL := "/api/v1/audio/" + result.Artifact.Filename
		resp.AudioFile = &result.Artifact.Filename
		resp.AudioURL = &audioURL
		resp.PitchFactor = &result.PitchFactor
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleTTSMistral is the rewrite-only variant: no synthesis, just the
// model pass over the text.
func (s *Server) handleTTSMistral(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	if req.Lang == "" {
		req.Lang = "en"
	}

	processed, usage, err := s.rewriteText(r, req)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	model := req.Model
	if model == "" && s.chat != nil {
		model = s.chat.DefaultModel()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"model":          model,
		"original_text":  req.Text,
		"processed_text": processed,
		"lang":           req.Lang,
		"usage":          usage,
	})
}

// handleTTSAudio synthesizes and streams the audio bytes directly,
// with the request metadata carried in response headers.
func (s *Server) handleTTSAudio(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	if err := validatePitchOverride(req.PitchFactor); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lang == "" {
		req.Lang = "en"
	}

	processedText := req.Text
	if req.UseMistral {
		processed, _, err := s.rewriteText(r, req)
		if err != nil {
			s.writeChatError(w, err)
			return
		}
		processedText = processed
	}

	result, err := s.orch.Run(r.Context(), synthesis.Request{
		Text:          req.Text,
		Language:      req.Lang,
		PitchFactor:   req.PitchFactor,
		OptimizePitch: req.OptimizePitch,
	})
	if err != nil {
		s.writeSynthesisError(w, err)
		return
	}

	f, err := s.store.Open(result.Artifact.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact vanished after synthesis")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", result.Artifact.MediaType)
	w.Header().Set("X-Original-Text", headerSafe(req.Text))
	w.Header().Set("X-Processed-Text", headerSafe(processedText))
	w.Header().Set("X-Pitch-Factor", fmt.Sprintf("%g", result.PitchFactor))
	w.Header().Set("X-Audio-Filename", result.Artifact.Filename)

	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn().Err(err).Msg("streaming audio response interrupted")
	}
}

func (s *Server) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	f, err := s.store.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "audio file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open audio file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stat audio file")
		return
	}

	w.Header().Set("Content-Type", storage.MediaTypeFor(filename))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	languages := tts.SupportedLanguages()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"count":     len(languages),
		"languages": languages,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "mistral client not initialized")
		return
	}

	start := time.Now()
	completion, err := s.chat.ChatComplete(r.Context(), mistral.ChatRequest{
		Model:       req.Model,
		Messages:    []mistral.Message{{Role: "user", Content: req.Message}},
		Temperature: valueOr(req.Temperature, defaultTemperature),
		MaxTokens:   valueOrInt(req.MaxTokens, defaultMaxTokens),
	})
	observability.RecordChat(err == nil, time.Since(start).Seconds())
	if err != nil {
		s.logger.Error().Err(err).Msg("chat completion failed")
		writeError(w, http.StatusInternalServerError, "failed to process chat request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"model":    completion.Model,
		"message":  req.Message,
		"response": completion.Content,
		"usage":    completion.Usage,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "mistral client not initialized")
		return
	}

	models, err := s.chat.ListModels(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("model listing failed")
		writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(models),
		"models":  models,
	})
}

// rewriteText runs the optional model pass over the request text
func (s *Server) rewriteText(r *http.Request, req ttsRequest) (string, *mistral.Usage, error) {
	if s.chat == nil {
		return "", nil, errClientUnavailable
	}

	start := time.Now()
	completion, err := s.chat.ChatComplete(r.Context(), mistral.ChatRequest{
		Model:       req.Model,
		Messages:    []mistral.Message{{Role: "user", Content: req.Text}},
		Temperature: valueOr(req.Temperature, defaultTemperature),
		MaxTokens:   valueOrInt(req.MaxTokens, defaultMaxTokens),
	})
	observability.RecordChat(err == nil, time.Since(start).Seconds())
	if err != nil {
		return "", nil, err
	}

	usage := completion.Usage
	return completion.Content, &usage, nil
}

var errClientUnavailable = errors.New("mistral client not initialized")

func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, errClientUnavailable) {
		writeError(w, http.StatusServiceUnavailable, errClientUnavailable.Error())
		return
	}
	s.logger.Error().Err(err).Msg("text rewrite failed")
	writeError(w, http.StatusInternalServerError, "failed to process text")
}

func (s *Server) writeSynthesisError(w http.ResponseWriter, err error) {
	if errors.Is(err, synthesis.ErrEmptyText) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var invokeErr *tts.InvokeError
	if errors.As(err, &invokeErr) {
		s.logger.Error().
			Str("kind", string(invokeErr.Kind)).
			Str("stderr", invokeErr.Stderr).
			Msg("synthesis engine failure")
		writeError(w, http.StatusInternalServerError, invokeErr.Error())
		return
	}

	s.logger.Error().Err(err).Msg("synthesis failed")
	writeError(w, http.StatusInternalServerError, "synthesis failed")
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Success: false, Error: msg})
}

// validatePitchOverride rejects explicit pitch factors outside the
// supported range before they reach the audio pipeline. An unbounded
// factor would otherwise dictate the resample allocation size.
func validatePitchOverride(factor *float64) error {
	if factor == nil {
		return nil
	}
	if *factor < pitch.MinFactor || *factor > pitch.MaxFactor {
		return fmt.Errorf("pitch_factor must be between %g and %g", pitch.MinFactor, pitch.MaxFactor)
	}
	return nil
}

// headerSafe strips characters that cannot travel in an HTTP header
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func valueOr(p *float64, fallback float64) float64 {
	if p != nil {
		return *p
	}
	return fallback
}

func valueOrInt(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}
