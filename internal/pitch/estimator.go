// Package pitch resolves the pitch-scaling factor applied to
// synthesized speech. Resolution order: explicit caller override,
// model-assisted suggestion, rule-based heuristic, neutral 1.0.
package pitch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voxforge/speech-gateway/internal/mistral"
	"github.com/voxforge/speech-gateway/internal/observability"
)

const (
	// Neutral leaves the audio pitch unchanged
	Neutral = 1.0

	// MinFactor and MaxFactor bound any model-suggested value
	MinFactor = 0.7
	MaxFactor = 1.3
)

// Source identifies what produced the resolved pitch factor
type Source string

const (
	SourceOverride  Source = "override"
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
	SourceNeutral   Source = "neutral"
)

// Suggester is the slice of the chat client the estimator needs
type Suggester interface {
	ChatComplete(ctx context.Context, req mistral.ChatRequest) (*mistral.ChatCompletion, error)
}

// Estimator resolves pitch factors, delegating to the chat model when
// one is available and the caller asked for optimization.
type Estimator struct {
	chat   Suggester
	logger zerolog.Logger
}

// NewEstimator creates an Estimator. chat may be nil when the model
// client never initialized; resolution then falls back to the
// heuristic.
func NewEstimator(chat Suggester, logger zerolog.Logger) *Estimator {
	return &Estimator{chat: chat, logger: logger}
}

// Resolve returns the pitch factor for the given utterance. Estimation
// failure never propagates: every path ends in a concrete factor.
func (e *Estimator) Resolve(ctx context.Context, text string, override *float64, optimize bool) (float64, Source) {
	factor, source := e.resolve(ctx, text, override, optimize)
	observability.RecordPitchResolution(string(source))
	return factor, source
}

func (e *Estimator) resolve(ctx context.Context, text string, override *float64, optimize bool) (float64, Source) {
	if override != nil {
		return *override, SourceOverride
	}

	if !optimize {
		return Neutral, SourceNeutral
	}

	if e.chat == nil {
		return Heuristic(text), SourceHeuristic
	}

	completion, err := e.chat.ChatComplete(ctx, mistral.ChatRequest{
		Messages: []mistral.Message{
			{Role: "user", Content: suggestionPrompt(text)},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		// Remote failure degrades to neutral: the utterance still gets
		// synthesized, just without pitch optimization.
		e.logger.Warn().Err(err).Msg("pitch suggestion call failed, using neutral factor")
		observability.RecordError("remote_api", "pitch")
		return Neutral, SourceNeutral
	}

	suggested, ok := extractSuggestion(completion.Content)
	if !ok {
		e.logger.Debug().Str("reply", completion.Content).Msg("unparsable pitch suggestion, using heuristic")
		return Heuristic(text), SourceHeuristic
	}

	return clamp(suggested), SourceModel
}

// Heuristic is the fixed rule-based pitch guess used when the model is
// unavailable or its reply cannot be parsed.
func Heuristic(text string) float64 {
	switch {
	case strings.Contains(text, "?"):
		return 1.05
	case strings.Contains(text, "!"):
		return 1.10
	case len(text) > 100:
		return 0.95
	default:
		return Neutral
	}
}

type suggestion struct {
	PitchFactor float64 `json:"pitch_factor"`
	Reasoning   string  `json:"reasoning"`
}

// extractSuggestion performs a best-effort parse of a JSON suggestion
// embedded in free-form model prose: only the substring between the
// first '{' and the last '}' is considered.
func extractSuggestion(reply string) (float64, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return 0, false
	}

	var s suggestion
	if err := json.Unmarshal([]byte(reply[start:end+1]), &s); err != nil {
		return 0, false
	}
	if s.PitchFactor <= 0 {
		return 0, false
	}
	return s.PitchFactor, true
}

func clamp(factor float64) float64 {
	if factor < MinFactor {
		return MinFactor
	}
	if factor > MaxFactor {
		return MaxFactor
	}
	return factor
}

func suggestionPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following utterance and suggest a pitch factor for speech synthesis.
Consider the sentence type (question, exclamation, statement), sentiment, and length/complexity.
Suggest a value between 0.8 and 1.2 where 1.0 is neutral.
Respond with a JSON object containing "pitch_factor" (float) and "reasoning" (string).

Utterance: %q`, text)
}
