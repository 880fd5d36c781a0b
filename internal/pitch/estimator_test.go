package pitch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voxforge/speech-gateway/internal/mistral"
)

type fakeSuggester struct {
	reply string
	err   error
	calls int
}

func (f *fakeSuggester) ChatComplete(ctx context.Context, req mistral.ChatRequest) (*mistral.ChatCompletion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &mistral.ChatCompletion{Model: "test", Content: f.reply}, nil
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"question", "What is your name?", 1.05},
		{"exclamation", "This is amazing!", 1.10},
		{"question wins over exclamation", "Really?!", 1.05},
		{"long text", strings.Repeat("a", 101), 0.95},
		{"short statement", "Hello there", 1.0},
		{"exactly 100 chars", strings.Repeat("a", 100), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Heuristic(tt.text); got != tt.want {
				t.Errorf("Heuristic(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolve_OverrideTakesPrecedence(t *testing.T) {
	suggester := &fakeSuggester{reply: `{"pitch_factor": 1.2, "reasoning": "x"}`}
	e := NewEstimator(suggester, zerolog.Nop())

	override := 0.85
	factor, source := e.Resolve(context.Background(), "What?", &override, true)

	if factor != 0.85 {
		t.Errorf("Expected override factor 0.85, got %v", factor)
	}
	if source != SourceOverride {
		t.Errorf("Expected source override, got %s", source)
	}
	if suggester.calls != 0 {
		t.Error("Expected no model call when override is supplied")
	}
}

func TestResolve_DisabledReturnsNeutral(t *testing.T) {
	suggester := &fakeSuggester{reply: `{"pitch_factor": 1.2}`}
	e := NewEstimator(suggester, zerolog.Nop())

	factor, source := e.Resolve(context.Background(), "What is this?", nil, false)

	if factor != Neutral {
		t.Errorf("Expected neutral factor, got %v", factor)
	}
	if source != SourceNeutral {
		t.Errorf("Expected source neutral, got %s", source)
	}
	if suggester.calls != 0 {
		t.Error("Expected no model call when optimization is disabled")
	}
}

func TestResolve_NilSuggesterUsesHeuristic(t *testing.T) {
	e := NewEstimator(nil, zerolog.Nop())

	factor, source := e.Resolve(context.Background(), "Hello?", nil, true)

	if factor != 1.05 {
		t.Errorf("Expected heuristic factor 1.05, got %v", factor)
	}
	if source != SourceHeuristic {
		t.Errorf("Expected source heuristic, got %s", source)
	}
}

func TestResolve_ModelSuggestion(t *testing.T) {
	suggester := &fakeSuggester{
		reply: "Sure! Here is my analysis:\n{\"pitch_factor\": 1.12, \"reasoning\": \"excited exclamation\"}\nHope that helps.",
	}
	e := NewEstimator(suggester, zerolog.Nop())

	factor, source := e.Resolve(context.Background(), "This is amazing!", nil, true)

	if factor != 1.12 {
		t.Errorf("Expected model factor 1.12, got %v", factor)
	}
	if source != SourceModel {
		t.Errorf("Expected source model, got %s", source)
	}
}

func TestResolve_ModelSuggestionClamped(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"clamped high", `{"pitch_factor": 2.5, "reasoning": "x"}`, MaxFactor},
		{"clamped low", `{"pitch_factor": 0.1, "reasoning": "x"}`, MinFactor},
		{"in range untouched", `{"pitch_factor": 0.9, "reasoning": "x"}`, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEstimator(&fakeSuggester{reply: tt.reply}, zerolog.Nop())
			factor, _ := e.Resolve(context.Background(), "Hello there", nil, true)
			if factor != tt.want {
				t.Errorf("Expected factor %v, got %v", tt.want, factor)
			}
		})
	}
}

func TestResolve_UnparsableReplyUsesHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no braces", "I think 1.1 would be good"},
		{"broken json", "{pitch_factor: 1.1"},
		{"missing field", `{"reasoning": "no factor here"}`},
		{"non-positive factor", `{"pitch_factor": -1.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEstimator(&fakeSuggester{reply: tt.reply}, zerolog.Nop())
			factor, source := e.Resolve(context.Background(), "What now?", nil, true)
			if factor != 1.05 {
				t.Errorf("Expected heuristic 1.05, got %v", factor)
			}
			if source != SourceHeuristic {
				t.Errorf("Expected source heuristic, got %s", source)
			}
		})
	}
}

func TestResolve_RemoteFailureDegradesToNeutral(t *testing.T) {
	e := NewEstimator(&fakeSuggester{err: errors.New("connection refused")}, zerolog.Nop())

	factor, source := e.Resolve(context.Background(), "Hello?", nil, true)

	if factor != Neutral {
		t.Errorf("Expected neutral factor after remote failure, got %v", factor)
	}
	if source != SourceNeutral {
		t.Errorf("Expected source neutral, got %s", source)
	}
}

func TestExtractSuggestion(t *testing.T) {
	// Outer braces win: first '{' to last '}'
	factor, ok := extractSuggestion(`prefix {"pitch_factor": 1.08, "reasoning": "text {with} braces"} suffix`)
	if !ok {
		t.Fatal("Expected successful extraction")
	}
	if factor != 1.08 {
		t.Errorf("Expected 1.08, got %v", factor)
	}
}
