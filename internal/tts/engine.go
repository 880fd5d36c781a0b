// Package tts invokes the external kokoro-tts executable to turn text
// into raw WAV audio on disk.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"github.com/voxforge/speech-gateway/internal/config"
	"github.com/voxforge/speech-gateway/internal/observability"
)

// languageTokens maps caller language codes to the engine's own locale
// tokens. Unknown codes fall back to en-us.
var languageTokens = map[string]string{
	"en": "en-us",
	"es": "es",
	"fr": "fr-fr",
	"hi": "hi",
	"it": "it",
	"ja": "ja",
	"pt": "pt-br",
	"zh": "cmn",
}

const defaultLanguageToken = "en-us"

// Language describes one supported language for the /languages listing
type Language struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Engines []string `json:"engines"`
}

// Engine runs the synthesis executable as a child process with a
// bounded wall-clock timeout.
type Engine struct {
	cmd        []string
	voice      string
	modelPath  string
	voicesPath string
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewEngine creates an Engine from configuration. The configured
// command line is parsed shell-style so wrappers and flags survive.
func NewEngine(cfg *config.Config, logger zerolog.Logger) (*Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.EngineCommand)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command is empty")
	}

	return &Engine{
		cmd:        args,
		voice:      cfg.EngineVoice,
		modelPath:  cfg.EngineModelPath,
		voicesPath: cfg.EngineVoicesPath,
		timeout:    time.Duration(cfg.EngineTimeout) * time.Second,
		logger:     logger,
	}, nil
}

// Available reports whether the engine executable can be found on PATH
func (e *Engine) Available() (bool, string) {
	if _, err := exec.LookPath(e.cmd[0]); err != nil {
		return false, fmt.Sprintf("executable %q not found", e.cmd[0])
	}
	return true, ""
}

// Synthesize converts text to speech and returns the path of the raw
// WAV output file. The caller owns the returned file and must remove
// it. The temporary text-input file is always removed before return.
func (e *Engine) Synthesize(ctx context.Context, text, language string) (string, error) {
	input, err := os.CreateTemp("", "speech_in_*.txt")
	if err != nil {
		return "", fmt.Errorf("create input file: %w", err)
	}
	defer os.Remove(input.Name())

	if _, err := input.WriteString(text); err != nil {
		input.Close()
		return "", fmt.Errorf("write input file: %w", err)
	}
	if err := input.Close(); err != nil {
		return "", fmt.Errorf("close input file: %w", err)
	}

	output, err := os.CreateTemp("", "speech_raw_*.wav")
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	outputPath := output.Name()
	output.Close()

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := e.buildArgs(input.Name(), outputPath, language)
	command := exec.CommandContext(cctx, e.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	start := time.Now()
	runErr := command.Run()
	observability.RecordEngineLatency(time.Since(start).Seconds())

	if runErr != nil {
		os.Remove(outputPath)
		invokeErr := e.classify(cctx, runErr, stdout.String(), stderr.String())
		observability.RecordError(string(invokeErr.Kind), "engine")
		return "", invokeErr
	}

	e.logger.Debug().
		Str("language", language).
		Dur("elapsed", time.Since(start)).
		Msg("synthesis engine finished")

	return outputPath, nil
}

// buildArgs assembles the engine invocation. Model asset paths are
// passed explicitly only when the files exist; otherwise the engine is
// trusted to find its own defaults. The voice is always pinned so the
// engine never drops into its interactive voice picker.
func (e *Engine) buildArgs(inputPath, outputPath, language string) []string {
	args := append([]string{}, e.cmd[1:]...)
	args = append(args, inputPath, outputPath,
		"--format", "wav",
		"--lang", mapLanguage(language),
		"--voice", e.voice,
	)

	if e.modelPath != "" {
		if _, err := os.Stat(e.modelPath); err == nil {
			args = append(args, "--model", e.modelPath)
		}
	}
	if e.voicesPath != "" {
		if _, err := os.Stat(e.voicesPath); err == nil {
			args = append(args, "--voices", e.voicesPath)
		}
	}

	return args
}

func (e *Engine) classify(ctx context.Context, runErr error, stdout, stderr string) *InvokeError {
	invokeErr := &InvokeError{
		Command: e.cmd[0],
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     runErr,
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		invokeErr.Kind = InvokeTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		invokeErr.Kind = InvokeCanceled
	case errors.Is(runErr, exec.ErrNotFound):
		invokeErr.Kind = InvokeNotFound
	default:
		invokeErr.Kind = InvokeExit
	}

	return invokeErr
}

func mapLanguage(code string) string {
	if token, ok := languageTokens[code]; ok {
		return token
	}
	return defaultLanguageToken
}

// SupportedLanguages returns the static language listing served by the
// /languages endpoint.
func SupportedLanguages() []Language {
	return []Language{
		{Code: "en", Name: "English", Engines: []string{"kokoro"}},
		{Code: "es", Name: "Spanish", Engines: []string{"kokoro"}},
		{Code: "fr", Name: "French", Engines: []string{"kokoro"}},
		{Code: "hi", Name: "Hindi", Engines: []string{"kokoro"}},
		{Code: "it", Name: "Italian", Engines: []string{"kokoro"}},
		{Code: "ja", Name: "Japanese", Engines: []string{"kokoro"}},
		{Code: "pt", Name: "Portuguese", Engines: []string{"kokoro"}},
		{Code: "zh", Name: "Mandarin Chinese", Engines: []string{"kokoro"}},
	}
}
