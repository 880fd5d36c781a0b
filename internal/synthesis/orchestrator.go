// Package synthesis runs one text-to-speech request end to end:
// engine invocation, pitch resolution, audio post-processing and
// artifact persistence.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxforge/speech-gateway/internal/audio"
	"github.com/voxforge/speech-gateway/internal/observability"
	"github.com/voxforge/speech-gateway/internal/pitch"
	"github.com/voxforge/speech-gateway/internal/storage"
)

// ErrEmptyText rejects requests before any subprocess or remote call
var ErrEmptyText = errors.New("text must not be empty")

// EngineInvoker produces a raw WAV file on disk from text
type EngineInvoker interface {
	Synthesize(ctx context.Context, text, language string) (string, error)
}

// PitchResolver resolves the pitch factor for an utterance
type PitchResolver interface {
	Resolve(ctx context.Context, text string, override *float64, optimize bool) (float64, pitch.Source)
}

// Request describes one synthesis call
type Request struct {
	Text          string
	Language      string
	PitchFactor   *float64 // explicit override, wins over estimation
	OptimizePitch bool     // enable model/heuristic pitch estimation
}

// Result is the outcome of a successful synthesis
type Result struct {
	Artifact    storage.Artifact
	PitchFactor float64
	PitchSource pitch.Source
}

// Orchestrator composes the synthesis pipeline. All dependencies are
// injected once at startup; the orchestrator itself is stateless and
// safe for concurrent requests.
type Orchestrator struct {
	engine    EngineInvoker
	estimator PitchResolver
	processor *audio.Processor
	store     *storage.Store
	logger    zerolog.Logger
}

// NewOrchestrator wires the pipeline together
func NewOrchestrator(engine EngineInvoker, estimator PitchResolver, processor *audio.Processor, store *storage.Store, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:    engine,
		estimator: estimator,
		processor: processor,
		store:     store,
		logger:    logger,
	}
}

// Run executes the pipeline: invoke the engine on the original text,
// resolve the pitch factor, decode, adjust and normalize, persist.
// Post-processing failures degrade to the raw engine output; only
// validation and the engine invocation itself are fatal.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := o.run(ctx, req)
	observability.RecordSynthesis(err == nil, time.Since(start).Seconds())
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	rawPath, err := o.engine.Synthesize(ctx, req.Text, req.Language)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	// The intermediate raw output never outlives the request
	defer os.Remove(rawPath)

	factor, source := o.estimator.Resolve(ctx, req.Text, req.PitchFactor, req.OptimizePitch)

	artifact, err := o.postProcess(rawPath, factor)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("artifact", artifact.Filename).
		Float64("pitch_factor", factor).
		Str("pitch_source", string(source)).
		Msg("synthesis complete")

	return &Result{Artifact: artifact, PitchFactor: factor, PitchSource: source}, nil
}

// postProcess decodes the raw engine output, applies pitch adjustment
// and normalization, and persists the final artifact. Every
// degradation path falls back to a byte-copy of the raw output.
func (o *Orchestrator) postProcess(rawPath string, factor float64) (storage.Artifact, error) {
	if !o.processor.Enabled() {
		return o.persistRaw(rawPath)
	}

	raw, err := os.Open(rawPath)
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("open raw output: %w", err)
	}
	defer raw.Close()

	buf, err := o.processor.Decode(raw)
	if err != nil {
		o.logger.Warn().Err(err).Msg("raw output not decodable, copying through")
		observability.RecordError("decode", "synthesis")
		return o.persistRaw(rawPath)
	}

	buf = o.processor.AdjustPitch(buf, factor)

	if err := o.processor.Normalize(buf); err != nil {
		o.logger.Warn().Err(err).Msg("normalization failed, keeping un-normalized buffer")
		observability.RecordError("normalize", "synthesis")
	}

	f, artifact, err := o.store.Create(".wav")
	if err != nil {
		return storage.Artifact{}, err
	}

	if err := o.processor.Encode(f, buf); err != nil {
		f.Close()
		o.store.Remove(artifact.Filename)
		o.logger.Warn().Err(err).Msg("re-encode failed, copying raw output through")
		observability.RecordError("encode", "synthesis")
		return o.persistRaw(rawPath)
	}
	if err := f.Close(); err != nil {
		return storage.Artifact{}, fmt.Errorf("close artifact: %w", err)
	}

	o.recordSize(artifact)
	return artifact, nil
}

func (o *Orchestrator) persistRaw(rawPath string) (storage.Artifact, error) {
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("read raw output: %w", err)
	}

	artifact, err := o.store.Save(data, ".wav")
	if err != nil {
		return storage.Artifact{}, err
	}

	o.recordSize(artifact)
	return artifact, nil
}

func (o *Orchestrator) recordSize(artifact storage.Artifact) {
	if info, err := os.Stat(artifact.Path); err == nil {
		observability.RecordArtifactBytes(info.Size())
	}
}
