// Package audio post-processes decoded synthesis output: pitch
// adjustment via sample-rate reinterpretation plus resampling, and
// peak loudness normalization.
package audio

import (
	"fmt"
	"io"
	"math"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// peakHeadroom is the fraction of full scale the loudest sample is
// normalized to.
const peakHeadroom = 0.9

// Processor decodes, pitch-shifts, normalizes and re-encodes WAV
// buffers. A disabled processor turns every operation into a no-op so
// the synthesis pipeline can copy raw engine output through unchanged.
type Processor struct {
	enabled bool
	logger  zerolog.Logger
}

// NewProcessor creates a Processor. enabled is recorded once at
// startup; it never changes afterwards.
func NewProcessor(enabled bool, logger zerolog.Logger) *Processor {
	return &Processor{enabled: enabled, logger: logger}
}

// Enabled reports whether audio post-processing is active
func (p *Processor) Enabled() bool {
	return p.enabled
}

// Decode reads a WAV stream into an in-memory sample buffer
func (p *Processor) Decode(r io.ReadSeeker) (*gaudio.IntBuffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("decoded WAV contains no samples")
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(decoder.BitDepth)
	}

	return buf, nil
}

// AdjustPitch shifts perceived pitch by the given factor. The buffer's
// sample rate is reinterpreted as rate*factor and the samples are then
// resampled back to the original rate, which leaves the pitch shifted.
// Factor 1.0 is the identity.
func (p *Processor) AdjustPitch(buf *gaudio.IntBuffer, factor float64) *gaudio.IntBuffer {
	if !p.enabled || factor == 1.0 {
		return buf
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	if frames < 2 {
		return buf
	}

	// Resampling from the reinterpreted rate (rate*factor) back to the
	// original rate scales the frame count by 1/factor.
	outFrames := int(float64(frames) / factor)
	if outFrames < 1 {
		return buf
	}

	out := make([]int, outFrames*channels)
	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) * factor
		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= frames {
			idx1 = frames - 1
		}
		fraction := srcPos - float64(idx0)

		for ch := 0; ch < channels; ch++ {
			s0 := float64(buf.Data[idx0*channels+ch])
			s1 := float64(buf.Data[idx1*channels+ch])
			out[i*channels+ch] = int(s0*(1.0-fraction) + s1*fraction)
		}
	}

	return &gaudio.IntBuffer{
		Format:         buf.Format,
		Data:           out,
		SourceBitDepth: buf.SourceBitDepth,
	}
}

// Normalize scales samples in place so the loudest peak sits at 90% of
// full scale. Silent buffers are rejected rather than divided by zero.
func (p *Processor) Normalize(buf *gaudio.IntBuffer) error {
	if !p.enabled {
		return nil
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	fullScale := math.Pow(2, float64(bitDepth-1)) - 1

	peak := 0
	for _, s := range buf.Data {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak == 0 {
		return fmt.Errorf("cannot normalize silent buffer")
	}

	ratio := fullScale * peakHeadroom / float64(peak)
	for i, s := range buf.Data {
		buf.Data[i] = int(float64(s) * ratio)
	}

	return nil
}

// Encode writes the buffer as 16-bit PCM WAV
func (p *Processor) Encode(w io.WriteSeeker, buf *gaudio.IntBuffer) error {
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}

	enc := wav.NewEncoder(w, buf.Format.SampleRate, bitDepth, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close WAV encoder: %w", err)
	}
	return nil
}
