// Package loader decodes, downmixes, resamples, and optionally normalizes
// an encoded audio source into an internal/audiobuf.Buffer ready for
// registration with a World. It does its work off the render thread and
// allocates freely.
package loader

import (
	"fmt"
	"io"

	"github.com/tr-nc/petalsonic/internal/audiobuf"
	"github.com/tr-nc/petalsonic/internal/loader/resample"
)

// MonoConvert selects how multi-channel source audio is folded to mono.
type MonoConvert int

const (
	// MonoNever leaves the channel count untouched.
	MonoNever MonoConvert = iota
	// MonoIfMultiChannel downmixes only when the source has more than one
	// channel; a mono source passes through unchanged.
	MonoIfMultiChannel
	// MonoForce always downmixes to mono, even if the source is already
	// mono (a no-op in that case).
	MonoForce
)

// peakTargetLinear is -1 dBFS expressed as a linear amplitude.
const peakTargetLinear = 0.891251

// Options controls how Load shapes the decoded samples before they become
// an audiobuf.Buffer.
type Options struct {
	// TargetRate is the output sample rate. Zero means "use the source's
	// native rate" (callers normally pass the World's sample rate).
	TargetRate uint32
	ConvertToMono MonoConvert
	Normalize     bool
}

// Load decodes r with dec, applies Options, and returns a ready-to-register
// audio buffer.
func Load(r io.Reader, dec Decoder, opts Options) (*audiobuf.Buffer, error) {
	decoded, err := dec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if decoded.Rate == 0 || decoded.Channels <= 0 {
		return nil, fmt.Errorf("decode: invalid stream (rate=%d channels=%d)", decoded.Rate, decoded.Channels)
	}
	if len(decoded.Samples) == 0 {
		return nil, fmt.Errorf("decode: empty input")
	}

	samples := decoded.Samples
	channels := decoded.Channels

	switch opts.ConvertToMono {
	case MonoForce:
		samples = resample.Downmix(samples, channels)
		channels = 1
	case MonoIfMultiChannel:
		if channels > 1 {
			samples = resample.Downmix(samples, channels)
			channels = 1
		}
	case MonoNever:
		// leave as-is
	}

	targetRate := opts.TargetRate
	if targetRate == 0 {
		targetRate = decoded.Rate
	}
	if targetRate != decoded.Rate {
		samples, err = resampleGuarded(samples, channels, decoded.Rate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("resample: %w", err)
		}
	}

	if opts.Normalize {
		samples = normalize(samples)
	}

	buf, err := audiobuf.New(targetRate, uint8(channels), samples)
	if err != nil {
		return nil, fmt.Errorf("build buffer: %w", err)
	}
	return buf, nil
}

func resampleGuarded(samples []float32, channels int, srcRate, dstRate uint32) (out []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resample panic: %v", r)
		}
	}()
	return resample.Ratio(samples, channels, srcRate, dstRate), nil
}

// normalize scales samples so the peak absolute amplitude sits at -1 dBFS.
// Silent input (peak ~0) is returned unchanged.
func normalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak < 1e-9 {
		return samples
	}
	gain := float32(peakTargetLinear) / peak
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * gain
	}
	return out
}

// fundamentalFreq is a test helper exposed for loader round-trip
// properties: it estimates the dominant frequency of a mono signal from the
// span between its first and last zero crossings (each crossing position
// linearly interpolated between samples), which is accurate enough for the
// pure sine test fixtures used by this package's tests.
func fundamentalFreq(samples []float32, rate uint32) float64 {
	crossings := 0
	var first, last float64
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		if (a < 0) != (b < 0) {
			pos := float64(i-1) + float64(a)/float64(a-b)
			if crossings == 0 {
				first = pos
			}
			last = pos
			crossings++
		}
	}
	if crossings < 2 || last <= first {
		return 0
	}
	seconds := (last - first) / float64(rate)
	return float64(crossings-1) / 2 / seconds
}
