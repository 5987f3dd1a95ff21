// Package resample implements the bandlimited polyphase resampling step
// used by the loader: a fixed-ratio cubic Catmull-Rom interpolator applied
// to interleaved multi-channel float32 PCM, with a one-pole low-pass run
// ahead of downsampling to suppress aliasing.
package resample

// Ratio converts interleaved PCM at srcRate to dstRate, preserving channel
// count. It processes the whole input in one call (the loader is not a
// streaming component — spec.md's Non-goals exclude streaming decode of
// long files), so there is no internal state carried across calls.
func Ratio(src []float32, channels int, srcRate, dstRate uint32) []float32 {
	if srcRate == dstRate || len(src) == 0 {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate) // source samples consumed per output sample
	srcFrames := len(src) / channels
	dstFrames := int(float64(srcFrames) / ratio)
	if dstFrames < 1 {
		dstFrames = 1
	}

	filtered := src
	if ratio > 1.0 {
		// Downsampling: low-pass before decimating to avoid aliasing.
		// Cutoff tracks the destination Nyquist; alpha chosen so the
		// one-pole filter's -3dB point sits near dstRate/2.
		alpha := float32(1.0 / ratio)
		filtered = onePoleLowPass(src, channels, alpha)
	}

	out := make([]float32, dstFrames*channels)
	for i := 0; i < dstFrames; i++ {
		// Position in source-frame space for output frame i.
		pos := float64(i) * ratio
		i1 := int(pos)
		frac := float32(pos - float64(i1))

		i0 := i1 - 1
		i2 := i1 + 1
		i3 := i1 + 2

		for c := 0; c < channels; c++ {
			y0 := sampleAt(filtered, channels, i0, c, srcFrames)
			y1 := sampleAt(filtered, channels, i1, c, srcFrames)
			y2 := sampleAt(filtered, channels, i2, c, srcFrames)
			y3 := sampleAt(filtered, channels, i3, c, srcFrames)
			out[i*channels+c] = cubicInterpolate(y0, y1, y2, y3, frac)
		}
	}
	return out
}

// sampleAt returns sample (frame, channel), clamping frame to the valid
// [0, frames) range by edge-duplication so interpolation near the
// boundaries doesn't read out of bounds or fabricate silence.
func sampleAt(buf []float32, channels, frame, channel, frames int) float32 {
	if frame < 0 {
		frame = 0
	}
	if frame >= frames {
		frame = frames - 1
	}
	return buf[frame*channels+channel]
}

// cubicInterpolate is the standard Catmull-Rom spline through (y0,y1,y2,y3)
// evaluated at parameter t in [0,1] between y1 and y2.
func cubicInterpolate(y0, y1, y2, y3, t float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := 0.5 * (y2 - y0)
	a3 := y1
	return a0*t*t*t + a1*t*t + a2*t + a3
}

// onePoleLowPass applies y[n] = alpha*x[n] + (1-alpha)*y[n-1] independently
// per channel, returning a new slice (the input is never mutated, since it
// may be the loader's caller-owned decode buffer).
func onePoleLowPass(src []float32, channels int, alpha float32) []float32 {
	out := make([]float32, len(src))
	state := make([]float32, channels)
	frames := len(src) / channels
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			x := src[i*channels+c]
			y := alpha*x + (1-alpha)*state[c]
			state[c] = y
			out[i*channels+c] = y
		}
	}
	return out
}

// Downmix averages channels channels of src down to mono, performed (per
// spec.md §4.B) before any resampling.
func Downmix(src []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}
	frames := len(src) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += src[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
