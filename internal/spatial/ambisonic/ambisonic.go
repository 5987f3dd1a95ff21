// Package ambisonic implements a minimal first-order B-format encode/decode
// pipeline: many mono point sources are encoded into a shared four-channel
// (W,X,Y,Z) accumulator, then the accumulator is decoded once to a target
// speaker layout. This package only ever decodes to binaural stereo, the
// only layout the spatializer needs.
package ambisonic

import (
	"math"

	"github.com/tr-nc/petalsonic/internal/geom"
)

// sqrt2 normalizes the W (omnidirectional) channel per the standard
// SN3D/FuMa first-order convention.
const sqrt2 = 1.4142135

// Accumulator holds the four B-format channels for one render block. It is
// allocated once per Spatializer.Prepare and reused every tick.
type Accumulator struct {
	W, X, Y, Z []float32
}

// NewAccumulator allocates an accumulator sized for blockSize frames.
func NewAccumulator(blockSize int) *Accumulator {
	return &Accumulator{
		W: make([]float32, blockSize),
		X: make([]float32, blockSize),
		Y: make([]float32, blockSize),
		Z: make([]float32, blockSize),
	}
}

// Reset zeroes the accumulator in place, ready for the next block.
func (a *Accumulator) Reset() {
	for i := range a.W {
		a.W[i] = 0
		a.X[i] = 0
		a.Y[i] = 0
		a.Z[i] = 0
	}
}

// Encode adds mono, scaled by gain, into the accumulator using the unit
// direction dir (listener-relative, already normalized by the caller).
func (a *Accumulator) Encode(mono []float32, dir geom.Vec3, gain float32) {
	wGain := gain / sqrt2
	xGain := gain * dir.X
	yGain := gain * dir.Y
	zGain := gain * dir.Z
	n := len(mono)
	if n > len(a.W) {
		n = len(a.W)
	}
	for i := 0; i < n; i++ {
		s := mono[i]
		a.W[i] += s * wGain
		a.X[i] += s * xGain
		a.Y[i] += s * yGain
		a.Z[i] += s * zGain
	}
}

// virtualMicGain is a cardioid pickup pattern response for a microphone
// pointed in direction dir, decoding one B-format frame.
func virtualMicGain(w, x, y, z float32, dir geom.Vec3) float32 {
	return w*sqrt2*0.5 + 0.5*(x*dir.X+y*dir.Y+z*dir.Z)
}

// DecodeStereo renders the accumulator to interleaved stereo using two
// virtual cardioid microphones angled at +/-100 degrees azimuth from
// forward, a conventional simple ambisonic-to-stereo decode.
func DecodeStereo(a *Accumulator, out []float32) {
	// +/-100 degrees from forward (-Z), in the XZ plane.
	const angle = 100.0 * math.Pi / 180.0
	leftDir := geom.Vec3{X: float32(-math.Sin(angle)), Y: 0, Z: float32(-math.Cos(angle))}
	rightDir := geom.Vec3{X: float32(math.Sin(angle)), Y: 0, Z: float32(-math.Cos(angle))}

	n := len(a.W)
	if n*2 > len(out) {
		n = len(out) / 2
	}
	for i := 0; i < n; i++ {
		l := virtualMicGain(a.W[i], a.X[i], a.Y[i], a.Z[i], leftDir)
		r := virtualMicGain(a.W[i], a.X[i], a.Y[i], a.Z[i], rightDir)
		out[i*2] = l
		out[i*2+1] = r
	}
}
