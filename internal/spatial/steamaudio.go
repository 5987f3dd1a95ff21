package spatial

import (
	"github.com/mjibson/go-dsp/fft"

	"github.com/tr-nc/petalsonic/internal/geom"
	"github.com/tr-nc/petalsonic/internal/raytrace"
	"github.com/tr-nc/petalsonic/internal/spatial/ambisonic"
)

// airAbsorptionRef is the distance, in meters, beyond which the one-pole
// air-absorption filter starts rolling off high frequencies.
const airAbsorptionRef = 3.0

// HRTFImpulse is a pair of impulse responses used for true convolution-based
// binaural rendering, loaded by the caller (typically via loader/wavdecode)
// from WorldConfig.HRTFPath. Left and Right must have equal, non-zero length.
type HRTFImpulse struct {
	Left, Right []float32
}

type steamAudioSource struct {
	position      geom.Vec3
	lowpassSt     float32   // one-pole air-absorption filter state
	filterScratch []float32 // pre-allocated air-absorption output, one blockSize-length buffer per source
}

// SteamAudio is the required "Steam Audio adapter": ambisonic encode/decode
// plus a distance-tracking air-absorption filter, with optional true HRTF
// convolution when an impulse response pair is supplied.
type SteamAudio struct {
	rate      uint32
	blockSize int

	listener geom.Pose
	sources  map[uint32]*steamAudioSource
	acc      *ambisonic.Accumulator
	stereo   []float32 // scratch for the pre-HRTF ambisonic decode

	hrtf       *HRTFImpulse
	hrtfFFTLen int
	hrtfSpecL  []complex128 // precomputed spectrum of hrtf.Left, padded to hrtfFFTLen
	hrtfSpecR  []complex128 // precomputed spectrum of hrtf.Right, padded to hrtfFFTLen
	overlapL   []float32
	overlapR   []float32

	// convolveHRTF scratch, pre-allocated once in Prepare so Process never
	// allocates beyond what the go-dsp fft package itself allocates
	// internally.
	convLeft   []float32
	convRight  []float32
	convPadded []complex128
	convProd   []complex128
	convTime   []float32

	rays raytrace.Provider
}

// NewSteamAudio constructs an unprepared SteamAudio adapter. hrtf may be nil,
// in which case the one-pole air-absorption filter is the only frequency-
// dependent effect applied. rays may be nil, in which case occlusion is
// skipped entirely and the direct effect is free-field distance attenuation
// plus air absorption only.
func NewSteamAudio(hrtf *HRTFImpulse, rays raytrace.Provider) *SteamAudio {
	if rays == nil {
		rays = raytrace.None{}
	}
	return &SteamAudio{
		listener: geom.DefaultPose,
		sources:  make(map[uint32]*steamAudioSource),
		hrtf:     hrtf,
		rays:     rays,
	}
}

func (s *SteamAudio) Prepare(rate uint32, blockSize int, outChannels int) error {
	if rate == 0 || blockSize <= 0 || outChannels != 2 {
		return ErrUnsupportedFormat{Rate: rate, OutChannels: outChannels}
	}
	s.rate = rate
	s.blockSize = blockSize
	s.acc = ambisonic.NewAccumulator(blockSize)
	s.stereo = make([]float32, blockSize*2)

	if s.hrtf != nil {
		irLen := len(s.hrtf.Left)
		n := 1
		for n < blockSize+irLen-1 {
			n *= 2
		}
		s.hrtfFFTLen = n
		s.overlapL = make([]float32, irLen-1)
		s.overlapR = make([]float32, irLen-1)
		s.hrtfSpecL = fftSpectrum(s.hrtf.Left, n)
		s.hrtfSpecR = fftSpectrum(s.hrtf.Right, n)

		s.convLeft = make([]float32, blockSize)
		s.convRight = make([]float32, blockSize)
		s.convPadded = make([]complex128, n)
		s.convProd = make([]complex128, n)
		s.convTime = make([]float32, blockSize)
	}
	return nil
}

func (s *SteamAudio) CreateSource(id uint32, initial geom.Vec3) error {
	s.sources[id] = &steamAudioSource{
		position:      initial,
		filterScratch: make([]float32, s.blockSize),
	}
	return nil
}

func (s *SteamAudio) DestroySource(id uint32) {
	delete(s.sources, id)
}

func (s *SteamAudio) SetListener(pose geom.Pose) {
	s.listener = pose
}

func (s *SteamAudio) SetSourcePosition(id uint32, position geom.Vec3) {
	if src, ok := s.sources[id]; ok {
		src.position = position
	}
}

func (s *SteamAudio) Process(inputs []Input, out []float32) error {
	s.acc.Reset()

	for _, in := range inputs {
		src, ok := s.sources[in.ID]
		if !ok {
			return ErrUnknownSource{ID: in.ID}
		}

		toSource := src.position.Sub(s.listener.Position)
		distance := toSource.Length()
		dir := listenerRelativeDir(toSource, s.listener)

		attenuation := float32(1.0)
		if distance > refDistance {
			ratio := refDistance / distance
			attenuation = ratio * ratio
		}
		attenuation *= s.occlusionGain(src.position, distance)

		filtered := s.applyAirAbsorption(src, in.Mono, distance)
		s.acc.Encode(filtered, dir, in.Gain*attenuation)
	}

	ambisonic.DecodeStereo(s.acc, s.stereo)

	if s.hrtf != nil {
		s.convolveHRTF(out)
	} else {
		copy(out, s.stereo)
	}
	return nil
}

// occlusionGain casts a ray from the listener toward source and, on a hit
// nearer than distance, attenuates by the material's mid-band transmission
// factor. A miss (or the None provider) leaves the direct effect unchanged.
func (s *SteamAudio) occlusionGain(position geom.Vec3, distance float32) float32 {
	if distance == 0 {
		return 1.0
	}
	toSource := position.Sub(s.listener.Position)
	dir := toSource.Normalized()
	hit, ok := s.rays.CastRay(
		[3]float32{s.listener.Position.X, s.listener.Position.Y, s.listener.Position.Z},
		[3]float32{dir.X, dir.Y, dir.Z},
		distance,
	)
	if !ok || hit.Distance >= distance {
		return 1.0
	}
	mat := s.rays.Material(hit.MaterialIdx)
	return mat.Transmission[1]
}

// applyAirAbsorption runs a one-pole low-pass whose cutoff tightens with
// distance: closer than airAbsorptionRef it's a no-op, farther it darkens
// the signal, modeling high-frequency loss over long paths.
func (s *SteamAudio) applyAirAbsorption(src *steamAudioSource, mono []float32, distance float32) []float32 {
	if distance <= airAbsorptionRef {
		src.lowpassSt = 0
		return mono
	}
	excess := distance - airAbsorptionRef
	alpha := float32(1.0 / (1.0 + excess/10.0)) // farther => smaller alpha => darker
	out := src.filterScratch
	if len(out) != len(mono) {
		// Only reached when called with a mono slice that doesn't match the
		// prepared block size (e.g. directly from a test); the render loop
		// always passes exactly blockSize samples, so this never allocates
		// on the real-time path.
		out = make([]float32, len(mono))
	}
	state := src.lowpassSt
	for i, x := range mono {
		y := alpha*x + (1-alpha)*state
		state = y
		out[i] = y
	}
	src.lowpassSt = state
	return out
}

// listenerRelativeDir expresses toSource as a unit vector in the listener's
// local frame (right, up, -forward), which is what ambisonic.Encode expects.
func listenerRelativeDir(toSource geom.Vec3, listener geom.Pose) geom.Vec3 {
	n := toSource.Normalized()
	right := listener.Orientation.Right()
	up := listener.Orientation.Up()
	forward := listener.Orientation.Forward()
	return geom.Vec3{
		X: n.Dot(right),
		Y: n.Dot(up),
		Z: -n.Dot(forward),
	}
}

// fftSpectrum zero-pads signal to n samples and returns its FFT. Called once
// per ear in Prepare, never on the Process path: the HRTF impulse response
// is fixed for the life of the adapter, so its spectrum only needs computing
// once rather than on every tick.
func fftSpectrum(signal []float32, n int) []complex128 {
	padded := make([]complex128, n)
	for i, v := range signal {
		padded[i] = complex(float64(v), 0)
	}
	return fft.FFT(padded)
}

// convolveHRTF applies the precomputed HRTF spectrum to s.stereo via
// overlap-add FFT convolution, carrying the tail between blocks in
// s.overlapL/s.overlapR. All scratch buffers were pre-allocated in Prepare.
func (s *SteamAudio) convolveHRTF(out []float32) {
	for i := 0; i < s.blockSize; i++ {
		s.convLeft[i] = s.stereo[i*2]
		s.convRight[i] = s.stereo[i*2+1]
	}

	s.overlapAddConvolve(s.convLeft, s.hrtfSpecL, s.overlapL, s.convTime)
	for i := 0; i < s.blockSize; i++ {
		out[i*2] = s.convTime[i]
	}

	s.overlapAddConvolve(s.convRight, s.hrtfSpecR, s.overlapR, s.convTime)
	for i := 0; i < s.blockSize; i++ {
		out[i*2+1] = s.convTime[i]
	}
}

// overlapAddConvolve convolves block against the precomputed spectrum
// irSpec (both padded to len(s.convPadded)), adds in the previous call's
// tail from overlap, and writes the result into dst. dst, overlap, and the
// shared s.convPadded/s.convProd scratch are all owned by the caller and
// pre-allocated; this performs no allocation of its own beyond whatever the
// fft package allocates internally for its transform outputs.
func (s *SteamAudio) overlapAddConvolve(block []float32, irSpec []complex128, overlap, dst []float32) {
	for i := range s.convPadded {
		s.convPadded[i] = 0
	}
	for i, v := range block {
		s.convPadded[i] = complex(float64(v), 0)
	}
	blockSpec := fft.FFT(s.convPadded)

	for i := range s.convProd {
		s.convProd[i] = blockSpec[i] * irSpec[i]
	}
	timeDomain := fft.IFFT(s.convProd)

	for i := range dst {
		v := float32(real(timeDomain[i]))
		if i < len(overlap) {
			v += overlap[i]
		}
		dst[i] = v
	}

	for i := range overlap {
		idx := len(block) + i
		if idx < len(timeDomain) {
			overlap[i] = float32(real(timeDomain[idx]))
		} else {
			overlap[i] = 0
		}
	}
}
