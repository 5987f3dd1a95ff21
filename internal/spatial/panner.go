package spatial

import (
	"math"

	"github.com/tr-nc/petalsonic/internal/geom"
)

const (
	headRadius   = 0.0875 // average human head radius, meters
	speedOfSound = 343.0  // m/s
	headShadow   = 0.7    // max ILD attenuation on the far ear
	refDistance  = 1.0    // meters; attenuation is unity at this distance
)

type pannerSource struct {
	position   geom.Vec3
	leftDelay  []float32
	rightDelay []float32
	writeIdx   int
}

// Panner is the required "panning mock": ITD (interaural time difference)
// via a short per-ear delay line plus ILD (interaural level difference) via
// head-shadow gain, combined with inverse-square distance attenuation. It
// implements Spatializer without any ambisonic stage.
type Panner struct {
	rate      uint32
	blockSize int

	listener geom.Pose
	sources  map[uint32]*pannerSource

	delayLen int
}

// NewPanner constructs an unprepared Panner; call Prepare before use.
func NewPanner() *Panner {
	return &Panner{
		listener: geom.DefaultPose,
		sources:  make(map[uint32]*pannerSource),
	}
}

func (p *Panner) Prepare(rate uint32, blockSize int, outChannels int) error {
	if rate == 0 || blockSize <= 0 {
		return ErrUnsupportedFormat{Rate: rate, OutChannels: outChannels}
	}
	if outChannels != 2 {
		return ErrUnsupportedFormat{Rate: rate, OutChannels: outChannels}
	}
	p.rate = rate
	p.blockSize = blockSize
	// Max ITD is ~0.7ms; size the delay line generously so interpolated
	// reads never need to wrap more than once per block.
	p.delayLen = int(float64(rate)*0.003) + blockSize
	return nil
}

func (p *Panner) CreateSource(id uint32, initial geom.Vec3) error {
	p.sources[id] = &pannerSource{
		position:   initial,
		leftDelay:  make([]float32, p.delayLen),
		rightDelay: make([]float32, p.delayLen),
	}
	return nil
}

func (p *Panner) DestroySource(id uint32) {
	delete(p.sources, id)
}

func (p *Panner) SetListener(pose geom.Pose) {
	p.listener = pose
}

func (p *Panner) SetSourcePosition(id uint32, position geom.Vec3) {
	if s, ok := p.sources[id]; ok {
		s.position = position
	}
}

func (p *Panner) Process(inputs []Input, out []float32) error {
	for i := range out {
		out[i] = 0
	}

	right := p.listener.Orientation.Right()

	for _, in := range inputs {
		src, ok := p.sources[in.ID]
		if !ok {
			return ErrUnknownSource{ID: in.ID}
		}
		p.processOne(src, in, right, out)
	}
	return nil
}

func (p *Panner) processOne(src *pannerSource, in Input, right geom.Vec3, out []float32) {
	toSource := src.position.Sub(p.listener.Position)
	distance := toSource.Length()
	dir := toSource.Normalized()

	pan := dir.Dot(right) // -1 (left) .. +1 (right)

	attenuation := float32(1.0)
	if distance > refDistance {
		ratio := refDistance / distance
		attenuation = ratio * ratio
	}

	itdSeconds := float64(pan) * headRadius / speedOfSound
	itdSamples := float32(itdSeconds * float64(p.rate))

	var leftDelaySamples, rightDelaySamples float32
	if pan > 0 {
		leftDelaySamples = itdSamples
	} else {
		rightDelaySamples = -itdSamples
	}

	absPan := pan
	if absPan < 0 {
		absPan = -absPan
	}
	leftGain := attenuation * in.Gain
	rightGain := attenuation * in.Gain
	if pan > 0 {
		leftGain *= 1.0 - headShadow*absPan
	} else {
		rightGain *= 1.0 - headShadow*absPan
	}

	delayLen := len(src.leftDelay)
	for i, sample := range in.Mono {
		src.leftDelay[src.writeIdx] = sample
		src.rightDelay[src.writeIdx] = sample

		leftReadPos := float32(src.writeIdx) - leftDelaySamples
		rightReadPos := float32(src.writeIdx) - rightDelaySamples

		l := interpolateDelay(src.leftDelay, leftReadPos, delayLen) * leftGain
		r := interpolateDelay(src.rightDelay, rightReadPos, delayLen) * rightGain

		out[i*2] += l
		out[i*2+1] += r

		src.writeIdx = (src.writeIdx + 1) % delayLen
	}
}

func interpolateDelay(buf []float32, pos float32, bufLen int) float32 {
	for pos < 0 {
		pos += float32(bufLen)
	}
	idx0 := int(pos) % bufLen
	idx1 := (idx0 + 1) % bufLen
	frac := pos - float32(math.Floor(float64(pos)))
	return buf[idx0]*(1-frac) + buf[idx1]*frac
}
