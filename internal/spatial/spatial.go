// Package spatial implements per-source binaural rendering for the render
// loop: distance attenuation, ITD/ILD or ambisonic panning, and (for the
// SteamAudio adapter) frequency-dependent air absorption. It runs entirely
// on the render thread, which tolerates its occasional latency spikes.
package spatial

import (
	"fmt"

	"github.com/tr-nc/petalsonic/internal/geom"
)

// Input is one spatial source's contribution to a render tick: exactly
// block_size mono samples already gain-adjusted by the render loop.
type Input struct {
	ID   uint32
	Mono []float32
	Gain float32
}

// Spatializer renders a set of per-tick mono source blocks into an
// interleaved stereo output block. Implementations own all per-source
// state and must pre-allocate it in CreateSource, never in Process.
type Spatializer interface {
	// Prepare initializes the spatializer for a fixed rate/block size/
	// output channel count. Must be called once before any other method.
	Prepare(rate uint32, blockSize int, outChannels int) error
	// CreateSource allocates per-source effect state.
	CreateSource(id uint32, initial geom.Vec3) error
	// DestroySource releases per-source effect state.
	DestroySource(id uint32)
	// SetListener updates the listener pose used by subsequent Process calls.
	SetListener(pose geom.Pose)
	// SetSourcePosition updates one source's world position.
	SetSourcePosition(id uint32, position geom.Vec3)
	// Process renders inputs into out (len == blockSize*outChannels),
	// overwriting any previous contents.
	Process(inputs []Input, out []float32) error
}

// ErrUnknownSource is returned by SetSourcePosition/DestroySource/Process
// when an id was never created (or was already destroyed).
type ErrUnknownSource struct{ ID uint32 }

func (e ErrUnknownSource) Error() string {
	return fmt.Sprintf("spatial: unknown source %d", e.ID)
}

// ErrUnsupportedFormat is returned by Prepare when the requested rate or
// channel count isn't supported.
type ErrUnsupportedFormat struct {
	Rate        uint32
	OutChannels int
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("spatial: unsupported format (rate=%d channels=%d)", e.Rate, e.OutChannels)
}
