// Package audiobuf implements the immutable, shared-ownership in-memory PCM
// buffer that backs every registered audio clip.
//
// A Buffer is constructed once by the loader and then referenced by any
// number of playback instances. Its sample storage is never mutated after
// construction, so concurrent reads from the render thread and concurrent
// drops from control-thread goroutines are both safe without locking.
package audiobuf

import "fmt"

// Buffer is an immutable interleaved float32 PCM clip.
//
// Identity, not value, is what matters: two Buffers with identical contents
// are still distinct handles. Equality is intentionally left undefined.
type Buffer struct {
	rate     uint32
	channels uint8
	frames   int
	samples  []float32 // len == frames*channels; never mutated after New
}

// New validates and wraps samples as an immutable Buffer. samples is taken
// by reference, not copied — callers must not retain a mutable alias.
func New(rate uint32, channels uint8, samples []float32) (*Buffer, error) {
	if rate == 0 {
		return nil, fmt.Errorf("audiobuf: sample rate must be > 0")
	}
	if channels == 0 {
		return nil, fmt.Errorf("audiobuf: channel count must be > 0")
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("audiobuf: empty sample data")
	}
	if len(samples)%int(channels) != 0 {
		return nil, fmt.Errorf("audiobuf: sample count %d not divisible by %d channels", len(samples), channels)
	}
	return &Buffer{
		rate:     rate,
		channels: channels,
		frames:   len(samples) / int(channels),
		samples:  samples,
	}, nil
}

// Rate returns the buffer's sample rate in Hz.
func (b *Buffer) Rate() uint32 { return b.rate }

// Channels returns the interleaved channel count (1 or 2 typically).
func (b *Buffer) Channels() uint8 { return b.channels }

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int { return b.frames }

// Mono reports whether the buffer is single-channel.
func (b *Buffer) Mono() bool { return b.channels == 1 }

// Samples returns the underlying interleaved sample slice. The returned
// slice must not be mutated; Buffer promises immutability to every reader.
func (b *Buffer) Samples() []float32 { return b.samples }

// CopyFrom copies count frames starting at playhead (a frame index) into
// dst, which must hold count*channels samples. It returns the number of
// frames actually copied, which is less than count only when the read
// would run past the end of the buffer — the caller is responsible for
// handling the short read (looping, zero-fill, completion).
func (b *Buffer) CopyFrom(playhead int, dst []float32, count int) int {
	if playhead >= b.frames || playhead < 0 || count <= 0 {
		return 0
	}
	avail := b.frames - playhead
	if count > avail {
		count = avail
	}
	ch := int(b.channels)
	copy(dst[:count*ch], b.samples[playhead*ch:(playhead+count)*ch])
	return count
}
