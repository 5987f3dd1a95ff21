// Package device implements the real-time device callback (the Device
// Sink) and the external device-backend abstraction it plugs into. Sink's
// Callback method is the only code in this package allowed to run on the
// device's own callback thread, and it must never allocate, lock, or block.
package device

import "sync/atomic"

// Backend abstracts an OS/driver audio output. Open starts the stream and
// begins invoking onData at the backend's own cadence until the returned
// Handle is closed.
type Backend interface {
	Open(rate uint32, channels uint8, preferredBufferSizeHint int, onData func(buf []float32)) (Handle, error)
}

// Handle represents an open output stream.
type Handle interface {
	// Close stops further onData callbacks synchronously before returning.
	Close() error
}

// Sink is the real-time-safe consumer half of the Frame ring: its Callback
// method is registered with a Backend as the onData function.
type Sink struct {
	ring     Ring
	channels int
	underrun atomic.Uint64
}

// Ring is the subset of *internal/ring.Ring the Sink needs, kept as an
// interface so tests can substitute a fake without pulling in the real
// ring package's allocation/power-of-two rules.
type Ring interface {
	Pop(dst []float32) int
}

// NewSink wraps r as a device-facing Sink for a stream with the given
// channel count.
func NewSink(r Ring, channels int) *Sink {
	return &Sink{ring: r, channels: channels}
}

// Callback implements the device backend's onData contract: pop as many
// frames as are available, zero-fill the rest, and count the shortfall.
// Never allocates, locks, or blocks.
func (s *Sink) Callback(buf []float32) {
	n := len(buf) / s.channels
	popped := s.ring.Pop(buf)
	if popped < n {
		missing := n - popped
		for i := popped * s.channels; i < len(buf); i++ {
			buf[i] = 0
		}
		s.underrun.Add(uint64(missing))
	}
}

// Underruns returns the total number of frames ever synthesized as
// silence due to the ring running dry. The render loop samples this
// periodically to emit BufferUnderrun events.
func (s *Sink) Underruns() uint64 {
	return s.underrun.Load()
}
